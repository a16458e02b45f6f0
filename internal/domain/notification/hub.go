package notification

// Registry maps users to their live connection handles.
type Registry interface {
	Register(userID string, h Handle)
	Unregister(userID string, h Handle)
	HandlesFor(userID string) []Handle
	IsOnline(userID string) bool
}

// Broadcaster fans events out to connections. All sends are best-effort.
type Broadcaster interface {
	SendToUser(userID, event string, payload any)
	SendToGroup(groupID, event string, payload any)
	SendToGroupExcept(groupID, exceptHandleID, event string, payload any)
	SendToHandle(h Handle, event string, payload any)
	BroadcastAll(event string, payload any)
}
