package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/bookswap/realtime/internal/domain/user"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoDefaultKey   = errors.New("default key not configured")
	ErrInvalidKeySpec = errors.New("invalid signing key format")
)

// KeySet holds the verification keys bound to one credential scheme.
type KeySet struct {
	Scheme       user.Scheme
	keys         map[string][]byte
	defaultKeyID string
}

// Key returns the key for keyID, or the default key when keyID is empty.
func (k *KeySet) Key(keyID string) ([]byte, error) {
	if keyID == "" {
		if k.defaultKeyID == "" {
			return nil, ErrNoDefaultKey
		}
		keyID = k.defaultKeyID
	}
	key, ok := k.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// StaticKeyStore is an in-memory keystore keyed by scheme.
type StaticKeyStore struct {
	sets map[user.Scheme]*KeySet
}

func New() *StaticKeyStore {
	return &StaticKeyStore{sets: make(map[user.Scheme]*KeySet)}
}

// Add parses raw ("keyId:hex,keyId2:hex") and binds the keys to scheme.
// With a single key and no defaultKeyID, that key becomes the default.
func (s *StaticKeyStore) Add(scheme user.Scheme, raw, defaultKeyID string) error {
	keys, err := ParseKeys(raw)
	if err != nil {
		return fmt.Errorf("%s keys: %w", scheme, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if defaultKeyID == "" && len(keys) == 1 {
		defaultKeyID = lo.Keys(keys)[0]
	}
	if defaultKeyID != "" {
		if _, ok := keys[defaultKeyID]; !ok {
			return fmt.Errorf("%s default key %q: %w", scheme, defaultKeyID, ErrKeyNotFound)
		}
	}
	s.sets[scheme] = &KeySet{Scheme: scheme, keys: keys, defaultKeyID: defaultKeyID}
	return nil
}

// KeySet returns the keys bound to scheme.
func (s *StaticKeyStore) KeySet(scheme user.Scheme) (*KeySet, bool) {
	ks, ok := s.sets[scheme]
	return ks, ok
}

// ParseKeys parses "keyId:hex,keyId2:hex".
func ParseKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, ErrInvalidKeySpec
		}
		b, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", parts[0], err)
		}
		if len(b) == 0 {
			return nil, ErrInvalidKeySpec
		}
		keys[parts[0]] = b
	}
	return keys, nil
}
