// Package settings is the configuration-storage consumer of the encryption
// core. Values typed "secret" are persisted exclusively as current-format
// envelopes with password-based derivation; everything else is stored as
// plain text.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/storage"
)

type Type string

const (
	TypeString Type = "string"
	TypeBool   Type = "bool"
	TypeNumber Type = "number"
	TypeSecret Type = "secret"
)

var ErrNotFound = errors.New("settings: not found")

type Setting struct {
	Key   string `json:"key"`
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Store persists typed settings through a ValueStore. The envelope string
// is opaque to the ValueStore; this layer owns encryption and migration.
type Store struct {
	svc    *crypto.Service
	values storage.ValueStore
}

func NewStore(svc *crypto.Service, values storage.ValueStore) *Store {
	return &Store{svc: svc, values: values}
}

type record struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Set writes a setting. Secret values are encrypted before they reach the
// underlying store; plaintext never touches persistence for TypeSecret.
func (s *Store) Set(ctx context.Context, key string, typ Type, value string) error {
	if key == "" {
		return errors.New("settings: empty key")
	}
	if typ == TypeSecret {
		enc, err := s.svc.EncryptAPIKey(value)
		if err != nil {
			return fmt.Errorf("settings: encrypt %s: %w", key, err)
		}
		value = enc
	}
	b, err := json.Marshal(record{Type: typ, Value: value})
	if err != nil {
		return err
	}
	return s.values.Put(ctx, key, string(b))
}

// Get reads a setting, decrypting secret values. A stored secret that
// predates envelope versioning is upgraded in place: legacy envelopes are
// migrated to the current format and written back; values that are not
// encrypted at all (plaintext defaults) are returned as-is.
func (s *Store) Get(ctx context.Context, key string) (Setting, error) {
	raw, err := s.values.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Setting{}, ErrNotFound
		}
		return Setting{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Setting{}, fmt.Errorf("settings: corrupt record %s: %w", key, err)
	}
	out := Setting{Key: key, Type: rec.Type, Value: rec.Value}
	if rec.Type != TypeSecret {
		return out, nil
	}

	stored := rec.Value
	if !crypto.IsEncrypted(stored) {
		// plaintext default seeded before encryption was enabled
		return out, nil
	}
	if !crypto.IsCurrentFormat(stored) {
		// legacy envelopes predate salted derivation: recover under the
		// master key, then re-seal under the secret-class contract
		pt, err := s.svc.Decrypt(stored, false)
		if err != nil {
			return Setting{}, fmt.Errorf("settings: migrate %s: %w", key, err)
		}
		upgraded, err := s.svc.EncryptAPIKey(pt)
		if err != nil {
			return Setting{}, fmt.Errorf("settings: migrate %s: %w", key, err)
		}
		// best effort write-back; the decrypted value is correct either way
		if b, err := json.Marshal(record{Type: rec.Type, Value: upgraded}); err == nil {
			_ = s.values.Put(ctx, key, string(b))
		}
		out.Value = pt
		return out, nil
	}

	pt, err := s.svc.DecryptAPIKey(stored)
	if err != nil {
		return Setting{}, fmt.Errorf("settings: decrypt %s: %w", key, err)
	}
	out.Value = pt
	return out, nil
}

// Delete removes a setting.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.values.Delete(ctx, key)
}

// List returns all settings with secret values masked for display.
func (s *Store) List(ctx context.Context) ([]Setting, error) {
	stored, err := s.values.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(stored))
	for _, sv := range stored {
		var rec record
		if err := json.Unmarshal([]byte(sv.Value), &rec); err != nil {
			continue
		}
		item := Setting{Key: sv.Key, Type: rec.Type, Value: rec.Value}
		if rec.Type == TypeSecret {
			item.Value = crypto.Mask(rec.Value, 0)
		}
		out = append(out, item)
	}
	return out, nil
}
