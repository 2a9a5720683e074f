// Package credentials is the credential-storage consumer of the encryption
// core: structured provider credentials (API tokens, account ids, regions)
// persisted as a single encrypted record per provider.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/mateit-cloudware/agent-secrets/internal/crypto"
	"github.com/mateit-cloudware/agent-secrets/internal/storage"
)

var ErrNotFound = errors.New("credentials: not found")

// Store persists provider credential records through a ValueStore.
type Store struct {
	svc    *crypto.Service
	values storage.ValueStore
}

func NewStore(svc *crypto.Service, values storage.ValueStore) *Store {
	return &Store{svc: svc, values: values}
}

// Save encrypts and persists the credential record for a provider.
func (s *Store) Save(ctx context.Context, provider string, creds map[string]string) error {
	if provider == "" {
		return errors.New("credentials: empty provider")
	}
	enc, err := s.svc.EncryptCredentials(creds)
	if err != nil {
		return fmt.Errorf("credentials: encrypt %s: %w", provider, err)
	}
	return s.values.Put(ctx, provider, enc)
}

// Load decrypts the credential record for a provider.
func (s *Store) Load(ctx context.Context, provider string) (map[string]string, error) {
	enc, err := s.values.Get(ctx, provider)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	creds, err := s.svc.DecryptCredentials(enc)
	if err != nil {
		return nil, fmt.Errorf("credentials: decrypt %s: %w", provider, err)
	}
	return creds, nil
}

// Delete removes a provider's credentials.
func (s *Store) Delete(ctx context.Context, provider string) error {
	return s.values.Delete(ctx, provider)
}

// Providers lists the providers with stored credentials.
func (s *Store) Providers(ctx context.Context) ([]string, error) {
	stored, err := s.values.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(stored))
	for _, sv := range stored {
		out = append(out, sv.Key)
	}
	return out, nil
}

// Reencrypt feeds the stored corpus through a key rotation and persists the
// re-encrypted values. Durability is owned here, not by the core: items
// that fail to decrypt are reported and left untouched in the store.
func (s *Store) Reencrypt(ctx context.Context, newSecret string) (crypto.RotateResult, error) {
	stored, err := s.values.List(ctx)
	if err != nil {
		return crypto.RotateResult{}, err
	}
	items := make([]crypto.RotateItem, 0, len(stored))
	for _, sv := range stored {
		items = append(items, crypto.RotateItem{ID: sv.Key, EncryptedData: sv.Value})
	}

	res := s.svc.RotateKey(items, newSecret)

	for _, it := range res.Items {
		if err := s.values.Put(ctx, it.ID, it.EncryptedData); err != nil {
			res.Success = false
			res.Errors = append(res.Errors, crypto.RotateItemError{ID: it.ID, Error: err.Error()})
		}
	}
	return res, nil
}
