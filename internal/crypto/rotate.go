package crypto

import "time"

// RotateItem is one stored ciphertext in a rotation batch. After a
// successful rotation EncryptedData holds the value re-encrypted under the
// new key; persisting it is the caller's job.
type RotateItem struct {
	ID            string `json:"id"`
	EncryptedData string `json:"encryptedData"`
}

// RotateItemError records a single item that could not be rotated.
type RotateItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// RotateResult reports the outcome of a rotation batch. ItemsProcessed
// counts attempts, not successes. The batch is not transactional: Items
// holds the re-encrypted values for the entries that succeeded, and the
// caller owns durability.
type RotateResult struct {
	Success        bool              `json:"success"`
	ItemsProcessed int               `json:"itemsProcessed"`
	Items          []RotateItem      `json:"items"`
	Errors         []RotateItemError `json:"errors"`
}

// RotationEvent is a process-scoped observability record; it is not a
// source of truth and is never persisted by this package.
type RotationEvent struct {
	StartedAt time.Time `json:"startedAt"`
	Items     int       `json:"items"`
	Failed    int       `json:"failed"`
	Succeeded bool      `json:"succeeded"`
}

// MigrateToV2 upgrades a legacy stored value to the current envelope
// format. Empty values and values already in the current format are
// returned unchanged, so the call is idempotent. A legacy value that
// cannot be decrypted fails with the Decrypt error taxonomy.
func (s *Service) MigrateToV2(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if IsCurrentFormat(value) {
		return value, nil
	}
	pt, err := s.Decrypt(value, false)
	if err != nil {
		return "", err
	}
	return s.Encrypt(pt, false)
}

// RotateKey re-encrypts a batch of stored ciphertexts under a new master
// secret. Every item is first decrypted under the currently configured key
// (derivation mode inferred from the envelope), then the KeyManager secret
// is swapped, then each recovered plaintext is re-encrypted. Items fail
// independently; a per-item error is recorded and the batch continues.
//
// The key swap is visible to all goroutines before any re-encryption
// starts. No operation issued after RotateKey returns uses the old key.
func (s *Service) RotateKey(items []RotateItem, newSecret string) RotateResult {
	started := time.Now()
	res := RotateResult{Success: true}

	type recovered struct {
		id    string
		plain string
		mode  bool // PBKDF2 was used for the original envelope
	}
	plaintexts := make([]recovered, 0, len(items))

	for _, it := range items {
		res.ItemsProcessed++
		if it.EncryptedData == "" {
			plaintexts = append(plaintexts, recovered{id: it.ID})
			continue
		}
		env, err := DecodeEnvelope(it.EncryptedData)
		if err != nil {
			res.Errors = append(res.Errors, RotateItemError{ID: it.ID, Error: err.Error()})
			continue
		}
		pt, err := s.decryptAuto(it.EncryptedData)
		if err != nil {
			res.Errors = append(res.Errors, RotateItemError{ID: it.ID, Error: err.Error()})
			continue
		}
		plaintexts = append(plaintexts, recovered{id: it.ID, plain: pt, mode: env.Salt != nil})
	}

	s.keys.SwapSecret(newSecret)

	for _, rec := range plaintexts {
		ct, err := s.Encrypt(rec.plain, rec.mode)
		if err != nil {
			res.Errors = append(res.Errors, RotateItemError{ID: rec.id, Error: err.Error()})
			continue
		}
		res.Items = append(res.Items, RotateItem{ID: rec.id, EncryptedData: ct})
	}

	if len(res.Errors) > 0 {
		res.Success = false
	}

	s.mu.Lock()
	s.history = append(s.history, RotationEvent{
		StartedAt: started,
		Items:     len(items),
		Failed:    len(res.Errors),
		Succeeded: res.Success,
	})
	s.mu.Unlock()

	return res
}

// InvalidateKeyCache drops any cached derived-key material so the next
// operation re-derives from current configuration.
func (s *Service) InvalidateKeyCache() {
	s.keys.Invalidate()
}

// RotationHistory returns a copy of the process-scoped rotation log.
func (s *Service) RotationHistory() []RotationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RotationEvent(nil), s.history...)
}
