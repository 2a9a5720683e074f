package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"sync"
)

const gcmTagSize = 16

// Service is the encryption core. All operations are stateless computations
// over their inputs plus the KeyManager's configuration; concurrent use is
// safe without external locking.
type Service struct {
	keys *KeyManager

	mu      sync.Mutex
	history []RotationEvent
}

func NewService(keys *KeyManager) *Service {
	return &Service{keys: keys}
}

// Encrypt seals plaintext into a current-format envelope using AES-256-GCM
// with a fresh random nonce per call, and a fresh random salt when PBKDF2
// derivation is requested. Encrypting the same plaintext twice yields two
// distinct envelopes.
//
// The empty string passes through unencrypted: callers treat an empty
// config value as "not set", so there is nothing to protect.
func (s *Service) Encrypt(plaintext string, usePBKDF2 bool) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var salt []byte
	if usePBKDF2 {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return "", err
		}
	}
	key, err := s.keys.OperationKey(salt, usePBKDF2)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return Envelope{
		Version:    VersionV2,
		Salt:       salt,
		IV:         iv,
		Tag:        tag,
		Ciphertext: ct,
	}.Encode(), nil
}

// Decrypt reverses Encrypt. The usePBKDF2 flag must match the one used at
// encryption time; a mismatch surfaces as ErrAuthFailed, exactly like
// tampering or a wrong key. The empty string passes through.
func (s *Service) Decrypt(value string, usePBKDF2 bool) (string, error) {
	if value == "" {
		return "", nil
	}
	env, err := DecodeEnvelope(value)
	if err != nil {
		return "", err
	}
	key, err := s.keys.OperationKey(env.Salt, usePBKDF2)
	if err != nil {
		return "", err
	}
	return openEnvelope(key, env)
}

// EncryptAPIKey encrypts a high-value secret. PBKDF2 derivation is always
// applied for this class of values.
func (s *Service) EncryptAPIKey(key string) (string, error) {
	return s.Encrypt(key, true)
}

// DecryptAPIKey reverses EncryptAPIKey.
func (s *Service) DecryptAPIKey(value string) (string, error) {
	return s.Decrypt(value, true)
}

// EncryptCredentials serializes a structured credential record through
// Encrypt. An empty record encrypts as the canonical "{}" rather than
// hitting the empty-string passthrough.
func (s *Service) EncryptCredentials(creds map[string]string) (string, error) {
	if creds == nil {
		creds = map[string]string{}
	}
	b, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return s.Encrypt(string(b), false)
}

// DecryptCredentials reverses EncryptCredentials. An empty stored value
// yields an empty record, not an error.
func (s *Service) DecryptCredentials(value string) (map[string]string, error) {
	if value == "" {
		return map[string]string{}, nil
	}
	pt, err := s.Decrypt(value, false)
	if err != nil {
		return nil, err
	}
	creds := map[string]string{}
	if err := json.Unmarshal([]byte(pt), &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// decryptAuto decrypts an envelope of either version, inferring the
// derivation mode from the envelope shape (salt present means PBKDF2).
// Used by migration and rotation, where the stored corpus mixes modes.
func (s *Service) decryptAuto(value string) (string, error) {
	env, err := DecodeEnvelope(value)
	if err != nil {
		return "", err
	}
	key, err := s.keys.OperationKey(env.Salt, env.Salt != nil)
	if err != nil {
		return "", err
	}
	return openEnvelope(key, env)
}

func openEnvelope(key []byte, env Envelope) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(env.IV) != gcm.NonceSize() || len(env.Tag) != gcmTagSize {
		return "", ErrMalformedEnvelope
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	pt, err := gcm.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(pt), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
