package crypto

import (
	"crypto/sha256"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	masterKeySize = 32
	saltSize      = 16

	// PBKDF2 parameters are part of the envelope contract: changing them
	// breaks decryption of existing salted envelopes.
	pbkdf2Iterations = 100_000
)

// DefaultSecretSources are the environment variables consulted, in order,
// when no explicit secret is supplied.
var DefaultSecretSources = []string{
	"ENCRYPTION_MASTER_KEY",
	"SECRETS_ENCRYPTION_KEY",
	"APP_SECRET_KEY",
}

// KeyManager owns the operator-supplied master secret and all key
// derivation. It is safe for concurrent use; the master key hash is cached
// for the process lifetime until Invalidate or SwapSecret.
type KeyManager struct {
	mu     sync.RWMutex
	secret []byte
	cached []byte // sha256(secret), mlocked where supported
}

// NewKeyManager builds a KeyManager around an explicit secret. An empty
// secret is allowed here; MasterKey will fail until one is set.
func NewKeyManager(secret string) *KeyManager {
	return &KeyManager{secret: []byte(secret)}
}

// NewKeyManagerFromEnv reads the first non-empty value among the given
// environment variables (DefaultSecretSources when none are given). It
// fails with ErrNoMasterSecret if all sources are empty.
func NewKeyManagerFromEnv(sources ...string) (*KeyManager, error) {
	if len(sources) == 0 {
		sources = DefaultSecretSources
	}
	for _, name := range sources {
		if v := os.Getenv(name); v != "" {
			return NewKeyManager(v), nil
		}
	}
	return nil, ErrNoMasterSecret
}

// MasterKey normalizes the operator secret to a fixed-length key by hashing
// it with SHA-256, making key length independent of how the secret was
// supplied. The result is cached; callers must not mutate it.
func (km *KeyManager) MasterKey() ([]byte, error) {
	km.mu.RLock()
	if km.cached != nil {
		k := km.cached
		km.mu.RUnlock()
		return k, nil
	}
	km.mu.RUnlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if km.cached != nil {
		return km.cached, nil
	}
	if len(km.secret) == 0 {
		return nil, ErrNoMasterSecret
	}
	sum := sha256.Sum256(km.secret)
	km.cached = sum[:]
	_ = lockMemory(km.cached)
	return km.cached, nil
}

// OperationKey returns the key for a single encrypt/decrypt operation.
// Without PBKDF2 this is the master key itself. With PBKDF2 the master key
// is stretched over the given salt; the salt must travel in the envelope so
// decryption can reproduce the same key.
func (km *KeyManager) OperationKey(salt []byte, usePBKDF2 bool) ([]byte, error) {
	master, err := km.MasterKey()
	if err != nil {
		return nil, err
	}
	if !usePBKDF2 {
		return master, nil
	}
	return pbkdf2.Key(master, salt, pbkdf2Iterations, masterKeySize, sha256.New), nil
}

// SwapSecret replaces the active master secret and drops the cached key.
// The swap is visible to all goroutines before SwapSecret returns.
func (km *KeyManager) SwapSecret(newSecret string) {
	km.mu.Lock()
	defer km.mu.Unlock()
	km.dropCacheLocked()
	Zero(km.secret)
	km.secret = []byte(newSecret)
}

// Invalidate clears the cached master key, forcing the next operation to
// re-derive it. Required after a configuration reload.
func (km *KeyManager) Invalidate() {
	km.mu.Lock()
	defer km.mu.Unlock()
	km.dropCacheLocked()
}

// dropCacheLocked releases the cached key without zeroing it: an in-flight
// operation may still hold the slice. The reference is simply dropped.
func (km *KeyManager) dropCacheLocked() {
	if km.cached != nil {
		_ = unlockMemory(km.cached)
		km.cached = nil
	}
}
