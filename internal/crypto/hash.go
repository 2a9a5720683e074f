package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// SHA256Hex returns the SHA-256 digest of data as 64 hex characters.
func SHA256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// SHA512Hex returns the SHA-512 digest of data as 128 hex characters.
func SHA512Hex(data string) string {
	sum := sha512.Sum512([]byte(data))
	return hex.EncodeToString(sum[:])
}

// HMACHex returns an HMAC-SHA256 of data keyed with the master key, as 64
// hex characters. Deterministic for a fixed key and input.
func (s *Service) HMACHex(data string) (string, error) {
	key, err := s.keys.MasterKey()
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// TimingSafeEqual compares two strings in constant time. Differing lengths
// compare false without leaking where they differ.
func TimingSafeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

const (
	maskRune   = "•"
	maskMinLen = 8
	maskWidth  = 8
)

// Mask returns a display-safe rendering of a secret: eight mask characters
// followed by the last visibleTail characters. Values shorter than the
// minimum threshold render as the fixed-width mask alone so their length
// is not disclosed. Display only, never for storage or comparison.
func Mask(value string, visibleTail int) string {
	masked := strings.Repeat(maskRune, maskWidth)
	if len(value) < maskMinLen || visibleTail <= 0 {
		return masked
	}
	if visibleTail > len(value) {
		visibleTail = len(value)
	}
	return masked + value[len(value)-visibleTail:]
}

// SecureToken returns byteLength cryptographically random bytes hex-encoded.
func SecureToken(byteLength int) (string, error) {
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewUUID returns a random (version 4) UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// GenerateKey returns 32 bytes of fresh key material, base64-encoded, for
// use as an operator secret.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// HashKey returns a short deterministic fingerprint of s, suitable for
// cache keys. Not security-sensitive.
func HashKey(s string) string {
	return SHA256Hex(s)[:16]
}
