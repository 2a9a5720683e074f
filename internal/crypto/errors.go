package crypto

import "errors"

var (
	// ErrNoMasterSecret is returned when no master secret is configured in
	// any of the configured sources.
	ErrNoMasterSecret = errors.New("crypto: no master secret configured")

	// ErrMalformedEnvelope is returned when a stored value cannot be parsed
	// as either the current or the legacy envelope shape.
	ErrMalformedEnvelope = errors.New("crypto: malformed envelope")

	// ErrAuthFailed is returned when the authentication tag does not verify.
	// Tampering, a wrong key and a derivation-mode mismatch are deliberately
	// indistinguishable.
	ErrAuthFailed = errors.New("crypto: message authentication failed")
)
