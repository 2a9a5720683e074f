package crypto

import (
	"encoding/hex"
	"strings"
)

// Envelope wire format: hex fields joined with ":". The current format is
// prefixed with a literal version tag; legacy values carry no tag.
//
//	v2:<iv>:<tag>:<ciphertext>          current, master-key derivation
//	v2:<salt>:<iv>:<tag>:<ciphertext>   current, PBKDF2 derivation
//	<iv>:<tag>:<ciphertext>             legacy
const (
	versionTag  = "v2"
	envelopeSep = ":"
	envelopePfx = versionTag + envelopeSep
)

type Version int

const (
	VersionLegacy Version = iota
	VersionV2
)

// Envelope is the decoded form of a stored ciphertext. Salt is nil when the
// value was encrypted without password-based derivation.
type Envelope struct {
	Version    Version
	Salt       []byte
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// Encode serializes the envelope to its wire string.
func (e Envelope) Encode() string {
	fields := make([]string, 0, 5)
	if e.Version == VersionV2 {
		fields = append(fields, versionTag)
	}
	if e.Salt != nil {
		fields = append(fields, hex.EncodeToString(e.Salt))
	}
	fields = append(fields,
		hex.EncodeToString(e.IV),
		hex.EncodeToString(e.Tag),
		hex.EncodeToString(e.Ciphertext),
	)
	return strings.Join(fields, envelopeSep)
}

// DecodeEnvelope parses a stored value into an Envelope. A value starting
// with the version tag must have exactly 3 (no salt) or 4 (salted) fields
// after the tag; anything else is treated as legacy and must have exactly
// 3 fields. Field-count or hex mismatches yield ErrMalformedEnvelope.
func DecodeEnvelope(s string) (Envelope, error) {
	if strings.HasPrefix(s, envelopePfx) {
		parts := strings.Split(strings.TrimPrefix(s, envelopePfx), envelopeSep)
		switch len(parts) {
		case 3:
			iv, tag, ct, err := decodeHexFields(parts[0], parts[1], parts[2])
			if err != nil {
				return Envelope{}, err
			}
			return Envelope{Version: VersionV2, IV: iv, Tag: tag, Ciphertext: ct}, nil
		case 4:
			salt, err := hex.DecodeString(parts[0])
			if err != nil || len(salt) == 0 {
				return Envelope{}, ErrMalformedEnvelope
			}
			iv, tag, ct, err := decodeHexFields(parts[1], parts[2], parts[3])
			if err != nil {
				return Envelope{}, err
			}
			return Envelope{Version: VersionV2, Salt: salt, IV: iv, Tag: tag, Ciphertext: ct}, nil
		default:
			return Envelope{}, ErrMalformedEnvelope
		}
	}

	parts := strings.Split(s, envelopeSep)
	if len(parts) != 3 {
		return Envelope{}, ErrMalformedEnvelope
	}
	iv, tag, ct, err := decodeHexFields(parts[0], parts[1], parts[2])
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Version: VersionLegacy, IV: iv, Tag: tag, Ciphertext: ct}, nil
}

func decodeHexFields(ivHex, tagHex, ctHex string) (iv, tag, ct []byte, err error) {
	if iv, err = hex.DecodeString(ivHex); err != nil || len(iv) == 0 {
		return nil, nil, nil, ErrMalformedEnvelope
	}
	if tag, err = hex.DecodeString(tagHex); err != nil || len(tag) == 0 {
		return nil, nil, nil, ErrMalformedEnvelope
	}
	if ct, err = hex.DecodeString(ctHex); err != nil || len(ct) == 0 {
		return nil, nil, nil, ErrMalformedEnvelope
	}
	return iv, tag, ct, nil
}

// IsCurrentFormat reports whether a stored value carries the current
// version tag. Readers must never reinterpret a tagged value as legacy.
func IsCurrentFormat(s string) bool {
	return strings.HasPrefix(s, envelopePfx)
}

// IsEncrypted reports whether a stored value matches either envelope shape.
// Callers use it to tell encrypted values apart from plaintext defaults.
func IsEncrypted(s string) bool {
	if s == "" {
		return false
	}
	_, err := DecodeEnvelope(s)
	return err == nil
}
