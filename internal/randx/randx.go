// Package randx holds the crypto/rand helpers shared by the session manager
// and the verification engine. All randomness used for bearer material comes
// from here.
package randx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const sessionTokenSize = 32

// CodeAlphabet is the symbol set for human-enterable one-time codes: A-Z
// minus the visually ambiguous I and O, plus the digits 2-9. Exactly 32
// symbols, so one random byte maps to one symbol without rejection.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewSessionToken returns a 32-byte opaque bearer token, base64url encoded
// without padding.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewCode returns a one-time code of the given length drawn from
// CodeAlphabet, one random byte per symbol.
func NewCode(length int) (string, error) {
	if length < 4 || length > 16 {
		return "", errors.New("invalid code length")
	}

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	out := make([]byte, length)
	for i, b := range raw {
		out[i] = CodeAlphabet[b&31]
	}
	return string(out), nil
}
