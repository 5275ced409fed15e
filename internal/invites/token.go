package invites

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	// tokenFragmentChars is the base-36 length of one token fragment.
	tokenFragmentChars = 13

	// TokenLength is the total length of an invitation token: two
	// concatenated base-36 fragments.
	TokenLength = 2 * tokenFragmentChars
)

// GenerateToken produces an opaque invitation token: two base-36 fragments
// concatenated, lowercase alphanumeric. This is the format embedded in
// /select-gym?token=<opaque> deep links.
func GenerateToken() (string, error) {
	first, err := tokenFragment()
	if err != nil {
		return "", err
	}
	second, err := tokenFragment()
	if err != nil {
		return "", err
	}
	return first + second, nil
}

// tokenFragment returns a fixed-width base-36 encoding of 63 random bits.
// The top bit is forced so every fragment encodes to exactly
// tokenFragmentChars characters.
func tokenFragment() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	v := binary.BigEndian.Uint64(buf[:]) | (1 << 63)
	return strconv.FormatUint(v, 36), nil
}

// ValidateTokenFormat reports whether token looks like a token this system
// issued: the right length, lowercase base-36 characters only.
func ValidateTokenFormat(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for _, c := range token {
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
