package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// entitlementTokenBytes is the raw entropy per token. 32 bytes keeps tokens
// comfortably above the 128-bit floor for unguessable bearer credentials.
const entitlementTokenBytes = 32

// GenerateEntitlementToken returns a new opaque bearer token and the digest
// under which it is persisted. The raw token is shown to the viewer exactly
// once; only the digest is stored.
func GenerateEntitlementToken() (token string, digest string, err error) {
	buf := make([]byte, entitlementTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, TokenDigest(token), nil
}

// TokenDigest returns the hex-encoded SHA-256 of a raw token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidTokenShape reports whether a presented token is plausibly one of ours.
// Shape checks run before any lookup so malformed input never reaches storage.
func ValidTokenShape(token string) bool {
	if len(token) != entitlementTokenBytes*2 {
		return false
	}
	if strings.ToLower(token) != token {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// DigestsEqual compares two digests in constant time.
func DigestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
