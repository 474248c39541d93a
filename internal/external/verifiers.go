package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"payrelay/internal/types"
)

// githubSignaturePrefix is the scheme prefix GitHub uses in the
// X-Hub-Signature-256 header.
const githubSignaturePrefix = "sha256="

// WebhookVerifier validates that an inbound webhook body was signed by the
// claimed shared secret.
type WebhookVerifier interface {
	// Verify checks the raw body against the signature header.
	// An empty secret disables verification and always returns true; the
	// caller must log that enforcement is off.
	Verify(payload []byte, signatureHeader string, secret types.SecretString) bool
}

// GitHubVerifier implements WebhookVerifier for GitHub's HMAC-SHA256 scheme:
// the header carries "sha256=<lowercase hex digest>" computed over the raw
// request body keyed by the shared webhook secret.
type GitHubVerifier struct{}

// Compile-time assertion that GitHubVerifier satisfies WebhookVerifier.
var _ WebhookVerifier = (*GitHubVerifier)(nil)

// Verify is a pure function over its inputs.
//
// Rules:
//   - Empty secret: verification is disabled, returns true.
//   - Non-empty secret, missing header: returns false.
//   - Malformed header (wrong prefix, no "=", non-hex digest): returns
//     false, never an error or panic.
//   - Otherwise: constant-time comparison of the expected digest against
//     the header's hex portion.
func (v *GitHubVerifier) Verify(payload []byte, signatureHeader string, secret types.SecretString) bool {
	if !secret.IsSet() {
		return true
	}

	if signatureHeader == "" {
		return false
	}

	if !strings.HasPrefix(signatureHeader, githubSignaturePrefix) {
		return false
	}
	provided := strings.TrimPrefix(signatureHeader, githubSignaturePrefix)

	// Decode before comparing so that casing differences in the hex digest
	// cannot break an otherwise valid signature.
	providedDigest, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret.Unmask()))
	mac.Write(payload)
	expected := mac.Sum(nil)

	return hmac.Equal(providedDigest, expected)
}
