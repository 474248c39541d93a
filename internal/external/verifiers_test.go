package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"payrelay/internal/types"
)

// signHex computes the GitHub-style signature header value for a payload.
func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubVerifier_ValidSignature(t *testing.T) {
	v := &GitHubVerifier{}
	secret := types.SecretString("webhook-secret")
	payload := []byte(`{"action":"created"}`)

	if !v.Verify(payload, signHex("webhook-secret", payload), secret) {
		t.Error("expected valid signature to verify")
	}
}

func TestGitHubVerifier_TamperedPayload(t *testing.T) {
	v := &GitHubVerifier{}
	secret := types.SecretString("webhook-secret")
	payload := []byte(`{"action":"created"}`)
	sig := signHex("webhook-secret", payload)

	tampered := []byte(`{"action":"created","evil":true}`)
	if v.Verify(tampered, sig, secret) {
		t.Error("expected tampered payload to fail verification")
	}
}

func TestGitHubVerifier_WrongSecret(t *testing.T) {
	v := &GitHubVerifier{}
	payload := []byte(`{}`)

	if v.Verify(payload, signHex("other-secret", payload), types.SecretString("webhook-secret")) {
		t.Error("expected signature from a different secret to fail")
	}
}

func TestGitHubVerifier_EmptySecretSkipsVerification(t *testing.T) {
	v := &GitHubVerifier{}

	// With no secret configured, every delivery is accepted, including one
	// with no signature header at all.
	if !v.Verify([]byte(`{}`), "", types.SecretString("")) {
		t.Error("expected empty secret to skip verification")
	}
	if !v.Verify([]byte(`{}`), "sha256=deadbeef", types.SecretString("")) {
		t.Error("expected empty secret to skip verification regardless of header")
	}
}

func TestGitHubVerifier_MissingHeader(t *testing.T) {
	v := &GitHubVerifier{}
	if v.Verify([]byte(`{}`), "", types.SecretString("webhook-secret")) {
		t.Error("expected missing signature header to fail when secret is set")
	}
}

func TestGitHubVerifier_MalformedHeader(t *testing.T) {
	v := &GitHubVerifier{}
	secret := types.SecretString("webhook-secret")
	payload := []byte(`{}`)

	cases := []struct {
		name   string
		header string
	}{
		{"no prefix", hexDigest("webhook-secret", payload)},
		{"wrong algorithm prefix", "sha1=" + hexDigest("webhook-secret", payload)},
		{"invalid hex", "sha256=not-hex-at-all"},
		{"truncated digest", "sha256=abcd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(payload, tc.header, secret) {
				t.Errorf("expected header %q to fail verification", tc.header)
			}
		})
	}
}

func hexDigest(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
