package service

import (
	"strings"
	"testing"
)

func TestSealRevealRoundTrip(t *testing.T) {
	t.Setenv(credentialKeyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(credentialPrevKeyEnv, "")

	sealed := SealCredential("42", "acct-token")
	if sealed == "acct-token" {
		t.Fatalf("token stored in the clear despite a key")
	}
	if !strings.Contains(sealed, `"aes-gcm-v1"`) {
		t.Fatalf("unexpected envelope: %s", sealed)
	}
	if got := RevealCredential("42", sealed); got != "acct-token" {
		t.Fatalf("round trip failed: %q", got)
	}
}

func TestSealBindsToAccount(t *testing.T) {
	t.Setenv(credentialKeyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(credentialPrevKeyEnv, "")

	sealed := SealCredential("42", "acct-token")
	if got := RevealCredential("43", sealed); got == "acct-token" {
		t.Fatalf("ciphertext opened under the wrong account")
	}
	// Case and surrounding space of the id do not change the binding.
	if got := RevealCredential("  42  ", sealed); got != "acct-token" {
		t.Fatalf("normalized id should open: %q", got)
	}
}

func TestRevealPlaintextPassthrough(t *testing.T) {
	t.Setenv(credentialKeyEnv, "")
	t.Setenv(credentialPrevKeyEnv, "")

	if got := SealCredential("42", "plain"); got != "plain" {
		t.Fatalf("without a key the token stays as-is: %q", got)
	}
	if got := RevealCredential("42", "plain"); got != "plain" {
		t.Fatalf("plaintext must pass through: %q", got)
	}
	if got := RevealCredential("42", `{"not":"sealed"}`); got != `{"not":"sealed"}` {
		t.Fatalf("foreign json must pass through: %q", got)
	}
}

func TestRevealFallsBackToPreviousKey(t *testing.T) {
	t.Setenv(credentialKeyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(credentialPrevKeyEnv, "")
	sealed := SealCredential("42", "acct-token")

	// Rotate: the old key moves to the fallback slot.
	t.Setenv(credentialKeyEnv, "fedcba9876543210fedcba9876543210")
	t.Setenv(credentialPrevKeyEnv, "0123456789abcdef0123456789abcdef")
	if got := RevealCredential("42", sealed); got != "acct-token" {
		t.Fatalf("previous key should still open: %q", got)
	}

	// Without the fallback the envelope survives opaque.
	t.Setenv(credentialPrevKeyEnv, "")
	if got := RevealCredential("42", sealed); got != sealed {
		t.Fatalf("undecryptable envelope must pass through: %q", got)
	}
}

func TestParseCredentialKeySizes(t *testing.T) {
	// The '!' keeps these out of the base64 path.
	if got := parseCredentialKey("short!"); got != nil {
		t.Fatalf("undersized key accepted: %v", got)
	}
	if got := parseCredentialKey(strings.Repeat("k", 15) + "!"); len(got) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(got))
	}
	if got := parseCredentialKey(strings.Repeat("k", 19) + "!"); len(got) != 16 {
		t.Fatalf("expected truncation to 16, got %d", len(got))
	}
	if got := parseCredentialKey(strings.Repeat("k", 39) + "!"); len(got) != 32 {
		t.Fatalf("expected truncation to 32, got %d", len(got))
	}
}
