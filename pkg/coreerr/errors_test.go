package coreerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIsMatchesOnKindOnly(t *testing.T) {
	e1 := NotFound("vault-a")
	e2 := NotFound("vault-b")
	if !errors.Is(e1, e2) {
		t.Fatal("errors.Is must match two *Error values of the same Kind regardless of ID")
	}

	locked := New(KindLocked, "", "")
	if errors.Is(e1, locked) {
		t.Fatal("errors.Is must not match across different Kinds")
	}
}

func TestErrorsIsAgainstSentinels(t *testing.T) {
	wrapped := WrapID(KindLocked, "vault-a", "still locked", nil)
	if !errors.Is(wrapped, ErrLocked) {
		t.Fatal("a kind-matching wrapped error must satisfy errors.Is against the sentinel")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	wrapped := Wrap(KindDatabaseError, "insert failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("errors.Is must see through Unwrap to the original cause")
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"id_and_message", WrapID(KindSecretNotFound, "sec-1", "missing row", nil), "SecretNotFound(sec-1): missing row"},
		{"id_only", NotFound("vault-x"), "NotFound(vault-x)"},
		{"message_only", New(KindKdfError, "", "salt must be 32 bytes"), "KdfError: salt must be 32 bytes"},
		{"bare", New(KindLocked, "", ""), "Locked"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.err.Error(); got != c.want {
				t.Fatalf("Error() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestKindStringCoversEveryConstant(t *testing.T) {
	kinds := []Kind{
		KindLocked, KindIdentityNotInitialized, KindIdentityAlreadyExists,
		KindNotFound, KindAlreadyExists, KindNotUnlocked, KindSecretNotFound,
		KindMemberNotFound, KindAccessDenied, KindDatabaseError,
		KindEncryptionError, KindDecryptionError, KindKdfError,
		KindInvalidKeyLength, KindInvalidNonceLength, KindSerializationError,
		KindIoError, KindSyncError, KindKeychainError, KindKeychainKeyMissing,
		KindInvalidExportFormat, KindUnsupportedExportVersion, KindCryptoError,
	}
	for _, k := range kinds {
		if k.String() == "Unknown" {
			t.Fatalf("Kind %d has no String() case", k)
		}
	}
}
