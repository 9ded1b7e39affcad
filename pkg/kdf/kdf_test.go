package kdf

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randSalt(t *testing.T) []byte {
	t.Helper()
	s := make([]byte, 32)
	if _, err := rand.Read(s); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return s
}

func TestDeriveKEKFromPasswordDeterministic(t *testing.T) {
	salt := randSalt(t)
	k1, err := DeriveKEKFromPassword("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromPassword: %v", err)
	}
	k2, err := DeriveKEKFromPassword("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromPassword: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same password+salt must derive the same KEK")
	}
	if len(k1) != KeyLen {
		t.Fatalf("key length = %d, want %d", len(k1), KeyLen)
	}
}

func TestDeriveKEKFromPasswordDiffersByPassword(t *testing.T) {
	salt := randSalt(t)
	k1, err := DeriveKEKFromPassword("password-one", salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromPassword: %v", err)
	}
	k2, err := DeriveKEKFromPassword("password-two", salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromPassword: %v", err)
	}
	if bytes.Equal(k1, k2) {
		t.Fatal("different passwords must not derive the same KEK")
	}
}

func TestDeriveKEKFromPasswordRejectsEmptyPassword(t *testing.T) {
	if _, err := DeriveKEKFromPassword("", randSalt(t)); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestDeriveKEKFromPasswordRejectsBadSaltLength(t *testing.T) {
	if _, err := DeriveKEKFromPassword("hunter2", []byte("short")); err == nil {
		t.Fatal("expected error for non-32-byte salt")
	}
}

func TestDeriveKEKFromSecretDeterministic(t *testing.T) {
	secret := make([]byte, KeyLen)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	salt := randSalt(t)

	k1, err := DeriveKEKFromSecret(secret, salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromSecret: %v", err)
	}
	k2, err := DeriveKEKFromSecret(secret, salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromSecret: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same secret+salt must derive the same KEK")
	}
}

func TestDeriveVaultOwnerKEKIndependentOfUnlockPath(t *testing.T) {
	// The owner KEK must depend only on the identity's stable secret key
	// and salt, not on whichever KEK unwrapped that secret key this
	// session (password vs. auto-unlock).
	secret := make([]byte, KeyLen)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	salt := randSalt(t)

	fromFreshCall1, err := DeriveVaultOwnerKEK(secret, salt)
	if err != nil {
		t.Fatalf("DeriveVaultOwnerKEK: %v", err)
	}
	fromFreshCall2, err := DeriveVaultOwnerKEK(secret, salt)
	if err != nil {
		t.Fatalf("DeriveVaultOwnerKEK: %v", err)
	}
	if !bytes.Equal(fromFreshCall1, fromFreshCall2) {
		t.Fatal("vault owner KEK must be a pure function of secret+salt")
	}

	// And it must differ from the plain identity-unlock KEK, so wrapping
	// a vault's master DEK under one never accidentally also unlocks the
	// identity file under the other.
	identityKEK, err := DeriveKEKFromSecret(secret, salt)
	if err != nil {
		t.Fatalf("DeriveKEKFromSecret: %v", err)
	}
	if bytes.Equal(identityKEK, fromFreshCall1) {
		t.Fatal("vault owner KEK must differ from the identity auto-unlock KEK")
	}
}

func TestDeriveExportKeyRequiresMinimumLength(t *testing.T) {
	if _, err := DeriveExportKey("short", randSalt(t)); err == nil {
		t.Fatal("expected error for export password under 8 characters")
	}
}

func TestDeriveExportKeyDeterministic(t *testing.T) {
	salt := randSalt(t)
	k1, err := DeriveExportKey("a-strong-export-password", salt)
	if err != nil {
		t.Fatalf("DeriveExportKey: %v", err)
	}
	k2, err := DeriveExportKey("a-strong-export-password", salt)
	if err != nil {
		t.Fatalf("DeriveExportKey: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same password+salt must derive the same export key")
	}
}

func TestDeriveWithInfoDomainSeparates(t *testing.T) {
	ikm := make([]byte, 32)
	if _, err := rand.Read(ikm); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	k1, err := DeriveWithInfo(ikm, nil, "purpose-one", 32)
	if err != nil {
		t.Fatalf("DeriveWithInfo: %v", err)
	}
	k2, err := DeriveWithInfo(ikm, nil, "purpose-two", 32)
	if err != nil {
		t.Fatalf("DeriveWithInfo: %v", err)
	}
	if bytes.Equal(k1, k2) {
		t.Fatal("different info strings must derive different keys from the same ikm")
	}
}
