package envelope

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	masterDEK := randKey(t)
	plaintext := []byte("api-key-abc-123")

	payload, err := Encrypt(masterDEK, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(masterDEK, payload)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestEncryptRejectsWrongMasterDEKLength(t *testing.T) {
	if _, err := Encrypt([]byte("too-short"), []byte("value")); err == nil {
		t.Fatal("expected error for a master DEK that is not 32 bytes")
	}
}

func TestMarshalUnmarshalPayloadRoundTrip(t *testing.T) {
	masterDEK := randKey(t)
	payload, err := Encrypt(masterDEK, []byte("round trip me"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	b, err := MarshalPayload(payload)
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	restored, err := UnmarshalPayload(b)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}

	pt, err := Decrypt(masterDEK, restored)
	if err != nil {
		t.Fatalf("Decrypt after marshal round trip: %v", err)
	}
	if !bytes.Equal(pt, []byte("round trip me")) {
		t.Fatalf("decrypted = %q, want %q", pt, "round trip me")
	}
}

func TestDecryptWrongMasterDEKFails(t *testing.T) {
	masterDEK := randKey(t)
	other := randKey(t)
	payload, err := Encrypt(masterDEK, []byte("value"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(other, payload); err == nil {
		t.Fatal("expected decryption failure under the wrong master DEK")
	}
}
