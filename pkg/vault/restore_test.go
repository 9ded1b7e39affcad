package vault

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

func TestRestoreVaultIsByteForByteVerbatim(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newOwnedManager(t)

	info, err := m.CreateVault(ctx, "exportable", models.VaultPrivate, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	if _, err := m.CreateSecret(ctx, info.ID, "n1", "c1", []byte("v1")); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if _, err := m.CreateSecret(ctx, info.ID, "n2", "c2", []byte("v2")); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}

	header, err := m.Header(info.ID)
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	secrets, err := m.RawSecretRows(ctx, info.ID)
	if err != nil {
		t.Fatalf("RawSecretRows: %v", err)
	}
	members, err := m.RawMemberRows(ctx, info.ID)
	if err != nil {
		t.Fatalf("RawMemberRows: %v", err)
	}
	if len(secrets) != 2 {
		t.Fatalf("RawSecretRows returned %d rows, want 2", len(secrets))
	}

	if err := m.DeleteVault(info.ID); err != nil {
		t.Fatalf("DeleteVault: %v", err)
	}

	restored, err := m.RestoreVault(ctx, *header, secrets, members)
	if err != nil {
		t.Fatalf("RestoreVault: %v", err)
	}
	if restored.Unlocked {
		t.Fatal("a restored vault must start locked")
	}

	if err := m.UnlockVault(ctx, info.ID); err != nil {
		t.Fatalf("UnlockVault after restore: %v", err)
	}

	restoredSecrets, err := m.RawSecretRows(ctx, info.ID)
	if err != nil {
		t.Fatalf("RawSecretRows after restore: %v", err)
	}
	if len(restoredSecrets) != len(secrets) {
		t.Fatalf("restored %d secret rows, want %d", len(restoredSecrets), len(secrets))
	}
	byID := make(map[string]models.Secret, len(secrets))
	for _, s := range secrets {
		byID[s.SecretID] = s
	}
	for _, got := range restoredSecrets {
		want, ok := byID[got.SecretID]
		if !ok {
			t.Fatalf("restored unexpected secret id %q", got.SecretID)
		}
		if !bytes.Equal(got.PayloadCiphertext, want.PayloadCiphertext) ||
			!bytes.Equal(got.PayloadNonce, want.PayloadNonce) ||
			!bytes.Equal(got.WrappedDEK, want.WrappedDEK) ||
			!bytes.Equal(got.WrappedDEKNonce, want.WrappedDEKNonce) {
			t.Fatalf("secret row %q was not restored verbatim", got.SecretID)
		}
	}

	got1, err := m.ReadSecret(ctx, info.ID, secrets[0].SecretID)
	if err != nil {
		t.Fatalf("ReadSecret after restore: %v", err)
	}
	got2, err := m.ReadSecret(ctx, info.ID, secrets[1].SecretID)
	if err != nil {
		t.Fatalf("ReadSecret after restore: %v", err)
	}
	vals := map[string]bool{string(got1): true, string(got2): true}
	if !vals["v1"] || !vals["v2"] {
		t.Fatalf("decrypted restored secrets = %v, want both v1 and v2 decryptable under the still-valid vault-owner KEK", vals)
	}
}

func TestRestoreVaultRejectsNameCollisionWithDifferentID(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newOwnedManager(t)

	existing, err := m.CreateVault(ctx, "taken-name", models.VaultPrivate, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	_ = existing

	header := models.VaultHeader{
		VaultID:   uuid.NewString(),
		Name:      "taken-name",
		Type:      models.VaultPrivate,
		OwnerUUID: m.ownerUUID,
	}
	if _, err := m.RestoreVault(ctx, header, nil, nil); err == nil {
		t.Fatal("expected AlreadyExists when restoring a vault whose name collides with a different vault id")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindAlreadyExists {
		t.Fatalf("expected KindAlreadyExists, got %v", err)
	}
}

func TestRestoreVaultRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newOwnedManager(t)

	info, err := m.CreateVault(ctx, "v", models.VaultPrivate, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	header, err := m.Header(info.ID)
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if _, err := m.RestoreVault(ctx, *header, nil, nil); err == nil {
		t.Fatal("expected AlreadyExists when restoring over an already-open vault id")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindAlreadyExists {
		t.Fatalf("expected KindAlreadyExists, got %v", err)
	}
}
