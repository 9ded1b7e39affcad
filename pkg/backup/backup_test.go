package backup

import (
	"testing"
	"time"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

func sampleBundle() *ExportBundle {
	now := time.Now().UTC()
	return &ExportBundle{
		Identity: models.Identity{
			UUID:      "identity-1",
			PublicKey: []byte{1, 2, 3, 4},
			CreatedAt: now,
		},
		SecretKey: []byte("raw-x25519-secret-key-32-bytes!"),
		Vaults: []VaultBundle{
			{
				Header: models.VaultHeader{VaultID: "vault-1", Name: "primary", OwnerUUID: "identity-1"},
				Secrets: []models.Secret{
					{SecretID: "secret-1", VaultID: "vault-1", Name: "n1", PayloadCiphertext: []byte("ct")},
				},
				Members: []models.VaultMember{
					{VaultID: "vault-1", MemberUUID: "member-1"},
				},
			},
		},
		SyncConfig:   map[string]string{"url": "https://sync.example.com"},
		VaultAliases: map[string]string{"__settings__": "vault-1"},
	}
}

func TestSealUnsealRoundTrip(t *testing.T) {
	bundle := sampleBundle()
	file, err := Seal("correct horse battery staple", bundle)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := Unseal("correct horse battery staple", file)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if got.Identity.UUID != bundle.Identity.UUID {
		t.Fatalf("Identity.UUID = %q, want %q", got.Identity.UUID, bundle.Identity.UUID)
	}
	if len(got.Vaults) != 1 || got.Vaults[0].Header.VaultID != "vault-1" {
		t.Fatalf("Vaults = %+v, want one bundle for vault-1", got.Vaults)
	}
	if len(got.Vaults[0].Secrets) != 1 || got.Vaults[0].Secrets[0].SecretID != "secret-1" {
		t.Fatalf("Secrets = %+v, want one row for secret-1", got.Vaults[0].Secrets)
	}
	if got.SyncConfig["url"] != bundle.SyncConfig["url"] {
		t.Fatalf("SyncConfig = %+v, want %+v", got.SyncConfig, bundle.SyncConfig)
	}
}

func TestUnsealWrongPasswordFails(t *testing.T) {
	file, err := Seal("correct horse battery staple", sampleBundle())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Unseal("not the right password", file); err == nil {
		t.Fatal("expected Unseal to fail with the wrong password")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindDecryptionError {
		t.Fatalf("expected KindDecryptionError, got %v", err)
	}
}

func TestUnsealTamperedFileFails(t *testing.T) {
	file, err := Seal("correct horse battery staple", sampleBundle())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	tampered := append([]byte(nil), file...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := Unseal("correct horse battery staple", tampered); err == nil {
		t.Fatal("expected Unseal to fail on a tampered ciphertext")
	}
}

func TestUnsealRejectsBadMagic(t *testing.T) {
	file, err := Seal("correct horse battery staple", sampleBundle())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	corrupted := append([]byte(nil), file...)
	corrupted[0] = 'X'
	if _, err := Unseal("correct horse battery staple", corrupted); err == nil {
		t.Fatal("expected Unseal to reject a bad magic header")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindInvalidExportFormat {
		t.Fatalf("expected KindInvalidExportFormat, got %v", err)
	}
}

func TestUnsealRejectsTruncatedFile(t *testing.T) {
	if _, err := Unseal("password", []byte("too short")); err == nil {
		t.Fatal("expected Unseal to reject a file shorter than the header")
	}
}

func TestUnsealRejectsUnsupportedVersion(t *testing.T) {
	file, err := Seal("correct horse battery staple", sampleBundle())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	corrupted := append([]byte(nil), file...)
	corrupted[8] = 0xFF
	corrupted[9] = 0xFF
	if _, err := Unseal("correct horse battery staple", corrupted); err == nil {
		t.Fatal("expected Unseal to reject an unknown format version")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindUnsupportedExportVersion {
		t.Fatalf("expected KindUnsupportedExportVersion, got %v", err)
	}
}

func TestPreviewFileExposesMetadataOnly(t *testing.T) {
	file, err := Seal("correct horse battery staple", sampleBundle())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	preview, err := PreviewFile("correct horse battery staple", file)
	if err != nil {
		t.Fatalf("PreviewFile: %v", err)
	}
	if preview.IdentityUUID != "identity-1" {
		t.Fatalf("IdentityUUID = %q, want %q", preview.IdentityUUID, "identity-1")
	}
	if preview.VaultCount != 1 || preview.SecretCount != 1 || preview.MemberCount != 1 {
		t.Fatalf("Preview = %+v, want VaultCount=1 SecretCount=1 MemberCount=1", preview)
	}
}
