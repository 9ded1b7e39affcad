package settings

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/sharing"
	"github.com/alexandrosnt/Reach-sub000/pkg/vault"
)

func newUnlockedSettingsVault(t *testing.T) (*vault.Manager, string) {
	t.Helper()
	secret, _, err := sharing.GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	kek := make([]byte, 32)
	if _, err := rand.Read(kek); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	m := vault.New(t.TempDir())
	m.SetOwner(uuid.NewString(), kek, secret)

	ctx := context.Background()
	info, err := m.CreateVault(ctx, "__settings__", models.VaultPrivate, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	return m, info.ID
}

func TestGetReturnsDefaultWhenNoDocumentSaved(t *testing.T) {
	m, vaultID := newUnlockedSettingsVault(t)
	store := New(m, vaultID)

	got := store.Get(context.Background())
	if got.Turso.Org != "" || got.Turso.Token != "" {
		t.Fatalf("Get() on an empty settings vault = %+v, want the zero value", got)
	}
}

func TestSaveThenGetRoundTrip(t *testing.T) {
	m, vaultID := newUnlockedSettingsVault(t)
	store := New(m, vaultID)
	ctx := context.Background()

	doc := AppSettings{
		Turso: TursoConfig{Org: "acme", Token: "tok_123"},
		Extra: map[string]interface{}{"theme": "dark"},
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := store.Get(ctx)
	if got.Turso.Org != "acme" || got.Turso.Token != "tok_123" {
		t.Fatalf("Get() = %+v, want Turso org=acme token=tok_123", got)
	}
	if got.Extra["theme"] != "dark" {
		t.Fatalf("Get().Extra = %+v, want theme=dark preserved", got.Extra)
	}
}

func TestSaveTwiceUpdatesInPlaceRatherThanDuplicating(t *testing.T) {
	m, vaultID := newUnlockedSettingsVault(t)
	store := New(m, vaultID)
	ctx := context.Background()

	if err := store.Save(ctx, AppSettings{Turso: TursoConfig{Org: "first"}}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(ctx, AppSettings{Turso: TursoConfig{Org: "second"}}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	metas, err := m.ListSecrets(ctx, vaultID)
	if err != nil {
		t.Fatalf("ListSecrets: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("ListSecrets returned %d rows, want exactly one settings document", len(metas))
	}

	got := store.Get(ctx)
	if got.Turso.Org != "second" {
		t.Fatalf("Get().Turso.Org = %q, want %q", got.Turso.Org, "second")
	}
}

func TestSetTursoConfigPreservesUnsetField(t *testing.T) {
	m, vaultID := newUnlockedSettingsVault(t)
	store := New(m, vaultID)
	ctx := context.Background()

	org := "acme"
	if err := store.SetTursoConfig(ctx, &org, nil); err != nil {
		t.Fatalf("SetTursoConfig org: %v", err)
	}
	token := "tok_456"
	if err := store.SetTursoConfig(ctx, nil, &token); err != nil {
		t.Fatalf("SetTursoConfig token: %v", err)
	}

	got := store.GetTursoConfig(ctx)
	if got.Org != "acme" || got.Token != "tok_456" {
		t.Fatalf("GetTursoConfig() = %+v, want org=acme token=tok_456", got)
	}
}

func TestGetReturnsDefaultWhenVaultLocked(t *testing.T) {
	m, vaultID := newUnlockedSettingsVault(t)
	store := New(m, vaultID)
	ctx := context.Background()

	if err := store.Save(ctx, AppSettings{Turso: TursoConfig{Org: "acme"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.LockVault(vaultID); err != nil {
		t.Fatalf("LockVault: %v", err)
	}

	got := store.Get(ctx)
	if got.Turso.Org != "" {
		t.Fatalf("Get() on a locked vault = %+v, want the default document", got)
	}
}
