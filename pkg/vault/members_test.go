package vault

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/sharing"
)

// newPeerManager constructs a second Manager, representing a different
// caller's identity, rooted at the same vaults directory as owner so
// both can see the same on-disk database files.
func newPeerManager(t *testing.T, vaultsDataDir string) (*Manager, string, []byte, []byte) {
	t.Helper()
	secret, public, err := sharing.GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	peerUUID := uuid.NewString()
	m := New(vaultsDataDir)
	m.SetOwner(peerUUID, randKEK(t), secret)
	return m, peerUUID, secret, public
}

func TestInviteMemberThenMemberUnlocksAsNonOwner(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	ownerSecret, _, err := sharing.GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	ownerUUID := uuid.NewString()
	owner := New(dataDir)
	owner.SetOwner(ownerUUID, randKEK(t), ownerSecret)

	info, err := owner.CreateVault(ctx, "team-vault", models.VaultShared, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	secretID, err := owner.CreateSecret(ctx, info.ID, "shared-secret", "team", []byte("team-value"))
	if err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}

	member, memberUUID, _, memberPublic := newPeerManager(t, dataDir)

	if _, err := owner.InviteMember(ctx, info.ID, memberPublic, memberUUID, models.RoleMember); err != nil {
		t.Fatalf("InviteMember: %v", err)
	}

	memberInfo, err := member.OpenVault(ctx, info.ID, "", "")
	if err != nil {
		t.Fatalf("member OpenVault: %v", err)
	}
	if memberInfo.Unlocked {
		t.Fatal("a vault opened fresh by a non-owner must start locked")
	}
	if err := member.UnlockVault(ctx, info.ID); err != nil {
		t.Fatalf("member UnlockVault: %v", err)
	}

	got, err := member.ReadSecret(ctx, info.ID, secretID)
	if err != nil {
		t.Fatalf("member ReadSecret: %v", err)
	}
	if !bytes.Equal(got, []byte("team-value")) {
		t.Fatalf("member ReadSecret = %q, want %q", got, "team-value")
	}
}

func TestInviteMemberRejectsNonOwnerCaller(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	owner, ownerUUID, _ := func() (*Manager, string, []byte) {
		secret, _, err := sharing.GenerateIdentityKeypair()
		if err != nil {
			t.Fatalf("GenerateIdentityKeypair: %v", err)
		}
		u := uuid.NewString()
		m := New(dataDir)
		m.SetOwner(u, randKEK(t), secret)
		return m, u, secret
	}()
	_ = ownerUUID

	info, err := owner.CreateVault(ctx, "v", models.VaultShared, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}

	member, memberUUID, _, memberPublic := newPeerManager(t, dataDir)
	if _, err := owner.InviteMember(ctx, info.ID, memberPublic, memberUUID, models.RoleMember); err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	if _, err := member.OpenVault(ctx, info.ID, "", ""); err != nil {
		t.Fatalf("member OpenVault: %v", err)
	}
	if err := member.UnlockVault(ctx, info.ID); err != nil {
		t.Fatalf("member UnlockVault: %v", err)
	}

	_, outsiderUUID, _, _ := newPeerManager(t, dataDir)
	if _, err := member.InviteMember(ctx, info.ID, []byte("not-a-real-key-but-unused"), outsiderUUID, models.RoleMember); err == nil {
		t.Fatal("expected AccessDenied: only the owner may invite members")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindAccessDenied {
		t.Fatalf("expected KindAccessDenied, got %v", err)
	}
}

func TestRemoveMemberIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	ownerSecret, _, err := sharing.GenerateIdentityKeypair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeypair: %v", err)
	}
	owner := New(dataDir)
	owner.SetOwner(uuid.NewString(), randKEK(t), ownerSecret)

	info, err := owner.CreateVault(ctx, "v", models.VaultShared, "", "")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}

	member, memberUUID, _, memberPublic := newPeerManager(t, dataDir)
	if _, err := owner.InviteMember(ctx, info.ID, memberPublic, memberUUID, models.RoleAdmin); err != nil {
		t.Fatalf("InviteMember: %v", err)
	}

	members, err := owner.ListMembers(ctx, info.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 || members[0].UUID != memberUUID {
		t.Fatalf("ListMembers = %+v, want one entry for %q", members, memberUUID)
	}

	if _, err := member.OpenVault(ctx, info.ID, "", ""); err != nil {
		t.Fatalf("member OpenVault: %v", err)
	}
	if err := member.UnlockVault(ctx, info.ID); err != nil {
		t.Fatalf("member UnlockVault: %v", err)
	}
	if err := member.RemoveMember(ctx, info.ID, memberUUID); err == nil {
		t.Fatal("expected AccessDenied: only the owner may remove members, even an admin")
	} else if ce, ok := err.(*coreerr.Error); !ok || ce.Kind != coreerr.KindAccessDenied {
		t.Fatalf("expected KindAccessDenied, got %v", err)
	}

	if err := owner.RemoveMember(ctx, info.ID, memberUUID); err != nil {
		t.Fatalf("owner RemoveMember: %v", err)
	}
	members, err = owner.ListMembers(ctx, info.ID)
	if err != nil {
		t.Fatalf("ListMembers after remove: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("ListMembers after remove = %+v, want empty", members)
	}
}
