package vault

import (
	"context"
	"time"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/secure"
	"github.com/alexandrosnt/Reach-sub000/pkg/sharing"
)

// InviteInfo is returned by InviteMember (spec.md §6.2).
type InviteInfo struct {
	VaultID    string
	MemberUUID string
	Role       models.Role
}

// MemberInfo is the public projection of a vault_members row.
type MemberInfo struct {
	UUID       string
	PublicKey  []byte
	Role       models.Role
	InvitedAt  time.Time
	AcceptedAt *time.Time
}

// InviteMember wraps the vault's master DEK for invitee using the
// canonical dh(owner_secret, invitee_public)+HKDF direction (spec.md §9
// resolution) and inserts a vault_members row. Requires vaultID to be
// unlocked and the identity to be unlocked (so the caller's own X25519
// secret key is available for the ECDH step).
func (m *Manager) InviteMember(ctx context.Context, vaultID string, inviteePublicKey []byte, inviteeUUID string, role models.Role) (*InviteInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return nil, err
	}
	if c.header.OwnerUUID != m.ownerUUID {
		return nil, coreerr.AccessDenied("only the vault owner may invite members")
	}
	if m.callerSecret == nil {
		return nil, coreerr.ErrLocked
	}

	dek := c.dek.Data()
	defer secureWipe(dek)

	ownerSecret := m.callerSecret.Data()
	defer secureWipe(ownerSecret)

	ownerPublic, err := sharing.PublicFromSecret(ownerSecret)
	if err != nil {
		return nil, err
	}

	wrapped, err := sharing.WrapDEKForMember(ownerSecret, inviteePublicKey, dek, sharing.MemberWrapInfo)
	if err != nil {
		return nil, err
	}

	row := models.VaultMember{
		VaultID:          vaultID,
		MemberUUID:       inviteeUUID,
		MemberPublicKey:  inviteePublicKey,
		Role:             role,
		WrappedDEK:       wrapped.Ciphertext,
		WrappedDEKNonce:  wrapped.Nonce,
		InviterPublicKey: ownerPublic,
		InvitedAt:        time.Now().UTC(),
	}
	if err := insertMember(ctx, c.replica.DB(), row); err != nil {
		return nil, err
	}
	m.bestEffortSync(ctx, c)

	return &InviteInfo{VaultID: vaultID, MemberUUID: inviteeUUID, Role: role}, nil
}

// AcceptInvite opens a shared vault by connecting to its remote replica
// and recording the caller's membership as accepted. The caller must
// already know the vault id out of band (for example, relayed alongside
// sync_url/token by the inviter); spec.md does not define a discovery
// channel for "which vault id does this invite refer to" beyond the
// sync endpoint itself, so the vault id is supplied by the caller.
func (m *Manager) AcceptInvite(ctx context.Context, vaultID, syncURL, syncToken, memberUUID string) (*VaultInfo, error) {
	info, err := m.OpenVault(ctx, vaultID, syncURL, syncToken)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	if err := markMemberAccepted(ctx, c.replica.DB(), memberUUID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return info, nil
}

// unlockAsMemberLocked implements the member unwrap path of unlock_vault
// (spec.md §4.7): look up the caller's vault_members row, derive the
// canonical wrap key from dh(callerSecret, row.InviterPublicKey), and
// unwrap the master DEK. Must be called with m.mu held.
func (m *Manager) unlockAsMemberLocked(ctx context.Context, c *conn) error {
	if m.callerSecret == nil {
		return coreerr.AccessDenied("no identity secret key available for member unlock")
	}
	mem, err := selectMember(ctx, c.replica.DB(), m.ownerUUID)
	if err != nil {
		return coreerr.AccessDenied("not a member of this vault")
	}

	callerSecret := m.callerSecret.Data()
	defer secureWipe(callerSecret)

	wrapped := aead.WrappedDek{Nonce: mem.WrappedDEKNonce, Ciphertext: mem.WrappedDEK}
	dek, err := sharing.UnwrapDEKForMember(callerSecret, mem.InviterPublicKey, &wrapped, sharing.MemberWrapInfo)
	if err != nil {
		return err
	}
	c.dek = secure.New(dek)
	secureWipe(dek)
	return nil
}

// RemoveMember deletes a vault_members row. Existing in-memory DEKs the
// removed member already holds are not retroactively revoked (spec.md
// §8 scenario S4, documented out of scope).
func (m *Manager) RemoveMember(ctx context.Context, vaultID, memberUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return err
	}
	if c.header.OwnerUUID != m.ownerUUID {
		return coreerr.AccessDenied("only the vault owner may remove members")
	}
	if err := deleteMemberRow(ctx, c.replica.DB(), memberUUID); err != nil {
		return err
	}
	m.bestEffortSync(ctx, c)
	return nil
}

// ListMembers returns every member row of vaultID.
func (m *Manager) ListMembers(ctx context.Context, vaultID string) ([]MemberInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	rows, err := listMemberRows(ctx, c.replica.DB())
	if err != nil {
		return nil, err
	}
	out := make([]MemberInfo, len(rows))
	for i, r := range rows {
		out[i] = MemberInfo{UUID: r.MemberUUID, PublicKey: r.MemberPublicKey, Role: r.Role, InvitedAt: r.InvitedAt, AcceptedAt: r.AcceptedAt}
	}
	return out, nil
}
