package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/envelope"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/sharing"
)

// SharedItemInfo is the public projection of a shared_items row surfaced
// to a recipient (spec.md §3 shared_items, §9 resolution below).
type SharedItemInfo struct {
	ShareID    string
	SecretName string
	SharerUUID string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// ShareSecret re-encrypts an existing secret's plaintext under a fresh
// DEK wrapped for recipientPublicKey using the canonical
// dh(my_secret, peer_public)+HKDF direction (spec.md §9), and inserts a
// shared_items row in the source vault. expiresAt may be nil for a
// share with no expiry.
func (m *Manager) ShareSecret(ctx context.Context, vaultID, secretID string, recipientUUID string, recipientPublicKey []byte, expiresAt *time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return "", err
	}
	if m.callerSecret == nil {
		return "", coreerr.ErrLocked
	}

	row, err := selectSecret(ctx, c.replica.DB(), secretID)
	if err != nil {
		return "", err
	}

	dek := c.dek.Data()
	defer secureWipe(dek)
	plaintext, err := envelope.Decrypt(dek, payloadFromRow(row))
	if err != nil {
		return "", err
	}
	defer secureWipe(plaintext)

	itemDEK := make([]byte, aead.KeySize)
	if _, err := readRandom(itemDEK); err != nil {
		return "", err
	}
	defer secureWipe(itemDEK)

	itemNonce, err := aead.NewNonce()
	if err != nil {
		return "", coreerr.Wrap(coreerr.KindCryptoError, "generate share nonce", err)
	}
	ciphertext, err := aead.SealWithKey(itemDEK, itemNonce, plaintext)
	if err != nil {
		return "", coreerr.Wrap(coreerr.KindEncryptionError, "seal shared item", err)
	}

	callerSecret := m.callerSecret.Data()
	defer secureWipe(callerSecret)
	sharerPublic, err := sharing.PublicFromSecret(callerSecret)
	if err != nil {
		return "", err
	}
	wrapped, err := sharing.WrapDEKForMember(callerSecret, recipientPublicKey, itemDEK, sharing.ItemWrapInfo)
	if err != nil {
		return "", err
	}

	share := models.SharedItem{
		ShareID:            uuid.NewString(),
		SourceVaultID:      vaultID,
		SourceSecretID:     secretID,
		SharerUUID:         m.ownerUUID,
		SharerPublicKey:    sharerPublic,
		RecipientUUID:      recipientUUID,
		RecipientPublicKey: recipientPublicKey,
		SecretName:         row.Name,
		PayloadNonce:       itemNonce,
		PayloadCiphertext:  ciphertext,
		WrappedDEK:         wrapped.Ciphertext,
		WrappedDEKNonce:    wrapped.Nonce,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          expiresAt,
	}
	if err := insertSharedItem(ctx, c.replica.DB(), share); err != nil {
		return "", err
	}
	m.bestEffortSync(ctx, c)

	return share.ShareID, nil
}

// ListIncomingShares returns every unconsumed shared_items row addressed
// to the caller within vaultID's replica (the vault that currently holds
// the outbox, typically a shared or remotely synced vault both parties
// can reach).
func (m *Manager) ListIncomingShares(ctx context.Context, vaultID string) ([]SharedItemInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	rows, err := listSharedItemsForRecipient(ctx, c.replica.DB(), m.ownerUUID)
	if err != nil {
		return nil, err
	}
	out := make([]SharedItemInfo, len(rows))
	for i, r := range rows {
		out[i] = SharedItemInfo{ShareID: r.ShareID, SecretName: r.SecretName, SharerUUID: r.SharerUUID, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
	}
	return out, nil
}

// AcceptShare implements the resolved "shared_items is a copy, not a
// live reference" semantics (spec.md §9): it decrypts shareID from
// sourceVaultID using the canonical dh(callerSecret, sharerPublicKey)
// wrap key, then creates a brand-new, independently encrypted secret in
// destVaultID under that vault's own master DEK, and deletes the share's
// pointer row. The recipient's copy has no further relationship to the
// sharer's original secret.
func (m *Manager) AcceptShare(ctx context.Context, sourceVaultID, shareID, destVaultID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.conns[sourceVaultID]
	if !ok {
		return "", coreerr.NotFound(sourceVaultID)
	}
	dest, err := m.unlockedConn(destVaultID)
	if err != nil {
		return "", err
	}
	if m.callerSecret == nil {
		return "", coreerr.ErrLocked
	}

	share, err := selectSharedItem(ctx, src.replica.DB(), shareID)
	if err != nil {
		return "", err
	}
	if share.ConsumedAt != nil {
		return "", coreerr.New(coreerr.KindAccessDenied, shareID, "share already consumed")
	}
	if share.ExpiresAt != nil && time.Now().UTC().After(*share.ExpiresAt) {
		return "", coreerr.New(coreerr.KindAccessDenied, shareID, "share expired")
	}

	callerSecret := m.callerSecret.Data()
	defer secureWipe(callerSecret)
	wrapped := aead.WrappedDek{Nonce: share.WrappedDEKNonce, Ciphertext: share.WrappedDEK}
	itemDEK, err := sharing.UnwrapDEKForMember(callerSecret, share.SharerPublicKey, &wrapped, sharing.ItemWrapInfo)
	if err != nil {
		return "", err
	}
	defer secureWipe(itemDEK)

	plaintext, err := aead.OpenWithKey(itemDEK, share.PayloadNonce, share.PayloadCiphertext)
	if err != nil {
		return "", err
	}
	defer secureWipe(plaintext)

	destDEK := dest.dek.Data()
	defer secureWipe(destDEK)
	freshPayload, err := envelope.Encrypt(destDEK, plaintext)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	newID := uuid.NewString()
	row := models.Secret{
		SecretID:          newID,
		VaultID:           destVaultID,
		Name:              share.SecretName,
		PayloadNonce:      freshPayload.PayloadNonce,
		PayloadCiphertext: freshPayload.PayloadCiphertext,
		WrappedDEK:        freshPayload.WrappedDek.Ciphertext,
		WrappedDEKNonce:   freshPayload.WrappedDek.Nonce,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := insertSecret(ctx, dest.replica.DB(), row); err != nil {
		return "", err
	}

	// The pointer row is deleted, not just marked consumed, so shared_items
	// does not accumulate inert rows once a share has been accepted
	// (spec.md §9 resolution: the recipient's copy has no further
	// relationship to the sharer's original).
	if err := deleteSharedItemRow(ctx, src.replica.DB(), shareID); err != nil {
		logSyncFailure(sourceVaultID, err)
	}
	m.bestEffortSync(ctx, dest)

	return newID, nil
}
