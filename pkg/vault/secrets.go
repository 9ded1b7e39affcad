package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/envelope"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

// SecretMetadata is the non-sensitive projection of a secret row
// returned by ListSecrets (spec.md §6.2 SecretMetadata).
type SecretMetadata struct {
	ID        string
	Name      string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Manager) unlockedConn(id string) (*conn, error) {
	c, ok := m.conns[id]
	if !ok {
		return nil, coreerr.NotFound(id)
	}
	if !c.unlocked() {
		return nil, coreerr.NotUnlocked(id)
	}
	return c, nil
}

// callerRole resolves the caller's role in c: the owner is implicitly
// RoleOwner, otherwise the caller's vault_members row supplies it.
func (m *Manager) callerRole(ctx context.Context, c *conn) (models.Role, error) {
	if c.header.OwnerUUID == m.ownerUUID {
		return models.RoleOwner, nil
	}
	mem, err := selectMember(ctx, c.replica.DB(), m.ownerUUID)
	if err != nil {
		return "", coreerr.AccessDenied("not a member of this vault")
	}
	return mem.Role, nil
}

// requireWrite enforces spec.md's role model (SPEC_FULL.md §C "role
// enforcement"): ReadOnly members may not create, update, or delete
// secrets.
func (m *Manager) requireWrite(ctx context.Context, c *conn) error {
	role, err := m.callerRole(ctx, c)
	if err != nil {
		return err
	}
	if !role.CanWrite() {
		return coreerr.AccessDenied("read_only members cannot modify secrets")
	}
	return nil
}

// CreateSecret envelope-encrypts value under the vault's master DEK and
// inserts a fresh row, returning the generated secret id.
func (m *Manager) CreateSecret(ctx context.Context, vaultID, name, category string, value []byte) (string, error) {
	return m.createSecret(ctx, vaultID, uuid.NewString(), name, category, value)
}

// CreateSecretWithID is CreateSecret with a caller-supplied id, used by
// internal-vault migration to preserve a deterministic prefixed id.
func (m *Manager) CreateSecretWithID(ctx context.Context, vaultID, id, name, category string, value []byte) error {
	_, err := m.createSecret(ctx, vaultID, id, name, category, value)
	return err
}

func (m *Manager) createSecret(ctx context.Context, vaultID, id, name, category string, value []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return "", err
	}
	if err := m.requireWrite(ctx, c); err != nil {
		return "", err
	}

	dek := c.dek.Data()
	defer secureWipe(dek)
	payload, err := envelope.Encrypt(dek, value)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	row := models.Secret{
		SecretID:          id,
		VaultID:           vaultID,
		Name:              name,
		Category:          category,
		PayloadNonce:      payload.PayloadNonce,
		PayloadCiphertext: payload.PayloadCiphertext,
		WrappedDEK:        payload.WrappedDek.Ciphertext,
		WrappedDEKNonce:   payload.WrappedDek.Nonce,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := insertSecret(ctx, c.replica.DB(), row); err != nil {
		return "", err
	}

	m.bestEffortSync(ctx, c)
	return id, nil
}

// ReadSecret decrypts and returns the plaintext value of secret id.
func (m *Manager) ReadSecret(ctx context.Context, vaultID, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return nil, err
	}
	row, err := selectSecret(ctx, c.replica.DB(), id)
	if err != nil {
		return nil, err
	}
	dek := c.dek.Data()
	defer secureWipe(dek)

	payload := payloadFromRow(row)
	plaintext, err := envelope.Decrypt(dek, payload)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// UpdateSecret re-encrypts value under a fresh per-secret DEK and
// overwrites the existing row, refreshing updated_at.
func (m *Manager) UpdateSecret(ctx context.Context, vaultID, id string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return err
	}
	if err := m.requireWrite(ctx, c); err != nil {
		return err
	}
	existing, err := selectSecret(ctx, c.replica.DB(), id)
	if err != nil {
		return err
	}

	dek := c.dek.Data()
	defer secureWipe(dek)
	payload, err := envelope.Encrypt(dek, value)
	if err != nil {
		return err
	}

	existing.PayloadNonce = payload.PayloadNonce
	existing.PayloadCiphertext = payload.PayloadCiphertext
	existing.WrappedDEK = payload.WrappedDek.Ciphertext
	existing.WrappedDEKNonce = payload.WrappedDek.Nonce
	existing.UpdatedAt = time.Now().UTC()

	if err := updateSecretRow(ctx, c.replica.DB(), *existing); err != nil {
		return err
	}
	m.bestEffortSync(ctx, c)
	return nil
}

// DeleteSecret removes a secret row.
func (m *Manager) DeleteSecret(ctx context.Context, vaultID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return err
	}
	if err := m.requireWrite(ctx, c); err != nil {
		return err
	}
	if err := deleteSecretRow(ctx, c.replica.DB(), id); err != nil {
		return err
	}
	m.bestEffortSync(ctx, c)
	return nil
}

// ListSecrets returns metadata for every secret in a vault.
func (m *Manager) ListSecrets(ctx context.Context, vaultID string) ([]SecretMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return nil, err
	}
	rows, err := listSecretRows(ctx, c.replica.DB())
	if err != nil {
		return nil, err
	}
	out := make([]SecretMetadata, len(rows))
	for i, r := range rows {
		out[i] = SecretMetadata{ID: r.ID, Name: r.Name, Category: r.Category, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	}
	return out, nil
}

// SecretExists reports whether a secret id exists in vaultID. Per
// spec.md §4.7, it never distinguishes "vault locked" from "secret
// missing" — both report false.
func (m *Manager) SecretExists(ctx context.Context, vaultID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.unlockedConn(vaultID)
	if err != nil {
		return false
	}
	_, err = selectSecret(ctx, c.replica.DB(), id)
	return err == nil
}

// bestEffortSync pushes a mutation to a remote-backed vault's sync
// endpoint. Failures are swallowed per spec.md §4.7/§7: the local write
// is authoritative and sync errors never fail the caller's mutation.
func (m *Manager) bestEffortSync(ctx context.Context, c *conn) {
	if !c.replica.Remote() {
		return
	}
	if err := c.replica.Sync(ctx); err != nil {
		logSyncFailure(c.header.VaultID, err)
	}
}
