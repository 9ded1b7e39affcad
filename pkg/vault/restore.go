package vault

import (
	"context"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

// RestoreVault materializes a vault exactly as a backup bundle recorded
// it (spec.md §4.5 import_full_backup: "materializes every exported
// vault as a fresh local database file with header/secrets/members
// reinserted verbatim"). header.WrappedDEK is reinserted byte-for-byte,
// not rewrapped — it stays unwrappable under the same vault-owner KEK
// the restored identity now derives, because the identity was restored
// with its original KDFSalt. The restored vault is left locked; callers
// unlock it the same way any other owned vault is unlocked.
func (m *Manager) RestoreVault(ctx context.Context, header models.VaultHeader, secrets []models.Secret, members []models.VaultMember) (*VaultInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conns[header.VaultID]; exists {
		return nil, coreerr.AlreadyExists(header.VaultID)
	}
	if existingID, exists := m.names[header.Name]; exists && existingID != header.VaultID {
		return nil, coreerr.AlreadyExists(header.Name)
	}

	r, err := openReplica(ctx, m.dbPath(header.VaultID), "", "")
	if err != nil {
		return nil, err
	}
	if err := insertHeader(ctx, r.DB(), header); err != nil {
		r.Close()
		return nil, err
	}
	for _, s := range secrets {
		if err := insertSecret(ctx, r.DB(), s); err != nil {
			r.Close()
			return nil, err
		}
	}
	for _, mem := range members {
		if err := insertMember(ctx, r.DB(), mem); err != nil {
			r.Close()
			return nil, err
		}
	}

	c := &conn{header: header, replica: r}
	m.conns[header.VaultID] = c
	m.names[header.Name] = header.VaultID
	return m.infoLocked(ctx, c), nil
}
