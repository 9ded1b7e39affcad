package vault

import (
	"context"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

// Header returns the raw header row of an open vault, used by full
// backup export to carry wrapped_master_dek verbatim (spec.md §4.5).
func (m *Manager) Header(vaultID string) (*models.VaultHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	h := c.header
	return &h, nil
}

// RawSecretRows returns every secret row of vaultID exactly as stored,
// still under its own wrapped per-secret DEK, for full backup export.
func (m *Manager) RawSecretRows(ctx context.Context, vaultID string) ([]models.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	metas, err := listSecretRows(ctx, c.replica.DB())
	if err != nil {
		return nil, err
	}
	out := make([]models.Secret, 0, len(metas))
	for _, meta := range metas {
		row, err := selectSecret(ctx, c.replica.DB(), meta.ID)
		if err != nil {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

// RawMemberRows returns every vault_members row of vaultID verbatim, for
// full backup export.
func (m *Manager) RawMemberRows(ctx context.Context, vaultID string) ([]models.VaultMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[vaultID]
	if !ok {
		return nil, coreerr.NotFound(vaultID)
	}
	return listMemberRows(ctx, c.replica.DB())
}
