package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

// SettingsVaultName is the reserved vault the app settings façade
// (pkg/settings) stores its document in.
const SettingsVaultName = "__settings__"

// ReservedVaultNames are the internal app vaults created lazily on first
// unlock (spec.md §3 "reserved vault names").
var ReservedVaultNames = []string{"__sessions__", "__credentials__", "__folders__", "__playbooks__", SettingsVaultName}

// UnifiedVaultName is the single vault every reserved name aliases to
// when personal sync is configured (spec.md §4.8).
const UnifiedVaultName = "__personal__"

// IsReservedVaultName reports whether name is one of the internal app
// vaults (or their unified alias), which spec.md §4.7 excludes from the
// user-facing vault index.
func IsReservedVaultName(name string) bool {
	if name == UnifiedVaultName {
		return true
	}
	for _, n := range ReservedVaultNames {
		if n == name {
			return true
		}
	}
	return false
}

// EnsureInternalVaults opens (creating if necessary) every reserved
// vault per the current sync configuration, populating aliases as
// needed. Returns the resolved alias map (reserved name -> vault id).
func (m *Manager) EnsureInternalVaults(ctx context.Context, aliases map[string]string, syncURL, syncToken string) (map[string]string, error) {
	if aliases == nil {
		aliases = make(map[string]string)
	}

	if syncURL != "" {
		id, err := m.resolveOrCreate(ctx, aliases[UnifiedVaultName], UnifiedVaultName, syncURL, syncToken)
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, len(ReservedVaultNames))
		for _, name := range ReservedVaultNames {
			out[name] = id
		}
		out[UnifiedVaultName] = id
		return out, nil
	}

	out := make(map[string]string, len(ReservedVaultNames))
	for _, name := range ReservedVaultNames {
		id, err := m.resolveOrCreate(ctx, aliases[name], name, "", "")
		if err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, nil
}

// resolveOrCreate opens knownID if it has a live database file, else
// scans the vaults directory for a header matching name (recovering a
// lost alias map, spec.md §4.8), else creates a fresh vault.
func (m *Manager) resolveOrCreate(ctx context.Context, knownID, name, syncURL, syncToken string) (string, error) {
	if knownID != "" {
		if _, err := os.Stat(m.dbPath(knownID)); err == nil {
			if _, err := m.OpenVault(ctx, knownID, syncURL, syncToken); err == nil {
				return knownID, nil
			}
		}
	}

	if id, ok := m.scanForVaultByName(name); ok {
		if _, err := m.OpenVault(ctx, id, syncURL, syncToken); err == nil {
			return id, nil
		}
	}

	info, err := m.CreateVault(ctx, name, models.VaultPrivate, syncURL, syncToken)
	if err != nil {
		if asReachErr, ok := err.(*coreerr.Error); ok && asReachErr.Kind == coreerr.KindAlreadyExists {
			if id, ok := m.VaultIDByName(name); ok {
				return id, nil
			}
		}
		return "", err
	}
	return info.ID, nil
}

func (m *Manager) scanForVaultByName(name string) (string, bool) {
	entries, err := os.ReadDir(m.vaultsDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".db")
		path := filepath.Join(m.vaultsDir, e.Name())
		header, err := peekHeader(path)
		if err != nil {
			continue
		}
		if header.Name == name {
			return id, true
		}
	}
	return "", false
}

// MigrateToUnifiedVault implements the one-time local->sync migration of
// spec.md §4.8: every secret in every reserved local vault is decrypted,
// the local reserved vaults are closed, a unified cloud vault is
// created, and each secret is reinserted under an id prefixed with its
// source reserved-vault name to avoid collisions. Per-row decryption
// failures are logged and skipped, never fatal.
func (m *Manager) MigrateToUnifiedVault(ctx context.Context, oldAliases map[string]string, syncURL, syncToken string) (map[string]string, error) {
	type migrated struct {
		name, category string
		value          []byte
		originalID     string
		reservedName   string
	}
	var carried []migrated

	for _, name := range ReservedVaultNames {
		oldID, ok := oldAliases[name]
		if !ok {
			continue
		}
		if _, err := m.OpenVault(ctx, oldID, "", ""); err != nil {
			continue
		}
		if err := m.UnlockVault(ctx, oldID); err != nil {
			continue
		}
		metas, err := m.ListSecrets(ctx, oldID)
		if err != nil {
			continue
		}
		for _, meta := range metas {
			value, err := m.ReadSecret(ctx, oldID, meta.ID)
			if err != nil {
				logSyncFailure(oldID, fmt.Errorf("skip unreadable secret %s during migration: %w", meta.ID, err))
				continue
			}
			carried = append(carried, migrated{
				name:         meta.Name,
				category:     meta.Category,
				value:        value,
				originalID:   meta.ID,
				reservedName: name,
			})
		}
	}

	for _, name := range ReservedVaultNames {
		if oldID, ok := oldAliases[name]; ok {
			_ = m.CloseVault(oldID)
		}
	}

	unifiedInfo, err := m.CreateVault(ctx, UnifiedVaultName, models.VaultPrivate, syncURL, syncToken)
	if err != nil {
		return nil, err
	}
	if err := m.UnlockVault(ctx, unifiedInfo.ID); err != nil {
		return nil, err
	}

	for _, row := range carried {
		prefixedID := row.reservedName + "_" + row.originalID
		if err := m.CreateSecretWithID(ctx, unifiedInfo.ID, prefixedID, row.name, row.category, row.value); err != nil {
			logSyncFailure(unifiedInfo.ID, fmt.Errorf("skip secret %s during migration insert: %w", row.originalID, err))
		}
	}

	out := make(map[string]string, len(ReservedVaultNames)+1)
	for _, name := range ReservedVaultNames {
		out[name] = unifiedInfo.ID
	}
	out[UnifiedVaultName] = unifiedInfo.ID
	return out, nil
}
