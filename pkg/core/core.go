// Package core wires the identity store, vault manager, and settings
// façade behind the single entry point spec.md §6.2 describes, mirroring
// progressdb-ProgressDB/service/internal/app/app.go's role as the one
// long-lived struct a cmd/ binary constructs and drives.
package core

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/alexandrosnt/Reach-sub000/pkg/backup"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/identity"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/secure"
	"github.com/alexandrosnt/Reach-sub000/pkg/settings"
	"github.com/alexandrosnt/Reach-sub000/pkg/vault"
)

// Core is the top-level facade exposing every operation of spec.md §6.2.
// It is not safe for concurrent calls from multiple goroutines beyond
// what pkg/vault.Manager's own coarse lock provides; embedders serialize
// calls the same way spec.md §5 asks vault operations to be serialized.
type Core struct {
	dataDir  string
	identity *identity.Manager
	vaults   *vault.Manager
	settings *settings.Store

	// settingsVaultID caches the resolved alias for the reserved
	// "__settings__" name, set once afterUnlock has run.
	settingsVaultID string
}

// New constructs a Core rooted at dataDir (spec.md §6.3 persistent state
// layout). No disk I/O happens until a caller calls HasIdentity, Init,
// Unlock, or AutoUnlock.
func New(dataDir string) *Core {
	return &Core{
		dataDir:  dataDir,
		identity: identity.New(dataDir),
		vaults:   vault.New(dataDir),
	}
}

// --- Identity ---------------------------------------------------------

// InitIdentity creates a new identity and returns its uuid.
func (c *Core) InitIdentity(ctx context.Context, password string) (string, error) {
	id, err := c.identity.Init(password)
	if err != nil {
		return "", err
	}
	return id.UUID, c.afterUnlock(ctx)
}

// Unlock unlocks the identity with password and, on success, brings up
// every reserved internal vault and reopens and unlocks every vault in
// the user vault index.
func (c *Core) Unlock(ctx context.Context, password string) (bool, error) {
	if err := c.identity.Unlock(password); err != nil {
		return false, err
	}
	if err := c.afterUnlock(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// AutoUnlock unlocks the identity from the OS keychain secret, if
// auto-unlock was previously enabled on this machine.
func (c *Core) AutoUnlock(ctx context.Context) (bool, error) {
	if err := c.identity.AutoUnlock(); err != nil {
		return false, err
	}
	if err := c.afterUnlock(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// EnableAutoUnlock delegates to the identity store.
func (c *Core) EnableAutoUnlock() error { return c.identity.EnableAutoUnlock() }

// DisableAutoUnlock delegates to the identity store.
func (c *Core) DisableAutoUnlock() error { return c.identity.DisableAutoUnlock() }

// afterUnlock feeds the identity's vault-owner KEK and secret key into
// the vault manager, resolves every reserved internal vault per the
// current sync configuration, unlocks the settings vault so a
// settings.Store can be constructed, then reopens and unlocks every vault
// in the user vault index (a vault that cannot be opened or unlocked is
// skipped).
func (c *Core) afterUnlock(ctx context.Context) error {
	uuid, err := c.identity.UUID()
	if err != nil {
		return err
	}
	ownerKEK, err := c.identity.VaultOwnerKEK()
	if err != nil {
		return err
	}
	defer secure.Wipe(ownerKEK)
	secretKey, err := c.identity.SecretKey()
	if err != nil {
		return err
	}
	defer secure.Wipe(secretKey)
	c.vaults.SetOwner(uuid, ownerKEK, secretKey)

	syncCfg, err := c.identity.SyncConfig()
	if err != nil {
		return err
	}
	aliases, err := c.identity.InternalVaultIndex()
	if err != nil {
		return err
	}
	resolved, err := c.vaults.EnsureInternalVaults(ctx, aliases, syncCfg.URL, syncCfg.Token)
	if err != nil {
		return err
	}
	if err := c.identity.SetInternalVaultIndex(resolved); err != nil {
		return err
	}

	c.settingsVaultID = resolved[vault.SettingsVaultName]
	if err := c.vaults.UnlockVault(ctx, c.settingsVaultID); err != nil {
		return err
	}
	c.settings = settings.New(c.vaults, c.settingsVaultID)

	userIDs, err := c.identity.UserVaultIndex()
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		if _, err := c.vaults.OpenVault(ctx, id, "", ""); err != nil {
			continue
		}
		_ = c.vaults.UnlockVault(ctx, id)
	}
	return nil
}

// Lock discards the in-memory identity secret key and every open
// vault's master DEK (spec.md §5's sensitive-memory contract).
func (c *Core) Lock() {
	c.identity.Lock()
	c.vaults.ClearOwner()
	c.settings = nil
}

// IsLocked reports whether the identity is currently locked.
func (c *Core) IsLocked() bool { return !c.identity.Unlocked() }

// HasIdentity reports whether an identity file exists on disk.
func (c *Core) HasIdentity() bool { return c.identity.Exists() }

// GetPublicKey returns the identity's base64-encoded public key, or ""
// if no identity exists yet.
func (c *Core) GetPublicKey() (string, error) {
	pub, err := c.identity.PublicKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

// GetUserUUID returns the identity's stable uuid, or "" if none exists.
func (c *Core) GetUserUUID() (string, error) { return c.identity.UUID() }

// ExportIdentity returns the base64-encoded raw X25519 secret key of the
// currently unlocked identity (spec.md §6.2 export_identity).
func (c *Core) ExportIdentity() (string, error) {
	secretKey, err := c.identity.SecretKey()
	if err != nil {
		return "", err
	}
	defer secure.Wipe(secretKey)
	return base64.StdEncoding.EncodeToString(secretKey), nil
}

// ImportIdentity recreates an identity around a base64-encoded secret
// key exported by ExportIdentity on another machine.
func (c *Core) ImportIdentity(ctx context.Context, password, secretKeyB64 string) (string, error) {
	secretKey, err := base64.StdEncoding.DecodeString(secretKeyB64)
	if err != nil {
		return "", coreerr.Wrap(coreerr.KindSerializationError, "decode base64 secret key", err)
	}
	defer secure.Wipe(secretKey)
	id, err := c.identity.Import(password, secretKey)
	if err != nil {
		return "", err
	}
	return id.UUID, c.afterUnlock(ctx)
}

// ResetIdentity deletes the identity file and every cached keychain
// secret. Irreversible.
func (c *Core) ResetIdentity(ctx context.Context) error {
	for _, info := range c.vaults.ListVaults(ctx) {
		_ = c.vaults.DeleteVault(info.ID)
	}
	c.vaults.ClearOwner()
	c.settings = nil
	return c.identity.Reset()
}

// --- Vaults -------------------------------------------------------------

// CreateVault creates a new user vault and records it in the identity's
// user vault index.
func (c *Core) CreateVault(ctx context.Context, name string, vtype models.VaultType, syncURL, syncToken string) (*vault.VaultInfo, error) {
	info, err := c.vaults.CreateVault(ctx, name, vtype, syncURL, syncToken)
	if err != nil {
		return nil, err
	}
	ids, err := c.identity.UserVaultIndex()
	if err != nil {
		return nil, err
	}
	if err := c.identity.SetUserVaultIndex(append(ids, info.ID)); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Core) OpenVault(ctx context.Context, id, syncURL, syncToken string) (*vault.VaultInfo, error) {
	return c.vaults.OpenVault(ctx, id, syncURL, syncToken)
}

func (c *Core) CloseVault(id string) error { return c.vaults.CloseVault(id) }

func (c *Core) DeleteVault(id string) error { return c.vaults.DeleteVault(id) }

func (c *Core) UnlockVault(ctx context.Context, id string) error { return c.vaults.UnlockVault(ctx, id) }

func (c *Core) LockVault(id string) error { return c.vaults.LockVault(id) }

func (c *Core) ListVaults(ctx context.Context) []vault.VaultInfo { return c.vaults.ListVaults(ctx) }

func (c *Core) SyncVault(ctx context.Context, id string) error { return c.vaults.SyncVault(ctx, id) }

// --- Secrets --------------------------------------------------------------

func (c *Core) CreateSecret(ctx context.Context, vaultID, name, category string, value []byte) (string, error) {
	return c.vaults.CreateSecret(ctx, vaultID, name, category, value)
}

func (c *Core) CreateSecretWithID(ctx context.Context, vaultID, id, name, category string, value []byte) error {
	return c.vaults.CreateSecretWithID(ctx, vaultID, id, name, category, value)
}

func (c *Core) ReadSecret(ctx context.Context, vaultID, id string) ([]byte, error) {
	return c.vaults.ReadSecret(ctx, vaultID, id)
}

func (c *Core) UpdateSecret(ctx context.Context, vaultID, id string, value []byte) error {
	return c.vaults.UpdateSecret(ctx, vaultID, id, value)
}

func (c *Core) DeleteSecret(ctx context.Context, vaultID, id string) error {
	return c.vaults.DeleteSecret(ctx, vaultID, id)
}

func (c *Core) ListSecrets(ctx context.Context, vaultID string) ([]vault.SecretMetadata, error) {
	return c.vaults.ListSecrets(ctx, vaultID)
}

func (c *Core) SecretExists(ctx context.Context, vaultID, id string) bool {
	return c.vaults.SecretExists(ctx, vaultID, id)
}

// --- Sharing --------------------------------------------------------------

func (c *Core) InviteMember(ctx context.Context, vaultID string, inviteePublicKey []byte, inviteeUUID string, role models.Role) (*vault.InviteInfo, error) {
	return c.vaults.InviteMember(ctx, vaultID, inviteePublicKey, inviteeUUID, role)
}

func (c *Core) AcceptInvite(ctx context.Context, vaultID, syncURL, syncToken string) (*vault.VaultInfo, error) {
	uuid, err := c.identity.UUID()
	if err != nil {
		return nil, err
	}
	return c.vaults.AcceptInvite(ctx, vaultID, syncURL, syncToken, uuid)
}

func (c *Core) RemoveMember(ctx context.Context, vaultID, userUUID string) error {
	return c.vaults.RemoveMember(ctx, vaultID, userUUID)
}

func (c *Core) ListMembers(ctx context.Context, vaultID string) ([]vault.MemberInfo, error) {
	return c.vaults.ListMembers(ctx, vaultID)
}

// ShareSecret, ListIncomingShares, and AcceptShare are a supplemented
// operation group (no per-item sharing verbs exist in spec.md §6.2,
// only the shared_items table in §3) that exercises it end to end.
func (c *Core) ShareSecret(ctx context.Context, vaultID, secretID, recipientUUID string, recipientPublicKey []byte, expiresAt *time.Time) (string, error) {
	return c.vaults.ShareSecret(ctx, vaultID, secretID, recipientUUID, recipientPublicKey, expiresAt)
}

func (c *Core) ListIncomingShares(ctx context.Context, vaultID string) ([]vault.SharedItemInfo, error) {
	return c.vaults.ListIncomingShares(ctx, vaultID)
}

func (c *Core) AcceptShare(ctx context.Context, sourceVaultID, shareID, destVaultID string) (string, error) {
	return c.vaults.AcceptShare(ctx, sourceVaultID, shareID, destVaultID)
}

// --- Backup -----------------------------------------------------------

// ExportFullBackup gathers the identity (including its raw secret key),
// every owned vault's header/secrets/members verbatim (still under
// their own wrapped DEKs), the personal sync config, and the current app
// settings into a sealed backup file written at filePath (spec.md §4.5).
func (c *Core) ExportFullBackup(ctx context.Context, password, filePath string) error {
	uuid, err := c.identity.UUID()
	if err != nil {
		return err
	}
	pub, err := c.identity.PublicKey()
	if err != nil {
		return err
	}
	secretKey, err := c.identity.SecretKey()
	if err != nil {
		return err
	}
	defer secure.Wipe(secretKey)
	salt, err := c.identity.KDFSalt()
	if err != nil {
		return err
	}

	bundle := &backup.ExportBundle{
		Identity: models.Identity{
			UUID:      uuid,
			PublicKey: pub,
			// WrappedSecretKey/WrappedNonce are intentionally left unset:
			// the raw secret key travels in SecretKey below, sealed
			// end-to-end by the backup codec's own AEAD layer rather than
			// by the identity file's password wrapping, since the import
			// password and the original unlock password may differ.
			KDFSalt: salt,
		},
	}
	bundle.SecretKey = secretKey

	aliases, err := c.identity.InternalVaultIndex()
	if err != nil {
		return err
	}
	bundle.VaultAliases = aliases

	syncCfg, err := c.identity.SyncConfig()
	if err != nil {
		return err
	}
	bundle.SyncConfig = map[string]string{"url": syncCfg.URL, "token": syncCfg.Token}

	if c.settings != nil {
		doc := c.settings.Get(ctx)
		raw := map[string]interface{}{"turso": map[string]string{"org": doc.Turso.Org, "token": doc.Turso.Token}}
		for k, v := range doc.Extra {
			raw[k] = v
		}
		bundle.AppSettings = raw
	}

	for _, info := range c.vaults.ListVaults(ctx) {
		if info.OwnerUUID != uuid {
			continue
		}
		header, err := c.vaults.Header(info.ID)
		if err != nil {
			return err
		}
		secrets, err := c.vaults.RawSecretRows(ctx, info.ID)
		if err != nil {
			return err
		}
		members, err := c.vaults.RawMemberRows(ctx, info.ID)
		if err != nil {
			return err
		}
		bundle.Vaults = append(bundle.Vaults, backup.VaultBundle{
			Header:  *header,
			Secrets: secrets,
			Members: members,
		})
	}

	sealed, err := backup.Seal(password, bundle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, sealed, 0o600); err != nil {
		return coreerr.Wrap(coreerr.KindIoError, "write backup file", err)
	}
	return nil
}

// PreviewBackup decrypts just far enough to report a backup file's
// contents without committing an import.
func (c *Core) PreviewBackup(filePath, password string) (*backup.Preview, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIoError, "read backup file", err)
	}
	return backup.PreviewFile(password, file)
}

// ImportFullBackup unseals a backup file with exportPassword, then
// destructively replaces any existing identity with the exported one
// (wrapped fresh under masterPassword, but keeping its original uuid and
// KDFSalt so every restored vault's wrapped_master_dek stays valid), and
// materializes every exported vault verbatim. The caller is expected to
// restart the process afterward (spec.md §4.5); this call leaves the
// restored identity already unlocked and auto-unlock already enabled in
// the OS keychain, so a fresh process's auto_unlock resolves cleanly.
func (c *Core) ImportFullBackup(ctx context.Context, filePath, exportPassword, masterPassword string) (string, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return "", coreerr.Wrap(coreerr.KindIoError, "read backup file", err)
	}
	bundle, err := backup.Unseal(exportPassword, file)
	if err != nil {
		return "", err
	}

	if c.identity.Exists() {
		if err := c.ResetIdentity(ctx); err != nil {
			return "", err
		}
	}

	restored, err := c.identity.RestoreFromBackup(masterPassword, bundle.Identity.UUID, bundle.SecretKey, bundle.Identity.KDFSalt)
	if err != nil {
		return "", err
	}
	if err := c.identity.EnableAutoUnlock(); err != nil {
		return "", err
	}

	if bundle.SyncConfig != nil {
		if err := c.identity.SetSyncConfig(models.SyncConfig{URL: bundle.SyncConfig["url"], Token: bundle.SyncConfig["token"]}); err != nil {
			return "", err
		}
	}
	if bundle.VaultAliases != nil {
		if err := c.identity.SetInternalVaultIndex(bundle.VaultAliases); err != nil {
			return "", err
		}
	}

	var userVaultIDs []string
	for _, vb := range bundle.Vaults {
		if _, err := c.vaults.RestoreVault(ctx, vb.Header, vb.Secrets, vb.Members); err != nil {
			return "", err
		}
		// spec.md §4.7: only non-reserved (user-created) vaults belong
		// in the user vault index; reserved internal vaults are tracked
		// separately via the internal vault alias map set above.
		if !vault.IsReservedVaultName(vb.Header.Name) {
			userVaultIDs = append(userVaultIDs, vb.Header.VaultID)
		}
	}
	if err := c.identity.SetUserVaultIndex(userVaultIDs); err != nil {
		return "", err
	}

	if err := c.afterUnlock(ctx); err != nil {
		return "", err
	}
	if len(bundle.AppSettings) > 0 && c.settings != nil {
		doc := settings.AppSettings{Extra: map[string]interface{}{}}
		for k, v := range bundle.AppSettings {
			if k == "turso" {
				if tm, ok := v.(map[string]interface{}); ok {
					if org, ok := tm["org"].(string); ok {
						doc.Turso.Org = org
					}
					if token, ok := tm["token"].(string); ok {
						doc.Turso.Token = token
					}
				}
				continue
			}
			doc.Extra[k] = v
		}
		if err := c.settings.Save(ctx, doc); err != nil {
			return "", err
		}
	}

	return restored.UUID, nil
}

// --- Settings -----------------------------------------------------------

func (c *Core) GetSettings(ctx context.Context) settings.AppSettings {
	if c.settings == nil {
		return settings.Default()
	}
	return c.settings.Get(ctx)
}

func (c *Core) SaveSettings(ctx context.Context, doc settings.AppSettings) error {
	if c.settings == nil {
		return coreerr.ErrLocked
	}
	return c.settings.Save(ctx, doc)
}

func (c *Core) GetTursoConfig(ctx context.Context) settings.TursoConfig {
	if c.settings == nil {
		return settings.TursoConfig{}
	}
	return c.settings.GetTursoConfig(ctx)
}

func (c *Core) SetTursoConfig(ctx context.Context, org, token *string) error {
	if c.settings == nil {
		return coreerr.ErrLocked
	}
	return c.settings.SetTursoConfig(ctx, org, token)
}

// SetPersonalSyncConfig updates the identity's personal replication
// target and re-resolves every reserved internal vault against it,
// migrating to the unified cloud vault the first time a sync URL is set
// (spec.md §4.8).
func (c *Core) SetPersonalSyncConfig(ctx context.Context, url, token *string) error {
	cfg, err := c.identity.SyncConfig()
	if err != nil {
		return err
	}
	hadSync := cfg.URL != ""
	if url != nil {
		cfg.URL = *url
	}
	if token != nil {
		cfg.Token = *token
	}
	if err := c.identity.SetSyncConfig(cfg); err != nil {
		return err
	}

	aliases, err := c.identity.InternalVaultIndex()
	if err != nil {
		return err
	}

	if !hadSync && cfg.URL != "" {
		resolved, err := c.vaults.MigrateToUnifiedVault(ctx, aliases, cfg.URL, cfg.Token)
		if err != nil {
			return err
		}
		if err := c.identity.SetInternalVaultIndex(resolved); err != nil {
			return err
		}
		return c.afterUnlock(ctx)
	}

	return c.afterUnlock(ctx)
}

func (c *Core) GetPersonalSyncConfig() (models.SyncConfig, error) { return c.identity.SyncConfig() }
