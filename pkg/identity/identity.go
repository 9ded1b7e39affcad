// Package identity manages the on-disk identity file described in
// spec.md §6.3: a long-lived X25519 keypair, the secret half of which is
// always stored wrapped, never in the clear, under a KEK derived either
// from a password (Argon2id) or from a secret cached in the OS keychain
// (HKDF). Grounded on the wrapped-key-at-rest discipline of
// progressdb-ProgressDB/kms/pkg/kms/security.go, adapted from that
// teacher's generic secret-wrapping to a single fixed identity keypair.
//
// OS keychain access goes through github.com/99designs/keyring, declared
// in the retrieved virtengine-virtengine/go.mod; no in-pack call site
// exercises its API directly; the storage/unlock calls below follow that
// library's published Open/Get/Set/Remove shape from the ecosystem.
package identity

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/kdf"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/secure"
	"github.com/alexandrosnt/Reach-sub000/pkg/sharing"
)

const (
	identityFileName  = "identity.json"
	keyringService    = "reachvault"
	keyringItemKey    = "identity-unlock-secret"
	keychainSecretLen = 32
)

// Manager owns the identity file on disk and, when auto-unlock is
// enabled, a cached unlock secret in the OS keychain. It is not safe for
// concurrent unlock/lock calls from multiple goroutines; callers
// serialize through the same coarse lock the vault manager uses
// (spec.md §5).
type Manager struct {
	dataDir  string
	keyring  keyring.Keyring
	identity *models.Identity
	secret   *secure.Bytes // live X25519 secret key, set only while unlocked
}

// New constructs a Manager rooted at dataDir. The OS keychain backend is
// opened lazily on first use so that headless test environments without
// a keychain never fail at construction time.
func New(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

func (m *Manager) path() string {
	return filepath.Join(m.dataDir, identityFileName)
}

// Exists reports whether an identity file has already been initialized.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path())
	return err == nil
}

// Init creates a new identity, wraps its secret key under a KEK derived
// from password, and writes the identity file. Fails with
// IdentityAlreadyExists if one is already present.
func (m *Manager) Init(password string) (*models.Identity, error) {
	secretKey, publicKey, err := sharing.GenerateIdentityKeypair()
	if err != nil {
		return nil, err
	}
	defer secure.Wipe(secretKey)
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "generate kdf salt", err)
	}
	return m.initWithSecret(password, uuid.NewString(), secretKey, publicKey, salt)
}

// Import recreates an identity around a caller-supplied X25519 secret
// key, used by import_identity (spec.md §6.2) to restore an identity
// independently of the backup codec. Fails with IdentityAlreadyExists if
// one is already present on this machine.
func (m *Manager) Import(password string, secretKey []byte) (*models.Identity, error) {
	publicKey, err := sharing.PublicFromSecret(secretKey)
	if err != nil {
		return nil, err
	}
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "generate kdf salt", err)
	}
	return m.initWithSecret(password, uuid.NewString(), secretKey, publicKey, salt)
}

// RestoreFromBackup recreates an identity exactly as a backup bundle
// recorded it: the same uuid and the same KDFSalt as the exported
// identity, re-wrapped under masterPassword. Reusing the original salt
// is required, not cosmetic — every restored vault header's
// wrapped_master_dek was sealed under a vault-owner KEK derived from
// that exact salt (pkg/kdf.DeriveVaultOwnerKEK), and a fresh salt would
// make every restored vault permanently unwrappable.
func (m *Manager) RestoreFromBackup(password, restoreUUID string, secretKey, originalSalt []byte) (*models.Identity, error) {
	publicKey, err := sharing.PublicFromSecret(secretKey)
	if err != nil {
		return nil, err
	}
	return m.initWithSecret(password, restoreUUID, secretKey, publicKey, originalSalt)
}

func (m *Manager) initWithSecret(password, id string, secretKey, publicKey, salt []byte) (*models.Identity, error) {
	if m.Exists() {
		return nil, coreerr.ErrIdentityAlreadyExists
	}
	if err := os.MkdirAll(m.dataDir, 0o700); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIoError, "create data directory", err)
	}

	kek, err := kdf.DeriveKEKFromPassword(password, salt)
	if err != nil {
		return nil, err
	}
	defer secure.Wipe(kek)

	wrapped, err := aead.WrapDEKWithKey(kek, secretKey)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindEncryptionError, "wrap identity secret key", err)
	}

	identityRecord := &models.Identity{
		UUID:             id,
		PublicKey:        publicKey,
		WrappedSecretKey: wrapped.Ciphertext,
		WrappedNonce:     wrapped.Nonce,
		KDFSalt:          salt,
		CreatedAt:        time.Now().UTC(),
	}
	if err := m.write(identityRecord); err != nil {
		return nil, err
	}
	m.identity = identityRecord
	m.secret = secure.New(secretKey)
	return identityRecord, nil
}

func (m *Manager) write(id *models.Identity) error {
	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return coreerr.Wrap(coreerr.KindSerializationError, "marshal identity file", err)
	}
	if err := os.WriteFile(m.path(), b, 0o600); err != nil {
		return coreerr.Wrap(coreerr.KindIoError, "write identity file", err)
	}
	return nil
}

func (m *Manager) load() (*models.Identity, error) {
	if m.identity != nil {
		return m.identity, nil
	}
	b, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerr.ErrIdentityNotInitialized
		}
		return nil, coreerr.Wrap(coreerr.KindIoError, "read identity file", err)
	}
	var id models.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, coreerr.Wrap(coreerr.KindSerializationError, "unmarshal identity file", err)
	}
	m.identity = &id
	return &id, nil
}

// Unlock derives the KEK from password, unwraps the secret key, and
// caches it in memory for the duration of the unlocked session.
func (m *Manager) Unlock(password string) error {
	id, err := m.load()
	if err != nil {
		return err
	}
	kek, err := kdf.DeriveKEKFromPassword(password, id.KDFSalt)
	if err != nil {
		return err
	}
	defer secure.Wipe(kek)

	secretKey, err := aead.UnwrapDEKWithKey(kek, &aead.WrappedDek{Nonce: id.WrappedNonce, Ciphertext: id.WrappedSecretKey})
	if err != nil {
		return coreerr.Wrap(coreerr.KindDecryptionError, "incorrect password", err)
	}
	m.secret = secure.New(secretKey)
	secure.Wipe(secretKey)
	return nil
}

// Lock discards the in-memory secret key. The identity file itself is
// untouched.
func (m *Manager) Lock() {
	if m.secret != nil {
		m.secret.Clear()
		m.secret = nil
	}
}

// Unlocked reports whether the secret key is currently cached in memory.
func (m *Manager) Unlocked() bool {
	return m.secret != nil
}

// SecretKey returns a copy of the unlocked X25519 secret key. Callers
// must wipe the returned slice when done.
func (m *Manager) SecretKey() ([]byte, error) {
	if m.secret == nil {
		return nil, coreerr.ErrLocked
	}
	return m.secret.Data(), nil
}

// VaultOwnerKEK returns the key that wraps the master DEK of every vault
// this identity owns. It is recomputed fresh from the unlocked secret key
// and the identity's KDFSalt on every call, rather than cached from
// whichever method (password or auto-unlock) last unlocked the identity,
// so the same vaults stay unlockable regardless of unlock path (spec.md
// §4.7 unlock_vault's "unwrap with the caller's KEK"). Callers must wipe
// the returned slice when done.
func (m *Manager) VaultOwnerKEK() ([]byte, error) {
	if m.secret == nil {
		return nil, coreerr.ErrLocked
	}
	id, err := m.load()
	if err != nil {
		return nil, err
	}
	secretKey := m.secret.Data()
	defer secure.Wipe(secretKey)
	return kdf.DeriveVaultOwnerKEK(secretKey, id.KDFSalt)
}

// PublicKey returns the identity's long-lived X25519 public key.
func (m *Manager) PublicKey() ([]byte, error) {
	id, err := m.load()
	if err != nil {
		return nil, err
	}
	return id.PublicKey, nil
}

// UUID returns the identity's stable UUID.
func (m *Manager) UUID() (string, error) {
	id, err := m.load()
	if err != nil {
		return "", err
	}
	return id.UUID, nil
}

// EnableAutoUnlock generates a random secret, uses it to derive an
// additional KEK wrapping of the identity's secret key via HKDF, and
// stores that random secret in the OS keychain so future process starts
// can unlock without a password prompt.
func (m *Manager) EnableAutoUnlock() error {
	if m.secret == nil {
		return coreerr.ErrLocked
	}
	kr, err := m.openKeyring()
	if err != nil {
		return err
	}

	keychainSecret := make([]byte, keychainSecretLen)
	if _, err := io.ReadFull(rand.Reader, keychainSecret); err != nil {
		return coreerr.Wrap(coreerr.KindCryptoError, "generate keychain secret", err)
	}
	defer secure.Wipe(keychainSecret)

	id, err := m.load()
	if err != nil {
		return err
	}
	kek, err := kdf.DeriveKEKFromSecret(keychainSecret, id.KDFSalt)
	if err != nil {
		return err
	}
	defer secure.Wipe(kek)

	secretKey := m.secret.Data()
	defer secure.Wipe(secretKey)

	wrapped, err := aead.WrapDEKWithKey(kek, secretKey)
	if err != nil {
		return coreerr.Wrap(coreerr.KindEncryptionError, "wrap identity secret for auto-unlock", err)
	}

	// Stored separately from WrappedSecretKey/WrappedNonce (the
	// password-derived wrapping) so enabling auto-unlock never disturbs
	// password-based unlock.
	id.AutoUnlockWrappedSecretKey = wrapped.Ciphertext
	id.AutoUnlockWrappedNonce = wrapped.Nonce
	if err := m.write(id); err != nil {
		return err
	}

	if err := kr.Set(keyring.Item{
		Key:  keyringItemKey,
		Data: keychainSecret,
	}); err != nil {
		return coreerr.Wrap(coreerr.KindKeychainError, "store auto-unlock secret", err)
	}
	return nil
}

// AutoUnlock attempts to unlock the identity using the secret cached in
// the OS keychain. Returns KeychainKeyMissing if auto-unlock was never
// enabled on this machine.
func (m *Manager) AutoUnlock() error {
	kr, err := m.openKeyring()
	if err != nil {
		return err
	}
	item, err := kr.Get(keyringItemKey)
	if err != nil {
		return coreerr.ErrKeychainKeyMissing
	}
	defer secure.Wipe(item.Data)

	id, err := m.load()
	if err != nil {
		return err
	}
	if len(id.AutoUnlockWrappedSecretKey) == 0 {
		return coreerr.ErrKeychainKeyMissing
	}
	kek, err := kdf.DeriveKEKFromSecret(item.Data, id.KDFSalt)
	if err != nil {
		return err
	}
	defer secure.Wipe(kek)

	secretKey, err := aead.UnwrapDEKWithKey(kek, &aead.WrappedDek{Nonce: id.AutoUnlockWrappedNonce, Ciphertext: id.AutoUnlockWrappedSecretKey})
	if err != nil {
		return coreerr.Wrap(coreerr.KindDecryptionError, "auto-unlock secret does not match identity", err)
	}
	m.secret = secure.New(secretKey)
	secure.Wipe(secretKey)
	return nil
}

// DisableAutoUnlock removes the cached keychain secret. The identity
// file still requires a password afterward.
func (m *Manager) DisableAutoUnlock() error {
	kr, err := m.openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Remove(keyringItemKey); err != nil && err != keyring.ErrKeyNotFound {
		return coreerr.Wrap(coreerr.KindKeychainError, "remove auto-unlock secret", err)
	}
	return nil
}

func (m *Manager) openKeyring() (keyring.Keyring, error) {
	if m.keyring != nil {
		return m.keyring, nil
	}
	kr, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindKeychainError, "open os keychain", err)
	}
	m.keyring = kr
	return kr, nil
}

// KDFSalt returns the identity's password-KEK/vault-owner-KEK salt, used
// by full backup export to make a restored identity's vault-owner KEK
// reproducible.
func (m *Manager) KDFSalt() ([]byte, error) {
	id, err := m.load()
	if err != nil {
		return nil, err
	}
	return id.KDFSalt, nil
}

// SyncConfig returns the identity's personal cloud-replication target.
func (m *Manager) SyncConfig() (models.SyncConfig, error) {
	id, err := m.load()
	if err != nil {
		return models.SyncConfig{}, err
	}
	return id.SyncConfig, nil
}

// SetSyncConfig persists a new personal sync target. Passing a nil field
// via the caller's own merge logic preserves the previous value; this
// method always overwrites both fields with what it is given.
func (m *Manager) SetSyncConfig(cfg models.SyncConfig) error {
	id, err := m.load()
	if err != nil {
		return err
	}
	id.SyncConfig = cfg
	return m.write(id)
}

// InternalVaultIndex returns the persisted reserved-name -> vault-id
// alias map (spec.md §4.8), or an empty map if none has been saved yet.
func (m *Manager) InternalVaultIndex() (map[string]string, error) {
	id, err := m.load()
	if err != nil {
		return nil, err
	}
	if id.InternalVaultIndex == nil {
		return map[string]string{}, nil
	}
	return id.InternalVaultIndex, nil
}

// SetInternalVaultIndex persists the reserved-name -> vault-id alias map.
func (m *Manager) SetInternalVaultIndex(aliases map[string]string) error {
	id, err := m.load()
	if err != nil {
		return err
	}
	id.InternalVaultIndex = aliases
	return m.write(id)
}

// UserVaultIndex returns the persisted list of user-created vault ids.
func (m *Manager) UserVaultIndex() ([]string, error) {
	id, err := m.load()
	if err != nil {
		return nil, err
	}
	return id.UserVaultIndex, nil
}

// SetUserVaultIndex persists the list of user-created vault ids.
func (m *Manager) SetUserVaultIndex(ids []string) error {
	id, err := m.load()
	if err != nil {
		return err
	}
	id.UserVaultIndex = ids
	return m.write(id)
}

// Reset deletes the identity file and any cached keychain secret. This
// is destructive and irreversible: all vaults wrapped for this identity
// become unrecoverable without a prior export.
func (m *Manager) Reset() error {
	_ = m.DisableAutoUnlock()
	m.Lock()
	m.identity = nil
	if err := os.Remove(m.path()); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.KindIoError, "remove identity file", err)
	}
	return nil
}
