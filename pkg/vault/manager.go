// Package vault implements the vault manager state machine from
// spec.md §4.7: a single coarse-locked in-memory map of open vault
// connections, each independently created/opened/unlocked/locked/closed/
// deleted, backed by one SQLite database per vault via pkg/replica.
//
// Grounded on progressdb-ProgressDB's connection-map-plus-mutex shape
// (service/internal/app/app.go wires one long-lived struct holding every
// subsystem behind a single entry point) generalized from that teacher's
// single always-on store to this spec's many independently lockable
// vaults.
package vault

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/replica"
	"github.com/alexandrosnt/Reach-sub000/pkg/schema"
	"github.com/alexandrosnt/Reach-sub000/pkg/secure"
)

// conn is the manager's in-memory record of one open vault.
type conn struct {
	header  models.VaultHeader
	replica *replica.Replica
	dek     *secure.Bytes // nil while locked
}

func (c *conn) unlocked() bool { return c.dek != nil }

// VaultInfo is the public summary returned by create/open/list operations.
type VaultInfo struct {
	ID          string
	Name        string
	Type        models.VaultType
	OwnerUUID   string
	CreatedAt   time.Time
	SecretCount int
	Unlocked    bool
	Remote      bool
}

// Manager is the vault manager state machine. It is not safe for
// concurrent use without external serialization beyond what its own
// mutex provides for its own operations — see spec.md §5: callers
// acquire the manager for one whole logical operation.
type Manager struct {
	mu sync.Mutex

	vaultsDir string

	ownerUUID    string
	ownerKEK     *secure.Bytes
	callerSecret *secure.Bytes // caller's own X25519 secret, for member-path unlock

	conns map[string]*conn  // vault id -> conn
	names map[string]string // vault name -> vault id
}

// New constructs a Manager rooted at dataDir/vaults. Callers must call
// SetOwner once an identity is unlocked before any vault operation.
func New(dataDir string) *Manager {
	return &Manager{
		vaultsDir: filepath.Join(dataDir, "vaults"),
		conns:     make(map[string]*conn),
		names:     make(map[string]string),
	}
}

// SetOwner installs the caller's uuid, vault-wrapping KEK, and X25519
// secret key, all derived by the identity store at unlock time. Required
// before any vault operation.
func (m *Manager) SetOwner(ownerUUID string, kek, ownerSecret []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerUUID = ownerUUID
	m.ownerKEK = secure.New(kek)
	m.callerSecret = secure.New(ownerSecret)
}

// ClearOwner zeroizes the cached KEK and secret key and forgets the
// owner, called on lock() of the identity. Every open vault's DEK is
// zeroized too, per spec.md §5's sensitive-memory contract.
func (m *Manager) ClearOwner() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ownerKEK != nil {
		m.ownerKEK.Clear()
		m.ownerKEK = nil
	}
	if m.callerSecret != nil {
		m.callerSecret.Clear()
		m.callerSecret = nil
	}
	m.ownerUUID = ""
	for _, c := range m.conns {
		if c.dek != nil {
			c.dek.Clear()
			c.dek = nil
		}
	}
}

func (m *Manager) dbPath(id string) string {
	return filepath.Join(m.vaultsDir, id+".db")
}

// CreateVault generates a fresh vault id, master DEK, and header row,
// wraps the DEK under the owner's KEK, and opens the vault unlocked.
func (m *Manager) CreateVault(ctx context.Context, name string, vtype models.VaultType, syncURL, syncToken string) (*VaultInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ownerKEK == nil {
		return nil, coreerr.ErrLocked
	}
	if _, exists := m.names[name]; exists {
		return nil, coreerr.AlreadyExists(name)
	}

	if err := os.MkdirAll(m.vaultsDir, 0o700); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIoError, "create vaults directory", err)
	}

	id := uuid.NewString()
	dek := make([]byte, aead.KeySize)
	if _, err := readRandom(dek); err != nil {
		return nil, err
	}

	kekBytes := m.ownerKEK.Data()
	defer secure.Wipe(kekBytes)
	wrapped, err := aead.WrapDEKWithKey(kekBytes, dek)
	if err != nil {
		secure.Wipe(dek)
		return nil, coreerr.Wrap(coreerr.KindEncryptionError, "wrap master dek", err)
	}

	header := models.VaultHeader{
		VaultID:       id,
		Name:          name,
		OwnerUUID:     m.ownerUUID,
		Type:          vtype,
		WrappedDEK:    wrapped.Ciphertext,
		WrappedNonce:  wrapped.Nonce,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: schema.CurrentVersion,
	}

	r, err := openReplica(ctx, m.dbPath(id), syncURL, syncToken)
	if err != nil {
		secure.Wipe(dek)
		return nil, err
	}
	if err := insertHeader(ctx, r.DB(), header); err != nil {
		secure.Wipe(dek)
		r.Close()
		return nil, err
	}

	c := &conn{header: header, replica: r, dek: secure.New(dek)}
	secure.Wipe(dek)
	m.conns[id] = c
	m.names[name] = id

	if r.Remote() {
		_ = r.Sync(ctx) // best-effort initial push, per spec.md §4.7
	}

	return m.infoLocked(ctx, c), nil
}

// OpenVault connects to an existing vault database and loads its header.
// Idempotent: calling it again for an already-open vault returns its
// current info without re-reading the header.
func (m *Manager) OpenVault(ctx context.Context, id, syncURL, syncToken string) (*VaultInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[id]; ok {
		return m.infoLocked(ctx, c), nil
	}

	r, err := openReplica(ctx, m.dbPath(id), syncURL, syncToken)
	if err != nil {
		return nil, err
	}
	if r.Remote() {
		_ = r.Sync(ctx) // pull-on-open, best-effort
	}

	header, err := selectHeader(ctx, r.DB())
	if err != nil {
		r.Close()
		return nil, err
	}

	c := &conn{header: *header, replica: r}
	m.conns[id] = c
	m.names[header.Name] = id
	return m.infoLocked(ctx, c), nil
}

// UnlockVault installs the master DEK for id into memory, choosing the
// owner or member unwrap path by comparing header.OwnerUUID to the
// manager's caller uuid. Idempotent if already unlocked.
func (m *Manager) UnlockVault(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[id]
	if !ok {
		return coreerr.NotFound(id)
	}
	if c.unlocked() {
		return nil
	}
	if m.ownerKEK == nil {
		return coreerr.ErrLocked
	}

	if c.header.OwnerUUID == m.ownerUUID {
		kekBytes := m.ownerKEK.Data()
		defer secure.Wipe(kekBytes)
		dek, err := aead.UnwrapDEKWithKey(kekBytes, &aead.WrappedDek{Nonce: c.header.WrappedNonce, Ciphertext: c.header.WrappedDEK})
		if err != nil {
			return coreerr.Wrap(coreerr.KindDecryptionError, "unwrap master dek", err)
		}
		c.dek = secure.New(dek)
		secure.Wipe(dek)
		return nil
	}

	return m.unlockAsMemberLocked(ctx, c)
}

// LockVault zeroizes and drops the in-memory master DEK. The SQL
// connection is retained.
func (m *Manager) LockVault(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return coreerr.NotFound(id)
	}
	if c.dek != nil {
		c.dek.Clear()
		c.dek = nil
	}
	return nil
}

// CloseVault removes the connection and name index entry from memory.
// It does not touch disk.
func (m *Manager) CloseVault(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return coreerr.NotFound(id)
	}
	if c.dek != nil {
		c.dek.Clear()
	}
	_ = c.replica.Close()
	delete(m.conns, id)
	delete(m.names, c.header.Name)
	return nil
}

// DeleteVault closes the vault and best-effort deletes its local
// database file.
func (m *Manager) DeleteVault(id string) error {
	m.mu.Lock()
	name := ""
	if c, ok := m.conns[id]; ok {
		name = c.header.Name
		if c.dek != nil {
			c.dek.Clear()
		}
		_ = c.replica.Close()
		delete(m.conns, id)
	}
	if name != "" {
		delete(m.names, name)
	}
	m.mu.Unlock()

	path := m.dbPath(id)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return coreerr.Wrap(coreerr.KindIoError, "delete vault file", err)
		}
	}
	return nil
}

// SyncVault forces a best-effort sync of a remote-backed vault.
func (m *Manager) SyncVault(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.conns[id]
	m.mu.Unlock()
	if !ok {
		return coreerr.NotFound(id)
	}
	return c.replica.Sync(ctx)
}

// ListVaults returns a summary of every currently open vault.
func (m *Manager) ListVaults(ctx context.Context) []VaultInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VaultInfo, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, *m.infoLocked(ctx, c))
	}
	return out
}

// VaultIDByName resolves a vault name to its id among currently open
// vaults (spec.md §8 property 4).
func (m *Manager) VaultIDByName(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.names[name]
	return id, ok
}

func (m *Manager) infoLocked(ctx context.Context, c *conn) *VaultInfo {
	count := 0
	if n, err := countSecrets(ctx, c.replica.DB()); err == nil {
		count = n
	}
	return &VaultInfo{
		ID:          c.header.VaultID,
		Name:        c.header.Name,
		Type:        c.header.Type,
		OwnerUUID:   c.header.OwnerUUID,
		CreatedAt:   c.header.CreatedAt,
		SecretCount: count,
		Unlocked:    c.unlocked(),
		Remote:      c.replica.Remote(),
	}
}

func openReplica(ctx context.Context, path, syncURL, syncToken string) (*replica.Replica, error) {
	if syncURL == "" {
		return replica.Open(ctx, path)
	}
	return replica.OpenWithSync(ctx, path, syncURL, syncToken)
}

func readRandom(b []byte) (int, error) {
	n, err := rand.Read(b)
	if err != nil {
		return n, coreerr.Wrap(coreerr.KindCryptoError, "generate master dek", err)
	}
	return n, nil
}
