// Package models holds the row-level data types shared across the vault
// manager, storage schema, and sharing code, per spec.md §3.
package models

import "time"

// Role is a vault member's access level (spec.md §3, vault_members.role).
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleReadOnly Role = "read_only"
)

// CanWrite reports whether a role may create, update, or delete secrets.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManageMembers reports whether r is a member-managing role. The vault
// manager does not consult it: only the vault owner may invite or remove
// members, whatever role a member row carries.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// VaultType tags whether a vault is private to its owner or shared with
// other members (spec.md §3, §9 "tagged variants").
type VaultType string

const (
	VaultPrivate VaultType = "private"
	VaultShared  VaultType = "shared"
)

// VaultHeader is the single row in a vault's vault_header table: the
// vault's own wrapped master DEK and identifying metadata (spec.md §3).
//
// spec.md §3's field list also names a per-vault salt32, but §4.7's
// unlock_vault procedure unwraps wrapped_master_dek directly with "the
// caller's KEK" and derives no further per-vault key — the two are in
// tension, and the explicit unlock procedure is the more authoritative
// of the two, so no per-vault salt is carried here.
type VaultHeader struct {
	VaultID       string    `json:"vault_id"`
	Name          string    `json:"name"`
	OwnerUUID     string    `json:"owner_uuid"`
	Type          VaultType `json:"vault_type"`
	WrappedDEK    []byte    `json:"wrapped_dek"`
	WrappedNonce  []byte    `json:"wrapped_dek_nonce"`
	CreatedAt     time.Time `json:"created_at"`
	SchemaVersion uint16    `json:"schema_version"`
}

// VaultMember is a row in vault_members: one identity's access to a
// vault, holding the vault's master DEK wrapped for that member's public
// key (spec.md §4.4 canonical wrap direction).
type VaultMember struct {
	VaultID          string    `json:"vault_id"`
	MemberUUID       string    `json:"member_uuid"`
	MemberPublicKey  []byte    `json:"member_public_key"`
	Role             Role      `json:"role"`
	WrappedDEK       []byte    `json:"wrapped_dek"`
	WrappedDEKNonce  []byte    `json:"wrapped_dek_nonce"`
	InviterPublicKey []byte    `json:"inviter_public_key"`
	InvitedAt        time.Time `json:"invited_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
}

// Secret is a row in the secrets table: an envelope-encrypted value plus
// its wrapped per-secret DEK and metadata (spec.md §3).
type Secret struct {
	SecretID          string    `json:"secret_id"`
	VaultID           string    `json:"vault_id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	PayloadNonce      []byte    `json:"payload_nonce"`
	PayloadCiphertext []byte    `json:"payload_ciphertext"`
	WrappedDEK        []byte    `json:"wrapped_dek"`
	WrappedDEKNonce   []byte    `json:"wrapped_dek_nonce"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SharedItem is a row in shared_items: a pending or completed share of a
// single secret from one identity to another.
//
// SharerPublicKey is a field this core adds beyond the distilled data
// model (spec.md §9 "shared_items has no sender-public-key field") so the
// canonical dh(my_secret, peer_public) wrap direction can be used for
// per-item sharing the same way it is used for vault membership: the
// recipient needs the sender's long-lived public key to recompute the
// same ECDH shared secret the sender used to wrap the DEK.
type SharedItem struct {
	ShareID           string     `json:"share_id"`
	SourceVaultID     string     `json:"source_vault_id"`
	SourceSecretID    string     `json:"source_secret_id"`
	SharerUUID        string     `json:"sharer_uuid"`
	SharerPublicKey   []byte     `json:"sharer_public_key"`
	RecipientUUID     string     `json:"recipient_uuid"`
	RecipientPublicKey []byte    `json:"recipient_public_key"`
	SecretName        string     `json:"secret_name"`
	PayloadNonce      []byte     `json:"payload_nonce"`
	PayloadCiphertext []byte     `json:"payload_ciphertext"`
	WrappedDEK        []byte     `json:"wrapped_dek"`
	WrappedDEKNonce   []byte     `json:"wrapped_dek_nonce"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ConsumedAt        *time.Time `json:"consumed_at,omitempty"`
}

// SyncConfig is the user's personal cloud-replication target, used by
// set_personal_sync_config/get_personal_sync_config and by the internal
// vault mapper to decide whether reserved names unify into one vault.
type SyncConfig struct {
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
}

// Identity is the on-disk identity file (spec.md §6.3): the user's
// long-lived X25519 keypair, wrapped under a KEK derived from either a
// password or an OS-keychain-cached secret, plus the indices the vault
// manager needs to rehydrate state at boot (sync config, the reserved
// vault alias map, and the list of user-created vault ids).
type Identity struct {
	UUID             string    `json:"uuid"`
	PublicKey        []byte    `json:"public_key"`
	WrappedSecretKey []byte    `json:"wrapped_secret_key"`
	WrappedNonce     []byte    `json:"wrapped_secret_key_nonce"`
	KDFSalt          []byte    `json:"kdf_salt"`
	CreatedAt        time.Time `json:"created_at"`

	// AutoUnlockWrappedSecretKey/Nonce hold a second, independent wrapping
	// of the same secret key under a KEK derived from an OS-keychain
	// cached secret, so enabling auto-unlock never disturbs the
	// password-derived wrapping above.
	AutoUnlockWrappedSecretKey []byte `json:"auto_unlock_wrapped_secret_key,omitempty"`
	AutoUnlockWrappedNonce     []byte `json:"auto_unlock_wrapped_secret_key_nonce,omitempty"`

	SyncConfig         SyncConfig        `json:"sync_config"`
	InternalVaultIndex map[string]string `json:"internal_vault_index,omitempty"`
	UserVaultIndex     []string          `json:"user_vault_index,omitempty"`
}
