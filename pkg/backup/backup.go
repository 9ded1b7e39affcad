// Package backup implements the byte-exact export/import bundle format
// from spec.md §4.5: a self-describing, password-sealed snapshot of an
// identity and every vault it owns.
//
// The little-endian header-plus-sealed-blob shape follows the same
// "magic, version, salt, nonce, length-prefix, ciphertext" discipline
// other_examples/starius-barterbackup shows for password-encrypted
// archives, adapted to this core's XChaCha20-Poly1305/Argon2id/HKDF
// stack (pkg/kdf, pkg/aead) instead of that file's primitives.
package backup

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/kdf"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

const (
	magic          = "REACHBAK"
	formatVersion  = uint16(1)
	headerSize     = 8 + 2 + 32 + 24 + 4 // magic + version + salt + nonce + length
	saltSize       = 32
	nonceSize      = aead.NonceSize
)

// VaultBundle is one vault's full exported state: its header, every
// secret row verbatim, and every member row verbatim, per spec.md §4.5.
type VaultBundle struct {
	Header  models.VaultHeader   `json:"header"`
	Secrets []models.Secret      `json:"secrets"`
	Members []models.VaultMember `json:"members"`
}

// ExportBundle is the plaintext JSON payload sealed inside a backup file.
type ExportBundle struct {
	Identity models.Identity `json:"identity"`
	// SecretKey is the identity's raw X25519 secret key (spec.md §4.5:
	// "the identity record including the raw X25519 secret key"),
	// carried separately from Identity.WrappedSecretKey since the backup
	// codec's own AEAD layer is what protects it here, under the export
	// password rather than under whatever password last wrapped it on
	// disk.
	SecretKey    []byte                 `json:"secret_key"`
	Vaults       []VaultBundle          `json:"vaults"`
	SyncConfig   map[string]string      `json:"sync_config,omitempty"`
	VaultAliases map[string]string      `json:"vault_aliases,omitempty"`
	AppSettings  map[string]interface{} `json:"app_settings,omitempty"`
}

// Preview summarizes a bundle's contents without exposing secret
// material, for preview_bundle.
type Preview struct {
	IdentityUUID string
	VaultCount   int
	SecretCount  int
	MemberCount  int
}

// Seal encrypts bundle under a key derived from password and returns the
// complete backup file bytes.
func Seal(password string, bundle *ExportBundle) ([]byte, error) {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindSerializationError, "marshal export bundle", err)
	}

	salt, err := randomSalt()
	if err != nil {
		return nil, err
	}
	key, err := kdf.DeriveExportKey(password, salt)
	if err != nil {
		return nil, err
	}

	nonce, err := aead.NewNonce()
	if err != nil {
		return nil, err
	}
	ciphertext, err := aead.SealWithKey(key, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(ciphertext))
	out = append(out, []byte(magic)...)
	out = binary.LittleEndian.AppendUint16(out, formatVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(plaintext)))
	out = append(out, ciphertext...)
	return out, nil
}

// Unseal decrypts a backup file and returns the plaintext bundle.
func Unseal(password string, file []byte) (*ExportBundle, error) {
	salt, nonce, ciphertext, err := parseHeader(file)
	if err != nil {
		return nil, err
	}

	key, err := kdf.DeriveExportKey(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.OpenWithKey(key, nonce, ciphertext)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindDecryptionError, "invalid export password", err)
	}

	var bundle ExportBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, coreerr.Wrap(coreerr.KindSerializationError, "unmarshal export bundle", err)
	}
	return &bundle, nil
}

// PreviewFile decrypts file just far enough to report bundle metadata,
// without materializing any vault or committing an import.
func PreviewFile(password string, file []byte) (*Preview, error) {
	bundle, err := Unseal(password, file)
	if err != nil {
		return nil, err
	}
	secretCount, memberCount := 0, 0
	for _, v := range bundle.Vaults {
		secretCount += len(v.Secrets)
		memberCount += len(v.Members)
	}
	return &Preview{
		IdentityUUID: bundle.Identity.UUID,
		VaultCount:   len(bundle.Vaults),
		SecretCount:  secretCount,
		MemberCount:  memberCount,
	}, nil
}

func parseHeader(file []byte) (salt, nonce, ciphertext []byte, err error) {
	if len(file) < headerSize {
		return nil, nil, nil, coreerr.ErrInvalidExportFormat
	}
	if string(file[0:8]) != magic {
		return nil, nil, nil, coreerr.ErrInvalidExportFormat
	}
	version := binary.LittleEndian.Uint16(file[8:10])
	if version != formatVersion {
		return nil, nil, nil, coreerr.UnsupportedExportVersion(version)
	}
	salt = file[10:42]
	nonce = file[42:66]
	plaintextLen := binary.LittleEndian.Uint32(file[66:70])
	_ = plaintextLen // informational only, per spec.md §4.5
	ciphertext = file[70:]
	return salt, nonce, ciphertext, nil
}

func randomSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "generate export salt", err)
	}
	return salt, nil
}
