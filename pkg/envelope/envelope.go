// Package envelope implements the two-level envelope-encryption engine
// described in spec.md §4.2: per-secret DEKs generated fresh for every
// secret, sealed under a vault's master DEK, with the sealed payload
// self-describing so it can be stored as a single opaque blob per row.
//
// The AEAD primitive itself (XChaCha20-Poly1305, nonce handling, key
// wrap/unwrap) lives in pkg/aead; this package is the semantic layer a
// vault actually calls: encrypt/decrypt a secret's plaintext bytes.
package envelope

import (
	"encoding/json"

	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
)

// Encrypt seals plaintext under a fresh per-secret DEK, itself wrapped
// under masterDEK. The result is JSON-serializable for storage in a
// secret row's ciphertext/wrapped_dek columns.
func Encrypt(masterDEK, plaintext []byte) (*aead.EncryptedPayload, error) {
	if len(masterDEK) != aead.KeySize {
		return nil, coreerr.InvalidKeyLength(aead.KeySize, len(masterDEK))
	}
	payload, err := aead.EncryptSecret(masterDEK, plaintext)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindEncryptionError, "encrypt_secret failed", err)
	}
	return payload, nil
}

// Decrypt is the inverse of Encrypt.
func Decrypt(masterDEK []byte, payload *aead.EncryptedPayload) ([]byte, error) {
	if len(masterDEK) != aead.KeySize {
		return nil, coreerr.InvalidKeyLength(aead.KeySize, len(masterDEK))
	}
	pt, err := aead.DecryptSecret(masterDEK, payload)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindDecryptionError, "decrypt_secret failed", err)
	}
	return pt, nil
}

// MarshalPayload/UnmarshalPayload convert an EncryptedPayload to/from a
// JSON document. The secrets table does not store this form: it keeps
// the payload nonce, payload ciphertext, wrapped DEK and wrapped-DEK
// nonce in separate columns.
func MarshalPayload(p *aead.EncryptedPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindSerializationError, "marshal encrypted payload", err)
	}
	return b, nil
}

func UnmarshalPayload(b []byte) (*aead.EncryptedPayload, error) {
	var p aead.EncryptedPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, coreerr.Wrap(coreerr.KindSerializationError, "unmarshal encrypted payload", err)
	}
	return &p, nil
}
