// Package kdf derives 32-byte keys from a password or from an X25519
// secret key, per spec.md §4.1. Parameters are part of the on-disk
// contract (spec.md §9 "no silent parameter drift") and must not change
// without a file-format version bump.
package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
)

const (
	KeyLen = 32

	// Identity KEK derivation (password unlock of the identity file).
	IdentityArgonTime    uint32 = 3
	IdentityArgonMemory  uint32 = 64 * 1024 // 64 MiB
	IdentityArgonThreads uint8  = 4

	// Export/backup derivation (spec.md §4.5) uses stronger parameters
	// and is a distinct named constant set so the two never drift
	// together by accident.
	ExportArgonTime    uint32 = 4
	ExportArgonMemory  uint32 = 262144 // 256 MiB
	ExportArgonThreads uint8  = 4

	hkdfKekInfo        = "reach-vault-kek"
	hkdfOwnerKekInfo   = "reach-vault-owner-kek"
)

// DeriveKEKFromPassword derives a 32-byte KEK from a password and 32-byte
// salt using Argon2id with the identity parameters (m=64MiB, t=3, p=4).
func DeriveKEKFromPassword(password string, salt []byte) ([]byte, error) {
	if len(salt) != 32 {
		return nil, coreerr.New(coreerr.KindKdfError, "", "salt must be 32 bytes")
	}
	if password == "" {
		return nil, coreerr.New(coreerr.KindKdfError, "", "password must not be empty")
	}
	return argon2.IDKey([]byte(password), salt, IdentityArgonTime, IdentityArgonMemory, IdentityArgonThreads, KeyLen), nil
}

// DeriveKEKFromSecret derives a 32-byte KEK from a raw X25519 secret key
// using HKDF-SHA256 with the given salt and the fixed domain-separation
// info string "reach-vault-kek".
func DeriveKEKFromSecret(secret32, salt []byte) ([]byte, error) {
	if len(secret32) != KeyLen {
		return nil, coreerr.InvalidKeyLength(KeyLen, len(secret32))
	}
	if len(salt) != 32 {
		return nil, coreerr.New(coreerr.KindKdfError, "", "salt must be 32 bytes")
	}
	r := hkdf.New(sha256.New, secret32, salt, []byte(hkdfKekInfo))
	out := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, coreerr.Wrap(coreerr.KindKdfError, "hkdf expand failed", err)
	}
	return out, nil
}

// DeriveVaultOwnerKEK derives the key every vault this identity owns has
// its master DEK wrapped under. It is a function of the identity's
// stable X25519 secret key rather than of whichever method (password or
// auto-unlock) produced that secret key this session, so the same
// vaults stay unlockable regardless of unlock path.
func DeriveVaultOwnerKEK(secret32, salt []byte) ([]byte, error) {
	if len(secret32) != KeyLen {
		return nil, coreerr.InvalidKeyLength(KeyLen, len(secret32))
	}
	if len(salt) != 32 {
		return nil, coreerr.New(coreerr.KindKdfError, "", "salt must be 32 bytes")
	}
	r := hkdf.New(sha256.New, secret32, salt, []byte(hkdfOwnerKekInfo))
	out := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, coreerr.Wrap(coreerr.KindKdfError, "hkdf expand failed", err)
	}
	return out, nil
}

// DeriveExportKey runs password-based Argon2id with the export parameters
// (m=256MiB, t=4, p=4) and domain-separates the output through
// HKDF-SHA256 with info="reach-export-v1", per spec.md §4.5.
func DeriveExportKey(password string, salt []byte) ([]byte, error) {
	if len(password) < 8 {
		return nil, coreerr.New(coreerr.KindEncryptionError, "", "export password must be at least 8 characters")
	}
	if len(salt) != 32 {
		return nil, coreerr.New(coreerr.KindKdfError, "", "salt must be 32 bytes")
	}
	raw := argon2.IDKey([]byte(password), salt, ExportArgonTime, ExportArgonMemory, ExportArgonThreads, KeyLen)
	r := hkdf.New(sha256.New, raw, nil, []byte("reach-export-v1"))
	out := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, coreerr.Wrap(coreerr.KindKdfError, "hkdf expand failed", err)
	}
	return out, nil
}

// DeriveWithInfo is a generic HKDF-SHA256 expansion used by the sharing
// primitives (spec.md §4.4) to turn an ECDH shared secret into a
// symmetric wrap key with a purpose-specific info string.
func DeriveWithInfo(ikm, salt []byte, info string, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, []byte(info))
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, coreerr.Wrap(coreerr.KindKdfError, fmt.Sprintf("hkdf expand failed for info=%s", info), err)
	}
	return out, nil
}
