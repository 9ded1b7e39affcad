// Package aead wraps golang.org/x/crypto/chacha20poly1305 for the core's
// two uses: wrapping 32-byte keys and sealing secret payloads, per
// spec.md §4.2. Every encryption draws a fresh random 24-byte nonce from
// the OS CSPRNG; nonces are never reused or rederived.
package aead

import (
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
)

const (
	KeySize   = chacha20poly1305.KeySize    // 32
	NonceSize = chacha20poly1305.NonceSizeX // 24
)

// WrappedDek is a key sealed with XChaCha20-Poly1305 under a KEK or
// ECDH-derived wrap key.
type WrappedDek struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// EncryptedPayload is a self-contained secret ciphertext: a fresh
// per-secret DEK wrapped under the master DEK, plus the payload sealed
// under that per-secret DEK.
type EncryptedPayload struct {
	PayloadNonce      []byte `json:"payload_nonce"`
	PayloadCiphertext []byte `json:"payload_ciphertext"`
	WrappedDek        WrappedDek `json:"wrapped_dek"`
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, coreerr.InvalidKeyLength(KeySize, len(key))
	}
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "failed to construct xchacha20poly1305", err)
	}
	return a, nil
}

func randomNonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "failed to read random nonce", err)
	}
	return n, nil
}

// WrapDEK seals a 32-byte key under a 32-byte KEK.
func WrapDEK(kek, dek []byte) (*WrappedDek, error) {
	if len(dek) != KeySize {
		return nil, coreerr.InvalidKeyLength(KeySize, len(dek))
	}
	a, err := newAEAD(kek)
	if err != nil {
		return nil, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	ct := a.Seal(nil, nonce, dek, nil)
	return &WrappedDek{Nonce: nonce, Ciphertext: ct}, nil
}

// UnwrapDEK opens a WrappedDek under a 32-byte KEK. Fails with
// DecryptionError if the KEK does not match the one used to wrap.
func UnwrapDEK(kek []byte, w *WrappedDek) ([]byte, error) {
	if w == nil {
		return nil, coreerr.New(coreerr.KindDecryptionError, "", "nil wrapped key")
	}
	if len(w.Nonce) != NonceSize {
		return nil, coreerr.InvalidNonceLength(NonceSize, len(w.Nonce))
	}
	a, err := newAEAD(kek)
	if err != nil {
		return nil, err
	}
	pt, err := a.Open(nil, w.Nonce, w.Ciphertext, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindDecryptionError, "key unwrap failed", err)
	}
	if len(pt) != KeySize {
		return nil, coreerr.InvalidKeyLength(KeySize, len(pt))
	}
	return pt, nil
}

// WrapDEKWithKey and UnwrapDEKWithKey are the same primitive as
// WrapDEK/UnwrapDEK, named separately per spec.md §4.2 because sharing
// uses an ECDH-derived key rather than a password/identity KEK.
func WrapDEKWithKey(k32, dek []byte) (*WrappedDek, error)        { return WrapDEK(k32, dek) }
func UnwrapDEKWithKey(k32 []byte, w *WrappedDek) ([]byte, error) { return UnwrapDEK(k32, w) }

// NewNonce returns a fresh random 24-byte XChaCha20-Poly1305 nonce. Used
// by callers (such as the backup codec) that embed the nonce directly in
// their own file format rather than inside a WrappedDek.
func NewNonce() ([]byte, error) { return randomNonce() }

// SealWithKey seals plaintext under a 32-byte key and the given 24-byte
// nonce, with no DEK indirection. Used by the backup codec, which stores
// a single salt+nonce pair in its file header rather than a wrapped key.
func SealWithKey(key, nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, coreerr.InvalidNonceLength(NonceSize, len(nonce))
	}
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.Seal(nil, nonce, plaintext, nil), nil
}

// OpenWithKey is the inverse of SealWithKey.
func OpenWithKey(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, coreerr.InvalidNonceLength(NonceSize, len(nonce))
	}
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	pt, err := a.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindDecryptionError, "seal open failed", err)
	}
	return pt, nil
}

// EncryptSecret generates a fresh 32-byte DEK, seals plaintext under it,
// then wraps that DEK under masterDEK. The returned payload is
// self-contained.
func EncryptSecret(masterDEK, plaintext []byte) (*EncryptedPayload, error) {
	dek := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, coreerr.Wrap(coreerr.KindCryptoError, "failed to generate per-secret DEK", err)
	}
	defer func() {
		for i := range dek {
			dek[i] = 0
		}
	}()

	a, err := newAEAD(dek)
	if err != nil {
		return nil, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	ct := a.Seal(nil, nonce, plaintext, nil)

	wrapped, err := WrapDEK(masterDEK, dek)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindEncryptionError, "failed to wrap per-secret dek", err)
	}

	return &EncryptedPayload{
		PayloadNonce:      nonce,
		PayloadCiphertext: ct,
		WrappedDek:        *wrapped,
	}, nil
}

// DecryptSecret unwraps the per-secret DEK under masterDEK, then opens
// the payload ciphertext under that DEK.
func DecryptSecret(masterDEK []byte, payload *EncryptedPayload) ([]byte, error) {
	if payload == nil {
		return nil, coreerr.New(coreerr.KindDecryptionError, "", "nil payload")
	}
	dek, err := UnwrapDEK(masterDEK, &payload.WrappedDek)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range dek {
			dek[i] = 0
		}
	}()

	if len(payload.PayloadNonce) != NonceSize {
		return nil, coreerr.InvalidNonceLength(NonceSize, len(payload.PayloadNonce))
	}
	a, err := newAEAD(dek)
	if err != nil {
		return nil, err
	}
	pt, err := a.Open(nil, payload.PayloadNonce, payload.PayloadCiphertext, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindDecryptionError, "payload decryption failed", err)
	}
	return pt, nil
}
