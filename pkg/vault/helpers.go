package vault

import (
	"github.com/alexandrosnt/Reach-sub000/internal/logger"
	"github.com/alexandrosnt/Reach-sub000/pkg/aead"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
	"github.com/alexandrosnt/Reach-sub000/pkg/secure"
)

func secureWipe(b []byte) { secure.Wipe(b) }

func payloadFromRow(s *models.Secret) *aead.EncryptedPayload {
	return &aead.EncryptedPayload{
		PayloadNonce:      s.PayloadNonce,
		PayloadCiphertext: s.PayloadCiphertext,
		WrappedDek:        aead.WrappedDek{Nonce: s.WrappedDEKNonce, Ciphertext: s.WrappedDEK},
	}
}

// logSyncFailure records a swallowed sync error. Sync failures never
// fail the caller's mutation (spec.md §4.7, §7): the local write is
// authoritative.
func logSyncFailure(vaultID string, err error) {
	logger.Warn("vault_sync_failed", "vault_id", vaultID, "error", err.Error())
}
