package vault

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, registered once per process

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/models"
)

// peekHeader opens path read-only just long enough to read its header
// row, used to recover a lost alias map by scanning the vaults
// directory (spec.md §4.8).
func peekHeader(path string) (*models.VaultHeader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, coreerr.DatabaseError("open vault database "+path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	return selectHeader(context.Background(), db)
}

func insertHeader(ctx context.Context, db *sql.DB, h models.VaultHeader) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vault_header (id, vault_id, name, owner_uuid, vault_type, wrapped_dek, wrapped_dek_nonce, created_at, schema_version)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.VaultID, h.Name, h.OwnerUUID, string(h.Type), h.WrappedDEK, h.WrappedNonce, h.CreatedAt, h.SchemaVersion)
	if err != nil {
		return coreerr.DatabaseError("insert vault_header", err)
	}
	return nil
}

func selectHeader(ctx context.Context, db *sql.DB) (*models.VaultHeader, error) {
	row := db.QueryRowContext(ctx, `
		SELECT vault_id, name, owner_uuid, vault_type, wrapped_dek, wrapped_dek_nonce, created_at, schema_version
		FROM vault_header WHERE id = 1`)
	var h models.VaultHeader
	var vtype string
	if err := row.Scan(&h.VaultID, &h.Name, &h.OwnerUUID, &vtype, &h.WrappedDEK, &h.WrappedNonce, &h.CreatedAt, &h.SchemaVersion); err != nil {
		if err == sql.ErrNoRows {
			return nil, coreerr.New(coreerr.KindDatabaseError, "", "vault has no header row")
		}
		return nil, coreerr.DatabaseError("select vault_header", err)
	}
	h.Type = models.VaultType(vtype)
	return &h, nil
}

func countSecrets(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, coreerr.DatabaseError("count secrets", err)
	}
	return n, nil
}

func insertSecret(ctx context.Context, db *sql.DB, s models.Secret) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO secrets (secret_id, vault_id, name, category, payload_nonce, payload_ciphertext, wrapped_dek, wrapped_dek_nonce, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SecretID, s.VaultID, s.Name, s.Category, s.PayloadNonce, s.PayloadCiphertext, s.WrappedDEK, s.WrappedDEKNonce, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return coreerr.DatabaseError("insert secret", err)
	}
	return nil
}

func selectSecret(ctx context.Context, db *sql.DB, id string) (*models.Secret, error) {
	row := db.QueryRowContext(ctx, `
		SELECT secret_id, vault_id, name, category, payload_nonce, payload_ciphertext, wrapped_dek, wrapped_dek_nonce, created_at, updated_at
		FROM secrets WHERE secret_id = ?`, id)
	var s models.Secret
	if err := row.Scan(&s.SecretID, &s.VaultID, &s.Name, &s.Category, &s.PayloadNonce, &s.PayloadCiphertext, &s.WrappedDEK, &s.WrappedDEKNonce, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, coreerr.SecretNotFound(id)
		}
		return nil, coreerr.DatabaseError("select secret", err)
	}
	return &s, nil
}

func updateSecretRow(ctx context.Context, db *sql.DB, s models.Secret) error {
	res, err := db.ExecContext(ctx, `
		UPDATE secrets SET payload_nonce = ?, payload_ciphertext = ?, wrapped_dek = ?, wrapped_dek_nonce = ?, updated_at = ?
		WHERE secret_id = ?`,
		s.PayloadNonce, s.PayloadCiphertext, s.WrappedDEK, s.WrappedDEKNonce, s.UpdatedAt, s.SecretID)
	if err != nil {
		return coreerr.DatabaseError("update secret", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.SecretNotFound(s.SecretID)
	}
	return nil
}

func deleteSecretRow(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM secrets WHERE secret_id = ?`, id)
	if err != nil {
		return coreerr.DatabaseError("delete secret", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.SecretNotFound(id)
	}
	return nil
}

// secretMeta is a row of listSecrets output; it never carries ciphertext.
type secretMeta struct {
	ID        string
	Name      string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func listSecretRows(ctx context.Context, db *sql.DB) ([]secretMeta, error) {
	rows, err := db.QueryContext(ctx, `SELECT secret_id, name, category, created_at, updated_at FROM secrets ORDER BY created_at ASC`)
	if err != nil {
		return nil, coreerr.DatabaseError("list secrets", err)
	}
	defer rows.Close()
	var out []secretMeta
	for rows.Next() {
		var sm secretMeta
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Category, &sm.CreatedAt, &sm.UpdatedAt); err != nil {
			return nil, coreerr.DatabaseError("scan secret row", err)
		}
		out = append(out, sm)
	}
	return out, nil
}

func insertMember(ctx context.Context, db *sql.DB, mem models.VaultMember) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vault_members (vault_id, member_uuid, member_public_key, role, wrapped_dek, wrapped_dek_nonce, inviter_public_key, invited_at, accepted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.VaultID, mem.MemberUUID, mem.MemberPublicKey, string(mem.Role), mem.WrappedDEK, mem.WrappedDEKNonce, mem.InviterPublicKey, mem.InvitedAt, mem.AcceptedAt)
	if err != nil {
		return coreerr.DatabaseError("insert vault_members", err)
	}
	return nil
}

func selectMember(ctx context.Context, db *sql.DB, memberUUID string) (*models.VaultMember, error) {
	row := db.QueryRowContext(ctx, `
		SELECT vault_id, member_uuid, member_public_key, role, wrapped_dek, wrapped_dek_nonce, inviter_public_key, invited_at, accepted_at
		FROM vault_members WHERE member_uuid = ?`, memberUUID)
	var mem models.VaultMember
	var role string
	if err := row.Scan(&mem.VaultID, &mem.MemberUUID, &mem.MemberPublicKey, &role, &mem.WrappedDEK, &mem.WrappedDEKNonce, &mem.InviterPublicKey, &mem.InvitedAt, &mem.AcceptedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, coreerr.MemberNotFound(memberUUID)
		}
		return nil, coreerr.DatabaseError("select vault_members", err)
	}
	mem.Role = models.Role(role)
	return &mem, nil
}

func listMemberRows(ctx context.Context, db *sql.DB) ([]models.VaultMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT vault_id, member_uuid, member_public_key, role, wrapped_dek, wrapped_dek_nonce, inviter_public_key, invited_at, accepted_at
		FROM vault_members ORDER BY invited_at ASC`)
	if err != nil {
		return nil, coreerr.DatabaseError("list vault_members", err)
	}
	defer rows.Close()
	var out []models.VaultMember
	for rows.Next() {
		var mem models.VaultMember
		var role string
		if err := rows.Scan(&mem.VaultID, &mem.MemberUUID, &mem.MemberPublicKey, &role, &mem.WrappedDEK, &mem.WrappedDEKNonce, &mem.InviterPublicKey, &mem.InvitedAt, &mem.AcceptedAt); err != nil {
			return nil, coreerr.DatabaseError("scan vault_members row", err)
		}
		mem.Role = models.Role(role)
		out = append(out, mem)
	}
	return out, nil
}

func deleteMemberRow(ctx context.Context, db *sql.DB, memberUUID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM vault_members WHERE member_uuid = ?`, memberUUID)
	if err != nil {
		return coreerr.DatabaseError("delete vault_members", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coreerr.MemberNotFound(memberUUID)
	}
	return nil
}

func markMemberAccepted(ctx context.Context, db *sql.DB, memberUUID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE vault_members SET accepted_at = ? WHERE member_uuid = ?`, at, memberUUID)
	if err != nil {
		return coreerr.DatabaseError("accept vault_members", err)
	}
	return nil
}

func insertSharedItem(ctx context.Context, db *sql.DB, s models.SharedItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO shared_items (share_id, source_vault_id, source_secret_id, sharer_uuid, sharer_public_key,
			recipient_uuid, recipient_public_key, secret_name, payload_nonce, payload_ciphertext,
			wrapped_dek, wrapped_dek_nonce, created_at, expires_at, consumed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ShareID, s.SourceVaultID, s.SourceSecretID, s.SharerUUID, s.SharerPublicKey,
		s.RecipientUUID, s.RecipientPublicKey, s.SecretName, s.PayloadNonce, s.PayloadCiphertext,
		s.WrappedDEK, s.WrappedDEKNonce, s.CreatedAt, s.ExpiresAt, s.ConsumedAt)
	if err != nil {
		return coreerr.DatabaseError("insert shared_items", err)
	}
	return nil
}

func selectSharedItem(ctx context.Context, db *sql.DB, shareID string) (*models.SharedItem, error) {
	row := db.QueryRowContext(ctx, `
		SELECT share_id, source_vault_id, source_secret_id, sharer_uuid, sharer_public_key,
			recipient_uuid, recipient_public_key, secret_name, payload_nonce, payload_ciphertext,
			wrapped_dek, wrapped_dek_nonce, created_at, expires_at, consumed_at
		FROM shared_items WHERE share_id = ?`, shareID)
	var s models.SharedItem
	if err := row.Scan(&s.ShareID, &s.SourceVaultID, &s.SourceSecretID, &s.SharerUUID, &s.SharerPublicKey,
		&s.RecipientUUID, &s.RecipientPublicKey, &s.SecretName, &s.PayloadNonce, &s.PayloadCiphertext,
		&s.WrappedDEK, &s.WrappedDEKNonce, &s.CreatedAt, &s.ExpiresAt, &s.ConsumedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, coreerr.New(coreerr.KindNotFound, shareID, "shared item not found")
		}
		return nil, coreerr.DatabaseError("select shared_items", err)
	}
	return &s, nil
}

func listSharedItemsForRecipient(ctx context.Context, db *sql.DB, recipientUUID string) ([]models.SharedItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT share_id, source_vault_id, source_secret_id, sharer_uuid, sharer_public_key,
			recipient_uuid, recipient_public_key, secret_name, payload_nonce, payload_ciphertext,
			wrapped_dek, wrapped_dek_nonce, created_at, expires_at, consumed_at
		FROM shared_items WHERE recipient_uuid = ? AND consumed_at IS NULL ORDER BY created_at ASC`, recipientUUID)
	if err != nil {
		return nil, coreerr.DatabaseError("list shared_items", err)
	}
	defer rows.Close()
	var out []models.SharedItem
	for rows.Next() {
		var s models.SharedItem
		if err := rows.Scan(&s.ShareID, &s.SourceVaultID, &s.SourceSecretID, &s.SharerUUID, &s.SharerPublicKey,
			&s.RecipientUUID, &s.RecipientPublicKey, &s.SecretName, &s.PayloadNonce, &s.PayloadCiphertext,
			&s.WrappedDEK, &s.WrappedDEKNonce, &s.CreatedAt, &s.ExpiresAt, &s.ConsumedAt); err != nil {
			return nil, coreerr.DatabaseError("scan shared_items row", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func deleteSharedItemRow(ctx context.Context, db *sql.DB, shareID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM shared_items WHERE share_id = ?`, shareID)
	if err != nil {
		return coreerr.DatabaseError("delete shared_items", err)
	}
	return nil
}
