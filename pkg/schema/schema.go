// Package schema defines the per-vault SQLite schema (spec.md §3, §4.3)
// and the pragmas a freshly opened vault database connection applies.
//
// Grounded on HerbHall-subnetree/internal/store/store.go (WAL pragmas,
// single-writer connection pool) and
// HerbHall-subnetree/internal/vault/migrations.go (DDL statement shape),
// adapted from that teacher's flat credential-vault model to the
// spec's four-table per-vault relational schema.
package schema

import (
	"context"
	"database/sql"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
)

// CurrentVersion is the schema version stamped into every freshly created
// vault_header row (spec.md §3 schema_version).
const CurrentVersion uint16 = 1

// pragmas applied to every opened vault connection. A single write
// connection avoids SQLITE_BUSY under WAL for the coarse-locking vault
// manager (spec.md §5 single mutex).
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS vault_header (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		vault_id TEXT NOT NULL,
		name TEXT NOT NULL,
		owner_uuid TEXT NOT NULL,
		vault_type TEXT NOT NULL DEFAULT 'private',
		wrapped_dek BLOB NOT NULL,
		wrapped_dek_nonce BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		schema_version INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS vault_members (
		vault_id TEXT NOT NULL,
		member_uuid TEXT NOT NULL,
		member_public_key BLOB NOT NULL,
		role TEXT NOT NULL,
		wrapped_dek BLOB NOT NULL,
		wrapped_dek_nonce BLOB NOT NULL,
		inviter_public_key BLOB NOT NULL,
		invited_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		accepted_at DATETIME,
		PRIMARY KEY (vault_id, member_uuid)
	)`,

	`CREATE TABLE IF NOT EXISTS secrets (
		secret_id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		payload_nonce BLOB NOT NULL,
		payload_ciphertext BLOB NOT NULL,
		wrapped_dek BLOB NOT NULL,
		wrapped_dek_nonce BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	// Not unique: spec.md §3 allows duplicate secret names within a
	// vault. The one caller that wants a single-row guarantee
	// (pkg/settings) enforces it itself via a find-before-create check.
	`CREATE INDEX IF NOT EXISTS idx_secrets_vault_name ON secrets(vault_id, name)`,

	`CREATE TABLE IF NOT EXISTS shared_items (
		share_id TEXT PRIMARY KEY,
		source_vault_id TEXT NOT NULL,
		source_secret_id TEXT NOT NULL,
		sharer_uuid TEXT NOT NULL,
		sharer_public_key BLOB NOT NULL,
		recipient_uuid TEXT NOT NULL,
		recipient_public_key BLOB NOT NULL,
		secret_name TEXT NOT NULL,
		payload_nonce BLOB NOT NULL,
		payload_ciphertext BLOB NOT NULL,
		wrapped_dek BLOB NOT NULL,
		wrapped_dek_nonce BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME,
		consumed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_shared_items_unique ON shared_items(source_secret_id, recipient_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_shared_items_recipient ON shared_items(recipient_uuid, consumed_at)`,
}

// Apply sets pragmas and creates the four vault tables if they do not
// already exist. Safe to call every time a vault database is opened.
func Apply(ctx context.Context, db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return coreerr.DatabaseError("apply pragma "+p, err)
		}
	}
	for _, stmt := range createStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return coreerr.DatabaseError("apply schema statement", err)
		}
	}
	return nil
}
