// Package settings implements the app settings façade of spec.md §4.9: a
// single JSON document stored as one secret (name "app_settings") inside
// the reserved settings vault, plus a typed convenience pair for the
// Turso fields callers reach for most often.
package settings

import (
	"context"
	"encoding/json"

	"github.com/alexandrosnt/Reach-sub000/pkg/coreerr"
	"github.com/alexandrosnt/Reach-sub000/pkg/vault"
)

const secretName = "app_settings"

// TursoConfig is the convenience pair spec.md §4.9 names explicitly.
type TursoConfig struct {
	Org   string `json:"org,omitempty"`
	Token string `json:"token,omitempty"`
}

// AppSettings is the single JSON document persisted in the settings
// vault. Extra carries forward fields this core does not interpret, so
// round-tripping through Save never drops unrecognized keys.
type AppSettings struct {
	Turso TursoConfig            `json:"turso,omitempty"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Default returns a zero-value document, used by Get when the settings
// vault is unavailable (spec.md §4.9: "returns a default-constructed
// document when the vault is unavailable").
func Default() AppSettings {
	return AppSettings{}
}

// Store reads/writes the settings document through an already-unlocked
// settings vault. Callers (pkg/core) are responsible for resolving
// settingsVaultID via vault.Manager.EnsureInternalVaults and unlocking it
// before constructing a Store.
type Store struct {
	manager         *vault.Manager
	settingsVaultID string
}

func New(manager *vault.Manager, settingsVaultID string) *Store {
	return &Store{manager: manager, settingsVaultID: settingsVaultID}
}

// Get returns the current settings document, or a default-constructed
// one if the settings vault is locked, missing, or holds no document
// yet.
func (s *Store) Get(ctx context.Context) AppSettings {
	id, ok := s.findSecretID(ctx)
	if !ok {
		return Default()
	}
	raw, err := s.manager.ReadSecret(ctx, s.settingsVaultID, id)
	if err != nil {
		return Default()
	}
	var doc AppSettings
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Default()
	}
	return doc
}

// Save persists doc as the settings document. It refuses if the
// settings vault is not unlocked (spec.md §4.9: "save_settings refuses
// to create a document if the vault is not unlocked").
func (s *Store) Save(ctx context.Context, doc AppSettings) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return coreerr.Wrap(coreerr.KindSerializationError, "marshal app settings", err)
	}

	if id, ok := s.findSecretID(ctx); ok {
		return s.manager.UpdateSecret(ctx, s.settingsVaultID, id, raw)
	}
	_, err = s.manager.CreateSecret(ctx, s.settingsVaultID, secretName, "settings", raw)
	return err
}

// GetTursoConfig/SetTursoConfig are the named convenience pair of
// spec.md §4.9. Either field may be left unset on SetTursoConfig by
// passing nil, in which case the previous value is preserved.
func (s *Store) GetTursoConfig(ctx context.Context) TursoConfig {
	return s.Get(ctx).Turso
}

func (s *Store) SetTursoConfig(ctx context.Context, org, token *string) error {
	doc := s.Get(ctx)
	if org != nil {
		doc.Turso.Org = *org
	}
	if token != nil {
		doc.Turso.Token = *token
	}
	return s.Save(ctx, doc)
}

func (s *Store) findSecretID(ctx context.Context) (string, bool) {
	metas, err := s.manager.ListSecrets(ctx, s.settingsVaultID)
	if err != nil {
		return "", false
	}
	for _, meta := range metas {
		if meta.Name == secretName {
			return meta.ID, true
		}
	}
	return "", false
}
