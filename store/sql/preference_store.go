package sqlstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-loop-client/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PreferenceStore persists loop preferences in the loop_preferences table.
// With a SecretProvider every value is encrypted before it is written.
type PreferenceStore struct {
	db      *bun.DB
	repo    repository.Repository[*preferenceRecord]
	secrets core.SecretProvider
}

func NewPreferenceStore(db *bun.DB, secrets core.SecretProvider) (*PreferenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*preferenceRecord](db, preferenceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid preference repository wiring: %w", err)
		}
	}
	return &PreferenceStore{db: db, repo: repo, secrets: secrets}, nil
}

func (s *PreferenceStore) GetCharPref(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.repo == nil {
		return "", false, errNotConfigured()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, core.MissingParameterError("get_pref", "key")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("pref_key", "=", key),
		repository.OrderBy("updated_at DESC"),
	)
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return "", false, nil
	}
	value, err := s.open(ctx, records[0])
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *PreferenceStore) SetCharPref(ctx context.Context, key string, value string) error {
	if s == nil || s.db == nil {
		return errNotConfigured()
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.MissingParameterError("set_pref", "key")
	}
	stored, encrypted, err := s.seal(ctx, value)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &preferenceRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.pref_key = ?", key).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			record = &preferenceRecord{
				ID:        uuid.NewString(),
				Key:       key,
				Value:     stored,
				Encrypted: encrypted,
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		case err != nil:
			return err
		}
		record.Value = stored
		record.Encrypted = encrypted
		record.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
}

func (s *PreferenceStore) ClearPref(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errNotConfigured()
	}
	_, err := s.db.NewDelete().
		Model((*preferenceRecord)(nil)).
		Where("pref_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

// List returns every stored preference ordered by key.
func (s *PreferenceStore) List(ctx context.Context) ([]Preference, error) {
	if s == nil || s.repo == nil {
		return nil, errNotConfigured()
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("pref_key ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]Preference, 0, len(records))
	for _, record := range records {
		value, err := s.open(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, Preference{
			Key:       record.Key,
			Value:     value,
			Encrypted: record.Encrypted,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return out, nil
}

func (s *PreferenceStore) seal(ctx context.Context, value string) (string, bool, error) {
	if s.secrets == nil || value == "" {
		return value, false, nil
	}
	ciphertext, err := s.secrets.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", false, err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), true, nil
}

func (s *PreferenceStore) open(ctx context.Context, record *preferenceRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	if !record.Encrypted {
		return record.Value, nil
	}
	if s.secrets == nil {
		return "", goerrors.New("sqlstore: preference is encrypted but no secret provider is configured", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal).
			WithMetadata(map[string]any{"pref": record.Key})
	}
	ciphertext, err := base64.StdEncoding.DecodeString(record.Value)
	if err != nil {
		return "", fmt.Errorf("sqlstore: decode preference %q: %w", record.Key, err)
	}
	plaintext, err := s.secrets.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func errNotConfigured() error {
	return fmt.Errorf("sqlstore: preference store is not configured")
}
