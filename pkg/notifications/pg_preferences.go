package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackadvisor/advisorkit/pkg/pg"
)

// PGPreferenceStorage is the Postgres-backed PreferenceStorage. The row-level
// lock taken by SELECT ... FOR UPDATE inside the upsert transaction is the
// per-user serialization point that keeps concurrent partial updates from
// losing each other's fields.
type PGPreferenceStorage struct {
	pool *pgxpool.Pool
}

// NewPGPreferenceStorage creates a Postgres preference storage on the given pool.
func NewPGPreferenceStorage(pool *pgxpool.Pool) *PGPreferenceStorage {
	return &PGPreferenceStorage{pool: pool}
}

func (s *PGPreferenceStorage) Get(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = $1`,
		userID,
	)

	prefs, err := scanPreferences(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrPreferencesNotFound
		}
		return nil, wrapStorageErr("get_preferences", err)
	}
	return prefs, nil
}

func (s *PGPreferenceStorage) Upsert(ctx context.Context, userID string, update PreferencesUpdate) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, wrapStorageErr("upsert_preferences", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	now := time.Now()

	// FOR UPDATE on a missing row locks nothing, so two concurrent first
	// upserts could both start from defaults and the loser would clobber the
	// winner's fields. Seed the default row first; DO NOTHING waits out a
	// concurrent insert, after which the select below always has a row to
	// lock.
	def := DefaultPreferences(userID)
	def.CreatedAt = now
	def.UpdatedAt = now
	defKinds, err := json.Marshal(def.Kinds)
	if err != nil {
		return nil, fmt.Errorf("encode kinds: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO notification_preferences
			(user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING`,
		def.UserID, def.EmailEnabled, def.PushEnabled, defKinds,
		def.QuietHoursStart, def.QuietHoursEnd, def.Timezone,
		def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		return nil, wrapStorageErr("upsert_preferences", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = $1
		FOR UPDATE`,
		userID,
	)
	current, err := scanPreferences(row)
	if err != nil {
		return nil, wrapStorageErr("upsert_preferences", err)
	}

	update.Apply(current, now)
	if err := current.Validate(); err != nil {
		return nil, err
	}

	kinds, err := json.Marshal(current.Kinds)
	if err != nil {
		return nil, fmt.Errorf("encode kinds: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE notification_preferences SET
			email_enabled = $2,
			push_enabled = $3,
			kinds = $4,
			quiet_hours_start = $5,
			quiet_hours_end = $6,
			timezone = $7,
			updated_at = $8
		WHERE user_id = $1`,
		current.UserID, current.EmailEnabled, current.PushEnabled, kinds,
		current.QuietHoursStart, current.QuietHoursEnd, current.Timezone,
		current.UpdatedAt,
	)
	if err != nil {
		return nil, wrapStorageErr("upsert_preferences", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStorageErr("upsert_preferences", err)
	}
	return current, nil
}

func scanPreferences(row pgx.Row) (*Preferences, error) {
	var (
		prefs Preferences
		kinds []byte
	)
	err := row.Scan(
		&prefs.UserID, &prefs.EmailEnabled, &prefs.PushEnabled, &kinds,
		&prefs.QuietHoursStart, &prefs.QuietHoursEnd, &prefs.Timezone,
		&prefs.CreatedAt, &prefs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(kinds) > 0 {
		if err := json.Unmarshal(kinds, &prefs.Kinds); err != nil {
			return nil, fmt.Errorf("decode kinds: %w", err)
		}
	}
	return &prefs, nil
}
