package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage and PreferenceStorage on a local SQLite
// database. Meant for single-binary deployments and integration tests where
// Postgres is not worth the operational cost. SQLite serializes writers
// globally, which subsumes the per-user serialization the preference upsert
// requires.
//
// Timestamps are stored as unix nanoseconds so ordering never depends on
// string formats.
type SQLiteStorage struct {
	db *sqlx.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 1,
	title TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	read INTEGER NOT NULL DEFAULT 0,
	read_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications (user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
	ON notifications (user_id) WHERE read = 0;

CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id TEXT PRIMARY KEY,
	email_enabled INTEGER NOT NULL DEFAULT 1,
	push_enabled INTEGER NOT NULL DEFAULT 1,
	kinds TEXT NOT NULL DEFAULT '{}',
	quiet_hours_start TEXT NOT NULL DEFAULT '',
	quiet_hours_end TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteStorage opens (or creates) a SQLite database at dbPath, enables
// WAL mode, and ensures the schema exists.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps readers unblocked while a writer commits.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return NewStorageError("create", ErrNotificationNotFound)
	}
	if err := notif.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = now
	}
	if notif.UpdatedAt.IsZero() {
		notif.UpdatedAt = notif.CreatedAt
	}

	payload, err := json.Marshal(notif.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		notif.ID, notif.UserID, string(notif.Kind), int(notif.Priority),
		notif.Title, notif.Message, string(payload),
		boolToInt(notif.Read), timePtrToNanos(notif.ReadAt),
		notif.CreatedAt.UnixNano(), notif.UpdatedAt.UnixNano(), timePtrToNanos(notif.ExpiresAt),
	)
	if err != nil {
		return NewStorageError("create", err)
	}
	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, userID, notifID string) (*Notification, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at
		FROM notifications
		WHERE user_id = ? AND id = ?`,
		userID, notifID,
	)

	notif, err := scanSQLiteNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, NewStorageError("get", err)
	}
	return notif, nil
}

func (s *SQLiteStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at
		FROM notifications
		WHERE user_id = ?`
	args := []any{userID}

	if opts.OnlyUnread {
		query += ` AND read = 0`
	}
	if opts.ActiveOnly {
		args = append(args, time.Now().UnixNano())
		query += ` AND (expires_at IS NULL OR expires_at > ?)`
	}
	if len(opts.Kinds) > 0 {
		placeholders := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		query += ` AND kind IN (` + strings.Join(placeholders, ", ") + `)`
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += ` LIMIT ?`
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += ` OFFSET ?`
		}
	} else if opts.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unlimited.
		args = append(args, -1, opts.Offset)
		query += ` LIMIT ? OFFSET ?`
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("list", err)
	}
	defer rows.Close()

	notifs := []Notification{}
	for rows.Next() {
		notif, err := scanSQLiteNotification(rows)
		if err != nil {
			return nil, NewStorageError("list", err)
		}
		notifs = append(notifs, *notif)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("list", err)
	}
	return notifs, nil
}

func (s *SQLiteStorage) MarkRead(ctx context.Context, userID string, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(notifIDs))
	args := []any{time.Now().UnixNano(), userID}
	for i, id := range notifIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET read = 1, read_at = ?1, updated_at = ?1
		WHERE user_id = ?2 AND read = 0 AND id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return NewStorageError("mark_read", err)
	}
	return nil
}

func (s *SQLiteStorage) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET read = 1, read_at = ?1, updated_at = ?1
		WHERE user_id = ?2 AND read = 0`,
		time.Now().UnixNano(), userID,
	)
	if err != nil {
		return NewStorageError("mark_all_read", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, userID string, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(notifIDs))
	args := []any{userID}
	for i, id := range notifIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE user_id = ? AND id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return NewStorageError("delete", err)
	}
	return nil
}

func (s *SQLiteStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM notifications
		WHERE user_id = ? AND read = 0`,
		userID,
	)
	if err != nil {
		return 0, NewStorageError("count_unread", err)
	}
	return count, nil
}

func (s *SQLiteStorage) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE expires_at IS NOT NULL AND expires_at < ?`,
		before.UnixNano(),
	)
	if err != nil {
		return 0, NewStorageError("delete_expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("delete_expired", err)
	}
	return int(n), nil
}

// Prefs returns the PreferenceStorage view of this database.
func (s *SQLiteStorage) Prefs() PreferenceStorage {
	return &sqlitePreferences{db: s.db}
}

type sqlitePreferences struct {
	db *sqlx.DB
}

func (s *sqlitePreferences) Get(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	row := s.db.QueryRowxContext(ctx, `
		SELECT user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = ?`,
		userID,
	)

	prefs, err := scanSQLitePreferences(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, NewStorageError("get_preferences", err)
	}
	return prefs, nil
}

func (s *sqlitePreferences) Upsert(ctx context.Context, userID string, update PreferencesUpdate) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("upsert_preferences", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := time.Now()

	row := tx.QueryRowxContext(ctx, `
		SELECT user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = ?`,
		userID,
	)
	current, err := scanSQLitePreferences(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, NewStorageError("upsert_preferences", err)
		}
		def := DefaultPreferences(userID)
		def.CreatedAt = now
		current = &def
	}

	update.Apply(current, now)
	if err := current.Validate(); err != nil {
		return nil, err
	}

	kinds, err := json.Marshal(current.Kinds)
	if err != nil {
		return nil, fmt.Errorf("encode kinds: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_preferences
			(user_id, email_enabled, push_enabled, kinds, quiet_hours_start, quiet_hours_end, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = excluded.email_enabled,
			push_enabled = excluded.push_enabled,
			kinds = excluded.kinds,
			quiet_hours_start = excluded.quiet_hours_start,
			quiet_hours_end = excluded.quiet_hours_end,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		current.UserID, boolToInt(current.EmailEnabled), boolToInt(current.PushEnabled), string(kinds),
		current.QuietHoursStart, current.QuietHoursEnd, current.Timezone,
		current.CreatedAt.UnixNano(), current.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, NewStorageError("upsert_preferences", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("upsert_preferences", err)
	}
	return current, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteNotification(row rowScanner) (*Notification, error) {
	var (
		notif     Notification
		kind      string
		priority  int
		payload   string
		read      int
		readAt    sql.NullInt64
		createdAt int64
		updatedAt int64
		expiresAt sql.NullInt64
	)
	err := row.Scan(
		&notif.ID, &notif.UserID, &kind, &priority,
		&notif.Title, &notif.Message, &payload,
		&read, &readAt, &createdAt, &updatedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	notif.Kind = Kind(kind)
	notif.Priority = Priority(priority)
	notif.Read = read != 0
	notif.ReadAt = nanosToTimePtr(readAt)
	notif.CreatedAt = time.Unix(0, createdAt)
	notif.UpdatedAt = time.Unix(0, updatedAt)
	notif.ExpiresAt = nanosToTimePtr(expiresAt)
	if payload != "" && payload != "{}" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &notif.Data); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &notif, nil
}

func scanSQLitePreferences(row rowScanner) (*Preferences, error) {
	var (
		prefs     Preferences
		email     int
		push      int
		kinds     string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&prefs.UserID, &email, &push, &kinds,
		&prefs.QuietHoursStart, &prefs.QuietHoursEnd, &prefs.Timezone,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	prefs.EmailEnabled = email != 0
	prefs.PushEnabled = push != 0
	prefs.CreatedAt = time.Unix(0, createdAt)
	prefs.UpdatedAt = time.Unix(0, updatedAt)
	if kinds != "" && kinds != "null" {
		if err := json.Unmarshal([]byte(kinds), &prefs.Kinds); err != nil {
			return nil, fmt.Errorf("decode kinds: %w", err)
		}
	}
	return &prefs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nanosToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}
