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

// PGStorage is the Postgres-backed Storage implementation. The
// notifications table is keyed by id with a (user_id, created_at DESC,
// id DESC) index for listing and a partial index on unread rows so
// CountUnread never scans read history.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a Postgres notification storage on the given pool.
// The schema is managed by the migrations directory, not by this type.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// wrapStorageErr classifies a backend failure for the caller's retry decision.
func wrapStorageErr(op string, err error) error {
	if pg.IsTransientError(err) {
		return NewTransientStorageError(op, err)
	}
	return NewStorageError(op, err)
}

func (s *PGStorage) Create(ctx context.Context, notif Notification) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		notif.ID, notif.UserID, string(notif.Kind), int(notif.Priority),
		notif.Title, notif.Message, payload,
		notif.Read, notif.ReadAt, notif.CreatedAt, notif.UpdatedAt, notif.ExpiresAt,
	)
	if err != nil {
		return wrapStorageErr("create", err)
	}
	return nil
}

func (s *PGStorage) Get(ctx context.Context, userID, notifID string) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at
		FROM notifications
		WHERE user_id = $1 AND id = $2`,
		userID, notifID,
	)

	notif, err := scanNotification(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotificationNotFound
		}
		return nil, wrapStorageErr("get", err)
	}
	return notif, nil
}

func (s *PGStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, kind, priority, title, message, payload, read, read_at, created_at, updated_at, expires_at
		FROM notifications
		WHERE user_id = $1`
	args := []any{userID}

	if opts.OnlyUnread {
		query += ` AND read = FALSE`
	}
	if opts.ActiveOnly {
		query += ` AND (expires_at IS NULL OR expires_at > now())`
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		query += fmt.Sprintf(` AND kind = ANY($%d)`, len(args))
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("list", err)
	}
	defer rows.Close()

	notifs := []Notification{}
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, wrapStorageErr("list", err)
		}
		notifs = append(notifs, *notif)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("list", err)
	}
	return notifs, nil
}

func (s *PGStorage) MarkRead(ctx context.Context, userID string, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	// The read = FALSE guard makes the latch one-way and the call idempotent.
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = now(), updated_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND read = FALSE`,
		userID, notifIDs,
	)
	if err != nil {
		return wrapStorageErr("mark_read", err)
	}
	return nil
}

func (s *PGStorage) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = now(), updated_at = now()
		WHERE user_id = $1 AND read = FALSE`,
		userID,
	)
	if err != nil {
		return wrapStorageErr("mark_all_read", err)
	}
	return nil
}

func (s *PGStorage) Delete(ctx context.Context, userID string, notifIDs ...string) error {
	if len(notifIDs) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE user_id = $1 AND id = ANY($2)`,
		userID, notifIDs,
	)
	if err != nil {
		return wrapStorageErr("delete", err)
	}
	return nil
}

func (s *PGStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, wrapStorageErr("count_unread", err)
	}
	return count, nil
}

func (s *PGStorage) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, wrapStorageErr("delete_expired", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		notif    Notification
		kind     string
		priority int
		payload  []byte
	)
	err := row.Scan(
		&notif.ID, &notif.UserID, &kind, &priority,
		&notif.Title, &notif.Message, &payload,
		&notif.Read, &notif.ReadAt, &notif.CreatedAt, &notif.UpdatedAt, &notif.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	notif.Kind = Kind(kind)
	notif.Priority = Priority(priority)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &notif.Data); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &notif, nil
}
