package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	pgpkg "github.com/stackadvisor/advisorkit/pkg/pg"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.False(t, pgpkg.IsNotFoundError(nil))
	assert.False(t, pgpkg.IsNotFoundError(errors.New("boom")))
	assert.True(t, pgpkg.IsNotFoundError(pgx.ErrNoRows))
	assert.True(t, pgpkg.IsNotFoundError(fmt.Errorf("query user: %w", pgx.ErrNoRows)))
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Parallel()

	assert.False(t, pgpkg.IsDuplicateKeyError(nil))
	assert.False(t, pgpkg.IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, pgpkg.IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, pgpkg.IsDuplicateKeyError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
}

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "connection failure class", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "insufficient resources class", err: &pgconn.PgError{Code: "53300"}, want: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "unique violation is permanent", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "wrapped transient", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "08000"}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pgpkg.IsTransientError(tt.err))
		})
	}
}
