package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	malformed := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	other := &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"malformed uuid", malformed, ErrNotFound},
		{"wrapped malformed uuid", fmt.Errorf("query: %w", malformed), ErrNotFound},
		{"other postgres error", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(notFound(tt.err), tt.want))
		})
	}
}

func TestRequireAffected(t *testing.T) {
	assert.ErrorIs(t, requireAffected(pgconn.NewCommandTag("DELETE 0"), nil), ErrNotFound)
	assert.NoError(t, requireAffected(pgconn.NewCommandTag("DELETE 1"), nil))
	assert.ErrorIs(t, requireAffected(pgconn.CommandTag{}, &pgconn.PgError{Code: "22P02"}), ErrNotFound)
}
