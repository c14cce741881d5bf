package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pgdb "github.com/kailas-cloud/creditgate/internal/db/postgres"
	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/repository/repotest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, domain.ErrNotFound},
		{"wrapped record not found", fmt.Errorf("take: %w", gorm.ErrRecordNotFound), domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrAlreadyExists},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, domain.ErrNotFound},
		{"invalid uuid", &pgconn.PgError{Code: "22P02"}, domain.ErrNotFound},
		{"insufficient passes through", domain.ErrInsufficientCredits, domain.ErrInsufficientCredits},
		{"connection refused", errors.New("dial tcp: connection refused"), domain.ErrStorageUnavailable},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrStorageUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tc.err), tc.want)
		})
	}
	assert.NoError(t, classify("op", nil))
}

func TestAccountRow_WithoutBalance(t *testing.T) {
	row := accountRow{principalModel: principalModel{ID: "p1", Email: "a@b.c", IsActive: true}}
	a := row.toEntity()
	assert.False(t, a.HasBalance())
	assert.Equal(t, "p1", a.Principal().ID())

	credits, created := int64(4), int64(9)
	row.BalanceCredits, row.BalanceCreatedAt = &credits, &created
	a = row.toEntity()
	b, ok := a.Balance()
	require.True(t, ok)
	assert.Equal(t, int64(4), b.Credits())
	assert.Equal(t, int64(9), b.CreatedAt())
}

func TestConformance(t *testing.T) {
	dsn := os.Getenv("CREDITGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CREDITGATE_TEST_POSTGRES_DSN not set")
	}

	pg, err := pgdb.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	require.NoError(t, pg.Migrate())

	repotest.Run(t, func(t *testing.T) repotest.Repository {
		require.NoError(t, pg.DB.Exec("TRUNCATE balances, principals").Error)
		return New(pg.DB)
	})
}
