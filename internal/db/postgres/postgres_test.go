package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_EmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")
}

func TestClose_Nil(t *testing.T) {
	var p *Postgres
	assert.NoError(t, p.Close())
}

func TestMigrate_Live(t *testing.T) {
	dsn := os.Getenv("CREDITGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CREDITGATE_TEST_POSTGRES_DSN not set")
	}

	p, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Migrate())
	require.NoError(t, p.Migrate())
	require.NoError(t, p.Ping(context.Background()))

	var n int64
	require.NoError(t, p.DB.Raw(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('principals', 'balances')",
	).Scan(&n).Error)
	assert.Equal(t, int64(2), n)
}
