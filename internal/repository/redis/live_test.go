package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	redisdb "github.com/kailas-cloud/creditgate/internal/db/redis"
	"github.com/kailas-cloud/creditgate/internal/repository/repotest"
)

func TestConformance(t *testing.T) {
	addr := os.Getenv("CREDITGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CREDITGATE_TEST_REDIS_ADDR not set")
	}

	s, err := redisdb.NewStore(redisdb.Config{Addrs: []string{addr}})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Ping(context.Background()))

	repotest.Run(t, func(t *testing.T) repotest.Repository {
		// A fresh hash-tagged prefix isolates each test.
		return New(s, "{cgtest-"+uuid.NewString()+"}:")
	})
}
