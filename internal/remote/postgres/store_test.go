package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"saldo/internal/remote/remotetest"
)

// Set SALDO_TEST_POSTGRES_URL to a disposable database to run these.
func TestStore(t *testing.T) {
	url := os.Getenv("SALDO_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SALDO_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `TRUNCATE months, shares`)
	require.NoError(t, err)

	remotetest.Run(t, s)
}
