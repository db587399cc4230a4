package postgresdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/db/storagetest"
)

const migrationsDir = `../../../cmd/blogshelf/migrations`

func TestStorageBehaviour(t *testing.T) {
	databaseDSN := os.Getenv("DATABASE_DSN")
	if databaseDSN == "" {
		t.Skip("DATABASE_DSN is not set")
	}

	storagetest.Run(t, func(t *testing.T) storagetest.Storage {
		db, err := New(
			context.Background(),
			databaseDSN,
			5*time.Second,
			migrationsDir,
			WithDBPreReset(true),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, db.Close())
		})
		return db
	})
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}
