package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/nais/botdeploy/pkg/store"
	"github.com/nais/botdeploy/pkg/store/postgres"
	"github.com/nais/botdeploy/pkg/store/storetest"
	"github.com/stretchr/testify/require"
)

// Set BOTDEPLOY_TEST_DATABASE_URL to a disposable database to run these tests.
const dsnEnv = "BOTDEPLOY_TEST_DATABASE_URL"

func TestDatabase(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if len(dsn) == 0 {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	storetest.Run(t, func(t *testing.T) store.Store {
		require.NoError(t, db.Truncate(ctx))
		return db
	})
}
