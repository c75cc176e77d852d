package registry

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "catalog_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "catalog"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping registry test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestRecordAndLatest(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	store := NewStore(db)
	require.NoError(t, store.Migrate(ctx))

	base := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	older := Build{
		BuildID:      uuid.NewString(),
		ArtifactPath: "data/indexer/a.json",
		Digest:       "aa",
		Documents:    2,
		Terms:        3,
		CreatedAt:    base,
	}
	newer := older
	newer.BuildID = uuid.NewString()
	newer.ArtifactPath = "data/indexer/b.json"
	newer.CreatedAt = base.Add(time.Minute)

	require.NoError(t, store.Record(ctx, older))
	require.NoError(t, store.Record(ctx, newer))
	require.NoError(t, store.Record(ctx, newer), "recording twice is a no-op")

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.BuildID, latest.BuildID)
	assert.Equal(t, "data/indexer/b.json", latest.ArtifactPath)

	builds, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, older.BuildID, builds[1].BuildID)
}
