package storage

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/validator-dashboard/internal/config"
	"github.com/validator-dashboard/internal/models"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		network string
		want    string
		wantErr bool
	}{
		{network: "cosmos", want: `"cosmos_data"`},
		{network: "osmosis_testnet", want: `"osmosis_testnet_data"`},
		{network: "Cosmos", wantErr: true},
		{network: "", wantErr: true},
		{network: "cosmos; DROP TABLE users", wantErr: true},
		{network: `a"b`, wantErr: true},
		{network: "1inch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			got, err := TableName(tt.network)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNetworkName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "validator_dashboard_test"),
		User:           envOr("POSTGRES_USER", "postgres"),
		Password:       envOr("POSTGRES_PASSWORD", "postgres"),
		MaxConnections: 4,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// setupRepository connects to a local Postgres and applies migrations,
// skipping the test when the database is unavailable
func setupRepository(t *testing.T) *SnapshotRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(testContext(t), cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../migrations/postgres"); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
	}

	ctx := testContext(t)
	_, err = db.Pool().Exec(ctx, "TRUNCATE cheqd_data, total_rewards RESTART IDENTITY")
	require.NoError(t, err)

	return NewSnapshotRepository(db.Pool())
}

func TestSnapshotRepository_HistoryAndLatest(t *testing.T) {
	repo := setupRepository(t)
	ctx := testContext(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	price := decimal.NewNullDecimal(decimal.RequireFromString("0.0215"))
	rows := []models.Snapshot{
		{Network: "cheqd", ValidatorAddr: "val-a", SelfDelegations: "10 CHEQ", ExternalDelegations: "100 CHEQ", Rewards: "1 CHEQ", TotalRewards: "5 CHEQ", Price: price, Timestamp: base},
		{Network: "cheqd", ValidatorAddr: "val-b", SelfDelegations: "20 CHEQ", ExternalDelegations: "200 CHEQ", Rewards: "2 CHEQ", Price: price, Timestamp: base.Add(24 * time.Hour)},
		{Network: "cheqd", ValidatorAddr: "val-a", SelfDelegations: "11 CHEQ", ExternalDelegations: "110 CHEQ", Rewards: "1.5 CHEQ", TotalRewards: "7 CHEQ", Timestamp: base.Add(48 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, repo.Insert(ctx, &rows[i]))
		assert.NotZero(t, rows[i].ID)
	}

	history, err := repo.History(ctx, "cheqd", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "val-b", history[0].ValidatorAddr)
	assert.Equal(t, "", history[0].TotalRewards)
	assert.False(t, history[1].Price.Valid)

	latest, err := repo.Latest(ctx, "cheqd")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "11 CHEQ", latest.SelfDelegations)
	assert.Equal(t, "cheqd", latest.Network)

	perValidator, err := repo.LatestPerValidator(ctx, "cheqd")
	require.NoError(t, err)
	require.Len(t, perValidator, 2)
	assert.Equal(t, "11 CHEQ", perValidator[0].SelfDelegations)
	assert.Equal(t, "20 CHEQ", perValidator[1].SelfDelegations)
}

func TestSnapshotRepository_EmptyAggregate(t *testing.T) {
	repo := setupRepository(t)
	ctx := testContext(t)

	latest, err := repo.AggregateLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	history, err := repo.AggregateHistory(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, history)
}
