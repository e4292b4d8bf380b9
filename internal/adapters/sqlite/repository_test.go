package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "tradesim-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_Trades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2024, 2, 5, 14, 30, 0, 0, time.UTC)
	trades := []*domain.Trade{
		{RunID: "r1", Timestamp: ts, Symbol: "AAPL", Side: domain.Buy, Price: 100, Quantity: 10, Commission: 1, Reason: domain.ReasonGoldenCross},
		{RunID: "r1", Timestamp: ts.Add(time.Hour), Symbol: "AAPL", Side: domain.Sell, Price: 110, Quantity: 10, Commission: 1.1, Reason: domain.ReasonDeathCross},
	}
	for _, trade := range trades {
		require.NoError(t, repo.AppendTrade(ctx, trade))
		assert.Greater(t, trade.ID, int64(0))
	}

	loaded, err := repo.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i, got := range loaded {
		want := *trades[i]
		assert.Equal(t, want, got)
	}
	assert.True(t, loaded[0].Timestamp.Equal(ts))
}

func TestRepository_RejectsInvalidTrade(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.AppendTrade(context.Background(), &domain.Trade{Timestamp: time.Now(), Symbol: "AAPL", Side: "short", Price: 1, Quantity: 1})
	assert.Error(t, err)
	err = repo.AppendTrade(context.Background(), &domain.Trade{Timestamp: time.Now(), Symbol: "AAPL", Side: domain.Buy, Price: 1, Quantity: 0})
	assert.Error(t, err)
}

func TestRepository_EquityAndClear(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2024, 2, 5, 14, 30, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		snap := &domain.EquitySnapshot{
			RunID:     "r1",
			Sequence:  i,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Value:     1000 + float64(i),
			Price:     10,
			Cash:      500,
			Shares:    int64(i),
		}
		require.NoError(t, repo.AppendEquity(ctx, snap))
	}
	require.NoError(t, repo.AppendTrade(ctx, &domain.Trade{Timestamp: ts, Symbol: "AAPL", Side: domain.Buy, Price: 10, Quantity: 1}))

	snaps, err := repo.LoadEquity(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, []float64{1001, 1002, 1003}, domain.EquityValues(snaps))
	assert.Equal(t, 3, snaps[2].Sequence)
	assert.True(t, snaps[0].Timestamp.Equal(ts.Add(time.Minute)))

	require.NoError(t, repo.Clear(ctx))

	snaps, err = repo.LoadEquity(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	trades, err := repo.LoadTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.db")
	ctx := context.Background()

	repo, err := NewRepository(Config{DBPath: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	require.NoError(t, repo.AppendTrade(ctx, &domain.Trade{Timestamp: time.Unix(1700000000, 0).UTC(), Symbol: "MSFT", Side: domain.Buy, Price: 300, Quantity: 2}))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(Config{DBPath: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer repo.Close()

	trades, err := repo.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "MSFT", trades[0].Symbol)
	assert.Equal(t, int64(2), trades[0].Quantity)
}
