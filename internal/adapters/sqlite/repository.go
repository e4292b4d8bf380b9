package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.Store using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradesim.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("%w: failed to create data directory '%s': %w", ports.ErrDBConnection, filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer; appends from a run are serialized anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Timestamps are stored as RFC3339 text so the persisted trade record matches its JSON form.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
		price REAL NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		commission REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS equity_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		sequence INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		value REAL NOT NULL,
		price REAL NOT NULL,
		cash REAL NOT NULL,
		shares INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades (run_id, id);
	CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_snapshots (run_id, id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// AppendTrade saves a trade and sets its ID.
func (r *Repository) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (run_id, timestamp, symbol, side, price, quantity, commission, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.RunID, formatTime(trade.Timestamp), trade.Symbol, string(trade.Side),
		trade.Price, trade.Quantity, trade.Commission, string(trade.Reason))
	if err != nil {
		return fmt.Errorf("%w: failed to insert trade for symbol %s: %w", ports.ErrQueryFailed, trade.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert ID for trade: %w", ports.ErrQueryFailed, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade stored", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "side": trade.Side})
	return nil
}

// AppendEquity saves an equity snapshot and sets its ID.
func (r *Repository) AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error {
	const query = `
	INSERT INTO equity_snapshots (run_id, sequence, timestamp, value, price, cash, shares)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		snap.RunID, snap.Sequence, formatTime(snap.Timestamp), snap.Value, snap.Price, snap.Cash, snap.Shares)
	if err != nil {
		return fmt.Errorf("%w: failed to insert equity snapshot %d: %w", ports.ErrQueryFailed, snap.Sequence, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert ID for equity snapshot: %w", ports.ErrQueryFailed, err)
	}
	snap.ID = id
	return nil
}

// LoadTrades returns every stored trade in insertion order.
func (r *Repository) LoadTrades(ctx context.Context) ([]domain.Trade, error) {
	const query = `
	SELECT id, run_id, timestamp, symbol, side, price, quantity, commission, reason
	FROM trades ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade rows: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// LoadEquity returns every stored equity snapshot in insertion order.
func (r *Repository) LoadEquity(ctx context.Context) ([]domain.EquitySnapshot, error) {
	const query = `
	SELECT id, run_id, sequence, timestamp, value, price, cash, shares
	FROM equity_snapshots ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query equity snapshots: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	snapshots := make([]domain.EquitySnapshot, 0)
	for rows.Next() {
		snap, err := scanEquity(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan equity snapshot: %w", ports.ErrQueryFailed, err)
		}
		snapshots = append(snapshots, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating equity rows: %w", ports.ErrQueryFailed, err)
	}
	return snapshots, nil
}

// Clear removes all trades and equity snapshots in one transaction.
func (r *Repository) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin clear: %w", ports.ErrDeleteFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"trades", "equity_snapshots"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("%w: failed to clear %s: %w", ports.ErrDeleteFailed, table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit clear: %w", ports.ErrDeleteFailed, err)
	}
	r.logger.Info(ctx, "Trade history cleared")
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (domain.Trade, error) {
	var (
		t      domain.Trade
		ts     string
		side   string
		reason string
	)
	if err := s.Scan(&t.ID, &t.RunID, &ts, &t.Symbol, &side, &t.Price, &t.Quantity, &t.Commission, &reason); err != nil {
		return domain.Trade{}, err
	}
	parsed, err := parseTime(ts)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Timestamp = parsed
	t.Side = domain.OrderSide(side)
	t.Reason = domain.SignalReason(reason)
	return t, nil
}

func scanEquity(s scanner) (domain.EquitySnapshot, error) {
	var (
		e  domain.EquitySnapshot
		ts string
	)
	if err := s.Scan(&e.ID, &e.RunID, &e.Sequence, &ts, &e.Value, &e.Price, &e.Cash, &e.Shares); err != nil {
		return domain.EquitySnapshot{}, err
	}
	parsed, err := parseTime(ts)
	if err != nil {
		return domain.EquitySnapshot{}, err
	}
	e.Timestamp = parsed
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}
