package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/types"
)

// PostgresLedger is the shared-deployment decision ledger.
type PostgresLedger struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresLedger connects to the ledger database using a lib/pq DSN.
func NewPostgresLedger(dsn string, logger *logrus.Logger) (*PostgresLedger, error) {
	if logger == nil {
		logger = logrus.New()
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	ledger := &PostgresLedger{db: db, logger: logger}
	if err := ledger.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return ledger, nil
}

func (l *PostgresLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		approved BOOLEAN NOT NULL,
		risk_score DOUBLE PRECISION NOT NULL,
		fingerprint TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		suppression_reason TEXT,
		trace TEXT,
		issued_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint ON decisions(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_decisions_issued_at ON decisions(issued_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database.
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

// Append inserts a decision row.
func (l *PostgresLedger) Append(ctx context.Context, d types.Decision) error {
	trace, err := marshalTrace(d)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO decisions (id, approved, risk_score, fingerprint, confidence, suppression_reason, trace, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Approved, d.RiskScore, d.Fingerprint, d.Confidence, d.SuppressionReason, trace, d.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// Recent returns the newest n decisions, newest first.
func (l *PostgresLedger) Recent(ctx context.Context, n int) ([]types.Decision, error) {
	rows, err := l.db.QueryxContext(ctx, `
		SELECT id, approved, risk_score, fingerprint, confidence, suppression_reason, trace, issued_at
		FROM decisions ORDER BY issued_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}
