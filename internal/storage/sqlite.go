package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/types"
)

// SQLiteLedger is a durable decision ledger on SQLite, for local and
// single-node deployments.
type SQLiteLedger struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteLedger opens (creating if needed) the ledger database at
// path.
func NewSQLiteLedger(path string, logger *logrus.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL keeps concurrent readers off the writer's back.
	db.Exec("PRAGMA journal_mode = WAL")

	ledger := &SQLiteLedger{db: db, logger: logger}
	if err := ledger.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return ledger, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		approved INTEGER NOT NULL,
		risk_score REAL NOT NULL,
		fingerprint TEXT NOT NULL,
		confidence REAL NOT NULL,
		suppression_reason TEXT,
		trace TEXT,
		issued_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint ON decisions(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_decisions_issued_at ON decisions(issued_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Append inserts a decision row.
func (l *SQLiteLedger) Append(ctx context.Context, d types.Decision) error {
	trace, err := marshalTrace(d)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO decisions (id, approved, risk_score, fingerprint, confidence, suppression_reason, trace, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Approved, d.RiskScore, d.Fingerprint, d.Confidence, d.SuppressionReason, trace, d.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// Recent returns the newest n decisions, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, n int) ([]types.Decision, error) {
	rows, err := l.db.QueryxContext(ctx, `
		SELECT id, approved, risk_score, fingerprint, confidence, suppression_reason, trace, issued_at
		FROM decisions ORDER BY issued_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

type decisionRow struct {
	ID                string    `db:"id"`
	Approved          bool      `db:"approved"`
	RiskScore         float64   `db:"risk_score"`
	Fingerprint       string    `db:"fingerprint"`
	Confidence        float64   `db:"confidence"`
	SuppressionReason *string   `db:"suppression_reason"`
	Trace             *string   `db:"trace"`
	IssuedAt          time.Time `db:"issued_at"`
}

func scanDecisions(rows *sqlx.Rows) ([]types.Decision, error) {
	var decisions []types.Decision
	for rows.Next() {
		var r decisionRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d := types.Decision{
			ID:          r.ID,
			Approved:    r.Approved,
			RiskScore:   r.RiskScore,
			Fingerprint: r.Fingerprint,
			Confidence:  r.Confidence,
			IssuedAt:    r.IssuedAt,
		}
		if r.SuppressionReason != nil {
			d.SuppressionReason = *r.SuppressionReason
		}
		if r.Trace != nil && *r.Trace != "" {
			var trace types.HarmonizationTrace
			if err := json.Unmarshal([]byte(*r.Trace), &trace); err == nil {
				d.Trace = &trace
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func marshalTrace(d types.Decision) (*string, error) {
	if d.Trace == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d.Trace)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	s := string(raw)
	return &s, nil
}
