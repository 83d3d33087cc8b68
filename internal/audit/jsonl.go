package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethicore/arbiter/internal/types"
)

// JSONLSink appends one JSON object per decision to a local file. It is
// the lightest durable ledger and needs no database.
type JSONLSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// jsonlRecord is the on-disk shape. The wall-clock write time is kept
// separate from the decision's own timestamps.
type jsonlRecord struct {
	WrittenAt time.Time      `json:"written_at"`
	Decision  decisionRecord `json:"decision"`
}

// decisionRecord flattens the fields worth replaying from a log. The
// full trace stays in-process; the ledger keeps the verdict.
type decisionRecord struct {
	ID                string  `json:"id"`
	Approved          bool    `json:"approved"`
	RiskScore         float64 `json:"risk_score"`
	Confidence        float64 `json:"confidence"`
	Fingerprint       string  `json:"fingerprint,omitempty"`
	SuppressionReason string  `json:"suppression_reason,omitempty"`
	IssuedAt          string  `json:"issued_at"`
}

// NewJSONLSink opens (or creates) the log file at path, creating parent
// directories as needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger file: %w", err)
	}
	return &JSONLSink{path: path, file: f}, nil
}

// Append writes the decision as a single JSON line.
func (s *JSONLSink) Append(ctx context.Context, d types.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := jsonlRecord{
		WrittenAt: time.Now().UTC(),
		Decision: decisionRecord{
			ID:                d.ID,
			Approved:          d.Approved,
			RiskScore:         d.RiskScore,
			Confidence:        d.Confidence,
			Fingerprint:       d.Fingerprint,
			SuppressionReason: d.SuppressionReason,
			IssuedAt:          d.IssuedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding ledger record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("ledger file %s is closed", s.path)
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("writing ledger record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
