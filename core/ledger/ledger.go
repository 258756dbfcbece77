// Package ledger keeps an optional sqlite log of generation outcomes. It stores
// metadata only; prompts, code and chat turns are never written.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS generation_log (
	id             TEXT PRIMARY KEY,
	request_id     TEXT NOT NULL DEFAULT '',
	fingerprint    TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	succeeded      INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts       INTEGER NOT NULL DEFAULT 0,
	cache_hit      INTEGER NOT NULL DEFAULT 0,
	score          REAL NOT NULL DEFAULT 0,
	integrations   TEXT NOT NULL DEFAULT '',
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	latency_ms     INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generation_log_created ON generation_log(created_at);
`

// DefaultPath is generations.db under the data directory.
func DefaultPath() string {
	return storage.ResolveDirs().DataDir("generations.db")
}

// Record is one logged invocation.
type Record struct {
	ID            string        `json:"id"`
	RequestID     string        `json:"request_id,omitempty"`
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Kind          string        `json:"kind"`
	Mode          string        `json:"mode"`
	Provider      string        `json:"provider,omitempty"`
	Model         string        `json:"model,omitempty"`
	Succeeded     bool          `json:"succeeded"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Attempts      int           `json:"attempts"`
	CacheHit      bool          `json:"cache_hit"`
	Score         float64       `json:"score"`
	Integrations  []string      `json:"integrations,omitempty"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	Latency       time.Duration `json:"latency"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FromEvent converts a pipeline event.
func FromEvent(ev pipeline.Event) Record {
	r := ev.Result
	return Record{
		RequestID:     ev.RequestID,
		Fingerprint:   string(ev.Fingerprint),
		Kind:          string(r.Kind),
		Mode:          string(r.Mode),
		Provider:      r.Provider,
		Model:         r.Model,
		Succeeded:     r.Succeeded,
		FailureReason: string(r.FailureReason),
		Attempts:      r.Attempts,
		CacheHit:      r.CacheHit,
		Score:         ev.Signal.Score,
		Integrations:  ev.Signal.RequestedIntegrations,
		InputTokens:   r.Usage.InputTokens,
		OutputTokens:  r.Usage.OutputTokens,
		Latency:       ev.Duration,
		CreatedAt:     ev.StartedAt,
	}
}

type Ledger struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates the ledger at path.
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := storage.EnsureDir(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path, logger: logger.Named("ledger")}, nil
}

func (l *Ledger) Path() string {
	return l.path
}

// Append stores r, assigning an ID and timestamp when missing.
func (l *Ledger) Append(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO generation_log (
			id, request_id, fingerprint, kind, mode, provider, model, succeeded,
			failure_reason, attempts, cache_hit, score, integrations,
			input_tokens, output_tokens, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.Fingerprint, r.Kind, r.Mode, r.Provider, r.Model, r.Succeeded,
		r.FailureReason, r.Attempts, r.CacheHit, r.Score, strings.Join(r.Integrations, ","),
		r.InputTokens, r.OutputTokens, r.Latency.Milliseconds(), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return r, fmt.Errorf("append ledger record: %w", err)
	}
	return r, nil
}

// Observe implements pipeline.Observer. Write failures are logged and
// dropped; the ledger never affects a result.
func (l *Ledger) Observe(ctx context.Context, ev pipeline.Event) {
	if _, err := l.Append(ctx, FromEvent(ev)); err != nil {
		l.logger.Warn("ledger write failed", zap.Error(err))
	}
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, fingerprint, kind, mode, provider, model, succeeded,
			failure_reason, attempts, cache_hit, score, integrations,
			input_tokens, output_tokens, latency_ms, created_at
		FROM generation_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var integrations string
		var latencyMS, created int64
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Fingerprint, &r.Kind, &r.Mode, &r.Provider,
			&r.Model, &r.Succeeded, &r.FailureReason, &r.Attempts, &r.CacheHit, &r.Score,
			&integrations, &r.InputTokens, &r.OutputTokens, &latencyMS, &created); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if integrations != "" {
			r.Integrations = strings.Split(integrations, ",")
		}
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates records since a point in time.
type Summary struct {
	Total        int            `json:"total"`
	Succeeded    int            `json:"succeeded"`
	CacheHits    int            `json:"cache_hits"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	ByMode       map[string]int `json:"by_mode"`
	ByKind       map[string]int `json:"by_kind"`
	ByFailure    map[string]int `json:"by_failure,omitempty"`
}

func (l *Ledger) Summary(ctx context.Context, since time.Time) (Summary, error) {
	s := Summary{
		ByMode:    map[string]int{},
		ByKind:    map[string]int{},
		ByFailure: map[string]int{},
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT mode, kind, failure_reason, succeeded, cache_hit,
			COUNT(*), SUM(input_tokens), SUM(output_tokens)
		FROM generation_log WHERE created_at >= ?
		GROUP BY mode, kind, failure_reason, succeeded, cache_hit`, since.UnixMilli())
	if err != nil {
		return s, fmt.Errorf("summarize ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode, kind, failure string
		var succeeded, cacheHit bool
		var count, in, out int
		if err := rows.Scan(&mode, &kind, &failure, &succeeded, &cacheHit, &count, &in, &out); err != nil {
			return s, fmt.Errorf("scan ledger summary: %w", err)
		}
		s.Total += count
		s.InputTokens += in
		s.OutputTokens += out
		if succeeded {
			s.Succeeded += count
		}
		if cacheHit {
			s.CacheHits += count
		}
		if mode != "" {
			s.ByMode[mode] += count
		}
		if kind != "" {
			s.ByKind[kind] += count
		}
		if failure != "" {
			s.ByFailure[failure] += count
		}
	}
	return s, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
