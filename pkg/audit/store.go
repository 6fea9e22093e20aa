// Package audit persists the safety records the pipeline emits: replies
// accepted with directive violations and messages that tripped crisis
// detection.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/persona"
)

const defaultListLimit = 100

// Store is a sqlite-backed agent.AuditSink.
type Store struct {
	db *sql.DB
}

var _ agent.AuditSink = (*Store)(nil)

// Open creates or opens the audit database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS violation_logs (
			id TEXT PRIMARY KEY,
			chatbot TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			original_response TEXT NOT NULL,
			filtered_reason TEXT NOT NULL,
			regenerated_response TEXT NOT NULL,
			violations_json TEXT NOT NULL DEFAULT '[]',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS violation_logs_user_idx ON violation_logs(user_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS violation_logs_created_idx ON violation_logs(created_at_ms);`,
		`CREATE TABLE IF NOT EXISTS crisis_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			user_message TEXT NOT NULL,
			indicators_json TEXT NOT NULL DEFAULT '[]',
			language TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS crisis_logs_user_idx ON crisis_logs(user_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS crisis_logs_created_idx ON crisis_logs(created_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init audit schema: %w", err)
		}
	}
	return nil
}

func (s *Store) RecordViolation(ctx context.Context, log agent.ViolationLog) error {
	violations, err := json.Marshal(nonNil(log.Violations))
	if err != nil {
		return fmt.Errorf("encode violations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO violation_logs
		(id, chatbot, user_id, original_response, filtered_reason, regenerated_response, violations_json, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Persona.String(), log.UserID, log.OriginalResponse, log.FilteredReason,
		log.RegeneratedResponse, string(violations), toMS(log.Timestamp))
	if err != nil {
		return fmt.Errorf("insert violation log: %w", err)
	}
	return nil
}

func (s *Store) RecordCrisis(ctx context.Context, log agent.CrisisLog) error {
	indicators, err := json.Marshal(nonNil(log.Indicators))
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO crisis_logs
		(id, user_id, user_message, indicators_json, language, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.UserMessage, string(indicators), log.Language, toMS(log.Timestamp))
	if err != nil {
		return fmt.Errorf("insert crisis log: %w", err)
	}
	return nil
}

// Query narrows a listing. Zero values mean no filter; Limit defaults to 100.
type Query struct {
	UserID string
	Since  time.Time
	Limit  int
}

func (q Query) where() (string, []any) {
	var clauses []string
	var args []any
	if uid := strings.TrimSpace(q.UserID); uid != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, uid)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "created_at_ms >= ?")
		args = append(args, toMS(q.Since))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	return where + " ORDER BY created_at_ms DESC, id LIMIT ?", args
}

// ListViolations returns the newest violation logs first.
func (s *Store) ListViolations(ctx context.Context, q Query) ([]agent.ViolationLog, error) {
	tail, args := q.where()
	rows, err := s.db.QueryContext(ctx, `SELECT id, chatbot, user_id, original_response, filtered_reason,
		regenerated_response, violations_json, created_at_ms FROM violation_logs`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query violation logs: %w", err)
	}
	defer rows.Close()

	var out []agent.ViolationLog
	for rows.Next() {
		var (
			log        agent.ViolationLog
			chatbot    string
			violations string
			createdMS  int64
		)
		if err := rows.Scan(&log.ID, &chatbot, &log.UserID, &log.OriginalResponse, &log.FilteredReason,
			&log.RegeneratedResponse, &violations, &createdMS); err != nil {
			return nil, fmt.Errorf("scan violation log: %w", err)
		}
		p, err := persona.Parse(chatbot)
		if err != nil {
			return nil, fmt.Errorf("violation log %s: %w", log.ID, err)
		}
		log.Persona = p
		if err := json.Unmarshal([]byte(violations), &log.Violations); err != nil {
			return nil, fmt.Errorf("decode violations for %s: %w", log.ID, err)
		}
		log.Timestamp = fromMS(createdMS)
		out = append(out, log)
	}
	return out, rows.Err()
}

// ListCrises returns the newest crisis logs first.
func (s *Store) ListCrises(ctx context.Context, q Query) ([]agent.CrisisLog, error) {
	tail, args := q.where()
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, user_message, indicators_json, language,
		created_at_ms FROM crisis_logs`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query crisis logs: %w", err)
	}
	defer rows.Close()

	var out []agent.CrisisLog
	for rows.Next() {
		var (
			log        agent.CrisisLog
			indicators string
			createdMS  int64
		)
		if err := rows.Scan(&log.ID, &log.UserID, &log.UserMessage, &indicators, &log.Language, &createdMS); err != nil {
			return nil, fmt.Errorf("scan crisis log: %w", err)
		}
		if err := json.Unmarshal([]byte(indicators), &log.Indicators); err != nil {
			return nil, fmt.Errorf("decode indicators for %s: %w", log.ID, err)
		}
		log.Timestamp = fromMS(createdMS)
		out = append(out, log)
	}
	return out, rows.Err()
}

type Stats struct {
	Violations int64 `json:"violations"`
	Crises     int64 `json:"crises"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violation_logs`).Scan(&st.Violations); err != nil {
		return Stats{}, fmt.Errorf("count violation logs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crisis_logs`).Scan(&st.Crises); err != nil {
		return Stats{}, fmt.Errorf("count crisis logs: %w", err)
	}
	return st, nil
}

// PurgeBefore deletes every record older than cutoff and reports how many
// rows went.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range []string{"violation_logs", "crisis_logs"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at_ms < ?`, toMS(cutoff))
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", table, err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return total, nil
}

func toMS(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func fromMS(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
