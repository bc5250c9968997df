// Package sqlite stores the ledger in an embedded SQLite file through the
// pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/service"
)

type Config struct {
	Path           string
	BusyTimeout    time.Duration
	MaxConnections int
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id                TEXT PRIMARY KEY,
	case_id           TEXT NOT NULL,
	chat_id           TEXT NOT NULL DEFAULT '',
	kind              TEXT NOT NULL,
	action            TEXT NOT NULL,
	confirmed_by_user INTEGER NOT NULL,
	confirmed_at      TEXT NOT NULL,
	actor_user_id     TEXT NOT NULL,
	actor_role        TEXT NOT NULL,
	result_ok         INTEGER NOT NULL,
	result_summary    TEXT NOT NULL,
	result_ref_id     TEXT NOT NULL,
	hash              TEXT NOT NULL,
	prev_hash         TEXT NOT NULL,
	seq               INTEGER NOT NULL,
	created_at        INTEGER NOT NULL,
	is_active         INTEGER NOT NULL,
	idem_hash         TEXT,
	UNIQUE (case_id, prev_hash)
);
CREATE INDEX IF NOT EXISTS idx_audit_events_case_created ON audit_events (case_id, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_audit_events_hash ON audit_events (hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_events_idem ON audit_events (idem_hash) WHERE idem_hash IS NOT NULL;
`

const columns = `id, case_id, chat_id, action, confirmed_by_user, confirmed_at, actor_user_id, actor_role,
	result_ok, result_summary, result_ref_id, hash, prev_hash, seq, created_at, is_active, idem_hash`

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "ledger.db"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 4
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, ev core.AuditEvent) error {
	action, err := json.Marshal(ev.Action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	var idem any
	if ev.IdemHash != "" {
		idem = ev.IdemHash
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_events (`+columns+`, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CaseID, ev.ChatID, string(action),
		ev.Confirmation.ConfirmedByUser, ev.Confirmation.ConfirmedAt.UTC().Format(time.RFC3339Nano),
		ev.Actor.UserID, ev.Actor.Role,
		ev.Result.OK, ev.Result.Summary, ev.Result.RefID,
		ev.Hash, ev.PrevHash, ev.Seq, ev.CreatedAt.UnixMilli(), ev.IsActive, idem,
		string(ev.Action.Kind),
	)
	if isConstraint(err) {
		return service.ErrConflict
	}
	return err
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (s *Store) Tip(ctx context.Context, caseID string) (core.AuditEvent, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM audit_events
		WHERE case_id = ? ORDER BY created_at DESC, seq DESC LIMIT 1`, caseID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AuditEvent{}, false, nil
	}
	if err != nil {
		return core.AuditEvent{}, false, err
	}
	return ev, true, nil
}

func (s *Store) Events(ctx context.Context, caseID string) ([]core.AuditEvent, error) {
	return s.query(ctx, `SELECT `+columns+` FROM audit_events
		WHERE case_id = ? ORDER BY created_at ASC, seq ASC`, caseID)
}

func (s *Store) Get(ctx context.Context, id string) (core.AuditEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM audit_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.AuditEvent{}, service.ErrNotFound
	}
	return ev, err
}

func (s *Store) FindByIdem(ctx context.Context, idemHash string) (core.AuditEvent, bool, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM audit_events WHERE idem_hash = ?`, idemHash))
	if errors.Is(err, sql.ErrNoRows) {
		return core.AuditEvent{}, false, nil
	}
	if err != nil {
		return core.AuditEvent{}, false, err
	}
	return ev, true, nil
}

func (s *Store) List(ctx context.Context, f service.ListFilter) ([]core.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.CaseID != "" {
		where = append(where, "case_id = ?")
		args = append(args, f.CaseID)
	}
	if f.ActorID != "" {
		where = append(where, "actor_user_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.Active)
	}
	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if f.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until.UnixMilli())
	}
	q := `SELECT ` + columns + ` FROM audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)
	return s.query(ctx, q, args...)
}

func (s *Store) SetActiveThrough(ctx context.Context, caseID string, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE audit_events
		SET is_active = CASE WHEN created_at <= ? THEN 1 ELSE 0 END
		WHERE case_id = ?`, cutoff.UnixMilli(), caseID)
	return err
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]core.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []core.AuditEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (core.AuditEvent, error) {
	var (
		ev          core.AuditEvent
		action      string
		confirmedAt string
		createdAt   int64
		idem        sql.NullString
	)
	err := sc.Scan(&ev.ID, &ev.CaseID, &ev.ChatID, &action,
		&ev.Confirmation.ConfirmedByUser, &confirmedAt,
		&ev.Actor.UserID, &ev.Actor.Role,
		&ev.Result.OK, &ev.Result.Summary, &ev.Result.RefID,
		&ev.Hash, &ev.PrevHash, &ev.Seq, &createdAt, &ev.IsActive, &idem)
	if err != nil {
		return core.AuditEvent{}, err
	}
	// Undecodable hashed columns mark the event damaged; the row is still
	// returned so verification can report where the chain breaks.
	if err := json.Unmarshal([]byte(action), &ev.Action); err != nil {
		ev.Action = core.Action{}
		ev.Damaged = fmt.Sprintf("decode action: %v", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, confirmedAt); err == nil {
		ev.Confirmation.ConfirmedAt = t
	} else if ev.Damaged == "" {
		ev.Damaged = fmt.Sprintf("decode confirmedAt: %v", err)
	}
	ev.CreatedAt = time.UnixMilli(createdAt).UTC()
	ev.IdemHash = idem.String
	return ev, nil
}
