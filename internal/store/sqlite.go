package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

const schemaName = "meetcal"

// SQLite is a MeetingStore persisted in a SQLite database file.
//
// Start and end are stored twice: RFC3339Nano text, which keeps the offset
// the meeting was saved with, and Unix microseconds for the range predicate.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	var version int
	err := s.db.QueryRow(`SELECT version FROM db_version WHERE name = ?`, schemaName).Scan(&version)
	if err != nil {
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
			name TEXT PRIMARY KEY,
			version INTEGER
		)`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO db_version (name, version) VALUES (?, 0)`, schemaName); err != nil {
			return err
		}
		version = 0
	}

	if version == 0 {
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meetings (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			start_us INTEGER NOT NULL,
			end_us INTEGER NOT NULL,
			all_day INTEGER NOT NULL DEFAULT 0,
			teams TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT ''
		)`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS meetings_range ON meetings (start_us, end_us)`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS notes (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
			return err
		}
		version = 1
		if _, err := s.db.Exec(`UPDATE db_version SET version = ? WHERE name = ?`, version, schemaName); err != nil {
			return err
		}
		appLog.Info("sqlite schema migrated", "version", version)
	}
	return nil
}

const meetingColumns = `id, title, description, location, start_at, end_at, all_day, teams, status, version, owner, source, external_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(r rowScanner) (model.Meeting, error) {
	var (
		m          model.Meeting
		start, end string
		allDay     int
		teams      string
		status     string
	)
	if err := r.Scan(&m.ID, &m.Title, &m.Description, &m.Location, &start, &end, &allDay,
		&teams, &status, &m.Version, &m.Owner, &m.Source, &m.ExternalID); err != nil {
		return m, err
	}
	var err error
	if m.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return m, fmt.Errorf("meeting %s start: %w", m.ID, err)
	}
	if m.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return m, fmt.Errorf("meeting %s end: %w", m.ID, err)
	}
	m.AllDay = allDay != 0
	m.Status = model.ParseStatus(status)
	var ts []string
	if err := json.Unmarshal([]byte(teams), &ts); err == nil {
		m.Teams = model.NormalizeTeams(ts)
	}
	return m, nil
}

func encodeTeams(ts []string) string {
	if len(ts) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ts)
	return string(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLite) ListByRange(ctx context.Context, q RangeQuery) (ListResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE start_us <= ? AND end_us >= ? ORDER BY seq`,
		q.To.UnixMicro(), q.From.UnixMicro())
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer rows.Close()

	ms := make([]model.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return ListResult{}, err
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return paginate(ms, q), nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Meeting, error) {
	return s.get(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) get(ctx context.Context, q querier, id string) (model.Meeting, error) {
	m, err := scanMeeting(q.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Meeting{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

func (s *SQLite) Create(ctx context.Context, d model.Draft) (model.Meeting, error) {
	if err := d.Validate(); err != nil {
		return model.Meeting{}, err
	}
	m := model.NewMeeting(d)
	m.ID = uuid.NewString()
	m.Version = 1

	_, err := s.db.ExecContext(ctx, `INSERT INTO meetings
		(id, title, description, location, start_at, end_at, start_us, end_us, all_day, teams, status, version, owner, source, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Description, m.Location,
		m.Start.Format(time.RFC3339Nano), m.End.Format(time.RFC3339Nano),
		m.Start.UnixMicro(), m.End.UnixMicro(), boolInt(m.AllDay),
		encodeTeams(m.Teams), string(m.Status), m.Version, m.Owner, m.Source, m.ExternalID)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("insert meeting: %w", err)
	}
	return m, nil
}

func (s *SQLite) Update(ctx context.Context, id string, p model.Patch) (model.Meeting, error) {
	if err := p.Validate(); err != nil {
		return model.Meeting{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer tx.Rollback()

	cur, err := s.get(ctx, tx, id)
	if err != nil {
		return model.Meeting{}, err
	}
	if err := checkVersion(p.IfMatch, cur.Version); err != nil {
		return model.Meeting{}, fmt.Errorf("%w: %s has version %d", err, id, cur.Version)
	}
	next, err := p.Apply(cur)
	if err != nil {
		return model.Meeting{}, err
	}
	next.Version = cur.Version + 1

	res, err := tx.ExecContext(ctx, `UPDATE meetings SET
		title = ?, description = ?, location = ?, start_at = ?, end_at = ?, start_us = ?, end_us = ?,
		all_day = ?, teams = ?, status = ?, version = ?
		WHERE id = ? AND version = ?`,
		next.Title, next.Description, next.Location,
		next.Start.Format(time.RFC3339Nano), next.End.Format(time.RFC3339Nano),
		next.Start.UnixMicro(), next.End.UnixMicro(), boolInt(next.AllDay),
		encodeTeams(next.Teams), string(next.Status), next.Version,
		id, cur.Version)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("update meeting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Meeting{}, fmt.Errorf("%w: %s changed concurrently", ErrConflict, id)
	}
	if err := tx.Commit(); err != nil {
		return model.Meeting{}, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

func (s *SQLite) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer tx.Rollback()

	cur, err := s.get(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(opts.Actor, cur.Owner); err != nil {
		return fmt.Errorf("%w: %s may not delete %s", err, opts.Actor, id)
	}
	if err := checkVersion(opts.IfMatch, cur.Version); err != nil {
		return fmt.Errorf("%w: %s has version %d", err, id, cur.Version)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = ? AND version = ?`, id, cur.Version); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return tx.Commit()
}
