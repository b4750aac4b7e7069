package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrClosed = errors.New("session store closed")

//go:embed schema.sql
var schemaSQL string

const insertSessionSQL = `INSERT INTO sessions (start_time, device, args, options, steps, error)
VALUES (?, ?, ?, ?, ?, ?)`

const selectSessionsSQL = `SELECT id, start_time, device, args, options, steps, error
FROM sessions ORDER BY start_time DESC, id DESC LIMIT ?`

// Session is one recorded configuration run.
type Session struct {
	ID        int64
	StartTime time.Time
	Device    string
	Args      string
	Options   json.RawMessage
	Steps     json.RawMessage
	// Err is empty when the run succeeded.
	Err string
}

// SessionStore keeps configuration runs in a sqlite database. The database
// is opened and its schema created on first use.
type SessionStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

func NewSessionStore(dbPath string) *SessionStore {
	return &SessionStore{dbPath: dbPath}
}

func (s *SessionStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_busy_timeout=5000"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func nullJSON(m json.RawMessage) string {
	if len(m) == 0 {
		return "null"
	}
	return string(m)
}

// Record stores sess and returns its id. The ID field of sess is ignored.
func (s *SessionStore) Record(ctx context.Context, sess Session) (id int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	errText := sql.NullString{String: sess.Err, Valid: sess.Err != ""}
	result, err := stmt.ExecContext(ctx,
		sess.StartTime.UTC(), sess.Device, sess.Args,
		nullJSON(sess.Options), nullJSON(sess.Steps), errText)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	if id, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting session ID: %w", err)
	}
	return id, nil
}

// Sessions returns up to limit sessions, newest first.
func (s *SessionStore) Sessions(ctx context.Context, limit int) (sessions []Session, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var opts, steps string
		var errText sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Device, &sess.Args, &opts, &steps, &errText); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.Options, sess.Steps, sess.Err = json.RawMessage(opts), json.RawMessage(steps), errText.String
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) Close() error {
	s.closeOnce.Do(func() {
		s.dbOnce.Do(func() {})
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
		s.dbErr = ErrClosed
	})
	return s.closeErr
}
