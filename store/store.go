// Package store persists analysis sessions and their crossing events in a
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/swdee/go-footfall/counter"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("session not found")

// pragmas are applied to the connection on open
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Session is a single analysis run
type Session struct {
	ID           int64
	UUID         uuid.UUID
	StartTime    time.Time
	EndTime      *time.Time
	VideoName    string
	LineY        int
	TotalEntries int
	TotalExits   int
}

// Event is a persisted crossing event
type Event struct {
	ID        int64
	SessionID int64
	TrackID   int64
	Time      time.Time
	Kind      counter.Direction
}

// Option configures a DB
type Option func(*DB)

// WithLogger sets the logger used by the DB
func WithLogger(log zerolog.Logger) Option {
	return func(db *DB) {
		db.log = log
	}
}

// WithClock sets the function used for session start and end times
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// DB is the sessions and events database
type DB struct {
	*sql.DB
	now func() time.Time
	log zerolog.Logger
}

// Open opens or creates the database at path, creating its parent folder
// and applying any pending migrations
func Open(path string, opts ...Option) (*DB, error) {

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database folder: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// pragmas are per connection
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("error executing %q: %w", pragma, err)
		}
	}

	db := &DB{
		DB:  sqlDB,
		now: time.Now,
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(db)
	}

	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.log.Info().Str("path", path).Msg("database opened")

	return db, nil
}

// CreateSession starts a new session for the named video
func (db *DB) CreateSession(ctx context.Context, videoName string,
	lineY int) (Session, error) {

	if videoName == "" {
		videoName = "N/A"
	}

	s := Session{
		UUID:      uuid.New(),
		StartTime: db.now().Truncate(time.Second),
		VideoName: videoName,
		LineY:     lineY,
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_uuid, start_time, video_name, line_y)
		 VALUES (?, ?, ?, ?)`,
		s.UUID.String(), formatTime(s.StartTime), s.VideoName, s.LineY)

	if err != nil {
		return Session{}, fmt.Errorf("error creating session: %w", err)
	}

	if s.ID, err = res.LastInsertId(); err != nil {
		return Session{}, fmt.Errorf("error reading session id: %w", err)
	}

	db.log.Info().Int64("session_id", s.ID).Str("session_uuid", s.UUID.String()).
		Str("video", videoName).Msg("session created")

	return s, nil
}

// LogEvent records a crossing event and increments the session totals in
// a single transaction.  Returns ErrNotFound when the session does not
// exist.
func (db *DB) LogEvent(ctx context.Context, sessionID int64, ev counter.Event) error {

	var column string

	switch ev.Kind {
	case counter.Entry:
		column = "total_entries"
	case counter.Exit:
		column = "total_exits"
	default:
		return fmt.Errorf("unknown event kind %v", ev.Kind)
	}

	tx, err := db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE sessions SET %[1]s = %[1]s + 1 WHERE session_id = ?", column),
		sessionID)

	if err != nil {
		return fmt.Errorf("error updating session totals: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("error updating session totals: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, sessionID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, track_id, timestamp, event_type)
		 VALUES (?, ?, ?, ?)`,
		sessionID, ev.TrackID, formatTime(ev.Time), ev.Kind.String()); err != nil {
		return fmt.Errorf("error logging event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing event: %w", err)
	}

	return nil
}

// EndSession sets the end time of a session
func (db *DB) EndSession(ctx context.Context, sessionID int64) error {

	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ? WHERE session_id = ?`,
		formatTime(db.now()), sessionID)

	if err != nil {
		return fmt.Errorf("error ending session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, sessionID)
	}

	return nil
}

const sessionColumns = `session_id, session_uuid, start_time, end_time,
	video_name, line_y, total_entries, total_exits`

// Sessions returns all sessions, newest first
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {

	rows, err := db.QueryContext(ctx, `SELECT `+sessionColumns+`
		FROM sessions ORDER BY start_time DESC, session_id DESC`)

	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}

	defer rows.Close()

	var sessions []Session

	for rows.Next() {
		s, err := scanSession(rows)

		if err != nil {
			return nil, err
		}

		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading sessions: %w", err)
	}

	return sessions, nil
}

// SessionByID returns a single session
func (db *DB) SessionByID(ctx context.Context, sessionID int64) (Session, error) {

	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
		FROM sessions WHERE session_id = ?`, sessionID)

	s, err := scanSession(row)

	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %d", ErrNotFound, sessionID)
	}

	return s, err
}

// EventsBySession returns the events of a session in time order
func (db *DB) EventsBySession(ctx context.Context, sessionID int64) ([]Event, error) {

	rows, err := db.QueryContext(ctx,
		`SELECT event_id, session_id, track_id, timestamp, event_type
		 FROM events WHERE session_id = ? ORDER BY timestamp ASC, event_id ASC`,
		sessionID)

	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}

	defer rows.Close()

	var events []Event

	for rows.Next() {

		var (
			ev        Event
			timestamp string
			kind      string
		)

		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TrackID, &timestamp,
			&kind); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}

		if ev.Time, err = parseTime(timestamp); err != nil {
			return nil, err
		}

		if ev.Kind, err = parseDirection(kind); err != nil {
			return nil, err
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading events: %w", err)
	}

	return events, nil
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {

	var (
		s         Session
		id        string
		start     string
		end       sql.NullString
		videoName sql.NullString
	)

	if err := row.Scan(&s.ID, &id, &start, &end, &videoName, &s.LineY,
		&s.TotalEntries, &s.TotalExits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("error scanning session: %w", err)
	}

	var err error

	if s.UUID, err = uuid.Parse(id); err != nil {
		return Session{}, fmt.Errorf("error parsing session uuid: %w", err)
	}

	if s.StartTime, err = parseTime(start); err != nil {
		return Session{}, err
	}

	if end.Valid {
		t, err := parseTime(end.String)

		if err != nil {
			return Session{}, err
		}

		s.EndTime = &t
	}

	s.VideoName = videoName.String

	return s, nil
}

// formatTime renders t in the stored local time layout
func formatTime(t time.Time) string {
	return t.Local().Format(counter.TimeLayout)
}

// parseTime reads a stored local time
func parseTime(s string) (time.Time, error) {

	t, err := time.ParseInLocation(counter.TimeLayout, s, time.Local)

	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing time %q: %w", s, err)
	}

	return t, nil
}

// parseDirection reads a stored event type
func parseDirection(s string) (counter.Direction, error) {

	switch s {
	case counter.Entry.String():
		return counter.Entry, nil
	case counter.Exit.String():
		return counter.Exit, nil
	}

	return 0, fmt.Errorf("unknown event type %q", s)
}
