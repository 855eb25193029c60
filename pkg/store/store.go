// Package store keeps the notification journal in SQLite.
//
// Every driver run gets a row in runs, and every send/receive notification
// emitted during that run is appended to notifications. The journal is an
// observability record used by the log and audit commands. No process
// clock is ever restored from it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/lamportpair/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id (or the latest run) does not exist.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is RFC 3339 with a fixed-width fraction, so stored times sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		actors      INTEGER NOT NULL,
		iterations  INTEGER NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL REFERENCES runs(id),
		kind       TEXT NOT NULL,
		process_id INTEGER NOT NULL,
		peer_id    INTEGER NOT NULL,
		payload    INTEGER NOT NULL,
		lamport_ts INTEGER NOT NULL,
		at         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_run ON notifications(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_notifications_lamport ON notifications(run_id, lamport_ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun records the start of a driver run under a fresh UUIDv7, so run
// ids sort by creation time.
func (s *Store) CreateRun(actors, iterations int) (*model.Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	run := &model.Run{
		ID:         id.String(),
		Actors:     actors,
		Iterations: iterations,
		StartedAt:  time.Now().UTC(),
	}
	err = retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (id, actors, iterations, started_at) VALUES (?, ?, ?, ?)`,
			run.ID, run.Actors, run.Iterations, run.StartedAt.Format(timeLayout),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(id string) error {
	now := time.Now().UTC().Format(timeLayout)
	var affected int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (*model.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, actors, iterations, started_at, finished_at FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (*model.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, actors, iterations, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, actors, iterations, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var r model.Run
	var startedStr string
	var finishedStr sql.NullString
	if err := row.Scan(&r.ID, &r.Actors, &r.Iterations, &startedStr, &finishedStr); err != nil {
		return nil, err
	}
	var parseErr error
	r.StartedAt, parseErr = time.Parse(time.RFC3339Nano, startedStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, parseErr)
	}
	if finishedStr.Valid {
		fin, err := time.Parse(time.RFC3339Nano, finishedStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", r.ID, err)
		}
		r.FinishedAt = &fin
	}
	return &r, nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// InsertNotification appends a notification to the journal and returns its
// row id. n.RunID must name an existing run.
func (s *Store) InsertNotification(n *model.Notification) (int64, error) {
	if !n.Kind.Valid() {
		return 0, fmt.Errorf("insert notification: unknown kind %q", n.Kind)
	}
	at := n.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var lastID int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`INSERT INTO notifications (run_id, kind, process_id, peer_id, payload, lamport_ts, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.RunID, string(n.Kind), n.ProcessID, n.PeerID, n.Payload, n.Timestamp,
			at.Format(timeLayout),
		)
		if err != nil {
			return err
		}
		lastID, err = res.LastInsertId()
		return err
	})
	return lastID, err
}

// ListNotifications returns a run's notifications in the order they were
// journaled. A limit <= 0 returns all of them.
func (s *Store) ListNotifications(runID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, kind, process_id, peer_id, payload, lamport_ts, at
		 FROM notifications WHERE run_id = ?
		 ORDER BY id ASC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// CountNotifications returns how many notifications of kind the run has.
func (s *Store) CountNotifications(runID string, kind model.NotificationKind) (int64, error) {
	var count int64
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE run_id = ? AND kind = ?`, runID, string(kind),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

func scanNotifications(rows *sql.Rows) ([]model.Notification, error) {
	var notes []model.Notification
	for rows.Next() {
		var n model.Notification
		var kindStr, atStr string
		if err := rows.Scan(&n.ID, &n.RunID, &kindStr, &n.ProcessID, &n.PeerID,
			&n.Payload, &n.Timestamp, &atStr); err != nil {
			return nil, err
		}
		n.Kind = model.NotificationKind(kindStr)
		var parseErr error
		n.At, parseErr = time.Parse(time.RFC3339Nano, atStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse at time for notification %d: %w", n.ID, parseErr)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
