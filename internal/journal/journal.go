// Package journal keeps a local upload history in SQLite. Every upload gets
// a row when it starts and a final state when it ends, so an operator can ask
// the client what happened across restarts without grepping logs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one upload as the journal remembers it.
type Record struct {
	ID         string
	UploadID   string
	Filename   string
	Size       int64
	Outcome    string // "pending" until Finish is called
	Attempts   int
	BytesSent  int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while pending
}

// Journal is an upload history backed by a SQLite file.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path and runs migrations.
func Open(path string) (*Journal, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS uploads (
    id TEXT PRIMARY KEY,
    upload_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    size INTEGER NOT NULL,
    outcome TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    bytes_sent INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_uploads_started ON uploads(started_at);
CREATE INDEX IF NOT EXISTS idx_uploads_upload_id ON uploads(upload_id);`
	_, err := j.db.Exec(schema)
	return err
}

// Begin records that an upload is starting. id is the run identifier,
// uploadID the wire-level fingerprint; the same file uploaded twice gets two
// rows sharing an upload_id.
func (j *Journal) Begin(ctx context.Context, id, uploadID, filename string, size int64) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO uploads (id, upload_id, filename, size, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, uploadID, filename, size, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	return nil
}

// Finish records the terminal state of an upload started with Begin.
func (j *Journal) Finish(ctx context.Context, id, outcome string, attempts int, bytesSent int64, errText string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE uploads
		 SET outcome = ?, attempts = ?, bytes_sent = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		outcome, attempts, bytesSent, errText, time.Now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal finish rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("journal finish: %w", sql.ErrNoRows)
	}
	return nil
}

// Recent returns the latest uploads, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, upload_id, filename, size, outcome, attempts, bytes_sent, error, started_at, finished_at
		 FROM uploads
		 ORDER BY started_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UploadID, &r.Filename, &r.Size, &r.Outcome,
			&r.Attempts, &r.BytesSent, &r.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			r.FinishedAt = time.Unix(0, finishedAt.Int64)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return records, nil
}
