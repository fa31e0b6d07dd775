package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/geotag/internal/model"
)

// SQLiteSink stores units in a SQLite database, one transaction per unit
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) the database at path with WAL mode enabled
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Batch workers share the sink; serialize writers on one connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSink{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	summary_json TEXT
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	page_id INTEGER NOT NULL,
	UNIQUE(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tokens (
	page_row INTEGER NOT NULL,
	idx INTEGER NOT NULL,
	text TEXT NOT NULL,
	lemma TEXT,
	pos TEXT,
	usas_tags TEXT,
	page_id INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	ne_tag TEXT,
	sem_entity TEXT,
	sem_family TEXT,
	latitude REAL,
	longitude REAL,
	PRIMARY KEY(page_row, idx),
	FOREIGN KEY(page_row) REFERENCES pages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id, page_id);
CREATE INDEX IF NOT EXISTS idx_tokens_ne ON tokens(ne_tag);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// WritePage implements Sink
func (s *SQLiteSink) WritePage(ctx context.Context, page model.PageRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, document, started_at) VALUES (?, ?, ?)`,
		page.RunID, page.DocumentName, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pages (run_id, seq, page_id) VALUES (?, ?, ?)`,
		page.RunID, page.Sequence, page.PageID,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	pageRow, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens
		(page_row, idx, text, lemma, pos, usas_tags, page_id, start_char, end_char, ne_tag, sem_entity, sem_family, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, tok := range page.Tokens {
		tags, err := json.Marshal(tok.SemTags)
		if err != nil {
			return err
		}

		var neTag, semText, semFamily sql.NullString
		if tok.NE != nil {
			neTag = sql.NullString{String: tok.NE.Tag, Valid: true}
		}
		if tok.SemEntity != nil {
			semText = sql.NullString{String: tok.SemEntity.Text, Valid: true}
			semFamily = sql.NullString{String: tok.SemEntity.Family, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			pageRow, i, tok.Text, tok.Lemma, tok.POS, string(tags), tok.PageID,
			tok.StartChar, tok.EndChar, neTag, semText, semFamily,
			nullFloat(tok.Latitude), nullFloat(tok.Longitude),
		); err != nil {
			return fmt.Errorf("insert token %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// RecordRun implements RunRecorder
func (s *SQLiteSink) RecordRun(ctx context.Context, summary model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, document, started_at, finished_at, summary_json) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET finished_at=excluded.finished_at, summary_json=excluded.summary_json`,
		summary.RunID, summary.Document,
		summary.StartedAt.Format(time.RFC3339Nano),
		summary.StartedAt.Add(summary.Duration).Format(time.RFC3339Nano),
		string(data),
	)
	return err
}

// PageCount returns the number of units stored for a run
func (s *SQLiteSink) PageCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// Close implements Sink
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
