package audit

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS corrections (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	project    TEXT    NOT NULL,
	file       TEXT    NOT NULL,
	point      TEXT    NOT NULL,
	axis       TEXT    NOT NULL,
	slot       TEXT    NOT NULL,
	position   INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	original   REAL,
	corrected  REAL    NOT NULL,
	reason     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corrections_run ON corrections(run_id);
`

// SQLiteStore persists corrections into an SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Write inserts records for runID in a single transaction.
func (s *SQLiteStore) Write(runID string, records []Correction) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO corrections (run_id, project, file, point, axis, slot, position, kind, original, corrected, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var original sql.NullFloat64
		if r.Original != nil {
			original = sql.NullFloat64{Float64: *r.Original, Valid: true}
		}
		if _, err := stmt.Exec(runID, r.Project, r.File, r.Point, r.Axis, r.Slot, r.Position,
			string(r.Kind), original, r.Corrected, r.Reason); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert correction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corrections: %w", err)
	}

	log.Info().Str("path", s.path).Str("run", runID).Int("count", len(records)).Msg("Corrections stored in audit database")
	return nil
}

// ByRun returns the corrections stored for runID in insertion order.
func (s *SQLiteStore) ByRun(runID string) ([]Correction, error) {
	rows, err := s.db.Query(`
		SELECT run_id, project, file, point, axis, slot, position, kind, original, corrected, reason
		FROM corrections
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		var kind string
		var original sql.NullFloat64
		if err := rows.Scan(&c.RunID, &c.Project, &c.File, &c.Point, &c.Axis, &c.Slot, &c.Position,
			&kind, &original, &c.Corrected, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.Kind = Kind(kind)
		if original.Valid {
			c.Original = Float(original.Float64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
