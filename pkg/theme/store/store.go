// Package store persists user-created theme records in a local SQLite
// database, one row per cloned theme. Records are bzip2-compressed JSON:
// asset overrides are inlined data URLs and dominate record size.
package store

import (
	"bytes"
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/hashicorp/go-hclog"
	sqlite "modernc.org/sqlite"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

const sqliteFull = 13 // SQLITE_FULL: database or disk is full

// Store handles SQLite operations for cloned theme records.
type Store struct {
	db     *sql.DB
	dir    string
	logger hclog.Logger
}

// Open opens (creating if needed) the theme database under dir and runs the
// one-time legacy-blob migration. Migration failures are logged, never fatal.
func Open(dir string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create state dir: %v", errors.ErrStorage, err)
	}

	dsn := "file:" + filepath.Join(dir, "themes.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", errors.ErrStorage, err)
	}

	s := &Store{db: db, dir: dir, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", errors.ErrStorage, err)
	}

	s.migrateLegacyBlob()
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS cloned_themes (
    id TEXT PRIMARY KEY,
    record BLOB NOT NULL,
    updated_at TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	return err
}

// GetAll returns every stored record keyed by theme id. An empty store yields
// an empty map, not an error. Rows that fail to decode are logged and skipped
// so one corrupt record cannot hide the rest.
func (s *Store) GetAll(ctx context.Context) (map[string]theme.ClonedThemeData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, record FROM cloned_themes`)
	if err != nil {
		return nil, s.classify("read records", err)
	}
	defer rows.Close()

	out := map[string]theme.ClonedThemeData{}
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, s.classify("scan record", err)
		}
		rec, err := decodeRecord(blob)
		if err != nil {
			s.logger.Warn("skipping undecodable theme record", "id", id, "error", err)
			continue
		}
		out[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("read records", err)
	}
	return out, nil
}

// Get returns one record, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (theme.ClonedThemeData, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM cloned_themes WHERE id = ?`, id).Scan(&blob)
	if stderrors.Is(err, sql.ErrNoRows) {
		return theme.ClonedThemeData{}, fmt.Errorf("%w: %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return theme.ClonedThemeData{}, s.classify("read record", err)
	}
	rec, err := decodeRecord(blob)
	if err != nil {
		return theme.ClonedThemeData{}, fmt.Errorf("%w: decode %s: %v", errors.ErrStorage, id, err)
	}
	return rec, nil
}

// Put upserts a record by id. Disk-full conditions surface as
// ErrQuotaExceeded — a retryable, data-loss-risk condition the caller must
// show to the user, not swallow.
func (s *Store) Put(ctx context.Context, rec theme.ClonedThemeData) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record has no id", errors.ErrStorage)
	}
	blob, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", errors.ErrStorage, rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cloned_themes (id, record, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.ID, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return s.classify("write record "+rec.ID, err)
	}
	return nil
}

// Delete removes a record. Deleting an absent id succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cloned_themes WHERE id = ?`, id); err != nil {
		return s.classify("delete record "+id, err)
	}
	return nil
}

// classify maps engine failures onto the storage error taxonomy.
func (s *Store) classify(op string, err error) error {
	var se *sqlite.Error
	quota := stderrors.As(err, &se) && se.Code() == sqliteFull ||
		stderrors.Is(err, syscall.ENOSPC) ||
		strings.Contains(err.Error(), "database or disk is full")
	if quota {
		return fmt.Errorf("%w: %s: %v", errors.ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: %s: %v", errors.ErrStorage, op, err)
}

func encodeRecord(rec theme.ClonedThemeData) ([]byte, error) {
	raw, err := marshalRecord(rec)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(blob []byte) (theme.ClonedThemeData, error) {
	r, err := bzip2.NewReader(bytes.NewReader(blob), nil)
	if err != nil {
		return theme.ClonedThemeData{}, err
	}
	defer r.Close()
	return unmarshalRecord(r)
}
