package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/podtheme/themepack/pkg/theme"
)

// legacyBlobName is the old single-blob store: one JSON map holding every
// cloned theme record. Imported once, then removed.
const legacyBlobName = "clonedThemes.json"

func marshalRecord(rec theme.ClonedThemeData) ([]byte, error) {
	return json.Marshal(rec)
}

func unmarshalRecord(r io.Reader) (theme.ClonedThemeData, error) {
	var rec theme.ClonedThemeData
	err := json.NewDecoder(r).Decode(&rec)
	return rec, err
}

// migrateLegacyBlob copies every entry of the legacy single-blob store into
// the database and removes the blob. Any failure is logged and skipped —
// migration must never block normal operation.
func (s *Store) migrateLegacyBlob() {
	path := filepath.Join(s.dir, legacyBlobName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.logger.Warn("legacy theme blob unreadable, skipping migration", "path", path, "error", err)
		return
	}

	var records map[string]theme.ClonedThemeData
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("legacy theme blob unparsable, skipping migration", "path", path, "error", err)
		return
	}

	ctx := context.Background()
	migrated := 0
	for id, rec := range records {
		if rec.ID == "" {
			rec.ID = id
		}
		if err := s.Put(ctx, rec); err != nil {
			s.logger.Warn("failed to migrate legacy theme record", "id", id, "error", err)
			continue
		}
		migrated++
	}
	s.logger.Info("migrated legacy theme blob", "records", migrated, "of", len(records))

	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove legacy theme blob", "path", path, "error", err)
	}
}
