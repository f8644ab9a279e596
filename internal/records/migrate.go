package records

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"summify/internal/fileutil"
	"summify/internal/logging"
	"summify/internal/textutil"
)

// MigrateDocument upgrades doc to the current schema without touching the
// filesystem: records lacking an id get one, empty stored names and output
// folders fall back to their legacy derivations, missing created times are
// filled, and every record is marked for a full rewrite. changed reports
// whether the result differs from what was decoded; a migrated document
// always migrates to itself with changed=false.
func MigrateDocument(doc Document, exts []string, newID func() string, now func() time.Time) (Document, bool) {
	if newID == nil {
		newID = NewID
	}
	if now == nil {
		now = time.Now
	}
	changed := doc.dropped > 0 || doc.Version != Version

	out := Document{Version: Version, Records: make([]FileRecord, 0, len(doc.Records))}
	seen := make(map[string]bool, len(doc.Records))
	for _, rec := range doc.Records {
		if strings.TrimSpace(rec.DisplayName) == "" {
			changed = true
			continue
		}
		if rec.incomplete {
			rec.incomplete = false
			changed = true
		}
		if strings.TrimSpace(rec.ID) == "" || seen[rec.ID] {
			rec.ID = newID()
			changed = true
		}
		seen[rec.ID] = true
		if strings.TrimSpace(rec.StoredName) == "" {
			rec.StoredName = rec.DisplayName
			changed = true
		}
		if strings.TrimSpace(rec.OutputFolder) == "" {
			rec.OutputFolder = textutil.BaseName(rec.DisplayName, exts)
			changed = true
		}
		if rec.CreatedTime == nil || rec.CreatedTime.IsZero() {
			rec.CreatedTime = NewTimestamp(now())
			changed = true
		}
		out.Records = append(out.Records, rec)
	}
	return out, changed
}

// Migrate upgrades the persisted document and moves legacy files onto the
// id-based layout: an upload without an id prefix becomes "<id>__<display>",
// the output folder becomes "<id>", and artifacts named after the old stored
// name are renamed after the record's ArtifactName. Uploads already carrying
// an id prefix keep their name even when the display name has since changed.
// Each move happens only when the old path exists and the new one does not;
// a failed move leaves the record on its old name. Running Migrate twice
// reports changed=false the second time.
func (s *Store) Migrate(ctx context.Context, uploadDir, outputDir string, exts []string) (bool, error) {
	var changed bool
	err := s.update(ctx, func(doc *Document) (bool, error) {
		migrated, dirty := MigrateDocument(*doc, exts, s.newID, s.now)
		for i := range migrated.Records {
			if s.relocate(&migrated.Records[i], uploadDir, outputDir) {
				dirty = true
			}
		}
		*doc = migrated
		changed = dirty
		return dirty, nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Info("records migrated",
			logging.String(logging.FieldEventType, "records_migrated"),
			logging.String("path", s.path))
	}
	return changed, nil
}

func (s *Store) relocate(rec *FileRecord, uploadDir, outputDir string) bool {
	changed := false
	logger := s.logger.With(logging.String(logging.FieldFileID, rec.ID))
	oldStored := rec.StoredName

	_, _, prefixed := ParseStoredName(rec.StoredName)
	if !prefixed && uploadDir != "" && dirExists(uploadDir) {
		desired := StoredName(rec.ID, rec.DisplayName)
		if rec.StoredName != desired {
			from := filepath.Join(uploadDir, rec.StoredName)
			to := filepath.Join(uploadDir, desired)
			if fileutil.Exists(from) && !fileutil.Exists(to) {
				if err := s.rename(from, to); err != nil {
					logger.Warn("upload rename failed; keeping legacy name",
						logging.String(logging.FieldEventType, "records_migrate_rename_failed"),
						logging.String("from", from),
						logging.Error(err))
				} else {
					rec.StoredName = desired
					changed = true
				}
			}
		}
	}

	if outputDir == "" || !dirExists(outputDir) {
		return changed
	}
	if rec.OutputFolder != rec.ID {
		from := filepath.Join(outputDir, rec.OutputFolder)
		to := filepath.Join(outputDir, rec.ID)
		if fileutil.Exists(from) && !fileutil.Exists(to) {
			if err := s.rename(from, to); err != nil {
				logger.Warn("output folder rename failed; keeping legacy folder",
					logging.String(logging.FieldEventType, "records_migrate_rename_failed"),
					logging.String("from", from),
					logging.Error(err))
			} else {
				rec.OutputFolder = rec.ID
				changed = true
			}
		}
	}

	folder := filepath.Join(outputDir, rec.OutputFolder)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return changed
	}
	for _, entry := range entries {
		newName, ok := artifactName(entry.Name(), oldStored, rec.ArtifactName())
		if !ok {
			continue
		}
		from := filepath.Join(folder, entry.Name())
		to := filepath.Join(folder, newName)
		if fileutil.Exists(to) {
			continue
		}
		if err := s.rename(from, to); err != nil {
			logger.Warn("artifact rename failed",
				logging.String(logging.FieldEventType, "records_migrate_rename_failed"),
				logging.String("from", from),
				logging.Error(err))
			continue
		}
		changed = true
	}
	return changed
}

// artifactName maps an artifact named after the stored file onto the display
// name, by full name first and then by stem.
func artifactName(name, stored, display string) (string, bool) {
	if stored == "" || stored == display {
		return "", false
	}
	if strings.HasPrefix(name, stored) {
		return display + name[len(stored):], true
	}
	storedStem := strings.TrimSuffix(stored, filepath.Ext(stored))
	displayStem := strings.TrimSuffix(display, filepath.Ext(display))
	if storedStem == "" || storedStem == displayStem {
		return "", false
	}
	if strings.HasPrefix(name, storedStem) {
		return displayStem + name[len(storedStem):], true
	}
	return "", false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
