package records

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"summify/internal/fileutil"
	"summify/internal/logging"
	"summify/internal/services"
)

// transcriptLeftoverSuffix marks transcripts older releases wrote next to
// uploads; they are never adopted as sources.
const transcriptLeftoverSuffix = "_转写.txt"

// SyncKind says how a reconciliation action treats an orphan file.
type SyncKind int

const (
	// SyncAdopt inserts a record using the id already carried by the name.
	SyncAdopt SyncKind = iota
	// SyncMint mints an id and renames the file to carry it.
	SyncMint
	// SyncRelink points an existing record whose stored file vanished at a
	// file carrying the same id.
	SyncRelink
)

func (k SyncKind) String() string {
	switch k {
	case SyncAdopt:
		return "adopt"
	case SyncMint:
		return "mint"
	case SyncRelink:
		return "relink"
	default:
		return "unknown"
	}
}

// SyncAction is one decided reconciliation step.
type SyncAction struct {
	Kind        SyncKind
	Current     string // name found in the upload directory
	Target      string // desired stored name
	ID          string
	DisplayName string
}

// PlanSync diffs the upload directory listing against doc and decides, for
// every orphan file with an allowed extension, which id it gets and what it
// should be called. It performs no I/O.
func PlanSync(doc Document, names []string, exts []string, newID func() string) []SyncAction {
	if newID == nil {
		newID = NewID
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	known := make(map[string]bool, len(doc.Records)*2)
	byID := make(map[string]FileRecord, len(doc.Records))
	for _, rec := range doc.Records {
		known[rec.StoredName] = true
		if rec.StoredName == "" {
			known[rec.DisplayName] = true
		}
		byID[rec.ID] = rec
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	claimed := make(map[string]bool)
	var actions []SyncAction
	for _, name := range sorted {
		if !extensionAllowed(name, exts) || strings.HasSuffix(name, transcriptLeftoverSuffix) {
			continue
		}
		if known[name] {
			continue
		}
		if _, ok := byID[name]; ok {
			continue
		}
		id, display, ok := ParseStoredName(name)
		if ok && !claimed[id] {
			rec, exists := byID[id]
			switch {
			case !exists:
				claimed[id] = true
				actions = append(actions, SyncAction{Kind: SyncAdopt, Current: name, Target: name, ID: id, DisplayName: display})
				continue
			case !present[rec.StoredName]:
				claimed[id] = true
				actions = append(actions, SyncAction{Kind: SyncRelink, Current: name, Target: name, ID: id, DisplayName: rec.DisplayName})
				continue
			}
		}
		minted := newID()
		claimed[minted] = true
		actions = append(actions, SyncAction{
			Kind:        SyncMint,
			Current:     name,
			Target:      StoredName(minted, display),
			ID:          minted,
			DisplayName: display,
		})
	}
	return actions
}

// SyncWithUpload inserts records for files in uploadDir that no record
// accounts for, renaming id-less files in place. It returns the number of
// records added or relinked.
func (s *Store) SyncWithUpload(ctx context.Context, uploadDir string, exts []string) (int, error) {
	if uploadDir == "" || !dirExists(uploadDir) {
		return 0, nil
	}
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		return 0, services.Wrap(services.CodeFileIO, "", "sync records", "read upload directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	applied := 0
	err = s.update(ctx, func(doc *Document) (bool, error) {
		actions := PlanSync(*doc, names, exts, s.newID)
		for _, action := range actions {
			s.applySync(doc, uploadDir, action)
			applied++
		}
		return applied > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if applied > 0 {
		s.logger.Info("upload directory reconciled",
			logging.String(logging.FieldEventType, "records_synced"),
			logging.Int("records", applied))
	}
	return applied, nil
}

func (s *Store) applySync(doc *Document, uploadDir string, action SyncAction) {
	stored := action.Current
	if action.Target != action.Current {
		from := filepath.Join(uploadDir, action.Current)
		to := filepath.Join(uploadDir, action.Target)
		if fileutil.Exists(to) {
			s.logger.Warn("sync target exists; keeping original name",
				logging.String(logging.FieldEventType, "records_sync_rename_skipped"),
				logging.String("file", action.Current))
		} else if err := s.rename(from, to); err != nil {
			s.logger.Warn("sync rename failed; keeping original name",
				logging.String(logging.FieldEventType, "records_sync_rename_failed"),
				logging.String("file", action.Current),
				logging.Error(err))
		} else {
			stored = action.Target
		}
	}

	if action.Kind == SyncRelink {
		if idx := doc.find(ByID(action.ID)); idx >= 0 {
			doc.Records[idx].StoredName = stored
			return
		}
	}
	doc.Records = append(doc.Records, FileRecord{
		ID:           action.ID,
		DisplayName:  action.DisplayName,
		StoredName:   stored,
		OutputFolder: action.ID,
		CreatedTime:  NewTimestamp(s.now()),
	})
}
