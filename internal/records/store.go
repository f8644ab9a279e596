package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"summify/internal/fileutil"
	"summify/internal/logging"
	"summify/internal/services"
	"summify/internal/textutil"
)

const lockRetryDelay = 25 * time.Millisecond

// Store serialises load-mutate-save cycles over the record document.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	lock *flock.Flock

	now       func() time.Time
	newID     func() string
	rename    func(oldPath, newPath string) error
	remove    func(path string) error
	removeAll func(path string) error
}

// Open returns a store backed by the JSON document at path. The file is
// created lazily on the first mutation.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.New(services.CodeInvalidArgs, "records path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.CodeFileIO, "", "open records", "create records directory", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "records"),
		lock:      flock.New(path + ".lock"),
		now:       time.Now,
		newID:     NewID,
		rename:    os.Rename,
		remove:    os.Remove,
		removeAll: os.RemoveAll,
	}, nil
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the current document. A missing, unreadable, or corrupt document
// yields an empty one.
func (s *Store) Load(ctx context.Context) (Document, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return Document{}, err
	}
	defer unlock()
	return s.read(), nil
}

// Get returns the record addressed by id.
func (s *Store) Get(ctx context.Context, id Identity) (FileRecord, bool, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return FileRecord{}, false, err
	}
	idx := doc.find(id)
	if idx < 0 {
		return FileRecord{}, false, nil
	}
	return doc.Records[idx], true, nil
}

// Upsert finds the record by id, then display name, creating it when
// missing, and applies the non-nil patch fields.
func (s *Store) Upsert(ctx context.Context, id Identity, patch Patch) (FileRecord, error) {
	if id.empty() {
		return FileRecord{}, services.New(services.CodeInvalidArgs, "record identity is required")
	}
	var out FileRecord
	err := s.update(ctx, func(doc *Document) (bool, error) {
		idx := doc.find(id)
		if idx < 0 {
			if strings.TrimSpace(id.DisplayName) == "" {
				return false, services.New(services.CodeInputNotFound, "no record with id "+id.ID)
			}
			rec := FileRecord{
				ID:          id.ID,
				DisplayName: id.DisplayName,
				CreatedTime: NewTimestamp(s.now()),
			}
			if rec.ID == "" {
				rec.ID = s.newID()
			}
			if patch.CreatedTime != nil {
				rec.CreatedTime = patch.CreatedTime
			}
			rec.StoredName = StoredName(rec.ID, rec.DisplayName)
			rec.OutputFolder = rec.ID
			doc.Records = append(doc.Records, rec)
			idx = len(doc.Records) - 1
		}
		patch.apply(&doc.Records[idx])
		out = doc.Records[idx]
		return true, nil
	})
	return out, err
}

// View is a live record as presented to listings.
type View struct {
	FileRecord
	SourcePath string `json:"source_path"`
	SizeBytes  int64  `json:"size_bytes"`
	BaseName   string `json:"base_name"`
}

// List returns records whose stored file exists in uploadDir, newest first.
// Records created in the same second are ordered by reverse insertion.
// Records pointing at missing files are skipped, not deleted.
func (s *Store) List(ctx context.Context, uploadDir string, exts []string) ([]View, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(doc.Records))
	for i := len(doc.Records) - 1; i >= 0; i-- {
		rec := normalizeRecord(doc.Records[i], exts)
		view := View{FileRecord: rec, BaseName: textutil.BaseName(rec.ArtifactName(), exts)}
		if uploadDir != "" {
			view.SourcePath = filepath.Join(uploadDir, rec.StoredName)
			info, err := os.Stat(view.SourcePath)
			if err != nil {
				continue
			}
			view.SizeBytes = info.Size()
		}
		views = append(views, view)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return createdAt(views[i].FileRecord).After(createdAt(views[j].FileRecord))
	})
	return views, nil
}

func createdAt(rec FileRecord) time.Time {
	if rec.CreatedTime == nil {
		return time.Time{}
	}
	return rec.CreatedTime.Time
}

// normalizeRecord fills derived fields for presentation without persisting.
func normalizeRecord(rec FileRecord, exts []string) FileRecord {
	if rec.StoredName == "" {
		rec.StoredName = rec.DisplayName
	}
	if rec.ID == "" {
		rec.ID = rec.DisplayName
	}
	if rec.OutputFolder == "" {
		rec.OutputFolder = textutil.BaseName(rec.DisplayName, exts)
	}
	return rec
}

// Delete removes the stored upload, then the output folder, then the record.
// A failed removal aborts before the record is dropped so the call can be
// retried.
func (s *Store) Delete(ctx context.Context, id Identity, uploadDir, outputDir string) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		idx := doc.find(id)
		if idx < 0 {
			return false, services.New(services.CodeInputNotFound, "no record for "+id.String())
		}
		rec := normalizeRecord(doc.Records[idx], nil)
		logger := s.logger.With(logging.String(logging.FieldFileID, rec.ID))

		if uploadDir != "" {
			source := filepath.Join(uploadDir, rec.StoredName)
			if err := s.remove(source); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return false, services.Wrap(services.CodeFileIO, "", "delete record", "remove source file", err)
			}
			logger.Debug("source file removed", logging.String("path", source))
		}
		if outputDir != "" && rec.OutputFolder != "" {
			folder := filepath.Join(outputDir, rec.OutputFolder)
			if err := s.removeAll(folder); err != nil {
				return false, services.Wrap(services.CodeFileIO, "", "delete record", "remove output folder", err)
			}
			logger.Debug("output folder removed", logging.String("path", folder))
		}

		doc.Records = append(doc.Records[:idx], doc.Records[idx+1:]...)
		logger.Info("record deleted",
			logging.String(logging.FieldEventType, "record_deleted"),
			logging.String("display_name", rec.DisplayName))
		return true, nil
	})
}

// Import stores src in uploadDir under a freshly minted id and inserts its
// record. Uploads that share a display name get distinct ids and stored
// names.
func (s *Store) Import(ctx context.Context, src io.Reader, displayName, uploadDir string, exts []string) (FileRecord, error) {
	name := textutil.SanitizeUploadName(displayName)
	if name == "" {
		return FileRecord{}, services.New(services.CodeInvalidArgs, fmt.Sprintf("invalid file name %q", displayName))
	}
	if !extensionAllowed(name, exts) {
		return FileRecord{}, services.New(services.CodeUnsupportedInput, name)
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return FileRecord{}, services.Wrap(services.CodeUploadFailed, "", "import", "create upload directory", err)
	}

	id := s.newID()
	stored := StoredName(id, name)
	target := filepath.Join(uploadDir, stored)
	if _, err := fileutil.WriteStream(target, src, 0o644); err != nil {
		return FileRecord{}, services.Wrap(services.CodeUploadFailed, "", "import", name, err)
	}

	rec, err := s.Upsert(ctx, Identity{ID: id, DisplayName: name}, Patch{
		StoredName:   String(stored),
		OutputFolder: String(id),
	})
	if err != nil {
		_ = os.Remove(target)
		return FileRecord{}, err
	}
	s.logger.Info("upload stored",
		logging.String(logging.FieldEventType, "upload_stored"),
		logging.String(logging.FieldFileID, id),
		logging.String("display_name", name))
	return rec, nil
}

// Rename changes a record's display name. The id, stored name, and output
// folder are left as they are, so artifact paths keep following
// ArtifactName.
func (s *Store) Rename(ctx context.Context, id Identity, newDisplayName string) (FileRecord, error) {
	name := textutil.SanitizeUploadName(newDisplayName)
	if name == "" {
		return FileRecord{}, services.New(services.CodeInvalidArgs, fmt.Sprintf("invalid file name %q", newDisplayName))
	}
	var out FileRecord
	err := s.update(ctx, func(doc *Document) (bool, error) {
		idx := doc.find(id)
		if idx < 0 {
			return false, services.New(services.CodeInputNotFound, "no record for "+id.String())
		}
		doc.Records[idx].DisplayName = name
		out = doc.Records[idx]
		return true, nil
	})
	return out, err
}

// update runs fn under the store lock and saves when fn reports a change.
func (s *Store) update(ctx context.Context, fn func(doc *Document) (bool, error)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc := s.read()
	changed, err := fn(&doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.write(doc)
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("records lock not acquired")
		}
		return nil, services.Wrap(services.CodeFileIO, "", "lock records", s.lock.Path(), err)
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

func (s *Store) read() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("records document unreadable; starting empty",
				logging.String(logging.FieldEventType, "records_load_failed"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run files sync to rebuild records from the upload directory"))
		}
		return EmptyDocument()
	}
	doc, ok := DecodeDocument(data)
	if !ok && len(data) > 0 {
		s.logger.Warn("records document corrupt; starting empty",
			logging.String(logging.FieldEventType, "records_load_failed"),
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "run files sync to rebuild records from the upload directory"))
	}
	return doc
}

func (s *Store) write(doc Document) error {
	doc.Version = Version
	data, err := doc.Encode()
	if err != nil {
		return services.Wrap(services.CodeFileIO, "", "save records", "encode", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.CodeFileIO, "", "save records", s.path, err)
	}
	return nil
}

func extensionAllowed(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range exts {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}
