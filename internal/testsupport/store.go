package testsupport

import (
	"context"
	"strings"
	"testing"

	"summify/internal/config"
	"summify/internal/history"
	"summify/internal/records"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRecords opens the record store configured in cfg.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg.Paths.RecordsPath, nil)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	return store
}

// ImportFile stores content as an upload named displayName and returns its record.
func ImportFile(t testing.TB, cfg *config.Config, store *records.Store, displayName, content string) records.FileRecord {
	t.Helper()

	rec, err := store.Import(context.Background(), strings.NewReader(content), displayName, cfg.Paths.UploadDir, cfg.Media.AllowedExtensions)
	if err != nil {
		t.Fatalf("store.Import: %v", err)
	}
	return rec
}
