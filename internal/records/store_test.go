package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/services"
)

var testExts = []string{".mp4", ".mp3", ".wav", ".txt"}

type fixture struct {
	store  *Store
	upload string
	output string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	store, err := Open(filepath.Join(base, "data", "records.json"), nil)
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	counter := 0
	store.newID = func() string {
		counter++
		return fmt.Sprintf("%032x", counter)
	}

	upload := filepath.Join(base, "uploads")
	output := filepath.Join(base, "outputs")
	require.NoError(t, os.MkdirAll(upload, 0o755))
	require.NoError(t, os.MkdirAll(output, 0o755))
	return fixture{store: store, upload: upload, output: output}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadCorruptDocumentYieldsEmptyStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, content := range []string{"{not json", `{"version":2,"records":{"a":1}}`, `[1,2,3]`} {
		writeFile(t, f.store.Path(), content)
		doc, err := f.store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, Version, doc.Version)
		assert.Empty(t, doc.Records, "content %q", content)
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.store.Path(), `{"version":1,"records":[42,{"file_name":""},{"file_name":"talk.mp4","transcribed":true}]}`)

	doc, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "talk.mp4", doc.Records[0].DisplayName)
	assert.True(t, doc.Records[0].Transcribed)
}

func TestImportSameNameTwiceCreatesDistinctRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.Import(ctx, strings.NewReader("one"), "report.mp4", f.upload, testExts)
	require.NoError(t, err)
	second, err := f.store.Import(ctx, strings.NewReader("two"), "report.mp4", f.upload, testExts)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.StoredName, second.StoredName)
	assert.Equal(t, StoredName(first.ID, "report.mp4"), first.StoredName)
	assert.Equal(t, first.ID, first.OutputFolder)

	views, err := f.store.List(ctx, f.upload, testExts)
	require.NoError(t, err)
	require.Len(t, views, 2)
	// newest first
	assert.Equal(t, second.ID, views[0].ID)
	assert.Equal(t, int64(3), views[0].SizeBytes)
	assert.Equal(t, "report", views[0].BaseName)
}

func TestImportRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Import(ctx, strings.NewReader("x"), "../", f.upload, testExts)
	assert.ErrorIs(t, err, services.ErrInvalidArgs)

	_, err = f.store.Import(ctx, strings.NewReader("x"), "notes.docx", f.upload, testExts)
	assert.ErrorIs(t, err, services.ErrUnsupportedInput)
}

func TestListExcludesMissingFilesWithoutDeleting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("x"), "a.mp3", f.upload, testExts)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.upload, rec.StoredName)))

	views, err := f.store.List(ctx, f.upload, testExts)
	require.NoError(t, err)
	assert.Empty(t, views)

	_, ok, err := f.store.Get(ctx, ByID(rec.ID))
	require.NoError(t, err)
	assert.True(t, ok, "stale record must stay in the document")
}

func TestUpsertAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("x"), "talk.mp4", f.upload, testExts)
	require.NoError(t, err)

	stamp := NewTimestamp(time.Date(2024, 6, 1, 12, 30, 0, 0, time.Local))
	_, err = f.store.Upsert(ctx, ByID(rec.ID), Patch{Transcribed: Bool(true), LastTranscriptionTime: stamp})
	require.NoError(t, err)
	updated, err := f.store.Upsert(ctx, ByID(rec.ID), Patch{Fixed: Bool(true)})
	require.NoError(t, err)

	assert.True(t, updated.Transcribed)
	assert.True(t, updated.Fixed)
	assert.False(t, updated.Summarized)
	assert.Equal(t, "2024-06-01 12:30:00", updated.LastTranscriptionTime.String())
	assert.Equal(t, rec.StoredName, updated.StoredName)
	assert.Equal(t, rec.CreatedTime.String(), updated.CreatedTime.String())
}

func TestUpsertFindsByDisplayNameAndCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.Upsert(ctx, Identity{DisplayName: "legacy.wav"}, Patch{})
	require.NoError(t, err)
	assert.True(t, IsID(created.ID))
	assert.Equal(t, StoredName(created.ID, "legacy.wav"), created.StoredName)
	assert.Equal(t, created.ID, created.OutputFolder)
	assert.NotNil(t, created.CreatedTime)

	again, err := f.store.Upsert(ctx, Identity{DisplayName: "legacy.wav"}, Patch{Summarized: Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = f.store.Upsert(ctx, ByID("missing"), Patch{})
	assert.ErrorIs(t, err, services.ErrInputNotFound)
}

func TestPersistedDocumentShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Import(ctx, strings.NewReader("x"), "讲座.mp3", f.upload, testExts)
	require.NoError(t, err)

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"version": 2`)
	assert.Contains(t, text, `"file_name": "讲座.mp3"`)
	assert.Contains(t, text, `"last_fix_time": null`)
	assert.Contains(t, text, `"created_time": "2024-05-01 09:01:00"`)
}

func TestDeleteRemovesFileFolderAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("x"), "talk.mp4", f.upload, testExts)
	require.NoError(t, err)
	writeFile(t, filepath.Join(f.output, rec.OutputFolder, "talk_转写.md"), "hello")

	require.NoError(t, f.store.Delete(ctx, ByID(rec.ID), f.upload, f.output))

	assert.NoFileExists(t, filepath.Join(f.upload, rec.StoredName))
	assert.NoDirExists(t, filepath.Join(f.output, rec.OutputFolder))
	_, ok, err := f.store.Get(ctx, ByID(rec.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteKeepsRecordWhenFolderRemovalFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("x"), "talk.mp4", f.upload, testExts)
	require.NoError(t, err)
	writeFile(t, filepath.Join(f.output, rec.OutputFolder, "talk_fixed.txt"), "hello")

	f.store.removeAll = func(string) error { return os.ErrPermission }

	err = f.store.Delete(ctx, ByID(rec.ID), f.upload, f.output)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrFileIO)
	assert.ErrorIs(t, err, os.ErrPermission)

	_, ok, err := f.store.Get(ctx, ByID(rec.ID))
	require.NoError(t, err)
	assert.True(t, ok, "record must survive a failed delete so it can be retried")
	assert.DirExists(t, filepath.Join(f.output, rec.OutputFolder))

	f.store.removeAll = os.RemoveAll
	require.NoError(t, f.store.Delete(ctx, ByID(rec.ID), f.upload, f.output))
}

func TestDeleteUnknownRecord(t *testing.T) {
	f := newFixture(t)
	err := f.store.Delete(context.Background(), ByID("nope"), f.upload, f.output)
	assert.ErrorIs(t, err, services.ErrInputNotFound)
}

func TestRenameKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("x"), "draft.mp3", f.upload, testExts)
	require.NoError(t, err)

	renamed, err := f.store.Rename(ctx, ByID(rec.ID), "第一讲.mp3")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, renamed.ID)
	assert.Equal(t, rec.StoredName, renamed.StoredName)
	assert.Equal(t, "第一讲.mp3", renamed.DisplayName)

	id, _, ok := ParseStoredName(renamed.StoredName)
	require.True(t, ok)
	assert.Equal(t, rec.ID, id)
	assert.Equal(t, "draft.mp3", renamed.ArtifactName())

	views, err := f.store.List(ctx, f.upload, testExts)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "draft", views[0].BaseName)
}

func TestListOrdersSameSecondByReverseInsertion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local) }

	var ids []string
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		rec, err := f.store.Import(ctx, strings.NewReader("x"), name, f.upload, testExts)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	views, err := f.store.List(ctx, f.upload, testExts)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{views[0].ID, views[1].ID, views[2].ID})
}

func TestAcquireHonoursContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold the file lock from a second handle so the store has to wait.
	other, err := Open(f.store.Path(), nil)
	require.NoError(t, err)
	unlock, err := other.acquire(context.Background())
	require.NoError(t, err)
	defer unlock()

	_, err = f.store.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrFileIO))
}
