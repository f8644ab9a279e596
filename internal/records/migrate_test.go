package records

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDocument = `{
  "records": [
    {"file_name": "talk.mp4", "transcribed": true, "last_transcription_time": "2023-01-02 03:04:05"},
    {"file_name": "notes.txt", "id": "0123456789abcdef0123456789abcdef", "stored_name": "notes.txt", "created_time": "2023-02-01 00:00:00"},
    "garbage"
  ]
}`

func TestMigrateDocumentBackfillsAndIsIdempotent(t *testing.T) {
	doc, ok := DecodeDocument([]byte(legacyDocument))
	require.True(t, ok)

	ids := 0
	const mintedID = "ffffffffffffffffffffffffffffffff"
	newID := func() string { ids++; return mintedID }
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local) }

	migrated, changed := MigrateDocument(doc, testExts, newID, now)
	require.True(t, changed)
	require.Len(t, migrated.Records, 2)
	assert.Equal(t, Version, migrated.Version)

	talk := migrated.Records[0]
	assert.Equal(t, mintedID, talk.ID)
	assert.Equal(t, "talk.mp4", talk.StoredName)
	assert.Equal(t, "talk", talk.OutputFolder)
	assert.True(t, talk.Transcribed)
	assert.Equal(t, "2024-01-01 00:00:00", talk.CreatedTime.String())
	assert.Equal(t, "2023-01-02 03:04:05", talk.LastTranscriptionTime.String())

	notes := migrated.Records[1]
	assert.Equal(t, "0123456789abcdef0123456789abcdef", notes.ID)
	assert.Equal(t, "2023-02-01 00:00:00", notes.CreatedTime.String())

	encoded, err := migrated.Encode()
	require.NoError(t, err)
	reloaded, ok := DecodeDocument(encoded)
	require.True(t, ok)
	_, changed = MigrateDocument(reloaded, testExts, newID, now)
	assert.False(t, changed, "migrating a migrated document must be a no-op")
	assert.Equal(t, 1, ids)
}

func TestMigrateDocumentReassignsDuplicateIDs(t *testing.T) {
	doc, ok := DecodeDocument([]byte(`{"version":2,"records":[
		{"id":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","file_name":"a.mp3"},
		{"id":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","file_name":"b.mp3"}]}`))
	require.True(t, ok)

	migrated, changed := MigrateDocument(doc, testExts, func() string { return "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" }, nil)
	require.True(t, changed)
	assert.NotEqual(t, migrated.Records[0].ID, migrated.Records[1].ID)
}

func TestMigrateRelocatesLegacyFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writeFile(t, f.store.Path(), `{"records":[{"file_name":"talk.mp4","stored_name":"talk.mp4","output_folder":"talk"}]}`)
	writeFile(t, filepath.Join(f.upload, "talk.mp4"), "video")
	writeFile(t, filepath.Join(f.output, "talk", "talk_转写.md"), "transcript")

	changed, err := f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	require.True(t, changed)

	doc, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, StoredName(rec.ID, "talk.mp4"), rec.StoredName)
	assert.Equal(t, rec.ID, rec.OutputFolder)
	assert.FileExists(t, filepath.Join(f.upload, rec.StoredName))
	assert.NoFileExists(t, filepath.Join(f.upload, "talk.mp4"))
	assert.FileExists(t, filepath.Join(f.output, rec.ID, "talk_转写.md"))

	changed, err = f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMigrateRenamesArtifactsNamedAfterStoredFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := "0123456789abcdef0123456789abcdef"
	stored := StoredName(id, "talk.mp4")
	writeFile(t, f.store.Path(), `{"version":2,"records":[{"id":"`+id+`","file_name":"talk.mp4","stored_name":"`+stored+`","output_folder":"`+id+`"}]}`)
	writeFile(t, filepath.Join(f.upload, stored), "video")
	writeFile(t, filepath.Join(f.output, id, id+"__talk_audio.m4a"), "audio")
	writeFile(t, filepath.Join(f.output, id, stored+".srt"), "subs")

	changed, err := f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.FileExists(t, filepath.Join(f.output, id, "talk_audio.m4a"))
	assert.FileExists(t, filepath.Join(f.output, id, "talk.mp4.srt"))

	changed, err = f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMigrateLeavesRenamedRecordsInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Import(ctx, strings.NewReader("video"), "lecture.mp4", f.upload, testExts)
	require.NoError(t, err)
	writeFile(t, filepath.Join(f.output, rec.OutputFolder, "lecture_转写.md"), "transcript")
	_, err = f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)

	_, err = f.store.Rename(ctx, ByID(rec.ID), "讲座.mp4")
	require.NoError(t, err)

	changed, err := f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	assert.False(t, changed)

	got, ok, err := f.store.Get(ctx, ByID(rec.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.StoredName, got.StoredName)
	assert.Equal(t, "讲座.mp4", got.DisplayName)
	assert.FileExists(t, filepath.Join(f.upload, rec.StoredName))
	assert.FileExists(t, filepath.Join(f.output, rec.ID, "lecture_转写.md"))
}

func TestMigrateKeepsLegacyNameWhenTargetExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writeFile(t, f.store.Path(), `{"version":2,"records":[{"id":"0123456789abcdef0123456789abcdef","file_name":"a.mp3","stored_name":"a.mp3","output_folder":"a","created_time":"2024-01-01 00:00:00","transcribed":false,"fixed":false,"summarized":false,"last_transcription_time":null,"last_fix_time":null,"last_summary_time":null}]}`)
	writeFile(t, filepath.Join(f.upload, "a.mp3"), "old")
	writeFile(t, filepath.Join(f.upload, StoredName("0123456789abcdef0123456789abcdef", "a.mp3")), "occupied")

	changed, err := f.store.Migrate(ctx, f.upload, f.output, testExts)
	require.NoError(t, err)
	assert.False(t, changed)

	rec, ok, err := f.store.Get(ctx, ByID("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.mp3", rec.StoredName)
	_, err = os.Stat(filepath.Join(f.upload, "a.mp3"))
	assert.NoError(t, err)
}
