package records

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Version is the schema version written by this package.
const Version = 2

// TimeLayout is the wall-clock layout used for every persisted timestamp.
const TimeLayout = "2006-01-02 15:04:05"

const storedNameSeparator = "__"

// Timestamp is a local wall-clock time persisted with TimeLayout. Values that
// do not parse decode as zero rather than failing the whole document.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds, matching its persisted precision.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.Local().Truncate(time.Second)}
}

// String renders the timestamp in TimeLayout, or "" for the zero value.
func (t *Timestamp) String() string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimeLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Time = time.Time{}
		return nil
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{TimeLayout, time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// FileRecord is the persisted identity and processing state of one upload.
type FileRecord struct {
	ID                    string     `json:"id"`
	DisplayName           string     `json:"file_name"`
	StoredName            string     `json:"stored_name"`
	OutputFolder          string     `json:"output_folder"`
	Transcribed           bool       `json:"transcribed"`
	Fixed                 bool       `json:"fixed"`
	Summarized            bool       `json:"summarized"`
	LastTranscriptionTime *Timestamp `json:"last_transcription_time"`
	LastFixTime           *Timestamp `json:"last_fix_time"`
	LastSummaryTime       *Timestamp `json:"last_summary_time"`
	CreatedTime           *Timestamp `json:"created_time"`

	// incomplete marks a record decoded without every persisted key, so
	// migration knows a rewrite is due.
	incomplete bool
}

// persistedKeys lists the keys a fully migrated record carries.
var persistedKeys = []string{
	"id", "file_name", "stored_name", "output_folder",
	"transcribed", "fixed", "summarized",
	"last_transcription_time", "last_fix_time", "last_summary_time", "created_time",
}

// Document is the whole persisted store.
type Document struct {
	Version int          `json:"version"`
	Records []FileRecord `json:"records"`

	// dropped counts entries that could not be decoded as records.
	dropped int
}

// EmptyDocument returns a fresh current-version document.
func EmptyDocument() Document {
	return Document{Version: Version, Records: []FileRecord{}}
}

// DecodeDocument parses a persisted document. Any parse error or structural
// mismatch yields an empty document and ok=false; individual malformed
// entries are skipped and counted for migration.
func DecodeDocument(data []byte) (Document, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyDocument(), false
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return EmptyDocument(), false
	}
	doc := Document{Records: []FileRecord{}}
	if raw, ok := top["version"]; ok {
		if err := json.Unmarshal(raw, &doc.Version); err != nil {
			doc.Version = 0
		}
	}
	rawRecords, ok := top["records"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawRecords), []byte("null")) {
		return doc, true
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawRecords, &entries); err != nil {
		return EmptyDocument(), false
	}
	for _, entry := range entries {
		rec, ok := decodeRecord(entry)
		if !ok {
			doc.dropped++
			continue
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, true
}

func decodeRecord(entry json.RawMessage) (FileRecord, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(entry, &keys); err != nil || keys == nil {
		return FileRecord{}, false
	}
	var rec FileRecord
	if err := json.Unmarshal(entry, &rec); err != nil {
		// Tolerate wrongly typed optional fields by decoding field by field.
		rec = FileRecord{}
		for _, key := range persistedKeys {
			if raw, ok := keys[key]; ok {
				single := map[string]json.RawMessage{key: raw}
				encoded, _ := json.Marshal(single)
				_ = json.Unmarshal(encoded, &rec)
			}
		}
		rec.incomplete = true
	}
	if strings.TrimSpace(rec.DisplayName) == "" {
		return FileRecord{}, false
	}
	for _, key := range persistedKeys {
		if _, ok := keys[key]; !ok {
			rec.incomplete = true
			break
		}
	}
	return rec, true
}

// Encode renders the document as indented JSON without HTML escaping so
// Unicode names stay readable.
func (d Document) Encode() ([]byte, error) {
	if d.Records == nil {
		d.Records = []FileRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewID mints a record id: 32 lowercase hex characters.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsID reports whether s is a well-formed record id.
func IsID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// StoredName builds the on-disk name for id and displayName.
func StoredName(id, displayName string) string {
	return id + storedNameSeparator + displayName
}

// ParseStoredName splits "<id>__<display>" when the prefix is a well-formed
// id. An empty remainder falls back to the full name as display.
func ParseStoredName(name string) (id, display string, ok bool) {
	prefix, rest, found := strings.Cut(name, storedNameSeparator)
	if !found || !IsID(prefix) {
		return "", name, false
	}
	if rest == "" {
		rest = name
	}
	return prefix, rest, true
}

// ArtifactName is the name a record's artifacts are derived from: the display
// part of its stored name, which Rename never touches. Records without a
// stored name fall back to the display name.
func (r FileRecord) ArtifactName() string {
	if strings.TrimSpace(r.StoredName) == "" {
		return r.DisplayName
	}
	_, display, _ := ParseStoredName(r.StoredName)
	return display
}

// Identity addresses a record by id first, then by display name.
type Identity struct {
	ID          string
	DisplayName string
}

// ByID addresses a record by id only.
func ByID(id string) Identity { return Identity{ID: id} }

func (i Identity) empty() bool {
	return strings.TrimSpace(i.ID) == "" && strings.TrimSpace(i.DisplayName) == ""
}

func (i Identity) String() string {
	if i.ID != "" {
		return i.ID
	}
	return i.DisplayName
}

// Patch carries optional field updates; nil fields are left untouched.
type Patch struct {
	StoredName            *string
	OutputFolder          *string
	Transcribed           *bool
	Fixed                 *bool
	Summarized            *bool
	LastTranscriptionTime *Timestamp
	LastFixTime           *Timestamp
	LastSummaryTime       *Timestamp
	// CreatedTime only fills a record that has none.
	CreatedTime *Timestamp
}

func (p Patch) apply(rec *FileRecord) {
	if p.StoredName != nil && *p.StoredName != "" {
		rec.StoredName = *p.StoredName
	}
	if p.OutputFolder != nil && *p.OutputFolder != "" {
		rec.OutputFolder = *p.OutputFolder
	}
	if p.Transcribed != nil {
		rec.Transcribed = *p.Transcribed
	}
	if p.Fixed != nil {
		rec.Fixed = *p.Fixed
	}
	if p.Summarized != nil {
		rec.Summarized = *p.Summarized
	}
	if p.LastTranscriptionTime != nil {
		rec.LastTranscriptionTime = p.LastTranscriptionTime
	}
	if p.LastFixTime != nil {
		rec.LastFixTime = p.LastFixTime
	}
	if p.LastSummaryTime != nil {
		rec.LastSummaryTime = p.LastSummaryTime
	}
	if p.CreatedTime != nil && (rec.CreatedTime == nil || rec.CreatedTime.IsZero()) {
		rec.CreatedTime = p.CreatedTime
	}
}

// Bool returns a pointer to v for Patch literals.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v for Patch literals.
func String(v string) *string { return &v }

func (d *Document) find(id Identity) int {
	if id.ID != "" {
		for i := range d.Records {
			if d.Records[i].ID == id.ID {
				return i
			}
		}
	}
	if id.DisplayName != "" {
		for i := range d.Records {
			if d.Records[i].DisplayName == id.DisplayName {
				return i
			}
		}
	}
	return -1
}
