package pipeline

import (
	"path/filepath"

	"summify/internal/records"
	"summify/internal/services/ffmpeg"
	"summify/internal/services/transcriber"
	"summify/internal/textutil"
)

// FixedSuffix is appended to the artifact stem to name the fixed transcript.
const FixedSuffix = "_fixed.txt"

// Layout resolves where a record's inputs and artifacts live.
type Layout struct {
	UploadDir string
	OutputDir string
	WorkDir   string
	// AllowedExtensions decides which suffix is stripped from display names.
	AllowedExtensions []string
}

// Artifacts lists the conventional paths for one record.
type Artifacts struct {
	Source     string
	OutputDir  string
	Base       string
	Audio      string
	Transcript string
	Fixed      string
	// SplitDir receives the chunk debug files of the fix step.
	SplitDir string
	// SummaryWorkDir receives chunk debug files of chunked summary prompts.
	SummaryWorkDir string
}

// ArtifactsFor derives the artifact paths for rec.
func (l Layout) ArtifactsFor(rec records.FileRecord) Artifacts {
	folder := rec.OutputFolder
	if folder == "" {
		folder = rec.ID
	}
	stored := rec.StoredName
	if stored == "" {
		stored = rec.DisplayName
	}
	base := textutil.BaseName(rec.ArtifactName(), l.AllowedExtensions)
	out := filepath.Join(l.OutputDir, folder)
	work := filepath.Join(l.WorkDir, rec.ID)
	return Artifacts{
		Source:         filepath.Join(l.UploadDir, stored),
		OutputDir:      out,
		Base:           base,
		Audio:          ffmpeg.OutputPath(out, base),
		Transcript:     transcriber.TranscriptPath(out, base),
		Fixed:          filepath.Join(out, base+FixedSuffix),
		SplitDir:       filepath.Join(work, "split"),
		SummaryWorkDir: filepath.Join(work, "summary"),
	}
}
