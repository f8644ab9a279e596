// Package textutil provides the filename helpers shared by the record store,
// the pipeline, and the prompt library.
//
// Upload names keep their Unicode content (normalised to NFC so macOS and
// Linux uploads of the same name compare equal) and only lose path
// separators. Artifact names derived from prompt titles go through the
// stricter SanitizeFileName.
package textutil
