// Package chunking splits long transcripts into bounded pieces that respect
// sentence boundaries so each piece can be sent to a text model on its own.
package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk is one bounded piece of a larger text. Index is the reassembly key.
type Chunk struct {
	Index int
	Text  string
}

// Len reports the chunk size in characters.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

const terminators = "，。！？；：,.!?;:"

func isTerminator(r rune) bool {
	return strings.ContainsRune(terminators, r)
}

// Split breaks text into chunks of at most maxChunkSize characters. Units end
// after a run of sentence terminators (plus trailing whitespace) or after a
// whitespace run; units are packed greedily and never cut. A unit longer than
// maxChunkSize becomes its own oversized chunk. Whitespace-only input yields
// no chunks. Concatenating the chunk texts reproduces text exactly.
func Split(text string, maxChunkSize int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = 1
	}

	var (
		chunks  []Chunk
		current strings.Builder
		size    int
	)
	flush := func() {
		if size == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: current.String()})
		current.Reset()
		size = 0
	}

	for _, unit := range Units(text) {
		n := utf8.RuneCountInString(unit)
		if size > 0 && size+n > maxChunkSize {
			flush()
		}
		current.WriteString(unit)
		size += n
	}
	flush()
	return chunks
}

// Units returns the indivisible sentence or word units of text in order.
// Whitespace-only units are folded into their neighbour so no characters are
// lost.
func Units(text string) []string {
	runes := []rune(text)
	var raw []string
	for start := 0; start < len(runes); {
		end := unitEnd(runes, start)
		raw = append(raw, string(runes[start:end]))
		start = end
	}

	units := make([]string, 0, len(raw))
	var pending string
	for _, unit := range raw {
		if strings.TrimSpace(unit) == "" {
			pending += unit
			continue
		}
		units = append(units, pending+unit)
		pending = ""
	}
	if pending != "" && len(units) > 0 {
		units[len(units)-1] += pending
	}
	return units
}

// unitEnd finds the exclusive end of the unit starting at start. A unit holds
// at least one rune and is closed by the first boundary after it.
func unitEnd(runes []rune, start int) int {
	for i := start + 1; i < len(runes); i++ {
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		k := j
		for k < len(runes) && isTerminator(runes[k]) {
			k++
		}
		if k > j {
			for k < len(runes) && unicode.IsSpace(runes[k]) {
				k++
			}
			return k
		}
		if j > i {
			return j
		}
	}
	return len(runes)
}

// Join concatenates chunk texts in ascending index order.
func Join(chunks []Chunk) string {
	ordered := make([]string, len(chunks))
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < len(ordered) {
			ordered[c.Index] = c.Text
		}
	}
	return strings.Join(ordered, "")
}
