// Package cloze splits cloze sentences into text and input slots and collects
// the answers typed into those slots.
package cloze

import (
	"strings"
	"unicode/utf8"

	"github.com/stemsi/formcraft/internal/model"
)

// Marker is the literal blank marker inside a cloze sentence.
const Marker = "___"

// Part is one renderable piece of a sentence: either literal text or an input
// slot bound to a blank definition.
type Part struct {
	Text  string            `json:"text,omitempty"`
	Blank *model.ClozeBlank `json:"blank,omitempty"`
	// Slot is the left-to-right index of the blank, -1 for text parts.
	Slot int `json:"slot"`
}

// IsBlank reports whether p is an input slot.
func (p Part) IsBlank() bool { return p.Blank != nil }

// CountMarkers returns the number of markers in sentence.
func CountMarkers(sentence string) int {
	return strings.Count(sentence, Marker)
}

// Segment splits sentence on every marker and binds markers to blanks by index.
// Markers beyond the last blank stay in the text as literal "___"; blanks
// beyond the last marker are not placed (see Inert). Empty text pieces are omitted.
func Segment(sentence string, blanks []model.ClozeBlank) []Part {
	segments := strings.Split(sentence, Marker)
	slots := min(len(segments)-1, len(blanks))

	parts := make([]Part, 0, 2*slots+1)
	for i := 0; i < slots; i++ {
		parts = appendText(parts, segments[i])
		b := blanks[i]
		parts = append(parts, Part{Blank: &b, Slot: i})
	}
	return appendText(parts, strings.Join(segments[slots:], Marker))
}

// Inert returns the blanks that have no marker to bind to.
func Inert(sentence string, blanks []model.ClozeBlank) []model.ClozeBlank {
	k := CountMarkers(sentence)
	if len(blanks) <= k {
		return nil
	}
	out := make([]model.ClozeBlank, len(blanks)-k)
	copy(out, blanks[k:])
	return out
}

// SyncPositions returns a copy of blanks whose Position is the character offset
// of the marker each blank binds to. Blanks without a marker get -1.
func SyncPositions(sentence string, blanks []model.ClozeBlank) []model.ClozeBlank {
	out := make([]model.ClozeBlank, len(blanks))
	copy(out, blanks)

	offset, rest := 0, sentence
	for i := range out {
		idx := strings.Index(rest, Marker)
		if idx < 0 {
			for ; i < len(out); i++ {
				out[i].Position = -1
			}
			break
		}
		offset += utf8.RuneCountInString(rest[:idx])
		out[i].Position = offset
		offset += utf8.RuneCountInString(Marker)
		rest = rest[idx+len(Marker):]
	}
	return out
}

func appendText(parts []Part, text string) []Part {
	if text == "" {
		return parts
	}
	return append(parts, Part{Text: text, Slot: -1})
}
