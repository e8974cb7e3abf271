// Package diarize attributes transcript segments to diarization turns.
package diarize

import (
	"github.com/aputting/scribe-engine/internal/transcribe"
)

// AssignTurns labels each segment with the speaker of the first turn whose
// interval contains the segment's temporal midpoint. Segments whose midpoint
// falls in no turn (diarization gaps) keep the Unknown label. The input
// slice is modified in place and returned; it never fails.
func AssignTurns(segments []transcribe.Segment, turns []transcribe.Turn) []transcribe.Segment {
	if len(turns) == 0 {
		return segments
	}
	for i := range segments {
		mid := (segments[i].Start + segments[i].End) / 2
		segments[i].Speaker = speakerAt(turns, mid)
	}
	return segments
}

// speakerAt returns the speaker of the first turn containing t, boundaries
// inclusive, or Unknown when no turn contains it.
func speakerAt(turns []transcribe.Turn, t float64) string {
	for _, turn := range turns {
		if t >= turn.Start && t <= turn.End {
			return turn.Speaker
		}
	}
	return transcribe.UnknownSpeaker
}

// Attribute applies turn attribution to a whole result and restores its
// invariants. Results carrying no turns pass through unchanged.
func Attribute(result *transcribe.Result) {
	if len(result.Turns) == 0 {
		return
	}
	AssignTurns(result.Segments, result.Turns)
	result.Turns = nil
	result.Normalize()
	result.Text = transcribe.JoinText(result.Segments)
}
