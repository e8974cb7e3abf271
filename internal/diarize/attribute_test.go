package diarize

import (
	"testing"

	"github.com/aputting/scribe-engine/internal/transcribe"
)

func TestAssignTurns(t *testing.T) {
	turns := []transcribe.Turn{
		{Start: 0, End: 10, Speaker: "SPEAKER_00"},
		{Start: 10, End: 20, Speaker: "SPEAKER_01"},
	}

	cases := []struct {
		name        string
		start, end  float64
		wantSpeaker string
	}{
		{"inside_first_turn", 2, 4, "SPEAKER_00"},
		{"inside_second_turn", 12, 18, "SPEAKER_01"},
		{"starts_at_turn_boundary", 10, 12, "SPEAKER_01"},
		{"midpoint_on_shared_boundary_takes_first_match", 8, 12, "SPEAKER_00"},
		{"straddles_boundary_midpoint_decides", 8, 14, "SPEAKER_01"},
		{"straddles_boundary_toward_first", 6, 12, "SPEAKER_00"},
		{"outside_all_turns", 25, 30, transcribe.UnknownSpeaker},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segs := []transcribe.Segment{{Start: tc.start, End: tc.end, Text: "hi"}}
			got := AssignTurns(segs, turns)
			if got[0].Speaker != tc.wantSpeaker {
				t.Errorf("segment [%v, %v]: speaker = %q, want %q",
					tc.start, tc.end, got[0].Speaker, tc.wantSpeaker)
			}
		})
	}
}

func TestAssignTurnsNoTurns(t *testing.T) {
	segs := []transcribe.Segment{{Start: 0, End: 5, Speaker: "SPEAKER_00"}}
	got := AssignTurns(segs, nil)
	if got[0].Speaker != "SPEAKER_00" {
		t.Errorf("no turns should leave labels untouched, got %q", got[0].Speaker)
	}
}

func TestAttribute(t *testing.T) {
	result := &transcribe.Result{
		Segments: []transcribe.Segment{
			{Start: 0, End: 4, Text: "hello"},
			{Start: 5, End: 9, Text: "world"},
			{Start: 11, End: 15, Text: "again"},
		},
		Turns: []transcribe.Turn{
			{Start: 0, End: 10, Speaker: "SPEAKER_00"},
			{Start: 10, End: 20, Speaker: "SPEAKER_01"},
		},
	}

	Attribute(result)

	if result.Turns != nil {
		t.Error("Attribute should consume turns")
	}
	wantSpeakers := []string{"SPEAKER_00", "SPEAKER_00", "SPEAKER_01"}
	for i, want := range wantSpeakers {
		if got := result.Segments[i].Speaker; got != want {
			t.Errorf("segment %d: speaker = %q, want %q", i, got, want)
		}
	}
	if len(result.Speakers) != 2 {
		t.Errorf("Speakers = %v, want two distinct", result.Speakers)
	}
	want := "[SPEAKER_00] hello world [SPEAKER_01] again"
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
}

func TestAttributeWithoutTurnsIsNoop(t *testing.T) {
	result := &transcribe.Result{
		Text:     "original",
		Segments: []transcribe.Segment{{Start: 0, End: 5, Text: "original", Speaker: "Aaron"}},
	}
	Attribute(result)
	if result.Text != "original" {
		t.Errorf("Text = %q, want untouched", result.Text)
	}
	if result.Segments[0].Speaker != "Aaron" {
		t.Errorf("Speaker = %q, want untouched", result.Segments[0].Speaker)
	}
}
