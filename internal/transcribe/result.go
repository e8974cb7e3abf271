package transcribe

import (
	"sort"
	"strings"
)

// UnknownSpeaker is the label carried by segments no attribution step claimed.
const UnknownSpeaker = "Unknown"

// Audio channels a segment can be tagged with after stereo separation.
const (
	ChannelLeft  = "left"
	ChannelRight = "right"
)

// Segment is one time-aligned piece of transcript.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	Channel string  `json:"channel,omitempty"` // "left"/"right" when stereo-separated
}

// Turn is one diarization interval attributed to an anonymous speaker id
// (e.g. "SPEAKER_00"). Turns for one file are non-overlapping by
// construction of the diarization model; that is not enforced here.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Result is the common transcription result from any backend.
//
// Turns carries the raw diarization intervals when the backend returned
// them without attributing segments itself; the pipeline's attribution step
// consumes and clears them.
type Result struct {
	Text           string    `json:"text"`
	Segments       []Segment `json:"segments"`
	Language       string    `json:"language"`
	Duration       float64   `json:"duration"`
	Speakers       []string  `json:"speakers"`
	Backend        string    `json:"backend"`
	Model          string    `json:"model"`
	ProcessingTime float64   `json:"processing_time"`
	Turns          []Turn    `json:"turns,omitempty"`
}

// Status reports a backend's availability plus backend-specific diagnostics.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`

	Mode     string `json:"mode,omitempty"`     // managed: "credentialed" or "http"
	URL      string `json:"url,omitempty"`      // remote backends: configured endpoint
	Model    string `json:"model,omitempty"`    // local: configured model
	Device   string `json:"device,omitempty"`   // local: "cpu"
	Detail   string `json:"detail,omitempty"`   // free-form diagnostic
	Disabled bool   `json:"disabled,omitempty"` // not configured at all
}

// Normalize restores the Result invariants after any merge or relabel step:
// segments sorted ascending by start, speakers derived from the segments
// (distinct, non-Unknown, in order of first appearance), default speaker
// labels filled in, and duration at least the last segment's end.
func (r *Result) Normalize() {
	sort.SliceStable(r.Segments, func(i, j int) bool {
		return r.Segments[i].Start < r.Segments[j].Start
	})

	seen := make(map[string]bool)
	speakers := make([]string, 0, 2)
	for i := range r.Segments {
		if r.Segments[i].Speaker == "" {
			r.Segments[i].Speaker = UnknownSpeaker
		}
		s := r.Segments[i].Speaker
		if s != UnknownSpeaker && !seen[s] {
			seen[s] = true
			speakers = append(speakers, s)
		}
	}
	r.Speakers = speakers

	if n := len(r.Segments); n > 0 {
		if last := r.Segments[n-1].End; r.Duration < last {
			r.Duration = last
		}
	}
}

// RelabelSpeakers rewrites segment speaker labels through the given mapping
// and re-derives the speakers set. Labels absent from the mapping are kept.
func (r *Result) RelabelSpeakers(mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	for i := range r.Segments {
		if name, ok := mapping[r.Segments[i].Speaker]; ok {
			r.Segments[i].Speaker = name
		}
	}
	r.Normalize()
}

// JoinText rebuilds the full transcript text from the segments, inserting a
// speaker marker before the first segment of each run where the active
// speaker differs from the previous segment's.
func JoinText(segments []Segment) string {
	var b strings.Builder
	current := ""
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Speaker != current {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString("[" + seg.Speaker + "] ")
			current = seg.Speaker
		} else if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}
	return b.String()
}
