package stereo

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/transcribe"
)

func TestGate(t *testing.T) {
	cases := []struct {
		name                string
		leftRMS, rightRMS   float64
		floor               float64
		wantLeft, wantRight bool
		wantForced          bool
	}{
		{"both_loud", 50, 40, 3, true, true, false},
		{"left_only", 50, 1, 3, true, false, false},
		{"right_only", 1, 50, 3, false, true, false},
		{"both_quiet_left_has_signal", 0.5, 0, 3, true, false, true},
		{"both_quiet_right_has_signal", 0, 0.5, 3, false, false, false},
		{"both_silent", 0, 0, 3, false, false, false},
		{"exactly_at_floor_not_active", 3, 3, 3, true, false, true},
		{"zero_floor_any_signal_passes", 0.1, 0.2, 0, true, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			left, right, forced := gate(tc.leftRMS, tc.rightRMS, tc.floor)
			if left != tc.wantLeft || right != tc.wantRight || forced != tc.wantForced {
				t.Errorf("gate(%v, %v, %v) = (%v, %v, %v), want (%v, %v, %v)",
					tc.leftRMS, tc.rightRMS, tc.floor,
					left, right, forced,
					tc.wantLeft, tc.wantRight, tc.wantForced)
			}
		})
	}
}

// fakeTranscriber answers per split-channel path and records every call.
type fakeTranscriber struct {
	results map[string]*transcribe.Result
	err     error
	paths   []string
	opts    []transcribe.Options
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, asset *audio.Asset, opts transcribe.Options) (*transcribe.Result, error) {
	f.paths = append(f.paths, asset.Path)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.results[asset.Path]
	if !ok {
		return &transcribe.Result{}, nil
	}
	cp := *r
	cp.Segments = append([]transcribe.Segment(nil), r.Segments...)
	return &cp, nil
}

// testSeparator wires a separator over fakes: the split step returns fixed
// channel paths and the energy measurement returns the given per-channel RMS.
func testSeparator(tr Transcriber, leftRMS, rightRMS float64) *Separator {
	s := New(tr, Config{
		NoiseFloor:   3,
		LeftSpeaker:  "Aaron",
		RightSpeaker: "Guest",
	}, zerolog.Nop())
	s.split = func(ctx context.Context, asset *audio.Asset) (string, string, func(), error) {
		return "left.wav", "right.wav", func() {}, nil
	}
	s.rms = func(ctx context.Context, path string) (float64, error) {
		if path == "left.wav" {
			return leftRMS, nil
		}
		return rightRMS, nil
	}
	return s
}

func stereoAsset() *audio.Asset {
	return &audio.Asset{Path: "call.wav", Channels: 2, SampleRate: 44100, Duration: 10}
}

func TestProcessMergesAndTagsChannels(t *testing.T) {
	tr := &fakeTranscriber{results: map[string]*transcribe.Result{
		"left.wav": {
			Backend: "external-server",
			Segments: []transcribe.Segment{
				{Start: 0, End: 2, Text: "hello"},
				{Start: 4, End: 6, Text: "how are you"},
			},
		},
		"right.wav": {
			Backend: "external-server",
			Segments: []transcribe.Segment{
				{Start: 2, End: 4, Text: "hi"},
			},
		},
	}}
	s := testSeparator(tr, 50, 40)

	result, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{
		Language:     "en",
		Diarize:      true,
		StereoMode:   "separate_channels",
		LeftSpeaker:  "Aaron",
		RightSpeaker: "Guest",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if want := []string{"left.wav", "right.wav"}; !reflect.DeepEqual(tr.paths, want) {
		t.Errorf("transcribed paths = %v, want %v", tr.paths, want)
	}
	for i, opts := range tr.opts {
		if opts.Diarize {
			t.Errorf("call %d: Diarize = true, want false for per-channel calls", i)
		}
		if opts.Language != "en" {
			t.Errorf("call %d: Language = %q, want en", i, opts.Language)
		}
		if opts.StereoMode != "" || opts.LeftSpeaker != "" || opts.RightSpeaker != "" {
			t.Errorf("call %d: stereo fields not cleared: %+v", i, opts)
		}
	}

	wantTexts := []string{"hello", "hi", "how are you"}
	wantSpeakers := []string{"Aaron", "Guest", "Aaron"}
	wantChannels := []string{transcribe.ChannelLeft, transcribe.ChannelRight, transcribe.ChannelLeft}
	if len(result.Segments) != len(wantTexts) {
		t.Fatalf("got %d segments, want %d: %+v", len(result.Segments), len(wantTexts), result.Segments)
	}
	for i, seg := range result.Segments {
		if seg.Text != wantTexts[i] || seg.Speaker != wantSpeakers[i] || seg.Channel != wantChannels[i] {
			t.Errorf("segment %d = {%q %q %q}, want {%q %q %q}",
				i, seg.Text, seg.Speaker, seg.Channel, wantTexts[i], wantSpeakers[i], wantChannels[i])
		}
	}
	if want := []string{"Aaron", "Guest"}; !reflect.DeepEqual(result.Speakers, want) {
		t.Errorf("Speakers = %v, want %v", result.Speakers, want)
	}
	if want := "[Aaron] hello [Guest] hi [Aaron] how are you"; result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if result.Backend != "external-server" {
		t.Errorf("Backend = %q, want external-server", result.Backend)
	}
	if result.Duration != 10 {
		t.Errorf("Duration = %v, want 10", result.Duration)
	}
}

func TestProcessSkipsSilentChannel(t *testing.T) {
	tr := &fakeTranscriber{results: map[string]*transcribe.Result{
		"left.wav": {Segments: []transcribe.Segment{{Start: 0, End: 2, Text: "monologue"}}},
	}}
	s := testSeparator(tr, 50, 1)

	result, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := []string{"left.wav"}; !reflect.DeepEqual(tr.paths, want) {
		t.Errorf("transcribed paths = %v, want %v", tr.paths, want)
	}
	if want := []string{"Aaron"}; !reflect.DeepEqual(result.Speakers, want) {
		t.Errorf("Speakers = %v, want %v", result.Speakers, want)
	}
}

func TestProcessForcesQuietLeftChannel(t *testing.T) {
	tr := &fakeTranscriber{results: map[string]*transcribe.Result{
		"left.wav": {Segments: []transcribe.Segment{{Start: 0, End: 1, Text: "faint"}}},
	}}
	s := testSeparator(tr, 0.5, 0)

	result, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := []string{"left.wav"}; !reflect.DeepEqual(tr.paths, want) {
		t.Errorf("transcribed paths = %v, want %v", tr.paths, want)
	}
	if want := []string{"Aaron"}; !reflect.DeepEqual(result.Speakers, want) {
		t.Errorf("Speakers = %v, want %v", result.Speakers, want)
	}
}

func TestProcessAllSilentReturnsEmptyResult(t *testing.T) {
	tr := &fakeTranscriber{}
	s := testSeparator(tr, 0, 0)

	result, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tr.paths) != 0 {
		t.Errorf("transcriber called for silent channels: %v", tr.paths)
	}
	if len(result.Segments) != 0 || len(result.Speakers) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Duration != 10 {
		t.Errorf("Duration = %v, want 10", result.Duration)
	}
}

func TestProcessRecordsMixedBackends(t *testing.T) {
	tr := &fakeTranscriber{results: map[string]*transcribe.Result{
		"left.wav": {
			Backend:  "external-server",
			Model:    "large-v3",
			Segments: []transcribe.Segment{{Start: 0, End: 2, Text: "hello"}},
		},
		"right.wav": {
			Backend:  "local",
			Model:    "base",
			Segments: []transcribe.Segment{{Start: 2, End: 4, Text: "hi"}},
		},
	}}
	s := testSeparator(tr, 50, 40)

	result, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := "external-server,local"; result.Backend != want {
		t.Errorf("Backend = %q, want %q", result.Backend, want)
	}
	if want := "large-v3,base"; result.Model != want {
		t.Errorf("Model = %q, want %q", result.Model, want)
	}
}

func TestProcessChannelErrorPropagates(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("backend down")}
	s := testSeparator(tr, 50, 40)

	if _, err := s.Process(context.Background(), stereoAsset(), transcribe.Options{}); err == nil {
		t.Fatal("expected error when a channel fails to transcribe")
	}
}

func TestProcessRejectsMonoAsset(t *testing.T) {
	s := testSeparator(&fakeTranscriber{}, 50, 40)
	mono := &audio.Asset{Path: "mono.wav", Channels: 1, Duration: 5}
	if _, err := s.Process(context.Background(), mono, transcribe.Options{}); err == nil {
		t.Fatal("expected error for non-stereo asset")
	}
}
