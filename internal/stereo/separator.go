// Package stereo transcribes two-channel recordings one channel at a time,
// attributing each channel to a configured speaker. The typical source is a
// call recording with one party per channel.
package stereo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/transcribe"
)

// Transcriber is the subset of the router the separator needs.
type Transcriber interface {
	Transcribe(ctx context.Context, asset *audio.Asset, opts transcribe.Options) (*transcribe.Result, error)
}

// Separator splits stereo audio and transcribes each channel independently.
//
// A channel is only transcribed when its RMS energy clears the noise floor.
// When both channels sit at or below the floor but the left still carries
// signal, the left is transcribed anyway: one-sided recordings where the
// primary speaker is quiet are common and dropping them loses the whole
// conversation.
type Separator struct {
	transcriber  Transcriber
	ffmpeg       string
	workDir      string
	noiseFloor   float64
	leftSpeaker  string
	rightSpeaker string
	log          zerolog.Logger

	split func(ctx context.Context, asset *audio.Asset) (left, right string, cleanup func(), err error)
	rms   func(ctx context.Context, path string) (float64, error)
}

// Config holds separator construction parameters.
type Config struct {
	FFmpegBinary string
	WorkDir      string
	NoiseFloor   float64 // RMS threshold on the 0-128 scale
	LeftSpeaker  string
	RightSpeaker string
}

// New creates a Separator over the given transcriber.
func New(t Transcriber, cfg Config, log zerolog.Logger) *Separator {
	s := &Separator{
		transcriber:  t,
		ffmpeg:       cfg.FFmpegBinary,
		workDir:      cfg.WorkDir,
		noiseFloor:   cfg.NoiseFloor,
		leftSpeaker:  cfg.LeftSpeaker,
		rightSpeaker: cfg.RightSpeaker,
		log:          log,
	}
	s.split = func(ctx context.Context, asset *audio.Asset) (string, string, func(), error) {
		return audio.SplitChannels(ctx, s.ffmpeg, asset, s.workDir)
	}
	s.rms = func(ctx context.Context, path string) (float64, error) {
		return audio.RMS(ctx, s.ffmpeg, path)
	}
	return s
}

// gate decides which channels to transcribe. A channel passes when its RMS
// energy clears the noise floor. When both fail but the left carries any
// signal at all, the left is forced on; forced reports that case.
func gate(leftRMS, rightRMS, floor float64) (left, right, forced bool) {
	left = leftRMS > floor
	right = rightRMS > floor
	if !left && !right && leftRMS > 0 {
		left = true
		forced = true
	}
	return left, right, forced
}

// channel is one split stream awaiting a transcription decision.
type channel struct {
	name    string // transcribe.ChannelLeft / ChannelRight
	speaker string
	path    string
	rms     float64
}

// Process splits the asset, gates each channel on RMS energy, transcribes the
// channels that pass, and merges the per-channel segments into one result
// ordered by start time. Diarization is never requested for the per-channel
// calls; the channel itself identifies the speaker.
func (s *Separator) Process(ctx context.Context, asset *audio.Asset, opts transcribe.Options) (*transcribe.Result, error) {
	if !asset.Stereo() {
		return nil, fmt.Errorf("stereo separation: %s has %d channel(s), want 2", asset.Path, asset.Channels)
	}

	left, right, cleanup, err := s.split(ctx, asset)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	channels := []channel{
		{name: transcribe.ChannelLeft, speaker: s.leftSpeaker, path: left},
		{name: transcribe.ChannelRight, speaker: s.rightSpeaker, path: right},
	}
	for i := range channels {
		rms, err := s.rms(ctx, channels[i].path)
		if err != nil {
			return nil, fmt.Errorf("measure %s channel: %w", channels[i].name, err)
		}
		channels[i].rms = rms
	}

	leftOn, rightOn, forced := gate(channels[0].rms, channels[1].rms, s.noiseFloor)
	active := []bool{leftOn, rightOn}
	anyActive := leftOn || rightOn
	for i, ch := range channels {
		if !active[i] {
			s.log.Debug().
				Str("channel", ch.name).
				Float64("rms", ch.rms).
				Float64("noise_floor", s.noiseFloor).
				Msg("channel below noise floor, skipping")
		}
	}
	if forced {
		s.log.Info().
			Float64("rms", channels[0].rms).
			Msg("both channels below noise floor, forcing left channel")
	}

	merged := &transcribe.Result{Duration: asset.Duration}
	if !anyActive {
		merged.Normalize()
		return merged, nil
	}

	perCh := opts
	perCh.Diarize = false
	perCh.StereoMode = ""
	perCh.LeftSpeaker = ""
	perCh.RightSpeaker = ""

	for i, ch := range channels {
		if !active[i] {
			continue
		}
		chAsset := &audio.Asset{Path: ch.path, Channels: 1, SampleRate: 16000, Duration: asset.Duration}
		result, err := s.transcriber.Transcribe(ctx, chAsset, perCh)
		if err != nil {
			return nil, fmt.Errorf("transcribe %s channel: %w", ch.name, err)
		}

		for _, seg := range result.Segments {
			seg.Speaker = ch.speaker
			seg.Channel = ch.name
			merged.Segments = append(merged.Segments, seg)
		}
		if merged.Language == "" {
			merged.Language = result.Language
		}
		// Failover may route the channels to different backends; record
		// every producer instead of only the first.
		if merged.Backend == "" {
			merged.Backend = result.Backend
			merged.Model = result.Model
		} else if result.Backend != "" && result.Backend != merged.Backend {
			merged.Backend += "," + result.Backend
			if result.Model != "" && result.Model != merged.Model {
				merged.Model += "," + result.Model
			}
		}
		merged.ProcessingTime += result.ProcessingTime
	}

	merged.Normalize()
	merged.Text = transcribe.JoinText(merged.Segments)

	s.log.Info().
		Int("segments", len(merged.Segments)).
		Strs("speakers", merged.Speakers).
		Msg("stereo channels merged")

	return merged, nil
}
