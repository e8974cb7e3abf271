// Package pipeline runs audio files through probing, transcription, speaker
// attribution, and voice-profile matching to produce one attributed
// transcript per file.
package pipeline

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/config"
	"github.com/aputting/scribe-engine/internal/diarize"
	"github.com/aputting/scribe-engine/internal/metrics"
	"github.com/aputting/scribe-engine/internal/stereo"
	"github.com/aputting/scribe-engine/internal/transcribe"
	"github.com/aputting/scribe-engine/internal/voiceid"
)

// Pipeline owns the end-to-end processing of one audio file. It is safe for
// concurrent use.
type Pipeline struct {
	cfg       *config.Config
	router    *transcribe.Router
	separator *stereo.Separator
	matcher   *voiceid.Matcher
	log       zerolog.Logger

	probe func(ctx context.Context, ffprobeBinary, path string) (*audio.Asset, error)

	inFlight atomic.Int64
}

// New wires a pipeline over the given router and matcher. The stereo
// separator is built here since it routes through the same router.
func New(cfg *config.Config, router *transcribe.Router, matcher *voiceid.Matcher, log zerolog.Logger) *Pipeline {
	separator := stereo.New(router, stereo.Config{
		FFmpegBinary: cfg.FFmpegBinary,
		WorkDir:      cfg.WorkDir,
		NoiseFloor:   cfg.RMSNoiseFloor,
		LeftSpeaker:  cfg.LeftSpeaker,
		RightSpeaker: cfg.RightSpeaker,
	}, log)

	return &Pipeline{
		cfg:       cfg,
		router:    router,
		separator: separator,
		matcher:   matcher,
		log:       log,
		probe:     audio.Probe,
	}
}

// Router exposes the underlying router for status reporting.
func (p *Pipeline) Router() *transcribe.Router { return p.router }

// ProfilesLoaded reports the number of enrolled voice profiles.
func (p *Pipeline) ProfilesLoaded() int {
	if p.matcher == nil {
		return 0
	}
	return p.matcher.ProfileCount()
}

// InFlight reports the number of files currently being processed.
func (p *Pipeline) InFlight() int { return int(p.inFlight.Load()) }

// Process transcribes and attributes one audio file. Stereo files take the
// channel-separation path when the stereo mode allows it; everything else is
// downmixed to mono, transcribed with diarization, and matched against voice
// profiles. An empty language falls back to the configured default hint.
// The returned result always satisfies the normalized invariants.
func (p *Pipeline) Process(ctx context.Context, path, language string) (*transcribe.Result, error) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	if language == "" {
		language = p.cfg.Language
	}

	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Str("file", filepath.Base(path)).Logger()

	asset, err := p.probe(ctx, p.cfg.FFprobeBinary, path)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("probe", "error").Inc()
		return nil, err
	}
	log.Info().
		Int("channels", asset.Channels).
		Float64("duration", asset.Duration).
		Msg("audio probed")

	if asset.Stereo() && p.cfg.StereoMode != config.StereoMerge {
		return p.processStereo(ctx, log, asset, language)
	}
	return p.processMono(ctx, log, asset, language)
}

// processStereo runs the channel-separation path: each channel carries one
// known speaker, so neither diarization nor profile matching is needed.
func (p *Pipeline) processStereo(ctx context.Context, log zerolog.Logger, asset *audio.Asset, language string) (*transcribe.Result, error) {
	result, err := p.separator.Process(ctx, asset, transcribe.Options{Language: language})
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("stereo", "error").Inc()
		return nil, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("stereo", "ok").Inc()

	log.Info().
		Str("backend", result.Backend).
		Int("segments", len(result.Segments)).
		Strs("speakers", result.Speakers).
		Msg("stereo transcription complete")
	return result, nil
}

// processMono runs the standard path: downmix if needed, transcribe with
// diarization, attribute segments from turns, then resolve anonymous speaker
// labels against voice profiles.
func (p *Pipeline) processMono(ctx context.Context, log zerolog.Logger, asset *audio.Asset, language string) (*transcribe.Result, error) {
	workAsset := asset
	if asset.Channels > 1 {
		monoPath, cleanup, err := audio.DownmixMono(ctx, p.cfg.FFmpegBinary, asset, p.cfg.WorkDir)
		if err != nil {
			metrics.PipelineRunsTotal.WithLabelValues("mono", "error").Inc()
			return nil, err
		}
		defer cleanup()
		workAsset = &audio.Asset{Path: monoPath, Channels: 1, SampleRate: 16000, Duration: asset.Duration}
	}

	opts := transcribe.Options{Language: language, Diarize: p.cfg.EnableDiarization}
	result, err := p.router.Transcribe(ctx, workAsset, opts)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("mono", "error").Inc()
		return nil, err
	}

	diarize.Attribute(result)

	if p.cfg.EnableDiarization && p.matcher != nil {
		mapping, err := p.matcher.IdentifySpeakers(ctx, workAsset.Path, result.Segments)
		if err != nil {
			log.Warn().Err(err).Msg("voice matching failed, keeping anonymous labels")
		} else if len(mapping) > 0 {
			result.RelabelSpeakers(mapping)
			result.Text = transcribe.JoinText(result.Segments)
		}
	}

	metrics.PipelineRunsTotal.WithLabelValues("mono", "ok").Inc()
	log.Info().
		Str("backend", result.Backend).
		Int("segments", len(result.Segments)).
		Strs("speakers", result.Speakers).
		Msg("transcription complete")
	return result, nil
}

var _ metrics.PipelineStats = (*Pipeline)(nil)
