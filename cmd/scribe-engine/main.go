package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/api"
	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/config"
	"github.com/aputting/scribe-engine/internal/metrics"
	"github.com/aputting/scribe-engine/internal/pipeline"
	"github.com/aputting/scribe-engine/internal/transcribe"
	"github.com/aputting/scribe-engine/internal/voiceid"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var (
		flagFile     = flag.String("file", "", "transcribe one audio file, print the result as JSON, and exit")
		flagEnvFile  = flag.String("env-file", "", "path to .env file")
		flagAddr     = flag.String("addr", "", "http listen address")
		flagLogLevel = flag.String("log-level", "", "log level (trace, debug, info, warn, error)")
		flagBackend  = flag.String("backend", "", "preferred transcription backend (external-server, managed-service, local)")
		flagProfiles = flag.String("profiles-dir", "", "voice profiles directory")
		flagStereo   = flag.String("stereo-mode", "", "stereo handling (auto, separate_channels, merge)")
		flagLanguage = flag.String("language", "", "language hint (ISO-639), empty = auto-detect")
	)
	flag.Parse()

	cfg, err := config.Load(config.Overrides{
		EnvFile:          *flagEnvFile,
		HTTPAddr:         *flagAddr,
		LogLevel:         *flagLogLevel,
		PreferredBackend: *flagBackend,
		ProfilesDir:      *flagProfiles,
		StereoMode:       *flagStereo,
		Language:         *flagLanguage,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("scribe-engine starting")

	if !audio.CheckFFmpeg(cfg.FFmpegBinary) {
		log.Fatal().Str("binary", cfg.FFmpegBinary).Msg("ffmpeg not found in PATH")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe := buildPipeline(cfg, log)
	metrics.MustRegisterCollector(metrics.NewCollector(pipe))

	// One-shot mode: transcribe a single file and print the result.
	if *flagFile != "" {
		result, err := pipe.Process(ctx, *flagFile, "")
		if err != nil {
			log.Fatal().Err(err).Str("file", *flagFile).Msg("transcription failed")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal().Err(err).Msg("encode result")
		}
		return
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, pipe, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("scribe-engine stopped")
}

// buildPipeline wires the backends, router, profile store, and matcher from
// config.
func buildPipeline(cfg *config.Config, log zerolog.Logger) *pipeline.Pipeline {
	trLog := log.With().Str("component", "transcribe").Logger()
	backends := []transcribe.Backend{
		transcribe.NewExternalBackend(cfg.ExternalServerURL, cfg.ExternalServerAPIKey, cfg.ExternalTimeout, trLog),
		transcribe.NewManagedBackend(transcribe.ManagedOptions{
			TokenID:     cfg.ManagedTokenID,
			TokenSecret: cfg.ManagedTokenSecret,
			InvokeURL:   cfg.ManagedInvokeURL,
			EndpointURL: cfg.ManagedEndpointURL,
			Timeout:     cfg.ManagedTimeout,
			Log:         trLog,
		}),
		transcribe.NewLocalBackend(cfg.LocalBinary, cfg.LocalModel, trLog),
	}
	router := transcribe.NewRouter(backends, cfg.PreferredBackend, cfg.EnableFailover, trLog)

	voiceLog := log.With().Str("component", "voiceid").Logger()
	store := voiceid.NewStore(cfg.ProfilesDir, voiceLog)
	profiles, err := store.LoadProfiles()
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ProfilesDir).Msg("failed to load voice profiles")
	}
	voiceLog.Info().Int("profiles", len(profiles)).Str("dir", cfg.ProfilesDir).Msg("voice profiles loaded")

	embedder := voiceid.NewHelperEmbedder(cfg.EmbedderBinary, voiceLog)
	matcher := voiceid.NewMatcher(embedder, profiles, voiceid.MatcherConfig{
		Threshold:          cfg.MatchThreshold,
		AssumeFirstSpeaker: cfg.AssumeFirstSpeaker,
		PrimarySpeaker:     cfg.PrimarySpeaker,
	}, voiceLog)

	return pipeline.New(cfg, router, matcher, log.With().Str("component", "pipeline").Logger())
}
