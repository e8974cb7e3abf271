// Command voiceprofile enrolls a speaker's voice profile from sample
// recordings.
//
//	voiceprofile -name Aaron sample1.wav sample2.wav sample3.wav
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/config"
	"github.com/aputting/scribe-engine/internal/voiceid"
)

func main() {
	var (
		flagName     = flag.String("name", "", "speaker name to enroll (required)")
		flagEnvFile  = flag.String("env-file", "", "path to .env file")
		flagProfiles = flag.String("profiles-dir", "", "voice profiles directory")
		flagLogLevel = flag.String("log-level", "", "log level")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s -name NAME sample1.wav sample2.wav sample3.wav [more...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Enrolls a voice profile from at least %d sample recordings of one speaker.\n\n", voiceid.MinEnrollSamples)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(config.Overrides{
		EnvFile:     *flagEnvFile,
		ProfilesDir: *flagProfiles,
		LogLevel:    *flagLogLevel,
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

	if *flagName == "" {
		flag.Usage()
		os.Exit(2)
	}
	samples := flag.Args()
	if len(samples) < voiceid.MinEnrollSamples {
		log.Fatal().
			Int("got", len(samples)).
			Int("want", voiceid.MinEnrollSamples).
			Msg("not enough sample recordings")
	}
	for _, sample := range samples {
		if _, err := os.Stat(sample); err != nil {
			log.Fatal().Err(err).Str("sample", sample).Msg("sample not readable")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := voiceid.NewStore(cfg.ProfilesDir, log)
	embedder := voiceid.NewHelperEmbedder(cfg.EmbedderBinary, log)

	profile, err := voiceid.CreateProfile(ctx, store, embedder, *flagName, samples, log)
	if err != nil {
		log.Fatal().Err(err).Msg("enrollment failed")
	}

	fmt.Printf("enrolled %q from %d samples (%d-dim embedding) in %s\n",
		profile.Name, profile.SampleCount, len(profile.Embedding), cfg.ProfilesDir)
}
