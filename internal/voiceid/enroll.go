package voiceid

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Enrollment constraints. Three samples is the floor for an embedding stable
// enough to match against; a minute of speech per sample is plenty and keeps
// extraction time bounded.
const (
	MinEnrollSamples = 3
	maxEnrollSeconds = 60.0
)

// CreateProfile extracts an embedding from each sample recording, averages
// them, and saves the result under name. Every sample must embed
// successfully; enrollment is rare enough that a bad sample should be fixed,
// not silently dropped.
func CreateProfile(ctx context.Context, store *Store, embedder Embedder, name string, samples []string, log zerolog.Logger) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("create profile: empty name")
	}
	if len(samples) < MinEnrollSamples {
		return nil, fmt.Errorf("create profile %s: need at least %d samples, got %d", name, MinEnrollSamples, len(samples))
	}
	if embedder == nil || !embedder.Ready(ctx) {
		return nil, fmt.Errorf("%w: embedding model not installed", ErrEmbeddingExtraction)
	}

	embeddings := make([][]float64, 0, len(samples))
	for _, sample := range samples {
		log.Info().Str("sample", sample).Msg("embedding enrollment sample")
		emb, err := embedder.Embed(ctx, sample, 0, maxEnrollSeconds)
		if err != nil {
			return nil, fmt.Errorf("embed sample %s: %w", sample, err)
		}
		embeddings = append(embeddings, emb)
	}

	profile := &Profile{
		Name:        name,
		Embedding:   averageEmbeddings(embeddings),
		SampleCount: len(samples),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Save(profile); err != nil {
		return nil, err
	}

	log.Info().
		Str("name", name).
		Int("samples", len(samples)).
		Int("dimensions", len(profile.Embedding)).
		Msg("voice profile saved")
	return profile, nil
}
