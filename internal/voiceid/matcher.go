package voiceid

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/metrics"
	"github.com/aputting/scribe-engine/internal/transcribe"
)

// Embedding extraction limits per anonymous speaker. Model load dominates
// each extraction, so a handful of clips is the whole budget.
const (
	maxSegmentsPerSpeaker = 5
	minSegmentSeconds     = 0.5
)

// Matcher maps anonymous diarization labels to enrolled profile names.
type Matcher struct {
	embedder  Embedder
	profiles  []Profile
	threshold float64

	// First-speaker heuristic: when enabled, an unmatched first speaker is
	// assumed to be the primary user. Useful for personal recordings where
	// the device owner always speaks first; wrong for arbitrary audio, so it
	// stays an explicit toggle.
	assumeFirstSpeaker bool
	primarySpeaker     string

	log zerolog.Logger
}

// MatcherConfig holds matcher construction parameters.
type MatcherConfig struct {
	Threshold          float64
	AssumeFirstSpeaker bool
	PrimarySpeaker     string
}

// NewMatcher creates a matcher over the given profiles.
func NewMatcher(embedder Embedder, profiles []Profile, cfg MatcherConfig, log zerolog.Logger) *Matcher {
	return &Matcher{
		embedder:           embedder,
		profiles:           profiles,
		threshold:          cfg.Threshold,
		assumeFirstSpeaker: cfg.AssumeFirstSpeaker,
		primarySpeaker:     cfg.PrimarySpeaker,
		log:                log,
	}
}

// ProfileCount returns the number of loaded profiles.
func (m *Matcher) ProfileCount() int { return len(m.profiles) }

// IdentifySpeakers returns a relabeling map from each anonymous speaker label
// in segments to either an enrolled profile name or a stable placeholder
// ("Unknown 1", "Unknown 2", ... in order of first appearance). audioPath
// must be the file the segment timestamps refer to.
//
// Matching is best-effort: a speaker whose every extraction fails keeps a
// placeholder label, and IdentifySpeakers only errors when it could not run
// at all.
func (m *Matcher) IdentifySpeakers(ctx context.Context, audioPath string, segments []transcribe.Segment) (map[string]string, error) {
	order, bySpeaker := groupBySpeaker(segments)
	if len(order) == 0 {
		return nil, nil
	}
	if len(m.profiles) == 0 {
		return m.placeholderMapping(order), nil
	}
	if m.embedder == nil || !m.embedder.Ready(ctx) {
		return m.placeholderMapping(order), nil
	}

	mapping := make(map[string]string, len(order))
	used := make(map[string]bool, len(order))
	unknown := 0

	for i, anon := range order {
		emb, err := m.speakerEmbedding(ctx, audioPath, bySpeaker[anon])
		if err != nil {
			m.log.Warn().Err(err).Str("speaker", anon).Msg("could not embed speaker, leaving unmatched")
		}

		name, similarity := "", 0.0
		if emb != nil {
			name, similarity = m.bestMatch(emb, used)
		}

		switch {
		case name != "":
			mapping[anon] = name
			used[name] = true
			metrics.SpeakerMatchesTotal.WithLabelValues("matched").Inc()
			m.log.Info().
				Str("speaker", anon).
				Str("name", name).
				Float64("similarity", similarity).
				Msg("speaker matched to voice profile")
		case i == 0 && m.assumeFirstSpeaker && m.primarySpeaker != "" && !used[m.primarySpeaker]:
			mapping[anon] = m.primarySpeaker
			used[m.primarySpeaker] = true
			metrics.SpeakerMatchesTotal.WithLabelValues("fallback").Inc()
			m.log.Info().
				Str("speaker", anon).
				Str("name", m.primarySpeaker).
				Msg("assuming first speaker is the primary user")
		default:
			unknown++
			mapping[anon] = fmt.Sprintf("Unknown %d", unknown)
			metrics.SpeakerMatchesTotal.WithLabelValues("unmatched").Inc()
			m.log.Debug().
				Str("speaker", anon).
				Float64("best_similarity", similarity).
				Float64("threshold", m.threshold).
				Msg("no profile above threshold")
		}
	}
	return mapping, nil
}

// placeholderMapping labels every anonymous speaker without any embedding
// work: the first-speaker heuristic when enabled, numbered placeholders for
// the rest.
func (m *Matcher) placeholderMapping(order []string) map[string]string {
	mapping := make(map[string]string, len(order))
	unknown := 0
	for i, anon := range order {
		if i == 0 && m.assumeFirstSpeaker && m.primarySpeaker != "" {
			mapping[anon] = m.primarySpeaker
			metrics.SpeakerMatchesTotal.WithLabelValues("fallback").Inc()
			continue
		}
		unknown++
		mapping[anon] = fmt.Sprintf("Unknown %d", unknown)
		metrics.SpeakerMatchesTotal.WithLabelValues("unmatched").Inc()
	}
	return mapping
}

// speakerEmbedding averages embeddings over up to maxSegmentsPerSpeaker
// segments of at least minSegmentSeconds. Individual extraction failures are
// skipped; only a total failure errors.
func (m *Matcher) speakerEmbedding(ctx context.Context, audioPath string, segs []transcribe.Segment) ([]float64, error) {
	var embeddings [][]float64
	var lastErr error

	for _, seg := range segs {
		if len(embeddings) >= maxSegmentsPerSpeaker {
			break
		}
		if seg.End-seg.Start < minSegmentSeconds {
			continue
		}
		emb, err := m.embedder.Embed(ctx, audioPath, seg.Start, seg.End)
		if err != nil {
			lastErr = err
			continue
		}
		embeddings = append(embeddings, emb)
	}

	if len(embeddings) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: no usable segments", ErrEmbeddingExtraction)
	}
	return averageEmbeddings(embeddings), nil
}

// bestMatch returns the highest-similarity profile at or above the threshold,
// skipping profiles already claimed by another speaker in this file.
func (m *Matcher) bestMatch(embedding []float64, used map[string]bool) (string, float64) {
	bestName, bestSim := "", 0.0
	for _, p := range m.profiles {
		if used[p.Name] {
			continue
		}
		sim := CosineSimilarity(embedding, p.Embedding)
		if sim > bestSim {
			bestName, bestSim = p.Name, sim
		}
	}
	if bestSim < m.threshold {
		return "", bestSim
	}
	return bestName, bestSim
}

// averageEmbeddings computes the element-wise mean. Vectors of mismatched
// length are ignored past the shortest.
func averageEmbeddings(embeddings [][]float64) []float64 {
	dim := len(embeddings[0])
	for _, e := range embeddings[1:] {
		if len(e) < dim {
			dim = len(e)
		}
	}
	avg := make([]float64, dim)
	for _, e := range embeddings {
		for i := 0; i < dim; i++ {
			avg[i] += e[i]
		}
	}
	for i := range avg {
		avg[i] /= float64(len(embeddings))
	}
	return avg
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// groupBySpeaker collects segments per anonymous speaker label in order of
// first appearance, skipping segments nobody claimed.
func groupBySpeaker(segments []transcribe.Segment) ([]string, map[string][]transcribe.Segment) {
	var order []string
	bySpeaker := make(map[string][]transcribe.Segment)
	for _, seg := range segments {
		if seg.Speaker == "" || seg.Speaker == transcribe.UnknownSpeaker {
			continue
		}
		if _, ok := bySpeaker[seg.Speaker]; !ok {
			order = append(order, seg.Speaker)
		}
		bySpeaker[seg.Speaker] = append(bySpeaker[seg.Speaker], seg)
	}
	return order, bySpeaker
}
