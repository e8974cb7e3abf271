package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
	"github.com/aputting/scribe-engine/internal/metrics"
)

// priorityOrder is the fixed failover order: the operator's own GPU first,
// then the pay-per-use platform, then the CPU of last resort.
var priorityOrder = []string{BackendExternal, BackendManaged, BackendLocal}

// Router selects and fails over across the enumerated backend variants.
//
// Construct one Router per process and pass it to call sites; it holds no
// hidden global state.
type Router struct {
	backends  map[string]Backend
	preferred string
	failover  bool
	log       zerolog.Logger
}

// NewRouter creates a router over the fixed backend set. preferred may be
// empty or one of the backend names; failover controls whether errors move
// on to the next candidate.
func NewRouter(backends []Backend, preferred string, failover bool, log zerolog.Logger) *Router {
	m := make(map[string]Backend, len(backends))
	for _, b := range backends {
		m[b.Name()] = b
	}
	return &Router{
		backends:  m,
		preferred: preferred,
		failover:  failover,
		log:       log,
	}
}

// Preferred returns the configured preferred backend name, if any.
func (r *Router) Preferred() string { return r.preferred }

// FailoverEnabled reports whether failover is enabled.
func (r *Router) FailoverEnabled() bool { return r.failover }

// Best returns the backend a request issued now would use: the preferred
// backend when it is available, otherwise the first available backend in
// priority order. Returns nil when nothing is available.
func (r *Router) Best(ctx context.Context) Backend {
	if r.preferred != "" {
		if b := r.backends[r.preferred]; b != nil && b.Available(ctx) {
			return b
		}
		r.log.Warn().Str("backend", r.preferred).Msg("preferred backend not available")
	}
	for _, name := range priorityOrder {
		if b := r.backends[name]; b != nil && b.Available(ctx) {
			return b
		}
	}
	return nil
}

// AvailableBackends returns the names of the currently available backends
// in priority order.
func (r *Router) AvailableBackends(ctx context.Context) []string {
	var names []string
	for _, name := range priorityOrder {
		if b := r.backends[name]; b != nil && b.Available(ctx) {
			names = append(names, name)
		}
	}
	return names
}

// Transcribe routes the request to the best available backend.
//
// Candidates are ordered preferred-first, then the remaining backends in
// priority order; the remainder only joins the list when failover is
// enabled or no preference was set. Unavailable candidates are skipped
// silently. The first success wins and no further backend is invoked. A
// failure moves on only when failover is enabled; otherwise it propagates
// immediately. Exhausting every candidate raises one aggregate error
// wrapping the most recent failure — intermediate failures are logged, not
// surfaced.
func (r *Router) Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error) {
	var candidates []Backend

	if r.preferred != "" {
		if b := r.backends[r.preferred]; b != nil {
			candidates = append(candidates, b)
		}
	}
	if r.failover || len(candidates) == 0 {
		for _, name := range priorityOrder {
			if name == r.preferred {
				continue
			}
			if b := r.backends[name]; b != nil {
				candidates = append(candidates, b)
			}
		}
	}

	var lastErr error
	for _, b := range candidates {
		if !b.Available(ctx) {
			r.log.Debug().Str("backend", b.Name()).Msg("backend not available, skipping")
			continue
		}

		r.log.Info().Str("backend", b.Name()).Str("file", asset.Path).Msg("using backend")
		start := time.Now()

		result, err := b.Transcribe(ctx, asset, opts)
		if err == nil {
			metrics.TranscriptionsTotal.WithLabelValues(b.Name(), "ok").Inc()
			metrics.TranscriptionDuration.WithLabelValues(b.Name()).Observe(time.Since(start).Seconds())
			return result, nil
		}

		metrics.TranscriptionsTotal.WithLabelValues(b.Name(), "error").Inc()
		r.log.Warn().Err(err).Str("backend", b.Name()).Msg("backend failed")
		lastErr = err

		if !r.failover {
			return nil, err
		}
		metrics.FailoversTotal.Inc()
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: all backends failed: %w", ErrTranscriptionFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: no transcription backends available", ErrBackendUnavailable)
}

// Statuses reports per-backend availability and diagnostics in priority
// order.
func (r *Router) Statuses(ctx context.Context) []Status {
	statuses := make([]Status, 0, len(priorityOrder))
	for _, name := range priorityOrder {
		b := r.backends[name]
		if b == nil {
			statuses = append(statuses, Status{Name: name, Disabled: true})
			continue
		}
		statuses = append(statuses, b.Status(ctx))
	}
	return statuses
}
