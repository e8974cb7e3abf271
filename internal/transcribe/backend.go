package transcribe

import (
	"context"

	"github.com/aputting/scribe-engine/internal/audio"
)

// Backend names, fixed. The router's priority order enumerates exactly these.
const (
	BackendExternal = "external-server"
	BackendManaged  = "managed-service"
	BackendLocal    = "local"
)

// Options are per-request transcription options shared by every backend.
// Zero-value fields are omitted from remote requests.
type Options struct {
	Language string // ISO-639 code, "" = auto-detect
	Diarize  bool

	// Stereo handling hints forwarded to backends that split channels
	// server-side. Unset for per-channel requests.
	StereoMode   string
	LeftSpeaker  string
	RightSpeaker string
}

// Backend is one concrete transcription execution path.
//
// Available is a cheap, side-effect-free reachability probe: it never
// panics and never blocks longer than a short health-check timeout, so it
// is safe to call before every request. Transcribe blocks for the duration
// of the inference; failures are tagged ErrBackendUnavailable (not
// configured / unreachable) or ErrTranscriptionFailed (reachable but the
// call failed).
type Backend interface {
	Name() string
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error)
	Status(ctx context.Context) Status
}
