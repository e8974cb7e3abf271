package transcribe

import (
	"errors"
	"fmt"
)

// Error taxonomy for the backend dispatch layer. The router classifies
// failures with errors.Is: an unavailable backend is skipped silently, a
// failed transcription triggers failover (when enabled).
var (
	// ErrBackendUnavailable marks a backend that is not configured or not
	// reachable. Never fatal by itself.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrTranscriptionFailed marks a backend that was reachable but whose
	// transcription call failed: non-success response, malformed payload,
	// or timeout.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

func unavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, fmt.Sprintf(format, args...))
}

func failedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTranscriptionFailed, fmt.Sprintf(format, args...))
}
