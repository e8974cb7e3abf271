package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aputting/scribe-engine/internal/audio"
)

// localHelperScript runs faster-whisper in-process on the machine's CPU and
// prints the common wire shape on stdout. With --diarize it also runs
// pyannote speaker diarization and emits the turns; segments are attributed
// downstream from those turns. When pyannote is missing the transcript
// simply carries no turns.
const localHelperScript = `#!/usr/bin/env python3
import argparse
import json
import sys


def diarize(audio):
    try:
        from pyannote.audio import Pipeline
    except ImportError as e:
        print("pyannote not installed, skipping diarization: %s" % e, file=sys.stderr)
        return []
    try:
        diarizer = Pipeline.from_pretrained("pyannote/speaker-diarization-3.1")
        annotation = diarizer(audio)
    except Exception as e:
        print("diarization failed: %s" % e, file=sys.stderr)
        return []
    turns = []
    for turn, _, label in annotation.itertracks(yield_label=True):
        turns.append({"start": turn.start, "end": turn.end, "speaker": label})
    return turns


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--audio", required=True)
    parser.add_argument("--model", default="base")
    parser.add_argument("--language", default="")
    parser.add_argument("--diarize", action="store_true")
    args = parser.parse_args()

    try:
        from faster_whisper import WhisperModel
    except ImportError as e:
        print(json.dumps({"error": "faster-whisper not installed: %s" % e}), file=sys.stderr)
        sys.exit(2)

    model = WhisperModel(args.model, device="cpu", compute_type="int8")
    segments, info = model.transcribe(
        args.audio,
        language=args.language or None,
        vad_filter=True,
    )

    out_segments = []
    texts = []
    for seg in segments:
        text = seg.text.strip()
        out_segments.append({
            "start": seg.start,
            "end": seg.end,
            "text": text,
            "speaker": "Unknown",
        })
        texts.append(text)

    turns = diarize(args.audio) if args.diarize else []

    print(json.dumps({
        "text": " ".join(texts),
        "segments": out_segments,
        "language": info.language,
        "duration": info.duration,
        "model": args.model,
        "turns": turns,
    }))


if __name__ == "__main__":
    main()
`

// localArgs builds the helper invocation for one transcription request.
func localArgs(scriptPath, audioPath, model string, opts Options) []string {
	args := []string{scriptPath, "--audio", audioPath, "--model", model}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Diarize {
		args = append(args, "--diarize")
	}
	return args
}

// LocalBackend runs speech recognition in-process on the CPU via a helper
// script. Explicitly the slowest path (roughly sub-real-time on CPU); the
// router only reaches it when every remote backend is unavailable or has
// failed.
type LocalBackend struct {
	python string
	model  string
	log    zerolog.Logger

	// The availability probe imports the recognition libraries once. Lazy,
	// guarded: concurrent first use must not race the check.
	checkOnce sync.Once
	usable    bool
}

// NewLocalBackend creates the CPU fallback backend.
func NewLocalBackend(python, model string, log zerolog.Logger) *LocalBackend {
	if python == "" {
		python = "python3"
	}
	if model == "" {
		model = "base"
	}
	return &LocalBackend{python: python, model: model, log: log}
}

// Name returns the backend name.
func (l *LocalBackend) Name() string { return BackendLocal }

// Available verifies the interpreter exists and the recognition library
// imports without raising. The import check runs once per process and the
// cached answer is reused; it never panics.
func (l *LocalBackend) Available(ctx context.Context) bool {
	l.checkOnce.Do(func() {
		if _, err := exec.LookPath(l.python); err != nil {
			l.log.Debug().Str("python", l.python).Msg("local interpreter not in PATH")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, l.python, "-c", "import faster_whisper")
		if err := cmd.Run(); err != nil {
			l.log.Debug().Err(err).Msg("faster-whisper not importable, local backend disabled")
			return
		}
		l.usable = true
	})
	return l.usable
}

// Transcribe writes the helper script to the work dir and runs it against
// the audio file, blocking for the duration of the CPU inference.
func (l *LocalBackend) Transcribe(ctx context.Context, asset *audio.Asset, opts Options) (*Result, error) {
	if !l.Available(ctx) {
		return nil, unavailablef("local speech recognition not installed")
	}

	start := time.Now()
	l.log.Warn().
		Str("file", filepath.Base(asset.Path)).
		Str("model", l.model).
		Msg("transcribing on local CPU, this may be slow for long audio")

	scriptPath := filepath.Join(os.TempDir(), "scribe_local_whisper.py")
	if err := os.WriteFile(scriptPath, []byte(localHelperScript), 0o755); err != nil {
		return nil, failedf("write helper script: %v", err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.CommandContext(ctx, l.python, localArgs(scriptPath, asset.Path, l.model, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var we wireError
		if json.Unmarshal(stderr.Bytes(), &we) == nil && we.Error != "" {
			msg = we.Error
		}
		return nil, failedf("local transcription: %v: %s", err, msg)
	}

	var wire wireResponse
	if err := json.Unmarshal(stdout.Bytes(), &wire); err != nil {
		return nil, failedf("parse helper output: %v", err)
	}

	result := resultFromWire(&wire, BackendLocal)
	if result.Model == "unknown" {
		result.Model = l.model
	}
	result.ProcessingTime = time.Since(start).Seconds()
	result.Normalize()

	l.log.Info().
		Float64("audio_seconds", result.Duration).
		Float64("processing_seconds", result.ProcessingTime).
		Msg("local transcription complete")

	return result, nil
}

// Status returns backend diagnostics for the status API.
func (l *LocalBackend) Status(ctx context.Context) Status {
	return Status{
		Name:      BackendLocal,
		Available: l.Available(ctx),
		Model:     l.model,
		Device:    "cpu",
	}
}

var _ Backend = (*LocalBackend)(nil)
