package voiceid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Embedder extracts a voice embedding from a slice of an audio file. A
// negative end means "to the end of the file".
type Embedder interface {
	Embed(ctx context.Context, path string, start, end float64) ([]float64, error)
	Ready(ctx context.Context) bool
}

// embedHelperScript extracts a d-vector voice embedding with resemblyzer and
// prints it as JSON on stdout.
const embedHelperScript = `#!/usr/bin/env python3
import argparse
import json
import sys


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--audio", required=True)
    parser.add_argument("--start", type=float, default=0.0)
    parser.add_argument("--end", type=float, default=-1.0)
    args = parser.parse_args()

    try:
        from resemblyzer import VoiceEncoder, preprocess_wav
    except ImportError as e:
        print(json.dumps({"error": "resemblyzer not installed: %s" % e}), file=sys.stderr)
        sys.exit(2)

    wav = preprocess_wav(args.audio)
    rate = 16000
    lo = int(args.start * rate)
    hi = len(wav) if args.end < 0 else int(args.end * rate)
    clip = wav[lo:hi]
    if len(clip) == 0:
        print(json.dumps({"error": "empty audio slice"}), file=sys.stderr)
        sys.exit(2)

    encoder = VoiceEncoder()
    embedding = encoder.embed_utterance(clip)
    print(json.dumps({"embedding": embedding.tolist()}))


if __name__ == "__main__":
    main()
`

// HelperEmbedder runs the embedding model through a helper script, the same
// shape as the local transcription backend. Model load dominates the cost of
// each call; callers keep extraction counts low.
type HelperEmbedder struct {
	python string
	log    zerolog.Logger

	checkOnce sync.Once
	usable    bool
}

// NewHelperEmbedder creates an embedder driven by the given interpreter.
func NewHelperEmbedder(python string, log zerolog.Logger) *HelperEmbedder {
	if python == "" {
		python = "python3"
	}
	return &HelperEmbedder{python: python, log: log}
}

// Ready checks once per process that the interpreter and embedding library
// are importable; the cached answer is reused.
func (h *HelperEmbedder) Ready(ctx context.Context) bool {
	h.checkOnce.Do(func() {
		if _, err := exec.LookPath(h.python); err != nil {
			h.log.Debug().Str("python", h.python).Msg("embedder interpreter not in PATH")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, h.python, "-c", "import resemblyzer")
		if err := cmd.Run(); err != nil {
			h.log.Debug().Err(err).Msg("resemblyzer not importable, voice matching disabled")
			return
		}
		h.usable = true
	})
	return h.usable
}

// Embed extracts one embedding from path between start and end seconds.
func (h *HelperEmbedder) Embed(ctx context.Context, path string, start, end float64) ([]float64, error) {
	if !h.Ready(ctx) {
		return nil, fmt.Errorf("%w: embedding model not installed", ErrEmbeddingExtraction)
	}

	scriptPath := filepath.Join(os.TempDir(), "scribe_voice_embed.py")
	if err := os.WriteFile(scriptPath, []byte(embedHelperScript), 0o755); err != nil {
		return nil, fmt.Errorf("%w: write helper script: %v", ErrEmbeddingExtraction, err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.CommandContext(ctx, h.python, scriptPath,
		"--audio", path,
		"--start", strconv.FormatFloat(start, 'f', 3, 64),
		"--end", strconv.FormatFloat(end, 'f', 3, 64),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var out struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(stderr.Bytes(), &out) == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrEmbeddingExtraction, err, msg)
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: parse helper output: %v", ErrEmbeddingExtraction, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: helper returned empty embedding", ErrEmbeddingExtraction)
	}
	return out.Embedding, nil
}

var _ Embedder = (*HelperEmbedder)(nil)
