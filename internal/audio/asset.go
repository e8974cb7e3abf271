package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Asset describes one recording handed to the transcription pipeline.
// Immutable once probed; created per request and discarded afterwards.
type Asset struct {
	Path       string
	Channels   int
	SampleRate int
	Duration   float64 // seconds; 0 until probed
	SizeBytes  int64
}

// Stereo reports whether the asset has exactly two channels.
func (a *Asset) Stereo() bool { return a.Channels == 2 }

// ffprobeOutput is the subset of ffprobe -show_streams -show_format JSON
// the prober consumes.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe inspects an audio file with ffprobe and returns a populated Asset.
func Probe(ctx context.Context, ffprobeBinary, path string) (*Asset, error) {
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, ffprobeBinary,
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	asset := &Asset{Path: path}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		asset.Channels = s.Channels
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			asset.SampleRate = sr
		}
		break
	}
	if asset.Channels == 0 {
		return nil, fmt.Errorf("no audio stream in %s", path)
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		asset.Duration = d
	}
	if sz, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
		asset.SizeBytes = sz
	}

	return asset, nil
}
