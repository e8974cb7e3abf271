package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// workingSampleRate is the standard rate every derived stream is resampled
// to before transcription or embedding extraction.
const workingSampleRate = 16000

// CheckFFmpeg checks if the configured ffmpeg binary is in PATH.
// Call once at startup.
func CheckFFmpeg(binary string) bool {
	if binary == "" {
		binary = "ffmpeg"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// SplitChannels splits a stereo file into two independent mono 16kHz WAV
// streams. Returns the left path, the right path, and a cleanup function.
func SplitChannels(ctx context.Context, ffmpegBinary string, asset *Asset, workDir string) (string, string, func(), error) {
	noop := func() {}
	if !asset.Stereo() {
		return "", "", noop, fmt.Errorf("split channels: %s has %d channel(s), want 2", asset.Path, asset.Channels)
	}
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}

	base := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	left := filepath.Join(workDir, base+"_left_16k.wav")
	right := filepath.Join(workDir, base+"_right_16k.wav")

	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", asset.Path,
		"-filter_complex", "[0:a]channelsplit=channel_layout=stereo[l][r]",
		"-map", "[l]", "-ar", "16000", "-c:a", "pcm_s16le", left,
		"-map", "[r]", "-ar", "16000", "-c:a", "pcm_s16le", right,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(left)
		os.Remove(right)
		return "", "", noop, fmt.Errorf("ffmpeg channelsplit: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	cleanup := func() {
		os.Remove(left)
		os.Remove(right)
	}
	return left, right, cleanup, nil
}

// DownmixMono downmixes a file to one mono 16kHz WAV stream for the standard
// mono transcription path. Returns the output path and a cleanup function.
func DownmixMono(ctx context.Context, ffmpegBinary string, asset *Asset, workDir string) (string, func(), error) {
	noop := func() {}
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}

	base := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	out := filepath.Join(workDir, base+"_mono_16k.wav")

	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", asset.Path,
		"-ac", "1", "-ar", "16000",
		"-c:a", "pcm_s16le",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", noop, fmt.Errorf("ffmpeg downmix: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return out, func() { os.Remove(out) }, nil
}

// RMS computes the root-mean-square energy of an audio file, decoded to raw
// signed 16-bit little-endian samples via ffmpeg. The value is scaled to the
// 0-128 range the silence-gating noise floor is tuned against.
func RMS(ctx context.Context, ffmpegBinary, path string) (float64, error) {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ac", "1", "-ar", "16000",
		"-f", "s16le",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffmpeg decode for rms: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return PCM16RMS(stdout.Bytes()), nil
}

// PCM16RMS computes the scaled RMS energy of raw s16le samples.
func PCM16RMS(raw []byte) float64 {
	n := len(raw) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		v := float64(s)
		sum += v * v
	}
	// Full-scale int16 maps to 128 on the energy scale.
	return math.Sqrt(sum/float64(n)) / 256.0
}
