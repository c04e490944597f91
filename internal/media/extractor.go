// Package media demuxes uploaded video files through external ffmpeg and
// ffprobe processes: clip duration, mono 16kHz PCM audio, and RGB frames
// decoded at arbitrary timestamps.
package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

const (
	// SampleRate is the PCM rate all audio is resampled to.
	SampleRate = 16000

	// FrameSize is the square pixel size frames are decoded at, matching
	// the image classifier's input tensor.
	FrameSize = 224

	// MinFrames and MaxFrames bound the number of sampled frames per clip.
	MinFrames = 5
	MaxFrames = 10
)

// Extractor is the narrow interface the inference pipeline consumes.
type Extractor interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractPCM(ctx context.Context, path string) ([]float32, error)
	DecodeFrame(ctx context.Context, path string, ts float64) ([]float32, error)
}

// FFmpeg shells out to ffmpeg/ffprobe binaries. Failure of either process
// is reported as an error carrying the process stderr, never as a status
// field.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
}

// NewFFmpeg returns an FFmpeg extractor using the given binary paths, or
// the binaries on PATH when empty.
func NewFFmpeg(ffmpegPath, ffprobePath, tempDir string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, TempDir: tempDir}
}

// Duration probes the container for its duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	if path == "" {
		return 0, fmt.Errorf("media path cannot be empty")
	}

	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe canceled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("ffprobe failed: %s", firstNonEmpty(stderr.String(), err.Error()))
	}

	durationStr := strings.TrimSpace(out.String())
	if durationStr == "" || durationStr == "N/A" {
		return 0, fmt.Errorf("ffprobe could not determine duration for %s", path)
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", durationStr, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid duration %.3f for %s", duration, path)
	}
	return duration, nil
}

// ExtractPCM demuxes the audio track to a temporary mono 16kHz wav file,
// reads it back as float32 samples, and deletes the artifact on both the
// success and failure paths.
func (f *FFmpeg) ExtractPCM(ctx context.Context, path string) ([]float32, error) {
	tmp, err := os.CreateTemp(f.TempDir, "checkin-audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp audio file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-i", path,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		tmpPath,
		"-y", "-hide_banner", "-loglevel", "error")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg audio demux failed: %s", firstNonEmpty(stderr.String(), err.Error()))
	}

	return readWavSamples(tmpPath)
}

// DecodeFrame decodes one FrameSize x FrameSize RGB frame at the given
// timestamp and returns it as row-major RGB floats normalized to [0,1].
func (f *FFmpeg) DecodeFrame(ctx context.Context, path string, ts float64) ([]float32, error) {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", FrameSize, FrameSize),
		"-hide_banner", "-loglevel", "error",
		"pipe:1")

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg frame decode at %.3fs failed: %s", ts, firstNonEmpty(stderr.String(), err.Error()))
	}

	raw := out.Bytes()
	want := FrameSize * FrameSize * 3
	if len(raw) < want {
		return nil, fmt.Errorf("short frame at %.3fs: got %d bytes, want %d", ts, len(raw), want)
	}

	pixels := make([]float32, want)
	for i := 0; i < want; i++ {
		pixels[i] = float32(raw[i]) / 255.0
	}
	return pixels, nil
}

// SampleTimestamps returns N = clamp(round(duration), MinFrames, MaxFrames)
// evenly spaced timestamps across the clip, inset 0.1s from each edge.
func SampleTimestamps(duration float64) []float64 {
	n := int(math.Round(duration))
	if n < MinFrames {
		n = MinFrames
	}
	if n > MaxFrames {
		n = MaxFrames
	}

	start := 0.1
	end := duration - 0.1
	if end < start {
		end = start
	}

	ts := make([]float64, n)
	if n == 1 {
		ts[0] = start
		return ts
	}
	step := (end - start) / float64(n-1)
	for i := range ts {
		ts[i] = start + float64(i)*step
	}
	return ts
}

// readWavSamples decodes a PCM wav file into float32 samples in [-1,1].
func readWavSamples(path string) ([]float32, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decoded audio: %w", err)
	}
	defer fh.Close()

	dec := wav.NewDecoder(fh)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("decoded audio is empty")
	}

	scale := float32(1 << 15)
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
