package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nexis-health/nexis-backend/internal/media"
)

// FrameClassifier scores one decoded RGB frame against the image model's
// native vocabulary.
type FrameClassifier interface {
	ClassifyFrame(pixels []float32) (map[string]float64, error)
}

// WaveformClassifier embeds a full mono PCM waveform. The embedding has no
// label head; it is consumed positionally by ReconcileAudio.
type WaveformClassifier interface {
	Embed(pcm []float32) ([]float64, error)
}

// TextClassifier scores free text against the text model's native
// vocabulary (joy, sadness, anger, ...).
type TextClassifier interface {
	ClassifyText(text string) (map[string]float64, error)
}

// FusionClassifier is the pretrained stacking meta-model. It consumes the
// 21-feature concatenation of the three unified distributions and returns
// class probabilities in unified taxonomy order.
type FusionClassifier interface {
	Predict(features []float32) ([]float64, error)
}

// Verdict is the terminal output of one pipeline run.
type Verdict struct {
	Emotion       Label
	Confidence    float64 // 0-100, rounded to 2 decimals
	Probabilities map[string]float64
}

// Negative reports whether the verdict lies in the negative-affect set.
func (v Verdict) Negative() bool {
	return NegativeLabels[v.Emotion]
}

// Engine is the dependency-injected inference context: the three frozen
// classifiers, the fusion meta-model, and the media extractor. Constructed
// once at process start and shared read-only across concurrent jobs.
type Engine struct {
	extractor media.Extractor
	frames    FrameClassifier
	audio     WaveformClassifier
	text      TextClassifier
	fusion    FusionClassifier
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(ex media.Extractor, frames FrameClassifier, audio WaveformClassifier, text TextClassifier, fusion FusionClassifier) *Engine {
	return &Engine{extractor: ex, frames: frames, audio: audio, text: text, fusion: fusion}
}

// Analyze runs the full pipeline on one complete recording: demux, the
// three modality classifiers, reconciliation, the override rule, and
// fusion. Errors are either *MediaDecodeError or *InferenceError; no
// partial verdicts are returned.
func (e *Engine) Analyze(ctx context.Context, videoPath, textInput string) (Verdict, error) {
	duration, err := e.extractor.Duration(ctx, videoPath)
	if err != nil {
		return Verdict{}, &MediaDecodeError{Path: videoPath, Err: err}
	}

	pcm, err := e.extractor.ExtractPCM(ctx, videoPath)
	if err != nil {
		return Verdict{}, &MediaDecodeError{Path: videoPath, Err: err}
	}

	video, err := e.classifyFrames(ctx, videoPath, duration)
	if err != nil {
		return Verdict{}, err
	}

	embedding, err := e.audio.Embed(pcm)
	if err != nil {
		return Verdict{}, &InferenceError{Stage: "audio", Err: err}
	}
	audio := ReconcileAudio(embedding)

	textRaw, err := e.text.ClassifyText(textInput)
	if err != nil {
		return Verdict{}, &InferenceError{Stage: "text", Err: err}
	}
	text := ReconcileText(textRaw)

	video, audio, text, overridden := ApplyOverride(video, audio, text)
	if overridden {
		slog.Info("text-disgust override applied", "video", videoPath)
	}

	probs, err := e.fusion.Predict(FusionFeatures(video, audio, text))
	if err != nil {
		return Verdict{}, &InferenceError{Stage: "fusion", Err: err}
	}
	if len(probs) != NumLabels {
		return Verdict{}, &InferenceError{Stage: "fusion",
			Err: fmt.Errorf("meta-model emitted %d classes, want %d", len(probs), NumLabels)}
	}

	var dist Distribution
	copy(dist[:], probs)
	label, top := dist.ArgMax()

	return Verdict{
		Emotion:       label,
		Confidence:    math.Round(top*100*100) / 100,
		Probabilities: dist.Map(),
	}, nil
}

// classifyFrames samples evenly spaced frames, classifies each, and averages
// the mapped per-frame vectors. Frames that fail to decode or classify are
// dropped; if none survive, the video branch contributes a zero vector.
func (e *Engine) classifyFrames(ctx context.Context, videoPath string, duration float64) (Distribution, error) {
	timestamps := media.SampleTimestamps(duration)

	var sum Distribution
	var valid int
	for _, ts := range timestamps {
		pixels, err := e.extractor.DecodeFrame(ctx, videoPath, ts)
		if err != nil {
			slog.Debug("frame dropped", "video", videoPath, "ts", ts, "error", err)
			continue
		}
		raw, err := e.frames.ClassifyFrame(pixels)
		if err != nil {
			slog.Debug("frame classification dropped", "video", videoPath, "ts", ts, "error", err)
			continue
		}
		frame := mapImageRaw(raw)
		for i := range sum {
			sum[i] += frame[i]
		}
		valid++
	}

	if valid == 0 {
		return Distribution{}, nil
	}
	for i := range sum {
		sum[i] /= float64(valid)
	}
	return sum.Renormalize(), nil
}
