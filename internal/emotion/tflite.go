package emotion

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"

	tflite "github.com/tphakala/go-tflite"
)

// ModelPaths locates the frozen model artifacts loaded once at startup.
type ModelPaths struct {
	ImageModel  string
	ImageLabels string
	AudioModel  string
	TextModel   string
	TextLabels  string
	TextVocab   string
	FusionModel string
}

// Models bundles the four TensorFlow Lite interpreters. The weights are
// immutable after load; each interpreter serializes its own invocations
// because interpreter tensors are mutable per-call state.
type Models struct {
	Image  *ImageModel
	Audio  *AudioModel
	Text   *TextModel
	Fusion *FusionModel
}

// LoadModels loads all four models. Any failure aborts startup.
func LoadModels(p ModelPaths) (*Models, error) {
	img, err := loadImageModel(p.ImageModel, p.ImageLabels)
	if err != nil {
		return nil, fmt.Errorf("load image model: %w", err)
	}
	aud, err := loadAudioModel(p.AudioModel)
	if err != nil {
		return nil, fmt.Errorf("load audio model: %w", err)
	}
	txt, err := loadTextModel(p.TextModel, p.TextLabels, p.TextVocab)
	if err != nil {
		return nil, fmt.Errorf("load text model: %w", err)
	}
	fus, err := loadFusionModel(p.FusionModel)
	if err != nil {
		return nil, fmt.Errorf("load fusion model: %w", err)
	}
	return &Models{Image: img, Audio: aud, Text: txt, Fusion: fus}, nil
}

// Close releases every interpreter and model.
func (m *Models) Close() {
	m.Image.close()
	m.Audio.close()
	m.Text.close()
	m.Fusion.close()
}

// interpreterHandle owns one tflite model + interpreter pair.
type interpreterHandle struct {
	model  *tflite.Model
	interp *tflite.Interpreter
	mu     sync.Mutex
}

func newInterpreter(path string) (*interpreterHandle, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from %s", path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter for %s", path)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed for %s", path)
	}
	return &interpreterHandle{model: model, interp: interp}, nil
}

func (h *interpreterHandle) close() {
	if h.interp != nil {
		h.interp.Delete()
	}
	if h.model != nil {
		h.model.Delete()
	}
}

// invokeFloats copies input into the input tensor, invokes, and returns a
// copy of the output tensor. The lock serializes interpreter state, not the
// weights.
func (h *interpreterHandle) invokeFloats(input []float32) ([]float32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	in := h.interp.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	dst := in.Float32s()
	if len(dst) != len(input) {
		return nil, fmt.Errorf("input length %d does not match tensor length %d", len(input), len(dst))
	}
	copy(dst, input)

	if status := h.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := h.interp.GetOutputTensor(0)
	if out == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	result := make([]float32, len(out.Float32s()))
	copy(result, out.Float32s())
	return result, nil
}

// ImageModel scores one RGB frame against the facial-expression labels.
type ImageModel struct {
	handle *interpreterHandle
	labels []string
}

func loadImageModel(modelPath, labelsPath string) (*ImageModel, error) {
	h, err := newInterpreter(modelPath)
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(labelsPath)
	if err != nil {
		h.close()
		return nil, err
	}
	return &ImageModel{handle: h, labels: labels}, nil
}

func (m *ImageModel) ClassifyFrame(pixels []float32) (map[string]float64, error) {
	logits, err := m.handle.invokeFloats(pixels)
	if err != nil {
		return nil, err
	}
	return pairLabels(m.labels, softmax(logits))
}

func (m *ImageModel) close() { m.handle.close() }

// AudioModel embeds a mono 16kHz waveform. Its output is a raw embedding
// with no label head; shorter clips are zero-padded, longer ones truncated
// to the model's fixed input window.
type AudioModel struct {
	handle *interpreterHandle
}

func loadAudioModel(modelPath string) (*AudioModel, error) {
	h, err := newInterpreter(modelPath)
	if err != nil {
		return nil, err
	}
	return &AudioModel{handle: h}, nil
}

func (m *AudioModel) Embed(pcm []float32) ([]float64, error) {
	m.handle.mu.Lock()
	window := len(m.handle.interp.GetInputTensor(0).Float32s())
	m.handle.mu.Unlock()

	input := make([]float32, window)
	copy(input, pcm)

	out, err := m.handle.invokeFloats(input)
	if err != nil {
		return nil, err
	}
	embedding := make([]float64, len(out))
	for i, v := range out {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

func (m *AudioModel) close() { m.handle.close() }

// TextModel scores free text against the sentiment model's native labels
// (joy, sadness, anger, fear, neutral, surprise, disgust).
type TextModel struct {
	handle *interpreterHandle
	labels []string
	vocab  map[string]int32
	unkID  int32
}

func loadTextModel(modelPath, labelsPath, vocabPath string) (*TextModel, error) {
	h, err := newInterpreter(modelPath)
	if err != nil {
		return nil, err
	}
	labels, err := loadLabels(labelsPath)
	if err != nil {
		h.close()
		return nil, err
	}
	vocab, err := loadVocab(vocabPath)
	if err != nil {
		h.close()
		return nil, err
	}
	m := &TextModel{handle: h, labels: labels, vocab: vocab}
	if id, ok := vocab["[unk]"]; ok {
		m.unkID = id
	}
	return m, nil
}

func (m *TextModel) ClassifyText(text string) (map[string]float64, error) {
	m.handle.mu.Lock()
	defer m.handle.mu.Unlock()

	in := m.handle.interp.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	ids := in.Int32s()
	for i := range ids {
		ids[i] = 0
	}
	for i, tok := range m.tokenize(text) {
		if i >= len(ids) {
			break
		}
		ids[i] = tok
	}

	if status := m.handle.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := m.handle.interp.GetOutputTensor(0)
	if out == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	logits := make([]float32, len(out.Float32s()))
	copy(logits, out.Float32s())

	return pairLabels(m.labels, softmax(logits))
}

// tokenize lowercases and splits on non-letter runes, mapping tokens
// through the vocabulary. Unknown tokens map to the [unk] id.
func (m *TextModel) tokenize(text string) []int32 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'')
	})
	ids := make([]int32, 0, len(words))
	for _, w := range words {
		if id, ok := m.vocab[w]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, m.unkID)
		}
	}
	return ids
}

func (m *TextModel) close() { m.handle.close() }

// FusionModel is the stacking meta-model over the 21-feature concatenation.
// Its output is already a probability distribution over the unified
// taxonomy in fixed order.
type FusionModel struct {
	handle *interpreterHandle
}

func loadFusionModel(modelPath string) (*FusionModel, error) {
	h, err := newInterpreter(modelPath)
	if err != nil {
		return nil, err
	}
	return &FusionModel{handle: h}, nil
}

func (m *FusionModel) Predict(features []float32) ([]float64, error) {
	out, err := m.handle.invokeFloats(features)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(out))
	for i, v := range out {
		probs[i] = float64(v)
	}
	return probs, nil
}

func (m *FusionModel) close() { m.handle.close() }

// loadLabels reads one label per line.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// loadVocab reads one token per line; the id is the zero-based line index.
func loadVocab(path string) (map[string]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab %s: %w", path, err)
	}
	defer f.Close()

	vocab := make(map[string]int32)
	scanner := bufio.NewScanner(f)
	var id int32
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok != "" {
			vocab[strings.ToLower(tok)] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab file %s is empty", path)
	}
	return vocab, nil
}

// pairLabels zips model labels with probabilities.
func pairLabels(labels []string, probs []float32) (map[string]float64, error) {
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("label count %d does not match output size %d", len(labels), len(probs))
	}
	out := make(map[string]float64, len(labels))
	for i, l := range labels {
		out[l] = float64(probs[i])
	}
	return out, nil
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return logits
	}
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	exps := make([]float32, len(logits))
	for i, v := range logits {
		e := math.Exp(float64(v - maxv))
		exps[i] = float32(e)
		sum += e
	}
	for i := range exps {
		exps[i] = float32(float64(exps[i]) / sum)
	}
	return exps
}
