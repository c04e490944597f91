// Package emotion implements the multimodal emotion inference pipeline:
// label-space reconciliation, the high-confidence override rule, and the
// stacking fusion classifier over the three modality distributions.
package emotion

import "strings"

// Label is one emotion in the unified taxonomy.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fearful  Label = "fearful"
	Neutral  Label = "neutral"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
)

// NumLabels is the size of the unified taxonomy.
const NumLabels = 7

// UnifiedLabels is the fixed taxonomy order. All modality outputs are mapped
// onto this vocabulary before fusion, and the fusion meta-model's native
// classes must equal it (an invariant of the shipped model artifacts).
var UnifiedLabels = [NumLabels]Label{Happy, Sad, Angry, Fearful, Neutral, Surprise, Disgust}

// NegativeLabels is the negative-affect subset used by alerting and the
// negative-day flag.
var NegativeLabels = map[Label]bool{
	Sad:     true,
	Angry:   true,
	Fearful: true,
	Disgust: true,
}

// labelIndex maps unified labels to their fixed position.
var labelIndex = func() map[Label]int {
	m := make(map[Label]int, NumLabels)
	for i, l := range UnifiedLabels {
		m[l] = i
	}
	return m
}()

// textLabelMap maps the text model's native vocabulary onto the taxonomy.
var textLabelMap = map[string]Label{
	"joy":      Happy,
	"sadness":  Sad,
	"anger":    Angry,
	"fear":     Fearful,
	"neutral":  Neutral,
	"surprise": Surprise,
	"disgust":  Disgust,
}

// imageLabelMap is the identity mapping: the image model's head is already
// native to the unified taxonomy.
var imageLabelMap = func() map[string]Label {
	m := make(map[string]Label, NumLabels)
	for _, l := range UnifiedLabels {
		m[string(l)] = l
	}
	return m
}()

// Distribution is a probability-like vector over the unified taxonomy in
// fixed order. A valid distribution sums to 1; the all-zero vector is a
// degenerate but legal value propagated downstream.
type Distribution [NumLabels]float64

// Get returns the mass assigned to l.
func (d Distribution) Get(l Label) float64 {
	return d[labelIndex[l]]
}

// Sum returns the total mass.
func (d Distribution) Sum() float64 {
	var total float64
	for _, v := range d {
		total += v
	}
	return total
}

// Renormalize scales the vector to sum to 1. A zero-mass vector is returned
// unchanged rather than producing NaNs.
func (d Distribution) Renormalize() Distribution {
	total := d.Sum()
	if total == 0 {
		return d
	}
	var out Distribution
	for i, v := range d {
		out[i] = v / total
	}
	return out
}

// ArgMax returns the most probable label and its mass.
func (d Distribution) ArgMax() (Label, float64) {
	best := 0
	for i := 1; i < NumLabels; i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return UnifiedLabels[best], d[best]
}

// Map converts the vector into a label-keyed map for persistence.
func (d Distribution) Map() map[string]float64 {
	m := make(map[string]float64, NumLabels)
	for i, l := range UnifiedLabels {
		m[string(l)] = d[i]
	}
	return m
}

// FromMap builds a Distribution from a label-keyed map. Unknown keys are
// dropped, matching the runtime reconciliation policy.
func FromMap(m map[string]float64) Distribution {
	var d Distribution
	for k, v := range m {
		if idx, ok := labelIndex[Label(k)]; ok {
			d[idx] = v
		}
	}
	return d
}

// OneHot returns the distribution with all mass on l.
func OneHot(l Label) Distribution {
	var d Distribution
	d[labelIndex[l]] = 1
	return d
}

// mapNamed folds a native-vocabulary score map into the unified taxonomy
// using the given mapping table. Unmapped native labels are dropped
// silently; collisions accumulate. No renormalization is applied.
func mapNamed(raw map[string]float64, table map[string]Label) Distribution {
	var d Distribution
	for k, v := range raw {
		if l, ok := table[strings.ToLower(k)]; ok {
			d[labelIndex[l]] += v
		}
	}
	return d
}

// ReconcileText maps the text model's native output onto the taxonomy and
// renormalizes.
func ReconcileText(raw map[string]float64) Distribution {
	return mapNamed(raw, textLabelMap).Renormalize()
}

// ReconcileImage maps an image-model output (already in the unified
// vocabulary) and renormalizes.
func ReconcileImage(raw map[string]float64) Distribution {
	return mapNamed(raw, imageLabelMap).Renormalize()
}

// mapImageRaw maps a single frame's output without renormalizing; frame
// vectors are averaged first and the mean is renormalized once.
func mapImageRaw(raw map[string]float64) Distribution {
	return mapNamed(raw, imageLabelMap)
}

// ReconcileAudio maps an audio embedding positionally: dimension i feeds
// unified label i for the first NumLabels dimensions, then renormalizes.
// The mapping is positional rather than semantic because the audio model
// has no native label head; this mirrors the shipped metamodel's training
// features and is preserved deliberately (see DESIGN.md).
func ReconcileAudio(embedding []float64) Distribution {
	var d Distribution
	n := len(embedding)
	if n > NumLabels {
		n = NumLabels
	}
	copy(d[:n], embedding[:n])
	return d.Renormalize()
}

// disgustOverrideThreshold is the text-disgust mass at which the override
// fires. Extreme text-disgust signal is treated as a high-precision
// override of the noisier audio and video signals.
const disgustOverrideThreshold = 0.80

// ApplyOverride collapses all three modality vectors to one-hot disgust when
// the reconciled text distribution assigns disgust >= 0.80. Returns the
// possibly-rewritten vectors and whether the override fired.
func ApplyOverride(video, audio, text Distribution) (Distribution, Distribution, Distribution, bool) {
	if text.Get(Disgust) >= disgustOverrideThreshold {
		oh := OneHot(Disgust)
		return oh, oh, oh, true
	}
	return video, audio, text, false
}
