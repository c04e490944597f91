package emotion

// FusionFeatureLen is the input width of the stacking meta-model: three
// unified distributions concatenated in fixed modality order.
const FusionFeatureLen = 3 * NumLabels

// FusionFeatures concatenates the three reconciled distributions in the
// fixed order [video..., audio..., text...] as the meta-model input.
func FusionFeatures(video, audio, text Distribution) []float32 {
	features := make([]float32, 0, FusionFeatureLen)
	for _, d := range [...]Distribution{video, audio, text} {
		for _, v := range d {
			features = append(features, float32(v))
		}
	}
	return features
}
