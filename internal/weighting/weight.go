package weighting

import "math"

// ChunkWeight rewards fingerprints that repeat within a document:
// 1 + log10(count). count is at least 1 for any observed fingerprint.
func ChunkWeight(count int) float64 {
	return 1 + math.Log10(float64(count))
}

// DocumentWeight discounts fingerprints common in a corpus of n documents:
// log10((n/df)^2). A fingerprint absent from the corpus (df == 0) gets
// weight 1. df > n gives a negative weight.
func DocumentWeight(df, n int) float64 {
	if df <= 0 {
		return 1
	}
	ratio := float64(n) / float64(df)
	return math.Log10(ratio * ratio)
}
