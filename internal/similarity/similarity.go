// Package similarity scores FbHash digests with cosine similarity expressed
// as a percentage.
package similarity

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

// DisplayPrecision is the number of decimal places scores are rounded to
// for display.
const DisplayPrecision = 5

// Score returns 100 * cos(d1, d2). The vectors must be aligned over the
// same index. A zero vector on either side scores 0.
func Score(d1, d2 []float64) (float64, error) {
	if len(d1) != len(d2) {
		return 0, fmt.Errorf("%w: digest vectors have different lengths (%d != %d)",
			apperrors.ErrInvalidInput, len(d1), len(d2))
	}
	var dot, sq1, sq2 float64
	for i := range d1 {
		dot += d1[i] * d2[i]
		sq1 += d1[i] * d1[i]
		sq2 += d2[i] * d2[i]
	}
	return cosine(dot, sq1, sq2), nil
}

// Compare scores two digests over the union of their fingerprints. It gives
// the same result as Score on the vectors returned by digest.Align.
func Compare(a, b *digest.Digest) float64 {
	var dot, sqA, sqB float64
	for e := range a.All() {
		sqA += e.Weight * e.Weight
		if w, ok := b.Weight(e.Fingerprint); ok {
			dot += e.Weight * w
		}
	}
	for e := range b.All() {
		sqB += e.Weight * e.Weight
	}
	return cosine(dot, sqA, sqB)
}

// Round rounds a score to DisplayPrecision decimal places. Use it for output
// only; comparisons should use the unrounded score.
func Round(score float64) float64 {
	scale := math.Pow(10, DisplayPrecision)
	return math.Round(score*scale) / scale
}

func cosine(dot, sq1, sq2 float64) float64 {
	denom := math.Sqrt(sq1) * math.Sqrt(sq2)
	if denom == 0 {
		return 0
	}
	return dot / denom * 100
}
