// Package weighting implements the FbHash weights: the in-document chunk
// weight derived from fingerprint frequency and the corpus-relative document
// weight derived from how common a fingerprint is in the reference corpus.
package weighting

// FrequencyTable counts fingerprint occurrences within one document. Keys
// holds the distinct fingerprints in first-seen order.
type FrequencyTable struct {
	Counts map[uint64]int
	Keys   []uint64
}

// Frequencies counts every occurrence of each distinct fingerprint.
func Frequencies(fps []uint64) FrequencyTable {
	t := FrequencyTable{
		Counts: make(map[uint64]int, len(fps)),
		Keys:   make([]uint64, 0, len(fps)),
	}
	for _, fp := range fps {
		if _, seen := t.Counts[fp]; !seen {
			t.Keys = append(t.Keys, fp)
		}
		t.Counts[fp]++
	}
	return t
}

// Count returns the number of occurrences of fp.
func (t FrequencyTable) Count(fp uint64) int {
	return t.Counts[fp]
}

// Len returns the number of distinct fingerprints.
func (t FrequencyTable) Len() int {
	return len(t.Keys)
}
