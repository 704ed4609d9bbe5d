package similarity

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
)

// Candidate is a named digest to rank against a target.
type Candidate struct {
	Name   string
	Digest *digest.Digest
}

// Match is a candidate's similarity to the target.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Rank scores target against every candidate and returns the best limit
// matches, highest score first and ties broken by name. limit <= 0 returns
// every candidate.
func Rank(target *digest.Digest, candidates []Candidate, limit int) []Match {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	h := &matchHeap{}
	heap.Init(h)
	for _, c := range candidates {
		heap.Push(h, Match{Name: c.Name, Score: Compare(target, c.Digest)})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]Match, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Match)
	}
	return result
}

// matchHeap is a min-heap: the weakest match sits at the root.
type matchHeap []Match

func (h matchHeap) Len() int { return len(h) }

func (h matchHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Name > h[j].Name
}

func (h matchHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *matchHeap) Push(x interface{}) {
	*h = append(*h, x.(Match))
}

func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
