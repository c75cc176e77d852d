package scorer

import (
	"container/heap"
	"sort"
)

type candidate struct {
	doc   int
	score float64
}

// better orders by score descending, then by corpus position.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.doc < b.doc
}

// topK returns the k best candidates in rank order. When k covers every
// candidate a plain sort is used; otherwise a bounded min-heap keeps the
// current best k.
func topK(cands []candidate, k int) []candidate {
	if k >= len(cands) {
		sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j]) })
		return cands
	}
	h := make(candidateHeap, 0, k+1)
	for _, c := range cands {
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	result := make([]candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(candidate)
	}
	return result
}

// candidateHeap keeps the worst retained candidate at the root.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
