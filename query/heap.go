package query

import (
	"math"

	"github.com/hupe1980/vectable/fragment"
)

// Hit is one search result.
type Hit struct {
	// FragmentID is the id of the fragment holding the row.
	FragmentID string
	// Row is the row position inside the fragment.
	Row int
	// Distance is the metric distance to the query. Smaller is closer.
	Distance float32
	// Fragment is the decoded fragment holding the row, for projection.
	Fragment *fragment.Fragment
}

// less orders hits by (distance asc, fragment id asc, row asc).
func less(a, b Hit) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.FragmentID != b.FragmentID {
		return a.FragmentID < b.FragmentID
	}
	return a.Row < b.Row
}

// sanitize maps NaN to +Inf so that every distance is totally ordered.
func sanitize(d float32) float32 {
	if d != d {
		return float32(math.Inf(1))
	}
	return d
}

// topK is a bounded max-heap keeping the k best hits. The root is the worst kept hit.
// It is value based and does not go through container/heap.
type topK struct {
	k     int
	items []Hit
}

func newTopK(k, sizeHint int) *topK {
	return &topK{k: k, items: make([]Hit, 0, min(k, sizeHint))}
}

// worse reports whether items[i] sorts after items[j].
func (h *topK) worse(i, j int) bool {
	return less(h.items[j], h.items[i])
}

// Push offers hit to the heap.
func (h *topK) Push(hit Hit) {
	if len(h.items) < h.k {
		h.items = append(h.items, hit)
		h.siftUp(len(h.items) - 1)
		return
	}
	if !less(hit, h.items[0]) {
		return
	}
	h.items[0] = hit
	h.siftDown(0)
}

// Len returns the number of kept hits.
func (h *topK) Len() int { return len(h.items) }

// Hits returns the kept hits in no particular order.
func (h *topK) Hits() []Hit { return h.items }

func (h *topK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.worse(i, parent) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *topK) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		l, r := 2*i+1, 2*i+2
		if l < n && h.worse(l, largest) {
			largest = l
		}
		if r < n && h.worse(r, largest) {
			largest = r
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
