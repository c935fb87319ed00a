// Package queue provides the binary heaps used by graph search.
package queue

// Candidate is a graph node paired with its distance to the current query.
type Candidate struct {
	ID       uint32
	Distance float32
}

// Queue is a value-based binary heap of candidates ordered by distance.
// A min-queue pops the closest candidate first, a max-queue the farthest.
type Queue struct {
	max   bool
	items []Candidate
}

// NewMin returns a queue that pops the smallest distance first.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Candidate, 0, capacity)}
}

// NewMax returns a queue that pops the largest distance first.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Candidate, 0, capacity)}
}

// Len returns the number of queued candidates.
func (q *Queue) Len() int { return len(q.items) }

// Top returns the next candidate without removing it.
func (q *Queue) Top() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return q.items[0], true
}

// Push inserts c.
func (q *Queue) Push(c Candidate) {
	q.items = append(q.items, c)
	q.siftUp(len(q.items) - 1)
}

// Pop removes and returns the next candidate.
func (q *Queue) Pop() (Candidate, bool) {
	n := len(q.items)
	if n == 0 {
		return Candidate{}, false
	}
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root, true
}

// Reset empties the queue and keeps its storage.
func (q *Queue) Reset() {
	q.items = q.items[:0]
}

// DrainAscending empties a max-queue into dst ordered nearest-first.
func (q *Queue) DrainAscending(dst []Candidate) []Candidate {
	n := q.Len()
	start := len(dst)
	dst = append(dst, make([]Candidate, n)...)
	for i := n - 1; i >= 0; i-- {
		c, _ := q.Pop()
		if q.max {
			dst[start+i] = c
		} else {
			dst[start+n-1-i] = c
		}
	}
	return dst
}

func (q *Queue) less(i, j int) bool {
	if q.max {
		return q.items[i].Distance > q.items[j].Distance
	}
	return q.items[i].Distance < q.items[j].Distance
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
