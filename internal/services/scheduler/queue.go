package scheduler

import (
	"container/heap"
	"time"
)

type entry struct {
	id      TaskID
	name    string
	due     time.Time
	seq     uint64
	task    Task
	attempt int
	index   int
}

// taskHeap orders entries by due time, then by scheduling order.
type taskHeap []*entry

var _ heap.Interface = (*taskHeap)(nil)

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
