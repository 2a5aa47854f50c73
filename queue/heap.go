package queue

type entry struct {
	req *Request
	seq uint64
}

// requestHeap is a container/heap over queued entries. The ordering is fixed
// by the policy the queue was built with.
type requestHeap struct {
	entries []entry
	policy  Policy
}

func (h *requestHeap) Len() int { return len(h.entries) }

func (h *requestHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if h.policy == SJF && a.req.Size != b.req.Size {
		return a.req.Size < b.req.Size
	}
	if a.req.Seq != b.req.Seq {
		return a.req.Seq < b.req.Seq
	}
	return a.seq < b.seq
}

func (h *requestHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *requestHeap) Push(x any) { h.entries = append(h.entries, x.(entry)) }

func (h *requestHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	h.entries = old[:n-1]
	return e
}
