package crawler

import "container/heap"

type frontierItem struct {
	url  string
	tier int
	seq  int
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].tier != h[j].tier {
		return h[i].tier < h[j].tier
	}
	return h[i].seq < h[j].seq
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)   { *h = append(*h, x.(frontierItem)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Frontier is the set of discovered-but-unfetched URLs, popped lowest tier
// first and in discovery order within a tier. A URL is queued at most once.
type Frontier struct {
	items  frontierHeap
	queued map[string]struct{}
	seq    int
}

// NewFrontier builds an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{queued: make(map[string]struct{})}
}

// Push queues a normalized URL unless it was queued before.
func (f *Frontier) Push(u string) bool {
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	heap.Push(&f.items, frontierItem{url: u, tier: PriorityTier(u), seq: f.seq})
	f.seq++
	return true
}

// Pop removes the next URL; ok is false when empty.
func (f *Frontier) Pop() (string, bool) {
	if f.items.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&f.items).(frontierItem)
	return item.url, true
}

// Len is the number of URLs still waiting.
func (f *Frontier) Len() int { return f.items.Len() }
