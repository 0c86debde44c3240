package world

import (
	"container/heap"
	"sort"

	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/cube"
)

// scheduledVisit is a delayed update of pos due at tick. seq orders visits due at the same tick by
// the time they were requested.
type scheduledVisit struct {
	pos  cube.Pos
	tick uint64
	seq  uint64
}

type visitHeap []scheduledVisit

func (h visitHeap) Len() int { return len(h) }
func (h visitHeap) Less(i, j int) bool {
	if h[i].tick != h[j].tick {
		return h[i].tick < h[j].tick
	}
	return h[i].seq < h[j].seq
}
func (h visitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *visitHeap) Push(x any)   { *h = append(*h, x.(scheduledVisit)) }
func (h *visitHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

type visitKey struct {
	pos  cube.Pos
	tick uint64
}

// scheduler holds the delayed updates of a world. Requests for a position that already has a
// visit pending at the same tick are dropped.
type scheduler struct {
	q       visitHeap
	pending map[visitKey]struct{}
	nextSeq uint64
}

func newScheduler() *scheduler {
	return &scheduler{pending: map[visitKey]struct{}{}}
}

func (s *scheduler) schedule(pos cube.Pos, tick uint64) bool {
	k := visitKey{pos: pos, tick: tick}
	if _, dup := s.pending[k]; dup {
		return false
	}
	s.pending[k] = struct{}{}
	heap.Push(&s.q, scheduledVisit{pos: pos, tick: tick, seq: s.nextSeq})
	s.nextSeq++
	return true
}

// popDue removes and returns the earliest visit due at or before now.
func (s *scheduler) popDue(now uint64) (scheduledVisit, bool) {
	if len(s.q) == 0 || s.q[0].tick > now {
		return scheduledVisit{}, false
	}
	v := heap.Pop(&s.q).(scheduledVisit)
	delete(s.pending, visitKey{pos: v.pos, tick: v.tick})
	return v, true
}

func (s *scheduler) len() int { return len(s.q) }

// sorted returns the pending visits in the order they will run.
func (s *scheduler) sorted() []scheduledVisit {
	out := make([]scheduledVisit, len(s.q))
	copy(out, s.q)
	sort.Slice(out, func(i, j int) bool { return visitHeap(out).Less(i, j) })
	return out
}

func (s *scheduler) export() []snapshot.ScheduledV1 {
	vs := s.sorted()
	out := make([]snapshot.ScheduledV1, 0, len(vs))
	for _, v := range vs {
		out = append(out, snapshot.ScheduledV1{Pos: v.pos, Tick: v.tick, Seq: v.seq})
	}
	return out
}

func importScheduler(entries []snapshot.ScheduledV1, nextSeq uint64) *scheduler {
	s := newScheduler()
	for _, e := range entries {
		k := visitKey{pos: cube.Pos(e.Pos), tick: e.Tick}
		if _, dup := s.pending[k]; dup {
			continue
		}
		s.pending[k] = struct{}{}
		s.q = append(s.q, scheduledVisit{pos: cube.Pos(e.Pos), tick: e.Tick, seq: e.Seq})
		if e.Seq >= nextSeq {
			nextSeq = e.Seq + 1
		}
	}
	heap.Init(&s.q)
	s.nextSeq = nextSeq
	return s
}
