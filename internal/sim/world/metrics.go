package world

import (
	"sync"
	"time"
)

// WorldMetrics is a copy of the loop's counters taken at the end of the last step. It is safe to
// read from any goroutine.
type WorldMetrics struct {
	Tick              uint64  `json:"tick"`
	LoadedChunks      int     `json:"loaded_chunks"`
	ScheduledVisits   int     `json:"scheduled_visits"`
	PendingNeighbours int     `json:"pending_neighbours"`
	Observers         int     `json:"observers"`
	StepMS            float64 `json:"step_ms"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Edits int `json:"edits"`
	Flow  int `json:"flow"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

type metricsBox struct {
	mu sync.RWMutex
	m  WorldMetrics
}

func (w *World) Metrics() WorldMetrics {
	w.metrics.mu.RLock()
	defer w.metrics.mu.RUnlock()
	return w.metrics.m
}

func (w *World) recordMetrics(nowTick uint64, took time.Duration) {
	m := WorldMetrics{
		Tick:              nowTick,
		LoadedChunks:      len(w.chunks.Chunks),
		ScheduledVisits:   w.sched.len(),
		PendingNeighbours: len(w.neighbours),
		Observers:         len(w.observers),
		StepMS:            float64(took.Microseconds()) / 1000,
		QueueDepths: QueueDepths{
			Edits: len(w.edits),
			Flow:  len(w.flowReq),
			Join:  len(w.observerJoin),
			Leave: len(w.observerLeave),
		},
	}
	w.metrics.mu.Lock()
	w.metrics.m = m
	w.metrics.mu.Unlock()
}
