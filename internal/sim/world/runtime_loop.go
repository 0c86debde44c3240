package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.flowReq:
			req.resp <- w.probeFlow(req.pos, req.velocity)
		case req := <-w.snapReq:
			req.resp <- w.snapshotNow()
		case e := <-w.edits:
			w.queued = append(w.queued, e)
		case <-ticker.C:
			w.stepQueued()
		}
	}
}

func (w *World) Stop() { close(w.stop) }
