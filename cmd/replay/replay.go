package main

import (
	"errors"
	"fmt"

	persistlog "voxelflow.ai/internal/persistence/log"
	"voxelflow.ai/internal/sim/world"
)

var errDone = errors.New("done")

type replayResult struct {
	stepped uint64
	checked uint64
}

// replay steps w through the tick log in worldDir, applying the logged edits, and compares each
// digest from verifyFrom on. Log entries before the world's current tick are skipped.
func replay(w *world.World, worldDir string, verifyFrom, toTick uint64) (replayResult, error) {
	var res replayResult
	startTick := w.CurrentTick()
	if verifyFrom < startTick {
		verifyFrom = startTick
	}
	err := persistlog.ReadTicks(worldDir, func(entry world.TickLogEntry) error {
		if entry.Tick < startTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errDone
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick gap: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}

		tick, digest := w.StepOnce(entry.Edits)
		res.stepped++
		if tick >= verifyFrom {
			res.checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
		return nil
	})
	if errors.Is(err, errDone) {
		err = nil
	}
	return res, err
}
