package world

import (
	"encoding/json"
	"math"
	"sort"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/sim/encoding"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

// ObserverJoinRequest registers a read-only observer session. Out receives JSON encoded
// observerproto messages: full chunks of the watched region, evictions and one TICK per tick.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte

	// Center is the chunk (cx, cz) the watched square is centred on.
	Center      [2]int
	ChunkRadius int
}

// ObserverSubscribeRequest moves the region watched by an existing session.
type ObserverSubscribeRequest struct {
	SessionID   string
	Center      [2]int
	ChunkRadius int
}

type observerClient struct {
	id  string
	out chan []byte

	center store.ChunkKey
	radius int

	// sent tracks the chunks the client holds. A true value means the copy is stale and a full
	// chunk must be resent (e.g. after a dropped TICK).
	sent map[store.ChunkKey]bool
}

const (
	observerDefaultRadius        = 2
	observerMaxRadius            = 8
	observerMaxFullChunksPerTick = 8
)

func clampRadius(r, def int) int {
	if r <= 0 {
		return def
	}
	if r > observerMaxRadius {
		return observerMaxRadius
	}
	return r
}

func (c *observerClient) resendAll() {
	for k := range c.sent {
		c.sent[k] = true
	}
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if w == nil || req.SessionID == "" || req.Out == nil {
		return
	}
	// Replace existing session id if any.
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{
		id:     req.SessionID,
		out:    req.Out,
		center: store.ChunkKey{CX: req.Center[0], CZ: req.Center[1]},
		radius: clampRadius(req.ChunkRadius, observerDefaultRadius),
		sent:   map[store.ChunkKey]bool{},
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.center = store.ChunkKey{CX: req.Center[0], CZ: req.Center[1]}
	c.radius = clampRadius(req.ChunkRadius, c.radius)
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

// wantedChunks lists the in-world chunks around the client's centre, nearest first.
func (w *World) wantedChunks(c *observerClient) []store.ChunkKey {
	r := w.cfg.BoundaryR
	var keys []store.ChunkKey
	for dz := -c.radius; dz <= c.radius; dz++ {
		for dx := -c.radius; dx <= c.radius; dx++ {
			k := store.ChunkKey{CX: c.center.CX + dx, CZ: c.center.CZ + dz}
			if r > 0 && (k.CX*store.ChunkSize > r || k.CX*store.ChunkSize+store.ChunkSize-1 < -r ||
				k.CZ*store.ChunkSize > r || k.CZ*store.ChunkSize+store.ChunkSize-1 < -r) {
				continue
			}
			keys = append(keys, k)
		}
	}
	dist := func(k store.ChunkKey) int {
		return absInt(k.CX-c.center.CX) + absInt(k.CZ-c.center.CZ)
	}
	sort.SliceStable(keys, func(i, j int) bool { return dist(keys[i]) < dist(keys[j]) })
	return keys
}

func blockKey(x, z float64) store.ChunkKey {
	return store.KeyOf(int(math.Floor(x)), int(math.Floor(z)))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (w *World) stepObservers(nowTick uint64, digest string) {
	resync := w.cfg.ChunkResyncEveryTicks > 0 && nowTick%uint64(w.cfg.ChunkResyncEveryTicks) == 0
	defer func() {
		if resync {
			clear(w.silent)
		}
	}()
	if len(w.observers) == 0 {
		return
	}

	ids := make([]string, 0, len(w.observers))
	for id := range w.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	audits := make([]observerproto.AuditEntry, 0, len(w.audits))
	for _, a := range w.audits {
		audits = append(audits, observerproto.AuditEntry{
			Tick:   a.Tick,
			Actor:  a.Actor,
			Action: a.Action,
			Pos:    a.Pos,
			From:   a.From,
			To:     a.To,
			Reason: a.Reason,
		})
	}

	for _, id := range ids {
		c := w.observers[id]
		wanted := w.wantedChunks(c)
		inRegion := make(map[store.ChunkKey]struct{}, len(wanted))
		for _, k := range wanted {
			inRegion[k] = struct{}{}
		}

		evicted := make([]store.ChunkKey, 0)
		for k := range c.sent {
			if _, ok := inRegion[k]; !ok {
				evicted = append(evicted, k)
			}
		}
		sort.Slice(evicted, func(i, j int) bool {
			if evicted[i].CX != evicted[j].CX {
				return evicted[i].CX < evicted[j].CX
			}
			return evicted[i].CZ < evicted[j].CZ
		})
		for _, k := range evicted {
			delete(c.sent, k)
			b, _ := json.Marshal(observerproto.ChunkEvictMsg{
				Type:            "CHUNK_EVICT",
				ProtocolVersion: observerproto.Version,
				CX:              k.CX,
				CZ:              k.CZ,
			})
			trySend(c.out, b)
		}

		budget := observerMaxFullChunksPerTick
		for _, k := range wanted {
			stale, have := c.sent[k]
			_, silent := w.silent[k]
			if have && !stale && !(resync && silent) {
				continue
			}
			if budget == 0 {
				break
			}
			budget--
			b, err := w.chunkVoxelsMsg(k)
			if err != nil {
				continue
			}
			c.sent[k] = !trySend(c.out, b)
		}

		msg := observerproto.TickMsg{
			Type:            "TICK",
			ProtocolVersion: observerproto.Version,
			Tick:            nowTick,
			Digest:          digest,
			Audits:          audits,
		}
		for _, p := range w.changes {
			if _, ok := c.sent[store.KeyOf(p[0], p[2])]; !ok {
				continue
			}
			cell := w.Block(p)
			msg.Changes = append(msg.Changes, observerproto.BlockChange{Pos: p, Block: cell.ID, Decay: cell.Decay})
		}
		for _, s := range w.sounds {
			if _, ok := inRegion[blockKey(s.pos[0], s.pos[2])]; ok {
				msg.Sounds = append(msg.Sounds, observerproto.SoundEvent{Pos: s.pos, Name: s.name, Pitch: s.pitch})
			}
		}
		for _, p := range w.particles {
			if _, ok := inRegion[blockKey(p.pos[0], p.pos[2])]; ok {
				msg.Particles = append(msg.Particles, observerproto.ParticleEvent{Pos: p.pos, Name: p.name})
			}
		}
		b, _ := json.Marshal(msg)
		if !trySend(c.out, b) {
			c.resendAll()
		}
	}
}

func (w *World) chunkVoxelsMsg(k store.ChunkKey) ([]byte, error) {
	ch := w.chunks.ChunkView(k.CX, k.CZ)
	data, err := encoding.EncodeCells(ch.Blocks, ch.Meta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(observerproto.ChunkVoxelsMsg{
		Type:            "CHUNK_VOXELS",
		ProtocolVersion: observerproto.Version,
		CX:              k.CX,
		CZ:              k.CZ,
		Height:          ch.Height,
		Encoding:        encoding.CellEncoding,
		Data:            data,
	})
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
