package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/persistence/indexdb"
	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/world"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

// AuditIndex answers per-position audit history. *indexdb.SQLiteIndex implements it.
type AuditIndex interface {
	AuditsAt(ctx context.Context, pos [3]int, limit int) ([]indexdb.AuditRow, error)
}

type Server struct {
	world *world.World
	index AuditIndex
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// SetAuditIndex enables GET /v1/audits. A nil index leaves the route answering 503.
func (s *Server) SetAuditIndex(idx AuditIndex) { s.index = idx }

// Routes registers every observer endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	mux.HandleFunc("/v1/edit", s.EditHandler())
	mux.HandleFunc("/v1/flow", s.FlowHandler())
	mux.HandleFunc("/v1/audits", s.AuditsHandler())
	return mux
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		writeJSONResponse(rw, http.StatusOK, observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz: cfg.TickRateHz,
				ChunkSize:  [3]int{store.ChunkSize, cfg.Height, store.ChunkSize},
				Height:     cfg.Height,
				Seed:       cfg.Seed,
				BoundaryR:  cfg.BoundaryR,
				FloorY:     cfg.FloorY,
			},
			BlockPalette: s.world.BlockPalette(),
		})
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := uuid.NewString()
		// Room for a full region resend plus a few ticks.
		out := make(chan []byte, 1024)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		joinCtx, joinCancel := context.WithTimeout(ctx, time.Second)
		err = s.world.RequestObserverJoin(joinCtx, world.ObserverJoinRequest{
			SessionID:   sid,
			Out:         out,
			Center:      sub.Center,
			ChunkRadius: sub.ChunkRadius,
		})
		joinCancel()
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined center=%v radius=%d", sid, sub.Center, sub.ChunkRadius)
		}
		defer s.world.RequestObserverLeave(sid)

		// Writer goroutine. The world closes out when the session is dropped.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						_ = conn.Close()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE moves the region.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := decodeSubscribe(msg)
			if !ok {
				continue
			}
			subCtx, subCancel := context.WithTimeout(ctx, time.Second)
			// Dropped under load; the client may resend.
			_ = s.world.RequestObserverSubscribe(subCtx, world.ObserverSubscribeRequest{
				SessionID:   sid,
				Center:      sub.Center,
				ChunkRadius: sub.ChunkRadius,
			})
			subCancel()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("observer %s left", sid)
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.ChunkRadius < 0 {
		sub.ChunkRadius = 0
	}
	return sub, true
}

// EditHandler queues an external edit. Accepted means queued; the edit is checked against the
// world when its tick runs and a rejection shows up as a REJECTED audit.
func (s *Server) EditHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var req observerproto.EditRequest
		dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 64*1024))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSONResponse(rw, http.StatusBadRequest, observerproto.EditResponse{Error: "bad json: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		tick := s.world.CurrentTick()
		err := s.world.SubmitEdit(ctx, world.Edit{
			Op:     world.EditOp(strings.ToUpper(req.Op)),
			Pos:    req.Pos,
			Block:  req.Block,
			Liquid: req.Liquid,
			Actor:  req.Actor,
		})
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeJSONResponse(rw, http.StatusServiceUnavailable, observerproto.EditResponse{Tick: tick, Error: "world busy"})
		case err != nil:
			writeJSONResponse(rw, http.StatusBadRequest, observerproto.EditResponse{Tick: tick, Error: err.Error()})
		default:
			writeJSONResponse(rw, http.StatusAccepted, observerproto.EditResponse{Accepted: true, Tick: tick})
		}
	}
}

// FlowHandler serves GET /v1/flow?x=&y=&z=[&vx=&vy=&vz=].
func (s *Server) FlowHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		pos, err := queryPos(q.Get("x"), q.Get("y"), q.Get("z"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		var vel mgl64.Vec3
		for i, k := range []string{"vx", "vy", "vz"} {
			if v := q.Get(k); v != "" {
				if vel[i], err = strconv.ParseFloat(v, 64); err != nil {
					http.Error(rw, fmt.Sprintf("bad %s: %v", k, err), http.StatusBadRequest)
					return
				}
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		p, err := s.world.ProbeFlow(ctx, cube.Pos(pos), vel)
		if err != nil {
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		writeJSONResponse(rw, http.StatusOK, observerproto.FlowResponse{
			Tick:    p.Tick,
			Pos:     p.Pos,
			Block:   p.Block,
			Liquid:  p.Liquid,
			Decay:   p.Decay,
			Falling: p.Falling,
			Height:  p.Height,
			Vector:  p.Vector,
			Pushed:  p.Pushed,
			Optimal: p.Optimal,
			Cost:    p.Cost,
		})
	}
}

// AuditsHandler serves GET /v1/audits?x=&y=&z=[&limit=] from the sqlite index.
func (s *Server) AuditsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.index == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		pos, err := queryPos(q.Get("x"), q.Get("y"), q.Get("z"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		rows, err := s.index.AuditsAt(r.Context(), pos, limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []indexdb.AuditRow{}
		}
		writeJSONResponse(rw, http.StatusOK, rows)
	}
}

func queryPos(xs, ys, zs string) ([3]int, error) {
	var p [3]int
	for i, v := range []string{xs, ys, zs} {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("bad %c: %q", "xyz"[i], v)
		}
		p[i] = n
	}
	return p, nil
}

func writeJSONResponse(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
