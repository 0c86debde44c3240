package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelflow.ai/internal/persistence/archive"
	persistlog "voxelflow.ai/internal/persistence/log"
	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/tuning"
	"voxelflow.ai/internal/sim/world"
	"voxelflow.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (0: use tuning.yaml)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		archiveEvery = flag.Uint64("archive_every_ticks", 0, "copy snapshots closing each N-tick window into <world>/archives (0: off)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad, err = snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			logger.Fatalf("find latest snapshot: %v", err)
		}
	}

	// Tuning is required for a fresh world; a resume takes its parameters from the snapshot.
	tune, err := tuning.Load(tp)
	if err != nil {
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(worldConfig(*worldID, tune), cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		logger.Printf("fresh world=%s seed=%d height=%d floor_y=%d", *worldID, tune.Seed, tune.Height, tune.FloorY)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	ticks := teeTicks{tickLog}
	audits := teeAudits{auditLog}
	if idx != nil {
		ticks = append(ticks, idx)
		audits = append(audits, idx)
	}
	w.SetTickLogger(ticks)
	w.SetAuditLogger(audits)

	snapDir := filepath.Join(worldDir, "snapshots")
	writeSnap := func(snap snapshot.SnapshotV1) {
		path := filepath.Join(snapDir, snapshot.FileName(snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
		logger.Printf("snapshot tick=%d chunks=%d scheduled=%d", snap.Header.Tick, len(snap.Chunks), len(snap.Scheduled))
		if n, dst, ok, err := archive.ArchiveCheckpoint(worldDir, path, snap, *archiveEvery); err != nil {
			logger.Printf("archive checkpoint: %v", err)
		} else if ok {
			logger.Printf("archived checkpoint=%d path=%s", n, dst)
		}
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnap(snap)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	obsSrv := observer.NewServer(w, logger)
	if idx != nil {
		obsSrv.SetAuditIndex(idx)
	}
	mux := obsSrv.Routes()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(*worldID, w, idx))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRequest(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{WorldID: *worldID, Tick: w.CurrentTick(), Metrics: w.Metrics()})
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRequest(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		snap, err := w.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeSnap(snap)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": snap.Header.Tick})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped once worldDone closes, so the world can be read from here.
	<-worldDone
	<-snapDone
	if next := w.CurrentTick(); next > 0 {
		writeSnap(w.ExportSnapshot(next - 1))
	}
	logger.Printf("stopped at tick=%d", w.CurrentTick())
}

// worldConfig maps the tuning file onto a fresh world. Resumed worlds replace these values with
// the ones stored in the snapshot.
func worldConfig(id string, t tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:                    id,
		TickRateHz:            t.TickRateHz,
		Height:                t.Height,
		Seed:                  t.Seed,
		BoundaryR:             t.BoundaryR,
		FloorY:                t.FloorY,
		TallGrassPermille:     t.TallGrassPermille,
		SnapshotEveryTicks:    t.SnapshotEveryTicks,
		ChunkResyncEveryTicks: t.ChunkResyncEveryTicks,
		MaxNeighbourUpdates:   t.MaxNeighbourUpdates,
	}
}

func metricsHandler(worldID string, w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()

		// Minimal Prometheus exposition format.
		gauge := func(name, help string, v any) {
			fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n%s{world=%q} %v\n", name, help, name, name, worldID, v)
		}
		gauge("voxelflow_world_tick", "Current world tick.", w.CurrentTick())
		gauge("voxelflow_world_loaded_chunks", "Loaded chunk count.", m.LoadedChunks)
		gauge("voxelflow_world_scheduled_visits", "Pending scheduled liquid visits.", m.ScheduledVisits)
		gauge("voxelflow_world_pending_neighbour_updates", "Normal updates carried to the next tick.", m.PendingNeighbours)
		gauge("voxelflow_world_observers", "Connected observer sessions.", m.Observers)
		gauge("voxelflow_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

		fmt.Fprintf(rw, "# HELP voxelflow_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE voxelflow_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelflow_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "edits", m.QueueDepths.Edits)
		fmt.Fprintf(rw, "voxelflow_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "flow", m.QueueDepths.Flow)
		fmt.Fprintf(rw, "voxelflow_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "voxelflow_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP voxelflow_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE voxelflow_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelflow_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "voxelflow_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", st.DropAuditTotal)
			fmt.Fprintf(rw, "voxelflow_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", st.DropSnapshotTotal)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRequest(r *http.Request) bool {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
