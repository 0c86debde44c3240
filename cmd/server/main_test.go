package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/tuning"
	"voxelflow.ai/internal/sim/world"
)

func TestWorldConfigFromTuning(t *testing.T) {
	tune := tuning.Defaults()
	tune.Seed = 99
	tune.MaxNeighbourUpdates = 10
	cfg := worldConfig("w", tune)
	if cfg.ID != "w" || cfg.Seed != 99 || cfg.Height != tune.Height || cfg.FloorY != tune.FloorY || cfg.MaxNeighbourUpdates != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestMetricsHandler(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(worldConfig("w", tuning.Defaults()), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.StepOnce([]world.Edit{{Op: world.EditPlaceLiquid, Pos: [3]int{0, 17, 0}, Liquid: "WATER"}})

	rec := httptest.NewRecorder()
	metricsHandler("w", w, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`voxelflow_world_tick{world="w"} 1`,
		`voxelflow_world_scheduled_visits{world="w"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in\n%s", want, body)
		}
	}
}

func TestIsLoopbackRequest(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		if got := isLoopbackRequest(r); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
