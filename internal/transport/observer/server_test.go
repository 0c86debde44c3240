package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/persistence/indexdb"
	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/world"
)

func startWorld(t *testing.T) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{
		ID: "test", TickRateHz: 200, Height: 16, Seed: 3, BoundaryR: 64, FloorY: 4,
	}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	return w
}

type fakeIndex struct{ got [3]int }

func (f *fakeIndex) AuditsAt(_ context.Context, pos [3]int, _ int) ([]indexdb.AuditRow, error) {
	f.got = pos
	return []indexdb.AuditRow{{Tick: 4, Actor: "fluid", Action: "SOLIDIFY", Pos: pos}}, nil
}

func TestBootstrapEditAndFlow(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var boot observerproto.BootstrapResponse
	_ = json.NewDecoder(resp.Body).Decode(&boot)
	resp.Body.Close()
	if boot.WorldID != "test" || boot.WorldParams.Height != 16 || boot.BlockPalette[0] != "AIR" {
		t.Fatalf("unexpected bootstrap %+v", boot)
	}

	post := func(body string) (int, observerproto.EditResponse) {
		t.Helper()
		resp, err := http.Post(srv.URL+"/v1/edit", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var er observerproto.EditResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return resp.StatusCode, er
	}
	if code, _ := post(`{"op":"EXPLODE","pos":[0,5,0]}`); code != http.StatusBadRequest {
		t.Fatalf("unknown op: got %d", code)
	}
	if code, _ := post(`{"op":"PLACE_LIQUID","pos":[0,5,0],"liquid":"WATER","extra":1}`); code != http.StatusBadRequest {
		t.Fatalf("unknown field: got %d", code)
	}
	if code, er := post(`{"op":"place_liquid","pos":[0,5,0],"liquid":"WATER","actor":"t"}`); code != http.StatusAccepted || !er.Accepted {
		t.Fatalf("edit: got %d %+v", code, er)
	}

	var flow observerproto.FlowResponse
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/v1/flow?x=0&y=5&z=0&vy=-1")
		if err != nil {
			t.Fatalf("flow: %v", err)
		}
		_ = json.NewDecoder(resp.Body).Decode(&flow)
		resp.Body.Close()
		if flow.Liquid != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if flow.Liquid != "water" || flow.Block != "WATER" || flow.Pushed[1] != -1 {
		t.Fatalf("unexpected flow %+v", flow)
	}

	resp, _ = http.Get(srv.URL + "/v1/flow?x=a&y=5&z=0")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad query: got %d", resp.StatusCode)
	}
}

func TestAuditsEndpoint(t *testing.T) {
	w := startWorld(t)
	s := NewServer(w, nil)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, _ := http.Get(srv.URL + "/v1/audits?x=1&y=2&z=3")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("without index: got %d", resp.StatusCode)
	}

	idx := &fakeIndex{}
	s.SetAuditIndex(idx)
	resp, err := http.Get(srv.URL + "/v1/audits?x=1&y=2&z=3")
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	defer resp.Body.Close()
	var rows []indexdb.AuditRow
	_ = json.NewDecoder(resp.Body).Decode(&rows)
	if idx.got != [3]int{1, 2, 3} || len(rows) != 1 || rows[0].Action != "SOLIDIFY" {
		t.Fatalf("unexpected rows %+v for %v", rows, idx.got)
	}
}

func TestWebSocketStreamsChunksAndTicks(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(observerproto.SubscribeMsg{
		Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, ChunkRadius: 1,
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	chunks, ticks := 0, 0
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for chunks < 9 || ticks < 2 {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d chunks %d ticks: %v", chunks, ticks, err)
		}
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(b, &head)
		switch head.Type {
		case "CHUNK_VOXELS":
			chunks++
		case "TICK":
			ticks++
		}
	}
	if chunks != 9 {
		t.Fatalf("chunks: got %d want 9", chunks)
	}
}

func TestWebSocketRejectsMissingSubscribe(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("got %v want policy violation close", err)
	}
}
