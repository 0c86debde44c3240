package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelflow.ai/internal/observerproto"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON runs v through encoding/json so the schema sees exactly what goes on the wire.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	cases := []struct {
		schema string
		msg    any
	}{
		{"subscribe.schema.json", observerproto.SubscribeMsg{
			Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Center: [2]int{-1, 3}, ChunkRadius: 2,
		}},
		{"bootstrap.schema.json", observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         "world_1",
			Tick:            42,
			WorldParams: observerproto.WorldParams{
				TickRateHz: 20, ChunkSize: [3]int{16, 64, 16}, Height: 64, Seed: 1337, BoundaryR: 512, FloorY: 16,
			},
			BlockPalette: []string{"AIR", "BEDROCK", "WATER"},
		}},
		{"tick.schema.json", observerproto.TickMsg{
			Type:            "TICK",
			ProtocolVersion: observerproto.Version,
			Tick:            7,
			Digest:          digest,
			Changes:         []observerproto.BlockChange{{Pos: [3]int{1, 17, -4}, Block: 11, Decay: 9}},
			Sounds:          []observerproto.SoundEvent{{Pos: [3]float64{1.5, 17.5, -3.5}, Name: "fizz", Pitch: 2.9}},
			Particles:       []observerproto.ParticleEvent{{Pos: [3]float64{1.2, 17.5, -3.4}, Name: "smoke"}},
			Audits: []observerproto.AuditEntry{{
				Tick: 7, Actor: "fluid", Action: "SOLIDIFY", Pos: [3]int{1, 17, -4}, From: 12, To: 4, Reason: "LIQUID_CONTACT",
			}},
		}},
		{"tick.schema.json", observerproto.TickMsg{Type: "TICK", ProtocolVersion: observerproto.Version, Digest: digest}},
		{"chunk_voxels.schema.json", observerproto.ChunkVoxelsMsg{
			Type: "CHUNK_VOXELS", ProtocolVersion: observerproto.Version, CX: -2, CZ: 0, Height: 64,
			Encoding: "RLE_CELL16_YZX", Data: "AQI=",
		}},
		{"chunk_evict.schema.json", observerproto.ChunkEvictMsg{
			Type: "CHUNK_EVICT", ProtocolVersion: observerproto.Version, CX: 3, CZ: -3,
		}},
		{"edit.schema.json", observerproto.EditRequest{Op: "PLACE_LIQUID", Pos: [3]int{0, 17, 0}, Liquid: "WATER"}},
		{"edit.schema.json", observerproto.EditRequest{Op: "BREAK_BLOCK", Pos: [3]int{0, 16, 0}, Actor: "ops"}},
		{"flow.schema.json", observerproto.FlowResponse{
			Tick: 9, Pos: [3]int{0, 17, 0}, Block: "WATER", Liquid: "water", Decay: 2, Height: 3.0 / 9,
			Vector: [3]float64{0.7071, 0, 0.7071}, Pushed: [3]float64{0.7071, 1, 0.7071},
			Optimal: [4]bool{true, false, true, false}, Cost: [4]int{1, 2, 1, 1000},
		}},
	}
	for _, tc := range cases {
		if err := compile(t, tc.schema).Validate(asJSON(t, tc.msg)); err != nil {
			t.Fatalf("%s: %v", tc.schema, err)
		}
	}
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	cases := []struct {
		schema string
		raw    string
	}{
		{"subscribe.schema.json", `{"type":"SUBSCRIBE","protocol_version":"0.1","center":[0,0],"chunk_radius":9}`},
		{"tick.schema.json", `{"type":"TICK","protocol_version":"0.1","tick":1,"digest":"nothex"}`},
		{"chunk_voxels.schema.json", `{"type":"CHUNK_VOXELS","protocol_version":"0.1","cx":0,"cz":0,"height":64,"encoding":"PAL16_U16LE_YZX","data":""}`},
		{"edit.schema.json", `{"op":"PLACE_LIQUID","pos":[0,1,0]}`},
		{"edit.schema.json", `{"op":"EXPLODE","pos":[0,1,0]}`},
	}
	for _, tc := range cases {
		var v any
		if err := json.Unmarshal([]byte(tc.raw), &v); err != nil {
			t.Fatalf("bad fixture: %v", err)
		}
		if err := compile(t, tc.schema).Validate(v); err == nil {
			t.Fatalf("%s accepted %s", tc.schema, tc.raw)
		}
	}
}
