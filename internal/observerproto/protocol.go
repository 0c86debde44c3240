package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to move the
// watched region.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Center is the chunk (cx, cz) the region is centred on.
	Center      [2]int `json:"center"`
	ChunkRadius int    `json:"chunk_radius"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	ChunkSize  [3]int `json:"chunk_size"`
	Height     int    `json:"height"`
	Seed       int64  `json:"seed"`
	BoundaryR  int    `json:"boundary_r"`
	FloorY     int    `json:"floor_y"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`

	Changes   []BlockChange   `json:"changes,omitempty"`
	Sounds    []SoundEvent    `json:"sounds,omitempty"`
	Particles []ParticleEvent `json:"particles,omitempty"`
	Audits    []AuditEntry    `json:"audits,omitempty"`
}

// BlockChange is a block written with the visual flag inside the observer's region.
type BlockChange struct {
	Pos   [3]int `json:"pos"`
	Block uint16 `json:"block"`
	// Decay is the raw liquid decay, 0 for non-liquid blocks.
	Decay int `json:"decay"`
}

type SoundEvent struct {
	Pos   [3]float64 `json:"pos"`
	Name  string     `json:"name"`
	Pitch float64    `json:"pitch,omitempty"`
}

type ParticleEvent struct {
	Pos  [3]float64 `json:"pos"`
	Name string     `json:"name"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Server -> Client. Full voxel data for a chunk (16 x height x 16).
// Encoding "RLE_CELL16_YZX" means:
// - Decode base64 to (value, run) uvarint pairs
// - Each value packs palette id << 4 | meta, where meta is the raw liquid decay
// - Iteration order: for y in 0..height-1, for z in 0..15, for x in 0..15 (x fastest)
type ChunkVoxelsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Height          int    `json:"height"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
}

// Server -> Client. Evict a chunk from the client cache.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
}

// HTTP request body for POST /v1/edit.
type EditRequest struct {
	// Op is PLACE_BLOCK, PLACE_LIQUID or BREAK_BLOCK.
	Op    string `json:"op"`
	Pos   [3]int `json:"pos"`
	Block string `json:"block,omitempty"`
	// Liquid is WATER or LAVA for PLACE_LIQUID.
	Liquid string `json:"liquid,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

type EditResponse struct {
	Accepted bool   `json:"accepted"`
	Tick     uint64 `json:"tick"`
	Error    string `json:"error,omitempty"`
}

// HTTP response for GET /v1/flow.
type FlowResponse struct {
	Tick    uint64     `json:"tick"`
	Pos     [3]int     `json:"pos"`
	Block   string     `json:"block"`
	Liquid  string     `json:"liquid,omitempty"`
	Decay   int        `json:"decay"`
	Falling bool       `json:"falling"`
	Height  float64    `json:"height"`
	Vector  [3]float64 `json:"vector"`
	Pushed  [3]float64 `json:"pushed"`
	Optimal [4]bool    `json:"optimal"`
	Cost    [4]int     `json:"cost"`
}
