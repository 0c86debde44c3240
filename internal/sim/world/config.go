package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	Seed       int64
	BoundaryR  int

	// Flat worldgen.
	FloorY            int
	TallGrassPermille int

	// Operational parameters. These are included in snapshots for deterministic replay/resume.
	SnapshotEveryTicks    int
	ChunkResyncEveryTicks int
	// MaxNeighbourUpdates caps the normal updates processed per tick. The rest carry over.
	MaxNeighbourUpdates int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 512
	}
	if c.FloorY <= 0 || c.FloorY >= c.Height {
		c.FloorY = c.Height / 4
	}
	if c.TallGrassPermille < 0 {
		c.TallGrassPermille = 0
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	if c.ChunkResyncEveryTicks <= 0 {
		c.ChunkResyncEveryTicks = 20
	}
	if c.MaxNeighbourUpdates <= 0 {
		c.MaxNeighbourUpdates = 65536
	}
}
