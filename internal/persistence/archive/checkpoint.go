package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"voxelflow.ai/internal/persistence/snapshot"
)

type CheckpointMeta struct {
	Checkpoint    int    `json:"checkpoint"`
	EndTick       uint64 `json:"end_tick"`
	WorldID       string `json:"world_id"`
	Seed          int64  `json:"seed"`
	Snapshot      string `json:"snapshot"`
	PaletteDigest string `json:"palette_digest"`
	Chunks        int    `json:"chunks"`
	Scheduled     int    `json:"scheduled"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveCheckpoint copies a snapshot that closes an everyTicks window into
// `worldDir/archives/checkpoint_<NNNNN>/` next to a meta.json. Archived snapshots are never pruned
// and give replay a fixed set of starting points.
func ArchiveCheckpoint(worldDir, snapshotPath string, snap snapshot.SnapshotV1, everyTicks uint64) (checkpoint int, archivedPath string, archived bool, err error) {
	if everyTicks == 0 {
		return 0, "", false, nil
	}
	// Header.Tick is the last executed tick, so window k closes at tick everyTicks*k - 1.
	if (snap.Header.Tick+1)%everyTicks != 0 {
		return 0, "", false, nil
	}
	checkpoint = int((snap.Header.Tick + 1) / everyTicks)

	dir := filepath.Join(worldDir, "archives", fmt.Sprintf("checkpoint_%05d", checkpoint))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, fmt.Errorf("archive %s: %w", snapshotPath, err)
	}

	meta := CheckpointMeta{
		Checkpoint:    checkpoint,
		EndTick:       snap.Header.Tick,
		WorldID:       snap.Header.WorldID,
		Seed:          snap.Seed,
		Snapshot:      filepath.Base(dst),
		PaletteDigest: snap.PaletteDigest,
		Chunks:        len(snap.Chunks),
		Scheduled:     len(snap.Scheduled),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, "", false, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return 0, "", false, err
	}
	return checkpoint, dst, true, nil
}

// ReadCheckpointMeta loads the meta.json of an archived checkpoint directory.
func ReadCheckpointMeta(dir string) (CheckpointMeta, error) {
	var m CheckpointMeta
	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", dir, err)
	}
	return m, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
