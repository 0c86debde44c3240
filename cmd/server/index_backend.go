package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelflow.ai/internal/persistence/indexdb"
	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/tuning"
	"voxelflow.ai/internal/sim/world"
	"voxelflow.ai/internal/transport/observer"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	observer.AuditIndex
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

// openRuntimeIndex opens the secondary index selected by VF_INDEX_BACKEND (sqlite by default).
// A nil index with a nil error means indexing is off.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch backend := strings.ToLower(strings.TrimSpace(os.Getenv("VF_INDEX_BACKEND"))); backend {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite index: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VF_INDEX_BACKEND: %s", backend)
	}
}

// teeTicks fans tick entries out to every sink. A failing sink does not starve the others.
type teeTicks []world.TickLogger

func (t teeTicks) WriteTick(entry world.TickLogEntry) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.WriteTick(entry))
	}
	return errors.Join(errs...)
}

type teeAudits []world.AuditLogger

func (t teeAudits) WriteAudit(entry world.AuditEntry) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.WriteAudit(entry))
	}
	return errors.Join(errs...)
}
