package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/tuning"
	"voxelflow.ai/internal/sim/world"
)

// SQLiteIndex is a queryable copy of the tick and audit logs. Writes are queued and applied by a
// single goroutine; when the queue is full entries are dropped and counted, the JSONL logs stay
// the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick      uint64
	Path      string
	Seed      int64
	Height    int
	Chunks    int
	Scheduled int
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Liquid cascades can harden or wash away hundreds of blocks in one tick.
		ch: make(chan req, 262144),
	}
	w, err := newWriter(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer w.close()
		for r := range s.ch {
			w.apply(r)
		}
	}()
	return s, nil
}

// schema is applied statement by statement on open; every statement is idempotent.
var schema = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS catalogs (
		name       TEXT PRIMARY KEY,
		digest     TEXT NOT NULL,
		json       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		tick     INTEGER PRIMARY KEY,
		digest   TEXT NOT NULL,
		edits    INTEGER NOT NULL,
		raw_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edits (
		tick   INTEGER NOT NULL,
		seq    INTEGER NOT NULL,
		op     TEXT NOT NULL,
		actor  TEXT NOT NULL,
		x      INTEGER NOT NULL,
		y      INTEGER NOT NULL,
		z      INTEGER NOT NULL,
		block  TEXT,
		liquid TEXT,
		PRIMARY KEY (tick, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edits_actor_tick ON edits(actor, tick)`,
	`CREATE TABLE IF NOT EXISTS audits (
		tick       INTEGER NOT NULL,
		seq        INTEGER NOT NULL,
		actor      TEXT NOT NULL,
		action     TEXT NOT NULL,
		x          INTEGER NOT NULL,
		y          INTEGER NOT NULL,
		z          INTEGER NOT NULL,
		from_block INTEGER NOT NULL,
		to_block   INTEGER NOT NULL,
		reason     TEXT,
		raw_json   TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_action_tick ON audits(action, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		tick      INTEGER PRIMARY KEY,
		path      TEXT NOT NULL,
		seed      INTEGER NOT NULL,
		height    INTEGER NOT NULL,
		chunks    INTEGER NOT NULL,
		scheduled INTEGER NOT NULL
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("indexdb schema: %w", err)
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// enqueue hands r to the writer without blocking the world loop.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
		return
	default:
	}
	switch r.kind {
	case reqTick:
		s.dropTick.Add(1)
	case reqAudit:
		s.dropAudit.Add(1)
	case reqSnapshot:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	s.enqueue(req{kind: reqTick, tick: entry})
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:      snap.Header.Tick,
		Path:      path,
		Seed:      snap.Seed,
		Height:    snap.Height,
		Chunks:    len(snap.Chunks),
		Scheduled: len(snap.Scheduled),
	}})
}

// UpsertCatalogs stores the block catalog and the applied tuning so an index can be matched to the
// configuration that produced it.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
