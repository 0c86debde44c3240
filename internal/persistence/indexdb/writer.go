package indexdb

import (
	"database/sql"
	"encoding/json"
	"time"
)

const (
	commitEveryOps = 2000
	commitMaxWait  = 2 * time.Second
)

// writer batches queued rows into transactions. It is owned by the index goroutine.
type writer struct {
	db *sql.DB

	tick, edit, audit, snapshot *sql.Stmt

	tx       *sql.Tx
	ops      int
	openedAt time.Time

	// Audits carry no sequence of their own; rows are numbered in arrival order within a tick.
	auditTick uint64
	auditSeq  int
}

func newWriter(db *sql.DB) (*writer, error) {
	w := &writer{db: db}
	prep := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&w.tick, `INSERT OR REPLACE INTO ticks(tick,digest,edits,raw_json) VALUES(?,?,?,?)`},
		{&w.edit, `INSERT OR REPLACE INTO edits(tick,seq,op,actor,x,y,z,block,liquid) VALUES(?,?,?,?,?,?,?,?,?)`},
		{&w.audit, `INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,from_block,to_block,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`},
		{&w.snapshot, `INSERT OR REPLACE INTO snapshots(tick,path,seed,height,chunks,scheduled) VALUES(?,?,?,?,?,?)`},
	}
	for _, p := range prep {
		st, err := db.Prepare(p.query)
		if err != nil {
			w.closeStmts()
			return nil, err
		}
		*p.dst = st
	}
	return w, nil
}

func (w *writer) apply(r req) {
	if w.tx == nil {
		tx, err := w.db.Begin()
		if err != nil {
			// The row is lost; the JSONL logs still hold it.
			time.Sleep(50 * time.Millisecond)
			return
		}
		w.tx, w.ops, w.openedAt = tx, 0, time.Now()
	}

	var err error
	switch r.kind {
	case reqTick:
		err = w.writeTick(r)
	case reqAudit:
		err = w.writeAudit(r)
	case reqSnapshot:
		sn := r.snapshot
		_, err = w.tx.Stmt(w.snapshot).Exec(int64(sn.Tick), sn.Path, sn.Seed, sn.Height, sn.Chunks, sn.Scheduled)
		w.ops++
	}
	if err != nil {
		_ = w.tx.Rollback()
		w.tx = nil
		return
	}
	if w.ops >= commitEveryOps || time.Since(w.openedAt) >= commitMaxWait {
		w.commit()
	}
}

func (w *writer) writeTick(r req) error {
	t := r.tick
	raw, _ := json.Marshal(t)
	if _, err := w.tx.Stmt(w.tick).Exec(int64(t.Tick), t.Digest, len(t.Edits), string(raw)); err != nil {
		return err
	}
	w.ops++
	st := w.tx.Stmt(w.edit)
	for i, e := range t.Edits {
		if _, err := st.Exec(int64(t.Tick), i, string(e.Op), e.Actor, e.Pos[0], e.Pos[1], e.Pos[2], e.Block, e.Liquid); err != nil {
			return err
		}
		w.ops++
	}
	return nil
}

func (w *writer) writeAudit(r req) error {
	a := r.audit
	if a.Tick != w.auditTick {
		w.auditTick, w.auditSeq = a.Tick, 0
	}
	seq := w.auditSeq
	w.auditSeq++
	raw, _ := json.Marshal(a)
	_, err := w.tx.Stmt(w.audit).Exec(int64(a.Tick), seq, a.Actor, a.Action,
		a.Pos[0], a.Pos[1], a.Pos[2], int64(a.From), int64(a.To), a.Reason, string(raw))
	w.ops++
	return err
}

func (w *writer) commit() {
	if w.tx == nil {
		return
	}
	_ = w.tx.Commit()
	w.tx = nil
}

func (w *writer) closeStmts() {
	for _, st := range []*sql.Stmt{w.tick, w.edit, w.audit, w.snapshot} {
		if st != nil {
			_ = st.Close()
		}
	}
}

func (w *writer) close() {
	w.commit()
	w.closeStmts()
}
