package indexdb

import (
	"context"
	"database/sql"
)

// AuditsAt returns the most recent audits recorded for one block position, newest first.
func (s *SQLiteIndex) AuditsAt(ctx context.Context, pos [3]int, limit int) ([]AuditRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick, seq, actor, action, from_block, to_block, COALESCE(reason, '')
		FROM audits WHERE x = ? AND z = ? AND y = ? ORDER BY tick DESC, seq DESC LIMIT ?`,
		pos[0], pos[2], pos[1], limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		r := AuditRow{Pos: pos}
		if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.From, &r.To, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type AuditRow struct {
	Tick   uint64 `json:"tick"`
	Seq    int    `json:"seq"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// LatestSnapshotPath returns the path of the newest indexed snapshot, or "" when none is indexed.
func (s *SQLiteIndex) LatestSnapshotPath(ctx context.Context) (string, uint64, error) {
	var (
		path string
		tick int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT path, tick FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return path, uint64(tick), nil
}
