package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/officeverse/internal/world"
)

type memoryRow struct {
	ID            string `db:"id"`
	NPCID         string `db:"npc_id"`
	SimMin        int    `db:"sim_min"`
	Kind          string `db:"kind"`
	Content       string `db:"content"`
	Importance    int    `db:"importance"`
	EmbeddingJSON string `db:"embedding_json"`
}

func (r memoryRow) toMemory() world.Memory {
	m := world.Memory{
		ID:         r.ID,
		NPCID:      r.NPCID,
		SimMin:     r.SimMin,
		Kind:       world.MemoryKind(r.Kind),
		Content:    r.Content,
		Importance: r.Importance,
	}
	// A memory whose embedding fails to decode still scores on recency and
	// importance; similarity falls to zero.
	_ = json.Unmarshal([]byte(r.EmbeddingJSON), &m.Embedding)
	return m
}

// InsertMemory appends one episodic memory record.
func (db *DB) InsertMemory(ctx context.Context, m *world.Memory) error {
	return db.InsertMemories(ctx, []*world.Memory{m})
}

// InsertMemories appends a batch of memory records in one transaction.
func (db *DB) InsertMemories(ctx context.Context, memories []*world.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	return db.run(ctx, func(ctx context.Context) error {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PreparexContext(ctx, `INSERT INTO memory
			(id, npc_id, sim_min, kind, content, importance, embedding_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range memories {
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			embedding, err := json.Marshal(m.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				m.ID, m.NPCID, m.SimMin, m.Kind, m.Content, m.Importance, string(embedding),
			); err != nil {
				return fmt.Errorf("insert memory for %s: %w", m.NPCID, err)
			}
		}
		return tx.Commit()
	})
}

// RecentMemories returns an NPC's newest memories, newest first, bounded
// by limit.
func (db *DB) RecentMemories(ctx context.Context, npcID string, limit int) ([]world.Memory, error) {
	var rows []memoryRow
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &rows,
			"SELECT * FROM memory WHERE npc_id = ? ORDER BY sim_min DESC, rowid DESC LIMIT ?",
			npcID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("recent memories for %s: %w", npcID, err)
	}
	memories := make([]world.Memory, 0, len(rows))
	for _, r := range rows {
		memories = append(memories, r.toMemory())
	}
	return memories, nil
}
