package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/officeverse/internal/world"
)

// InsertDialogue opens a dialogue between two NPCs.
func (db *DB) InsertDialogue(ctx context.Context, d *world.Dialogue) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			"INSERT INTO dialogue (id, npc_a, npc_b, start_min, end_min) VALUES (?, ?, ?, ?, ?)",
			d.ID, d.NPCA, d.NPCB, d.StartMin, d.EndMin)
		return err
	})
}

// CloseDialogue stamps a dialogue's end time.
func (db *DB) CloseDialogue(ctx context.Context, id string, endMin int) error {
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			"UPDATE dialogue SET end_min = ? WHERE id = ?", endMin, id)
		return err
	})
}

// InsertDialogueTurn appends one utterance to a dialogue.
func (db *DB) InsertDialogueTurn(ctx context.Context, t *world.DialogueTurn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			"INSERT INTO dialogue_turn (id, dialogue_id, speaker_id, sim_min, text) VALUES (?, ?, ?, ?, ?)",
			t.ID, t.DialogueID, t.SpeakerID, t.SimMin, t.Text)
		return err
	})
}

// DialogueTurns returns a dialogue's turns in insertion order.
func (db *DB) DialogueTurns(ctx context.Context, dialogueID string) ([]world.DialogueTurn, error) {
	var turns []world.DialogueTurn
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &turns,
			"SELECT * FROM dialogue_turn WHERE dialogue_id = ? ORDER BY rowid",
			dialogueID)
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue turns: %w", err)
	}
	return turns, nil
}

// DialoguesForNPC returns dialogues the NPC took part in, newest first.
func (db *DB) DialoguesForNPC(ctx context.Context, npcID string, limit int) ([]world.Dialogue, error) {
	var dialogues []world.Dialogue
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &dialogues,
			"SELECT * FROM dialogue WHERE npc_a = ? OR npc_b = ? ORDER BY start_min DESC LIMIT ?",
			npcID, npcID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("dialogues for %s: %w", npcID, err)
	}
	return dialogues, nil
}

// GetCooldown returns when the pair may next start a dialogue, in absolute
// minutes. Zero means the pair has never talked. Lookup is symmetric in
// (a, b) because the key is the canonical sorted pair.
func (db *DB) GetCooldown(ctx context.Context, npcA, npcB string) (int, error) {
	var until int
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.QueryRowContext(ctx,
			"SELECT cooldown_until FROM dialogue_cooldown WHERE pair_key = ?",
			world.PairKey(npcA, npcB)).Scan(&until)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cooldown: %w", err)
	}
	return until, nil
}

// UpsertCooldown records that the pair may not start a new dialogue before
// the given absolute minute.
func (db *DB) UpsertCooldown(ctx context.Context, npcA, npcB string, until int) error {
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, `INSERT INTO dialogue_cooldown (pair_key, cooldown_until)
			VALUES (?, ?)
			ON CONFLICT (pair_key) DO UPDATE SET cooldown_until = excluded.cooldown_until`,
			world.PairKey(npcA, npcB), until)
		return err
	})
}

type simEventRow struct {
	ID           string `db:"id"`
	Type         string `db:"type"`
	StartMin     int    `db:"start_min"`
	EndMin       int    `db:"end_min"`
	MetadataJSON string `db:"metadata_json"`
}

// ActiveSimEvents returns world events still in effect at the given
// absolute minute.
func (db *DB) ActiveSimEvents(ctx context.Context, now int) ([]world.SimEvent, error) {
	var rows []simEventRow
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &rows,
			"SELECT * FROM sim_event WHERE end_min > ? AND start_min <= ? ORDER BY start_min",
			now, now)
	})
	if err != nil {
		return nil, fmt.Errorf("active sim events: %w", err)
	}
	events := make([]world.SimEvent, 0, len(rows))
	for _, r := range rows {
		ev := world.SimEvent{ID: r.ID, Type: r.Type, StartMin: r.StartMin, EndMin: r.EndMin}
		_ = json.Unmarshal([]byte(r.MetadataJSON), &ev.Metadata)
		events = append(events, ev)
	}
	return events, nil
}

// InsertSimEvent records a transient world event.
func (db *DB) InsertSimEvent(ctx context.Context, e *world.SimEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			"INSERT INTO sim_event (id, type, start_min, end_min, metadata_json) VALUES (?, ?, ?, ?, ?)",
			e.ID, e.Type, e.StartMin, e.EndMin, string(metadata))
		return err
	})
}
