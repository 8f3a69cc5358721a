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

// InsertNPCs bulk-inserts NPCs, assigning ids to any that lack one.
func (db *DB) InsertNPCs(ctx context.Context, npcs []world.NPC) error {
	if len(npcs) == 0 {
		return nil
	}
	return db.run(ctx, func(ctx context.Context) error {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PreparexContext(ctx, `INSERT INTO npc
			(id, name, traits_json, backstory, x, y, area_id, current_action_id, wander_probability)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range npcs {
			n := &npcs[i]
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			if n.WanderChance <= 0 || n.WanderChance > 1 {
				n.WanderChance = world.DefaultWanderChance
			}
			traits, err := json.Marshal(n.Traits)
			if err != nil {
				return fmt.Errorf("marshal traits for %s: %w", n.Name, err)
			}
			if _, err := stmt.ExecContext(ctx,
				n.ID, n.Name, string(traits), n.Backstory,
				n.Position.X, n.Position.Y, n.Position.AreaID,
				n.CurrentActionID, n.WanderChance,
			); err != nil {
				return fmt.Errorf("insert npc %s: %w", n.Name, err)
			}
		}
		return tx.Commit()
	})
}

type npcRow struct {
	ID              string  `db:"id"`
	Name            string  `db:"name"`
	TraitsJSON      string  `db:"traits_json"`
	Backstory       string  `db:"backstory"`
	X               float64 `db:"x"`
	Y               float64 `db:"y"`
	AreaID          string  `db:"area_id"`
	CurrentActionID string  `db:"current_action_id"`
	WanderChance    float64 `db:"wander_probability"`
}

func (r npcRow) toNPC() world.NPC {
	var traits []string
	// Damaged traits degrade to none rather than failing the read.
	_ = json.Unmarshal([]byte(r.TraitsJSON), &traits)
	return world.NPC{
		ID:              r.ID,
		Name:            r.Name,
		Traits:          traits,
		Backstory:       r.Backstory,
		Position:        world.Position{X: r.X, Y: r.Y, AreaID: r.AreaID},
		CurrentActionID: r.CurrentActionID,
		WanderChance:    r.WanderChance,
	}
}

// ListNPCs returns all NPCs ordered by name.
func (db *DB) ListNPCs(ctx context.Context) ([]world.NPC, error) {
	var rows []npcRow
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &rows, "SELECT * FROM npc ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("list npcs: %w", err)
	}
	npcs := make([]world.NPC, 0, len(rows))
	for _, r := range rows {
		npcs = append(npcs, r.toNPC())
	}
	return npcs, nil
}

// GetNPC fetches one NPC by id.
func (db *DB) GetNPC(ctx context.Context, id string) (world.NPC, error) {
	var row npcRow
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.GetContext(ctx, &row, "SELECT * FROM npc WHERE id = ?", id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return world.NPC{}, ErrNotFound
	}
	if err != nil {
		return world.NPC{}, fmt.Errorf("get npc %s: %w", id, err)
	}
	return row.toNPC(), nil
}

// UpdateNPCPosition moves an NPC.
func (db *DB) UpdateNPCPosition(ctx context.Context, id string, pos world.Position) error {
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			"UPDATE npc SET x = ?, y = ?, area_id = ? WHERE id = ?",
			pos.X, pos.Y, pos.AreaID, id)
		return err
	})
}

// SetNPCAction updates an NPC's current action pointer. An empty actionID
// clears it (idle). A non-nil pos relocates the NPC in the same write.
func (db *DB) SetNPCAction(ctx context.Context, id, actionID string, pos *world.Position) error {
	return db.run(ctx, func(ctx context.Context) error {
		if pos != nil {
			_, err := db.conn.ExecContext(ctx,
				"UPDATE npc SET current_action_id = ?, x = ?, y = ?, area_id = ? WHERE id = ?",
				actionID, pos.X, pos.Y, pos.AreaID, id)
			return err
		}
		_, err := db.conn.ExecContext(ctx,
			"UPDATE npc SET current_action_id = ? WHERE id = ?", actionID, id)
		return err
	})
}

// InsertAreas bulk-inserts areas, assigning ids where missing.
func (db *DB) InsertAreas(ctx context.Context, areas []world.Area) error {
	return db.run(ctx, func(ctx context.Context) error {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for i := range areas {
			a := &areas[i]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO area (id, name, x, y, w, h) VALUES (?, ?, ?, ?, ?, ?)",
				a.ID, a.Name, a.Bounds.X, a.Bounds.Y, a.Bounds.W, a.Bounds.H,
			); err != nil {
				return fmt.Errorf("insert area %s: %w", a.Name, err)
			}
		}
		return tx.Commit()
	})
}

type areaRow struct {
	ID   string  `db:"id"`
	Name string  `db:"name"`
	X    float64 `db:"x"`
	Y    float64 `db:"y"`
	W    float64 `db:"w"`
	H    float64 `db:"h"`
}

// ListAreas returns all areas.
func (db *DB) ListAreas(ctx context.Context) ([]world.Area, error) {
	var rows []areaRow
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &rows, "SELECT * FROM area ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	areas := make([]world.Area, 0, len(rows))
	for _, r := range rows {
		areas = append(areas, world.Area{
			ID:     r.ID,
			Name:   r.Name,
			Bounds: world.Bounds{X: r.X, Y: r.Y, W: r.W, H: r.H},
		})
	}
	return areas, nil
}

// InsertObjects bulk-inserts anchor objects.
func (db *DB) InsertObjects(ctx context.Context, objects []world.Object) error {
	return db.run(ctx, func(ctx context.Context) error {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for i := range objects {
			o := &objects[i]
			if o.ID == "" {
				o.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO object (id, name, area_id) VALUES (?, ?, ?)",
				o.ID, o.Name, o.AreaID,
			); err != nil {
				return fmt.Errorf("insert object %s: %w", o.Name, err)
			}
		}
		return tx.Commit()
	})
}

// ListObjects returns all anchor objects.
func (db *DB) ListObjects(ctx context.Context) ([]world.Object, error) {
	var objects []world.Object
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &objects, "SELECT * FROM object ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// InsertActionDefs bulk-inserts catalog entries.
func (db *DB) InsertActionDefs(ctx context.Context, defs []world.ActionDef) error {
	return db.run(ctx, func(ctx context.Context) error {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for i := range defs {
			d := &defs[i]
			if d.ID == "" {
				d.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO action_def (id, title, emoji, base_minutes) VALUES (?, ?, ?, ?)",
				d.ID, d.Title, d.Emoji, d.BaseMinutes,
			); err != nil {
				return fmt.Errorf("insert action def %s: %w", d.Title, err)
			}
		}
		return tx.Commit()
	})
}

// ListActionDefs returns the full action catalog.
func (db *DB) ListActionDefs(ctx context.Context) ([]world.ActionDef, error) {
	var defs []world.ActionDef
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &defs, "SELECT * FROM action_def ORDER BY title")
	})
	if err != nil {
		return nil, fmt.Errorf("list action defs: %w", err)
	}
	return defs, nil
}
