package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talgya/officeverse/internal/world"
)

// InsertActionInstance inserts one instance, assigning an id if missing.
func (db *DB) InsertActionInstance(ctx context.Context, ai *world.ActionInstance) error {
	if ai.ID == "" {
		ai.ID = uuid.NewString()
	}
	if ai.Status == "" {
		ai.Status = world.ActionQueued
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, `INSERT INTO action_instance
			(id, npc_id, def_id, object_id, start_min, duration_min, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ai.ID, ai.NPCID, ai.DefID, ai.ObjectID, ai.StartMin, ai.DurationMin, ai.Status)
		return err
	})
}

// GetActionInstance fetches one instance by id.
func (db *DB) GetActionInstance(ctx context.Context, id string) (world.ActionInstance, error) {
	var ai world.ActionInstance
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.GetContext(ctx, &ai,
			"SELECT * FROM action_instance WHERE id = ?", id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return world.ActionInstance{}, ErrNotFound
	}
	if err != nil {
		return world.ActionInstance{}, fmt.Errorf("get action instance %s: %w", id, err)
	}
	return ai, nil
}

// ActionInstancesByIDs fetches the given instances ordered by start_min
// ascending. Ids that no longer exist are simply absent from the result;
// callers treat a dangling plan reference as self-healing, not an error.
func (db *DB) ActionInstancesByIDs(ctx context.Context, ids []string) ([]world.ActionInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT * FROM action_instance WHERE id IN (?) ORDER BY start_min ASC", ids)
	if err != nil {
		return nil, fmt.Errorf("build instance query: %w", err)
	}
	var instances []world.ActionInstance
	err = db.run(ctx, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, &instances, db.conn.Rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch action instances: %w", err)
	}
	return instances, nil
}

// SetActionStatus transitions an instance's lifecycle state. The guard in
// the WHERE clause keeps the queued → active → done order monotone even if
// two callers race: a done instance never moves backward.
func (db *DB) SetActionStatus(ctx context.Context, id string, status world.ActionStatus) error {
	var rank int
	switch status {
	case world.ActionQueued:
		rank = 0
	case world.ActionActive:
		rank = 1
	case world.ActionDone:
		rank = 2
	default:
		return fmt.Errorf("unknown action status %q", status)
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, `UPDATE action_instance SET status = ?
			WHERE id = ? AND (CASE status WHEN 'queued' THEN 0 WHEN 'active' THEN 1 ELSE 2 END) <= ?`,
			status, id, rank)
		return err
	})
}

// DeleteActionInstances removes the given instances (replan tail swap).
func (db *DB) DeleteActionInstances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM action_instance WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, db.conn.Rebind(query), args...)
		return err
	})
}

// UpsertPlan writes or replaces an NPC's plan for one sim day.
func (db *DB) UpsertPlan(ctx context.Context, p world.Plan) error {
	actions, err := json.Marshal(p.ActionIDs)
	if err != nil {
		return fmt.Errorf("marshal plan actions: %w", err)
	}
	return db.run(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, `INSERT INTO plan (npc_id, sim_day, actions_json)
			VALUES (?, ?, ?)
			ON CONFLICT (npc_id, sim_day) DO UPDATE SET actions_json = excluded.actions_json`,
			p.NPCID, p.SimDay, string(actions))
		return err
	})
}

// GetPlan fetches an NPC's plan for a day. Returns ErrNotFound when the
// NPC has no plan for that day.
func (db *DB) GetPlan(ctx context.Context, npcID string, day int) (world.Plan, error) {
	var actionsJSON string
	err := db.run(ctx, func(ctx context.Context) error {
		return db.conn.QueryRowContext(ctx,
			"SELECT actions_json FROM plan WHERE npc_id = ? AND sim_day = ?",
			npcID, day).Scan(&actionsJSON)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return world.Plan{}, ErrNotFound
	}
	if err != nil {
		return world.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	p := world.Plan{NPCID: npcID, SimDay: day}
	if err := json.Unmarshal([]byte(actionsJSON), &p.ActionIDs); err != nil {
		return world.Plan{}, fmt.Errorf("decode plan actions: %w", err)
	}
	return p, nil
}
