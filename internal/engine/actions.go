package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

// runActionLifecycle completes expired actions, activates due ones, and
// wanders idle NPCs. Each NPC is handled independently so one failure never
// stalls the rest of the office.
func (e *Engine) runActionLifecycle(ctx context.Context, snap *snapshot) {
	for i := range snap.npcs {
		if err := e.stepNPC(ctx, snap, &snap.npcs[i]); err != nil {
			slog.Error("action lifecycle failed", "npc", snap.npcs[i].Name, "error", err)
		}
	}
}

func (e *Engine) stepNPC(ctx context.Context, snap *snapshot, npc *world.NPC) error {
	now := snap.clock.AbsoluteMinute()

	if npc.CurrentActionID != "" {
		inst, err := e.db.GetActionInstance(ctx, npc.CurrentActionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// The referenced instance is gone; clear the pointer and carry on.
			slog.Warn("dangling action reference cleared", "npc", npc.Name, "action_id", npc.CurrentActionID)
			npc.CurrentActionID = ""
			if err := e.db.SetNPCAction(ctx, npc.ID, "", nil); err != nil {
				return fmt.Errorf("clear dangling action: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load current action: %w", err)
		default:
			if now < inst.StartAbsolute(snap.clock.Day)+inst.DurationMin {
				return nil // still busy
			}
			if err := e.completeAction(ctx, snap, npc, inst); err != nil {
				return err
			}
		}
	}

	if due, ok, err := e.nextDueAction(ctx, snap, npc); err != nil {
		return err
	} else if ok {
		return e.activateAction(ctx, snap, npc, due)
	}

	return e.maybeWander(ctx, snap, npc)
}

func (e *Engine) completeAction(ctx context.Context, snap *snapshot, npc *world.NPC, inst world.ActionInstance) error {
	if err := e.db.SetActionStatus(ctx, inst.ID, world.ActionDone); err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	if err := e.db.SetNPCAction(ctx, npc.ID, "", nil); err != nil {
		return fmt.Errorf("clear npc action: %w", err)
	}
	npc.CurrentActionID = ""

	title := inst.DefID
	if def, ok := snap.defByID[inst.DefID]; ok {
		title = def.Title
	}
	e.record(ctx, npc.ID, world.MemObservation,
		fmt.Sprintf("You finished %s.", title), 1, snap.clock.AbsoluteMinute())
	return nil
}

// nextDueAction finds the earliest queued instance in today's plan whose
// start time has arrived. Dangling plan entries are skipped by the batch
// lookup and removed from the plan on the next replan.
func (e *Engine) nextDueAction(ctx context.Context, snap *snapshot, npc *world.NPC) (world.ActionInstance, bool, error) {
	plan, err := e.db.GetPlan(ctx, npc.ID, snap.clock.Day)
	if errors.Is(err, store.ErrNotFound) {
		return world.ActionInstance{}, false, nil
	}
	if err != nil {
		return world.ActionInstance{}, false, fmt.Errorf("load plan: %w", err)
	}

	instances, err := e.db.ActionInstancesByIDs(ctx, plan.ActionIDs)
	if err != nil {
		return world.ActionInstance{}, false, fmt.Errorf("load plan instances: %w", err)
	}
	for _, inst := range instances {
		if inst.Status == world.ActionQueued && inst.StartMin <= snap.clock.MinuteOfDay {
			return inst, true, nil
		}
	}
	return world.ActionInstance{}, false, nil
}

func (e *Engine) activateAction(ctx context.Context, snap *snapshot, npc *world.NPC, inst world.ActionInstance) error {
	if err := e.db.SetActionStatus(ctx, inst.ID, world.ActionActive); err != nil {
		return fmt.Errorf("activate action: %w", err)
	}

	def, hasDef := snap.defByID[inst.DefID]

	// Actions bound to an object pull the NPC to that object's area.
	var pos *world.Position
	if inst.ObjectID != "" {
		for _, obj := range snap.objects {
			if obj.ID != inst.ObjectID {
				continue
			}
			if area, ok := snap.areas[obj.AreaID]; ok {
				p := e.randomPointIn(area.Bounds)
				p.AreaID = area.ID
				pos = &p
			}
			break
		}
	}

	if err := e.db.SetNPCAction(ctx, npc.ID, inst.ID, pos); err != nil {
		return fmt.Errorf("assign npc action: %w", err)
	}
	npc.CurrentActionID = inst.ID
	oldAreaID := npc.Position.AreaID
	if pos != nil {
		npc.Position = *pos
	}
	if pos != nil && pos.AreaID != oldAreaID {
		e.observeAreaCrossing(ctx, snap, npc, oldAreaID, pos.AreaID)
	}

	title, emoji := inst.DefID, ""
	if hasDef {
		title, emoji = def.Title, def.Emoji
	}
	e.record(ctx, npc.ID, world.MemObservation,
		fmt.Sprintf("You started %s.", title), 1, snap.clock.AbsoluteMinute())
	e.bus.Publish(EvActionStart, map[string]any{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"action":   title,
		"emoji":    emoji,
		"area_id":  npc.Position.AreaID,
	})
	return nil
}

// maybeWander shuffles an idle NPC to a new spot inside its current area.
// Wandering never crosses area boundaries and leaves no memory behind.
func (e *Engine) maybeWander(ctx context.Context, snap *snapshot, npc *world.NPC) error {
	if e.randFloat() >= npc.WanderChance {
		return nil
	}

	bounds := world.Bounds{W: world.WorldWidth, H: world.WorldHeight}
	if area, ok := snap.areas[npc.Position.AreaID]; ok {
		bounds = area.Bounds
	}
	pos := e.randomPointIn(bounds)
	pos.AreaID = npc.Position.AreaID

	if err := e.db.UpdateNPCPosition(ctx, npc.ID, pos); err != nil {
		return fmt.Errorf("wander: %w", err)
	}
	npc.Position = pos
	return nil
}

// observeAreaCrossing records that a moving NPC left one area and entered
// another. Everyone present in either room notices, and the mover notices
// them back, so both sides can recall the encounter later.
func (e *Engine) observeAreaCrossing(ctx context.Context, snap *snapshot, mover *world.NPC, oldAreaID, newAreaID string) {
	now := snap.clock.AbsoluteMinute()
	for i := range snap.npcs {
		other := &snap.npcs[i]
		if other.ID == mover.ID {
			continue
		}
		switch other.Position.AreaID {
		case oldAreaID:
			e.record(ctx, other.ID, world.MemObservation,
				fmt.Sprintf("You saw %s leave the %s.", mover.Name, e.areaName(snap, oldAreaID)), 2, now)
			e.record(ctx, mover.ID, world.MemObservation,
				fmt.Sprintf("You passed %s on your way out of the %s.", other.Name, e.areaName(snap, oldAreaID)), 2, now)
		case newAreaID:
			e.record(ctx, other.ID, world.MemObservation,
				fmt.Sprintf("You saw %s enter the %s.", mover.Name, e.areaName(snap, newAreaID)), 2, now)
			e.record(ctx, mover.ID, world.MemObservation,
				fmt.Sprintf("You saw %s in the %s when you arrived.", other.Name, e.areaName(snap, newAreaID)), 2, now)
		}
	}
}

func (e *Engine) areaName(snap *snapshot, areaID string) string {
	if area, ok := snap.areas[areaID]; ok {
		return area.Name
	}
	return areaID
}

// randomPointIn picks a point inside b, respecting the movement margin when
// the bounds are large enough to allow it.
func (e *Engine) randomPointIn(b world.Bounds) world.Position {
	mx, my := world.MovementMargin, world.MovementMargin
	if b.W <= 2*mx {
		mx = 0
	}
	if b.H <= 2*my {
		my = 0
	}
	return world.Position{
		X: b.X + mx + e.randFloat()*(b.W-2*mx),
		Y: b.Y + my + e.randFloat()*(b.H-2*my),
	}
}

// record writes a memory, logging instead of failing the caller.
func (e *Engine) record(ctx context.Context, npcID string, kind world.MemoryKind, content string, importance, simMin int) {
	if err := e.mem.Record(ctx, npcID, kind, content, importance, simMin); err != nil {
		slog.Error("memory write failed", "npc_id", npcID, "error", err)
	}
}
