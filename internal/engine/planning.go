package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/memory"
	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

// runPlanning gives every NPC without a schedule for today one, during the
// single tick whose window covers the planning minute.
func (e *Engine) runPlanning(ctx context.Context, snap *snapshot) {
	m := snap.clock.MinuteOfDay
	if m < e.cfg.PlanningMinute || m >= e.cfg.PlanningMinute+e.cfg.TickIncrementMin {
		return
	}
	for i := range snap.npcs {
		npc := &snap.npcs[i]
		_, err := e.db.GetPlan(ctx, npc.ID, snap.clock.Day)
		if err == nil {
			continue // already planned today
		}
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("plan lookup failed", "npc", npc.Name, "error", err)
			continue
		}
		if err := e.planDay(ctx, snap, npc); err != nil {
			slog.Error("daily planning failed", "npc", npc.Name, "error", err)
		}
	}
}

func (e *Engine) planDay(ctx context.Context, snap *snapshot, npc *world.NPC) error {
	digest := e.mem.Retrieve(ctx, npc.ID,
		fmt.Sprintf("What should %s do today?", npc.Name),
		memory.ModePlanning, snap.clock.AbsoluteMinute())

	system, user := llm.PlanPrompt(npc.Name, llm.FormatTraits(npc.Traits), npc.Backstory,
		snap.clock.String(), digest, snap.plannableTitles())
	resp, err := e.model.Complete(ctx, system, user, 600)
	if err != nil {
		return fmt.Errorf("plan completion: %w", err)
	}

	// The daily plan keeps every parsed line, early morning included; the
	// activation backlog rule picks missed ones up from the oldest.
	entries := llm.ParsePlanLines(resp, snap.titleIndex())
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].StartMinute < entries[j].StartMinute })
	if len(entries) == 0 {
		e.bus.Publish(EvFailedParsing, map[string]any{
			"npc_id": npc.ID, "stage": "planning", "raw": resp,
		})
		return fmt.Errorf("plan output unusable")
	}

	ids, err := e.materialize(ctx, snap, npc.ID, entries)
	if err != nil {
		return err
	}
	if err := e.db.UpsertPlan(ctx, world.Plan{NPCID: npc.ID, SimDay: snap.clock.Day, ActionIDs: ids}); err != nil {
		return fmt.Errorf("store plan: %w", err)
	}

	e.record(ctx, npc.ID, world.MemPlan,
		fmt.Sprintf("You planned %d activities for today: %s.", len(entries), summarizeEntries(entries)),
		3, snap.clock.AbsoluteMinute())
	e.bus.Publish(EvPlanningEvent, map[string]any{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"day":      snap.clock.Day,
		"schedule": summarizeEntries(entries),
	})
	return nil
}

// replan rewrites the not-yet-started tail of an NPC's schedule. The
// existing plan is touched only after a usable replacement has been parsed.
func (e *Engine) replan(ctx context.Context, snap *snapshot, npc *world.NPC, reason, source string) error {
	now := snap.clock.MinuteOfDay

	digest := e.mem.Retrieve(ctx, npc.ID, reason, memory.ModePlanning, snap.clock.AbsoluteMinute())
	system, user := llm.ReplanPrompt(npc.Name, llm.FormatTraits(npc.Traits), npc.Backstory,
		snap.clock.String(), reason, digest, snap.plannableTitles())
	resp, err := e.model.Complete(ctx, system, user, 600)
	if err != nil {
		return fmt.Errorf("replan completion: %w", err)
	}
	entries := entriesFrom(llm.ParsePlanLines(resp, snap.titleIndex()), now)
	if len(entries) == 0 {
		e.bus.Publish(EvFailedParsing, map[string]any{
			"npc_id": npc.ID, "stage": "replanning", "raw": resp,
		})
		return fmt.Errorf("replan output unusable")
	}

	var head, tail []string
	plan, err := e.db.GetPlan(ctx, npc.ID, snap.clock.Day)
	if err == nil {
		instances, err := e.db.ActionInstancesByIDs(ctx, plan.ActionIDs)
		if err != nil {
			return fmt.Errorf("load plan instances: %w", err)
		}
		for _, inst := range instances {
			if inst.Status != world.ActionQueued || inst.StartMin <= now {
				head = append(head, inst.ID)
			} else {
				tail = append(tail, inst.ID)
			}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load plan: %w", err)
	}

	ids, err := e.materialize(ctx, snap, npc.ID, entries)
	if err != nil {
		return err
	}
	if err := e.db.UpsertPlan(ctx, world.Plan{
		NPCID: npc.ID, SimDay: snap.clock.Day, ActionIDs: append(head, ids...),
	}); err != nil {
		return fmt.Errorf("store replan: %w", err)
	}
	if err := e.db.DeleteActionInstances(ctx, tail); err != nil {
		slog.Warn("stale plan tail not deleted", "npc", npc.Name, "error", err)
	}

	e.record(ctx, npc.ID, world.MemReplan,
		fmt.Sprintf("You changed your plans because %s. New schedule: %s.", reason, summarizeEntries(entries)),
		2, snap.clock.AbsoluteMinute())
	e.bus.Publish(EvReplanEvent, map[string]any{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"source":   source,
		"schedule": summarizeEntries(entries),
	})
	return nil
}

// materialize turns parsed schedule entries into stored action instances.
// Every action runs its catalog base duration regardless of the gap to
// the next entry.
func (e *Engine) materialize(ctx context.Context, snap *snapshot, npcID string, entries []llm.PlanEntry) ([]string, error) {
	bindings := world.ObjectBindings()
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		def := snap.defs[entry.Title]
		inst := world.ActionInstance{
			NPCID:       npcID,
			DefID:       def.ID,
			StartMin:    entry.StartMinute,
			DurationMin: def.BaseMinutes,
			Status:      world.ActionQueued,
		}
		if objName, ok := bindings[entry.Title]; ok {
			if obj, ok := snap.objects[objName]; ok {
				inst.ObjectID = obj.ID
			}
		}
		if err := e.db.InsertActionInstance(ctx, &inst); err != nil {
			return nil, fmt.Errorf("store action instance: %w", err)
		}
		ids = append(ids, inst.ID)
	}
	return ids, nil
}

// maybeReplan asks the language model whether the given reason warrants a
// schedule change, and replans only on a yes. The gate keeps minor events
// from churning schedules all day.
func (e *Engine) maybeReplan(ctx context.Context, snap *snapshot, npc *world.NPC, reason, source string) error {
	system, user := llm.ReplanGatePrompt(npc.Name, reason)
	answer, err := e.model.Complete(ctx, system, user, 10)
	if err != nil {
		return fmt.Errorf("replan gate: %w", err)
	}
	if !llm.ParseYesNo(answer) {
		return nil
	}
	return e.replan(ctx, snap, npc, reason, source)
}

// runAdherenceAudit checks each NPC against its schedule at noon and at
// midnight. The scheduled action is the plan entry starting within an hour
// of the audit instant; what the NPC is actually doing decides how loud the
// resulting observation is.
func (e *Engine) runAdherenceAudit(ctx context.Context, snap *snapshot) {
	m := snap.clock.MinuteOfDay
	var instant int
	switch {
	case m >= 720 && m < 720+e.cfg.TickIncrementMin:
		instant = 720
	case m < e.cfg.TickIncrementMin:
		instant = 0
	default:
		return
	}

	now := snap.clock.AbsoluteMinute()
	for i := range snap.npcs {
		npc := &snap.npcs[i]
		plan, err := e.db.GetPlan(ctx, npc.ID, snap.clock.Day)
		if errors.Is(err, store.ErrNotFound) {
			e.record(ctx, npc.ID, world.MemObservation, "You have no plan for today.", 2, now)
			continue
		}
		if err != nil {
			slog.Error("adherence audit failed", "npc", npc.Name, "error", err)
			continue
		}
		instances, err := e.db.ActionInstancesByIDs(ctx, plan.ActionIDs)
		if err != nil {
			slog.Error("adherence audit failed", "npc", npc.Name, "error", err)
			continue
		}

		// The scheduled action is the entry starting closest to the audit
		// instant, within an hour either way.
		var scheduled *world.ActionInstance
		best := 61
		for j := range instances {
			delta := instances[j].StartMin - instant
			if delta < 0 {
				delta = -delta
			}
			if delta < best {
				best = delta
				scheduled = &instances[j]
			}
		}

		var content string
		var importance int
		switch {
		case scheduled == nil && npc.CurrentActionID == "":
			content, importance = "You are idle, just as planned.", 1
		case scheduled == nil:
			content, importance = "You are busy with something unplanned.", 2
		case scheduled.ID == npc.CurrentActionID:
			content, importance = fmt.Sprintf("You are on schedule with %s.", e.defTitle(snap, scheduled.DefID)), 1
		case npc.CurrentActionID == "":
			content = fmt.Sprintf("You were supposed to be on %s but you are idle.", e.defTitle(snap, scheduled.DefID))
			importance = 3
		default:
			doing := npc.CurrentActionID
			if inst, err := e.db.GetActionInstance(ctx, npc.CurrentActionID); err == nil {
				doing = e.defTitle(snap, inst.DefID)
			}
			content = fmt.Sprintf("You were supposed to be on %s but you are doing %s instead.",
				e.defTitle(snap, scheduled.DefID), doing)
			importance = 3
		}
		e.record(ctx, npc.ID, world.MemObservation, content, importance, now)
	}
}

func (e *Engine) defTitle(snap *snapshot, defID string) string {
	if def, ok := snap.defByID[defID]; ok {
		return def.Title
	}
	return defID
}

func entriesFrom(entries []llm.PlanEntry, fromMinute int) []llm.PlanEntry {
	kept := entries[:0]
	for _, entry := range entries {
		if entry.StartMinute >= fromMinute {
			kept = append(kept, entry)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].StartMinute < kept[j].StartMinute })
	return kept
}

func summarizeEntries(entries []llm.PlanEntry) string {
	parts := make([]string, len(entries))
	for i, entry := range entries {
		parts[i] = fmt.Sprintf("%02d:%02d %s", entry.StartMinute/60, entry.StartMinute%60, entry.Title)
	}
	return strings.Join(parts, ", ")
}
