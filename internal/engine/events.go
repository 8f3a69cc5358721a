package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/officeverse/internal/world"
)

// worldEvent is a catalog entry for the stochastic event roll. The trait
// and action filters are advisory metadata persisted on the SimEvent row;
// scoping itself is by area only.
type worldEvent struct {
	name        string
	durationMin int
	areaID      string // "" = whole floor
	action      string // priority action pushed onto affected NPCs
	traitFilter string
	actionTitle string
	memory      string
}

var eventCatalog = []worldEvent{
	{
		name: "fire_alarm", durationMin: 30, action: "Evacuate",
		memory: "A fire alarm went off. You dropped everything and evacuated.",
	},
	{
		name: "pizza_drop", durationMin: 60, areaID: "lounge", action: "Get Pizza",
		traitFilter: "greedy",
		memory:      "Free pizza appeared in the Lounge. You went to grab a slice.",
	},
	{
		name: "wifi_down", durationMin: 240, areaID: "office", action: "Complain about Wi-Fi",
		actionTitle: "Work",
		memory:      "The office Wi-Fi went down in the middle of the day.",
	},
}

// runWorldEvents rolls for a random disruption. Every NPC in the event's
// scope notices it, drops what it was doing for the event's priority
// action, and gets a chance to rework the rest of its day.
func (e *Engine) runWorldEvents(ctx context.Context, snap *snapshot) {
	if e.randFloat() >= e.cfg.EventChance {
		return
	}
	now := snap.clock.AbsoluteMinute()

	ev := eventCatalog[e.randIntn(len(eventCatalog))]
	meta := map[string]string{"area_id": ev.areaID, "action": ev.action}
	if ev.traitFilter != "" {
		meta["npc_trait_filter"] = ev.traitFilter
	}
	if ev.actionTitle != "" {
		meta["affected_action_title"] = ev.actionTitle
	}
	record := world.SimEvent{
		Type:     ev.name,
		StartMin: now,
		EndMin:   now + ev.durationMin,
		Metadata: meta,
	}
	if err := e.db.InsertSimEvent(ctx, &record); err != nil {
		slog.Error("world event insert failed", "event", ev.name, "error", err)
		return
	}

	slog.Info("world event triggered", "event", ev.name, "until_min", record.EndMin)
	e.bus.Publish(EvSimEvent, map[string]any{
		"event_id":  record.ID,
		"type":      ev.name,
		"start_min": record.StartMin,
		"end_min":   record.EndMin,
		"area_id":   ev.areaID,
	})

	for i := range snap.npcs {
		npc := &snap.npcs[i]
		if !eventAffects(ev, npc) {
			continue
		}
		e.record(ctx, npc.ID, world.MemObservation, ev.memory, 3, now)
		if err := e.interruptWith(ctx, snap, npc, ev); err != nil {
			slog.Error("event interruption failed", "event", ev.name, "npc", npc.Name, "error", err)
		}
		if err := e.maybeReplan(ctx, snap, npc, ev.memory, "challenge"); err != nil {
			slog.Error("post-event replan failed", "event", ev.name, "npc", npc.Name, "error", err)
		}
	}
}

// eventAffects scopes the event. Area-bound events only reach NPCs standing
// in that area; everything else hits the whole floor.
func eventAffects(ev worldEvent, npc *world.NPC) bool {
	return ev.areaID == "" || npc.Position.AreaID == ev.areaID
}

// interruptWith retires the NPC's current action and starts the event's
// priority action immediately, outside any plan. An NPC already reacting to
// an earlier event is left alone.
func (e *Engine) interruptWith(ctx context.Context, snap *snapshot, npc *world.NPC, ev worldEvent) error {
	if npc.CurrentActionID != "" {
		if inst, err := e.db.GetActionInstance(ctx, npc.CurrentActionID); err == nil {
			if def, ok := snap.defByID[inst.DefID]; ok && world.PriorityTitles()[def.Title] {
				return nil
			}
		}
		if err := e.db.SetActionStatus(ctx, npc.CurrentActionID, world.ActionDone); err != nil {
			return fmt.Errorf("interrupt current action: %w", err)
		}
	}

	def, ok := snap.defs[ev.action]
	if !ok {
		return fmt.Errorf("priority action %q not seeded", ev.action)
	}
	inst := world.ActionInstance{
		NPCID:       npc.ID,
		DefID:       def.ID,
		StartMin:    snap.clock.MinuteOfDay,
		DurationMin: def.BaseMinutes,
		Status:      world.ActionActive,
	}
	if err := e.db.InsertActionInstance(ctx, &inst); err != nil {
		return fmt.Errorf("store priority action: %w", err)
	}
	if err := e.db.SetNPCAction(ctx, npc.ID, inst.ID, nil); err != nil {
		return fmt.Errorf("assign priority action: %w", err)
	}
	npc.CurrentActionID = inst.ID

	e.bus.Publish(EvActionStart, map[string]any{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"action":   def.Title,
		"emoji":    def.Emoji,
		"area_id":  npc.Position.AreaID,
	})
	return nil
}
