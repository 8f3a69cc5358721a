package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/memory"
	"github.com/talgya/officeverse/internal/world"
)

// runReflection has every NPC distill recent memories into insights during
// the first tick of each new day. Day one is skipped; there is nothing to
// reflect on yet.
func (e *Engine) runReflection(ctx context.Context, snap *snapshot) {
	if snap.clock.Day <= 1 || snap.clock.MinuteOfDay >= e.cfg.TickIncrementMin {
		return
	}
	for i := range snap.npcs {
		if err := e.reflect(ctx, snap, &snap.npcs[i]); err != nil {
			slog.Error("reflection failed", "npc", snap.npcs[i].Name, "error", err)
		}
	}
}

func (e *Engine) reflect(ctx context.Context, snap *snapshot, npc *world.NPC) error {
	digest := e.mem.Retrieve(ctx, npc.ID,
		"What stood out about today?", memory.ModeReflection, snap.clock.AbsoluteMinute())

	system, user := llm.ReflectionPrompt(npc.Name, llm.FormatTraits(npc.Traits),
		snap.clock.String(), digest)
	resp, err := e.model.Complete(ctx, system, user, 400)
	if err != nil {
		return err
	}

	insights := llm.ParseReflection(resp)
	if len(insights) == 0 {
		e.bus.Publish(EvFailedParsing, map[string]any{
			"npc_id": npc.ID, "stage": "reflection", "raw": resp,
		})
		return nil
	}

	texts := make([]string, 0, len(insights))
	for _, insight := range insights {
		e.record(ctx, npc.ID, world.MemReflection, insight.Text, insight.Importance,
			snap.clock.AbsoluteMinute())
		texts = append(texts, insight.Text)
	}
	e.bus.Publish(EvReflectionEvent, map[string]any{
		"npc_id":   npc.ID,
		"npc_name": npc.Name,
		"day":      snap.clock.Day,
		"insights": texts,
	})
	return nil
}
