package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/memory"
	"github.com/talgya/officeverse/internal/world"
)

// dialogueRequest is a queued intent for two NPCs to talk. Requests are
// re-validated when drained; anything that no longer qualifies is dropped.
type dialogueRequest struct {
	npcA, npcB string
	queuedMin  int // absolute sim minute at enqueue
}

// sampleEncounter picks one random pair per tick and, if they share an area
// and pass the cooldown and coin flip, queues a dialogue between them.
func (e *Engine) sampleEncounter(ctx context.Context, snap *snapshot) {
	if len(snap.npcs) < 2 {
		return
	}
	i := e.randIntn(len(snap.npcs))
	j := e.randIntn(len(snap.npcs) - 1)
	if j >= i {
		j++
	}
	a, b := snap.npcs[i], snap.npcs[j]

	if a.Position.AreaID == "" || a.Position.AreaID != b.Position.AreaID {
		return
	}
	if e.busyTalking(a.ID) || e.busyTalking(b.ID) {
		return
	}
	until, err := e.db.GetCooldown(ctx, a.ID, b.ID)
	if err != nil {
		slog.Error("cooldown lookup failed", "error", err)
		return
	}
	now := snap.clock.AbsoluteMinute()
	if until > now {
		return
	}
	if e.randFloat() >= e.cfg.DialogueChance {
		return
	}

	e.mu.Lock()
	e.pending = append(e.pending, dialogueRequest{npcA: a.ID, npcB: b.ID, queuedMin: now})
	e.mu.Unlock()
}

// drainDialogues re-validates queued requests and runs a conversation for
// each that still holds up. Conversations complete inside the tick, so
// their cooldowns, summaries, and replans are visible before the next
// activation step.
func (e *Engine) drainDialogues(ctx context.Context, snap *snapshot) {
	e.mu.Lock()
	requests := e.pending
	e.pending = nil
	e.mu.Unlock()

	byID := make(map[string]*world.NPC, len(snap.npcs))
	for i := range snap.npcs {
		byID[snap.npcs[i].ID] = &snap.npcs[i]
	}

	for _, req := range requests {
		a, okA := byID[req.npcA]
		b, okB := byID[req.npcB]
		if !okA || !okB {
			continue
		}
		if snap.clock.AbsoluteMinute()-req.queuedMin > e.cfg.CooldownMinutes {
			slog.Debug("dialogue request expired unserved", "npc_a", a.Name, "npc_b", b.Name)
			continue
		}
		if a.Position.AreaID == "" || a.Position.AreaID != b.Position.AreaID {
			slog.Debug("dialogue request stale, participants separated",
				"npc_a", a.Name, "npc_b", b.Name)
			continue
		}
		if e.busyTalking(a.ID) || e.busyTalking(b.ID) {
			slog.Debug("dialogue request stale, participant already talking",
				"npc_a", a.Name, "npc_b", b.Name)
			continue
		}
		// A conversation that wrapped up between sampling and draining may
		// have started a fresh cooldown; check again before launching.
		if until, err := e.db.GetCooldown(ctx, a.ID, b.ID); err != nil || until > snap.clock.AbsoluteMinute() {
			if err != nil {
				slog.Error("cooldown lookup failed", "error", err)
			}
			continue
		}

		areaName := a.Position.AreaID
		if area, ok := snap.areas[areaName]; ok {
			areaName = area.Name
		}
		e.bus.Publish(EvSocialEvent, map[string]any{
			"npc_a": a.Name, "npc_b": b.Name, "area": areaName,
		})

		e.mu.Lock()
		e.inFlight[a.ID]++
		e.inFlight[b.ID]++
		e.mu.Unlock()

		e.runDialogue(ctx, snap, *a, *b, areaName)
	}
}

func (e *Engine) busyTalking(npcID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[npcID] > 0
}

func (e *Engine) runDialogue(ctx context.Context, snap *snapshot, a, b world.NPC, areaName string) {
	defer func() {
		e.mu.Lock()
		e.inFlight[a.ID]--
		e.inFlight[b.ID]--
		e.mu.Unlock()
	}()

	now := snap.clock.AbsoluteMinute()
	digestA := e.mem.Retrieve(ctx, a.ID, "Conversation with "+b.Name, memory.ModeDialogue, now)
	digestB := e.mem.Retrieve(ctx, b.ID, "Conversation with "+a.Name, memory.ModeDialogue, now)

	system, user := llm.DialoguePrompt(
		a.Name, llm.FormatTraits(a.Traits), digestA,
		b.Name, llm.FormatTraits(b.Traits), digestB,
		snap.clock.String(), areaName)
	resp, err := e.model.Complete(ctx, system, user, 600)
	if err != nil {
		slog.Error("dialogue completion failed", "npc_a", a.Name, "npc_b", b.Name, "error", err)
		return
	}
	turns := llm.ParseTranscript(resp, a.Name, b.Name)
	if len(turns) == 0 {
		e.bus.Publish(EvFailedParsing, map[string]any{
			"npc_id": a.ID, "stage": "dialogue", "raw": resp,
		})
		return
	}

	dialogue := world.Dialogue{NPCA: a.ID, NPCB: b.ID, StartMin: now}
	if err := e.db.InsertDialogue(ctx, &dialogue); err != nil {
		slog.Error("dialogue insert failed", "error", err)
		return
	}
	speakerIDs := map[string]string{a.Name: a.ID, b.Name: b.ID}
	for _, turn := range turns {
		err := e.db.InsertDialogueTurn(ctx, &world.DialogueTurn{
			DialogueID: dialogue.ID,
			SpeakerID:  speakerIDs[turn.Speaker],
			SimMin:     now,
			Text:       turn.Text,
		})
		if err != nil {
			slog.Error("dialogue turn insert failed", "error", err)
		}
	}
	if err := e.db.CloseDialogue(ctx, dialogue.ID, now); err != nil {
		slog.Error("dialogue close failed", "error", err)
	}
	if err := e.db.UpsertCooldown(ctx, a.ID, b.ID, now+e.cfg.CooldownMinutes); err != nil {
		slog.Error("cooldown write failed", "error", err)
	}

	for _, participant := range []world.NPC{a, b} {
		e.bus.Publish(EvDialogueEvent, map[string]any{
			"dialogue_id": dialogue.ID,
			"npc_id":      participant.ID,
			"npc_a":       a.Name,
			"npc_b":       b.Name,
			"area":        areaName,
			"transcript":  formatTranscript(turns),
		})
	}

	e.digestDialogue(ctx, snap, a, b, turns)
	e.digestDialogue(ctx, snap, b, a, turns)
}

// digestDialogue gives one participant a second-person summary memory of
// the conversation, then asks whether it should change their day.
func (e *Engine) digestDialogue(ctx context.Context, snap *snapshot, npc, other world.NPC, turns []llm.Turn) {
	transcript := formatTranscript(turns)
	system, user := llm.DialogueSummaryPrompt(npc.Name, other.Name, transcript)
	summary, err := e.model.Complete(ctx, system, user, 200)
	if err != nil {
		slog.Error("dialogue summary failed", "npc", npc.Name, "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	e.record(ctx, npc.ID, world.MemDialogueSummary, summary, 3, snap.clock.AbsoluteMinute())

	reason := fmt.Sprintf("you talked with %s: %s", other.Name, summary)
	if err := e.maybeReplan(ctx, snap, &npc, reason, "dialogue"); err != nil {
		slog.Error("post-dialogue replan failed", "npc", npc.Name, "error", err)
	}
}

func formatTranscript(turns []llm.Turn) string {
	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = turn.Speaker + ": " + turn.Text
	}
	return strings.Join(lines, "\n")
}
