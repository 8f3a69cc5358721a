package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/officeverse/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAdvanceClockRollover(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c, err := db.GetClock(ctx)
	require.NoError(t, err)
	assert.Equal(t, world.Clock{Day: 1, MinuteOfDay: 0}, c)

	// Walk the clock to 23:30 and step across midnight.
	for i := 0; i < 94; i++ {
		_, err = db.AdvanceClock(ctx, 15)
		require.NoError(t, err)
	}
	c, err = db.GetClock(ctx)
	require.NoError(t, err)
	assert.Equal(t, world.Clock{Day: 1, MinuteOfDay: 1410}, c)

	c, err = db.AdvanceClock(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, world.Clock{Day: 1, MinuteOfDay: 1425}, c)

	c, err = db.AdvanceClock(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, world.Clock{Day: 2, MinuteOfDay: 0}, c, "rollover increments day exactly once")
}

func TestAdvanceClockConcurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const workers = 8
	const advancesEach = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < advancesEach; j++ {
				_, err := db.AdvanceClock(ctx, 15)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	c, err := db.GetClock(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers*advancesEach*15, c.AbsoluteMinute(),
		"no advance is lost or double-applied")
}

func TestNPCRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	npcs := []world.NPC{{
		Name:      "Alice",
		Traits:    []string{"friendly", "curious"},
		Backstory: "A veteran engineer.",
		Position:  world.Position{X: 10, Y: 20, AreaID: "area-1"},
	}}
	require.NoError(t, db.InsertNPCs(ctx, npcs))
	require.NotEmpty(t, npcs[0].ID)

	got, err := db.GetNPC(ctx, npcs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, []string{"friendly", "curious"}, got.Traits)
	assert.Equal(t, world.DefaultWanderChance, got.WanderChance)
	assert.Empty(t, got.CurrentActionID)

	require.NoError(t, db.SetNPCAction(ctx, got.ID, "inst-1",
		&world.Position{X: 5, Y: 6, AreaID: "area-2"}))
	got, err = db.GetNPC(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-1", got.CurrentActionID)
	assert.Equal(t, "area-2", got.Position.AreaID)

	_, err = db.GetNPC(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActionStatusMonotone(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ai := &world.ActionInstance{NPCID: "n1", DefID: "d1", StartMin: 540, DurationMin: 60}
	require.NoError(t, db.InsertActionInstance(ctx, ai))

	require.NoError(t, db.SetActionStatus(ctx, ai.ID, world.ActionActive))
	require.NoError(t, db.SetActionStatus(ctx, ai.ID, world.ActionDone))

	// Backward transitions are silently refused.
	require.NoError(t, db.SetActionStatus(ctx, ai.ID, world.ActionActive))
	got, err := db.GetActionInstance(ctx, ai.ID)
	require.NoError(t, err)
	assert.Equal(t, world.ActionDone, got.Status)

	require.NoError(t, db.SetActionStatus(ctx, ai.ID, world.ActionQueued))
	got, err = db.GetActionInstance(ctx, ai.ID)
	require.NoError(t, err)
	assert.Equal(t, world.ActionDone, got.Status)
}

func TestActionInstancesByIDsOrderAndDangling(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	late := &world.ActionInstance{NPCID: "n1", DefID: "d1", StartMin: 720, DurationMin: 30}
	early := &world.ActionInstance{NPCID: "n1", DefID: "d1", StartMin: 300, DurationMin: 30}
	require.NoError(t, db.InsertActionInstance(ctx, late))
	require.NoError(t, db.InsertActionInstance(ctx, early))

	instances, err := db.ActionInstancesByIDs(ctx, []string{late.ID, "gone", early.ID})
	require.NoError(t, err)
	require.Len(t, instances, 2, "dangling ids are skipped, not errors")
	assert.Equal(t, early.ID, instances[0].ID, "ordered by start_min ascending")
	assert.Equal(t, late.ID, instances[1].ID)
}

func TestPlanUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetPlan(ctx, "n1", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.UpsertPlan(ctx, world.Plan{NPCID: "n1", SimDay: 1, ActionIDs: []string{"a", "b"}}))
	p, err := db.GetPlan(ctx, "n1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.ActionIDs)

	require.NoError(t, db.UpsertPlan(ctx, world.Plan{NPCID: "n1", SimDay: 1, ActionIDs: []string{"a", "c", "d"}}))
	p, err = db.GetPlan(ctx, "n1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, p.ActionIDs, "replan replaces the list")
}

func TestMemoriesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, min := range []int{100, 300, 200} {
		require.NoError(t, db.InsertMemory(ctx, &world.Memory{
			NPCID:      "n1",
			SimMin:     min,
			Kind:       world.MemObservation,
			Content:    "saw something",
			Importance: 2,
			Embedding:  []float32{0.1, 0.2},
		}))
	}

	memories, err := db.RecentMemories(ctx, "n1", 2)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, 300, memories[0].SimMin)
	assert.Equal(t, 200, memories[1].SimMin)
	assert.Equal(t, []float32{0.1, 0.2}, memories[0].Embedding)
}

func TestCooldownSymmetricUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	until, err := db.GetCooldown(ctx, "npc-a", "npc-b")
	require.NoError(t, err)
	assert.Zero(t, until)

	require.NoError(t, db.UpsertCooldown(ctx, "npc-b", "npc-a", 900))

	until, err = db.GetCooldown(ctx, "npc-a", "npc-b")
	require.NoError(t, err)
	assert.Equal(t, 900, until)

	untilRev, err := db.GetCooldown(ctx, "npc-b", "npc-a")
	require.NoError(t, err)
	assert.Equal(t, until, untilRev, "lookup is order-independent")

	// Second dialogue pushes the window forward, one row per pair.
	require.NoError(t, db.UpsertCooldown(ctx, "npc-a", "npc-b", 1500))
	until, err = db.GetCooldown(ctx, "npc-b", "npc-a")
	require.NoError(t, err)
	assert.Equal(t, 1500, until)
}

func TestDialogueRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := &world.Dialogue{NPCA: "a", NPCB: "b", StartMin: 100}
	require.NoError(t, db.InsertDialogue(ctx, d))
	require.NoError(t, db.InsertDialogueTurn(ctx, &world.DialogueTurn{
		DialogueID: d.ID, SpeakerID: "a", SimMin: 100, Text: "Hey there.",
	}))
	require.NoError(t, db.InsertDialogueTurn(ctx, &world.DialogueTurn{
		DialogueID: d.ID, SpeakerID: "b", SimMin: 100, Text: "Oh, hello.",
	}))
	require.NoError(t, db.CloseDialogue(ctx, d.ID, 101))

	turns, err := db.DialogueTurns(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hey there.", turns[0].Text)

	dialogues, err := db.DialoguesForNPC(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, dialogues, 1)
	assert.Equal(t, 101, dialogues[0].EndMin)
}
