package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

type stubModel struct {
	vectors map[string][]float32
	embErr  error
}

func (s *stubModel) Complete(_ context.Context, _, _ string, _ int) (string, error) {
	return "", errors.New("not used")
}

func (s *stubModel) Embed(_ context.Context, text string) ([]float32, error) {
	if s.embErr != nil {
		return nil, s.embErr
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCosine(t *testing.T) {
	v := []float32{0.3, -0.5, 0.8}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)

	neg := []float32{-0.3, 0.5, -0.8}
	assert.InDelta(t, -1.0, Cosine(v, neg), 1e-9)

	assert.Zero(t, Cosine(v, []float32{0, 0, 0}))
	assert.Zero(t, Cosine(nil, v))
	assert.Zero(t, Cosine(v, []float32{1, 2}))
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestRetrieveEmptyStream(t *testing.T) {
	db := openTestDB(t)
	idx := NewIndex(db, &stubModel{})
	got := idx.Retrieve(context.Background(), "npc-1", "anything", ModePlanning, 100)
	assert.Equal(t, NoMemories, got)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertMemory(ctx, &world.Memory{
		NPCID: "npc-1", Kind: world.MemObservation, Content: "saw the printer jam",
		Importance: 1, SimMin: 10, Embedding: []float32{1, 0, 0},
	}))

	idx := NewIndex(db, &stubModel{embErr: errors.New("api down")})
	got := idx.Retrieve(ctx, "npc-1", "printers", ModePlanning, 100)
	assert.Equal(t, NoQueryVector, got)
}

func TestRetrieveRanksRelevanceInDialogueMode(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Same recency and importance; only relevance differs.
	require.NoError(t, db.InsertMemories(ctx, []*world.Memory{
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "coffee machine broke",
			Importance: 2, SimMin: 50, Embedding: []float32{1, 0, 0}},
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "filed a report",
			Importance: 2, SimMin: 50, Embedding: []float32{0, 1, 0}},
	}))

	model := &stubModel{vectors: map[string][]float32{"coffee": {1, 0, 0}}}
	idx := NewIndex(db, model)
	got := idx.Retrieve(ctx, "npc-1", "coffee", ModeDialogue, 100)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "coffee machine broke", lines[0])
	assert.Equal(t, "filed a report", lines[1])
}

func TestRetrieveRecencyDecay(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Identical relevance and importance; the newer memory must rank first.
	require.NoError(t, db.InsertMemories(ctx, []*world.Memory{
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "stale",
			Importance: 3, SimMin: 0, Embedding: []float32{1, 0, 0}},
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "fresh",
			Importance: 3, SimMin: 2000, Embedding: []float32{1, 0, 0}},
	}))

	idx := NewIndex(db, &stubModel{})
	got := idx.Retrieve(ctx, "npc-1", "query", ModePlanning, 2100)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "fresh", lines[0])
}

func TestRetrieveSkipsUnembeddedMemories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertMemories(ctx, []*world.Memory{
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "never embedded",
			Importance: 5, SimMin: 99},
		{NPCID: "npc-1", Kind: world.MemObservation, Content: "embedded",
			Importance: 1, SimMin: 10, Embedding: []float32{1, 0, 0}},
	}))

	idx := NewIndex(db, &stubModel{})
	got := idx.Retrieve(ctx, "npc-1", "query", ModePlanning, 100)
	assert.Equal(t, "embedded", got)

	// A stream holding only unembedded memories digests to nothing.
	require.NoError(t, db.InsertMemory(ctx, &world.Memory{
		NPCID: "npc-2", Kind: world.MemObservation, Content: "also never embedded",
		Importance: 3, SimMin: 50,
	}))
	assert.Equal(t, NoMemories, idx.Retrieve(ctx, "npc-2", "query", ModePlanning, 100))
}

func TestRecordSurvivesEmbeddingFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	idx := NewIndex(db, &stubModel{embErr: errors.New("api down")})
	require.NoError(t, idx.Record(ctx, "npc-1", world.MemObservation, "something happened", 2, 30))

	mems, err := db.RecentMemories(ctx, "npc-1", 10)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "something happened", mems[0].Content)
	assert.Empty(t, mems[0].Embedding)
}
