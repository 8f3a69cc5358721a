// Package memory implements weighted retrieval over an NPC's memory stream.
// Retrieval scores each candidate on recency, importance, and semantic
// relevance to a query, with weights that differ by what the caller is
// doing with the result.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

const (
	// fetchLimit caps how many recent memories are considered per retrieval.
	fetchLimit = 400
	// recencyTau is the exponential decay constant, one sim day in minutes.
	recencyTau = 1440.0
	// topK is how many scored memories make it into the digest.
	topK = 20
)

// Mode selects the scoring weights for a retrieval.
type Mode int

const (
	ModePlanning Mode = iota
	ModeReflection
	ModeDialogue
)

type weights struct{ recency, importance, relevance float64 }

func (m Mode) weights() weights {
	switch m {
	case ModeReflection:
		return weights{0.3, 0.5, 0.2}
	case ModeDialogue:
		return weights{0.1, 0.2, 0.7}
	default:
		return weights{0.2, 0.4, 0.4}
	}
}

// Sentinel digests returned instead of an empty string so prompts always
// have something to interpolate.
const (
	NoMemories    = "No memories found."
	NoQueryVector = "Could not generate query embedding."
)

// Index retrieves and scores memories for prompt construction.
type Index struct {
	db  *store.DB
	llm llm.LanguageModel
}

func NewIndex(db *store.DB, model llm.LanguageModel) *Index {
	return &Index{db: db, llm: model}
}

// Retrieve returns a newline-joined digest of the top-scoring memories for
// npcID against the query, scored per mode. now is the absolute sim
// minute used for recency decay.
func (idx *Index) Retrieve(ctx context.Context, npcID, query string, mode Mode, now int) string {
	memories, err := idx.db.RecentMemories(ctx, npcID, fetchLimit)
	if err != nil {
		slog.Error("memory fetch failed", "npc_id", npcID, "error", err)
		return NoMemories
	}
	if len(memories) == 0 {
		return NoMemories
	}

	queryVec, err := idx.llm.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed", "npc_id", npcID, "error", err)
		return NoQueryVector
	}

	w := mode.weights()
	type scored struct {
		mem   world.Memory
		score float64
	}
	ranked := make([]scored, 0, len(memories))
	for _, mem := range memories {
		if mem.Content == "" || len(mem.Embedding) == 0 {
			continue // unembedded memories never enter a digest
		}
		recency := math.Exp(-float64(now-mem.SimMin) / recencyTau)
		importance := float64(mem.Importance-1) / 4.0
		relevance := Cosine(queryVec, mem.Embedding)
		s := w.recency*recency + w.importance*importance + w.relevance*relevance
		ranked = append(ranked, scored{mem: mem, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) == 0 {
		return NoMemories
	}

	n := len(ranked)
	if n > topK {
		n = topK
	}
	lines := make([]string, 0, n)
	for _, r := range ranked[:n] {
		lines = append(lines, r.mem.Content)
	}
	return strings.Join(lines, "\n")
}

// Record embeds and stores a single memory for an NPC. Embedding failures
// are tolerated; the memory is stored without a vector and stays out of
// retrieval digests until re-embedded.
func (idx *Index) Record(ctx context.Context, npcID string, kind world.MemoryKind, content string, importance, simMin int) error {
	embedding, err := idx.llm.Embed(ctx, content)
	if err != nil {
		slog.Warn("memory embedding failed", "npc_id", npcID, "error", err)
		embedding = nil
	}
	mem := world.Memory{
		NPCID:      npcID,
		Kind:       kind,
		Content:    content,
		Importance: importance,
		SimMin:     simMin,
		Embedding:  embedding,
	}
	if err := idx.db.InsertMemory(ctx, &mem); err != nil {
		return fmt.Errorf("record memory: %w", err)
	}
	return nil
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, mismatched in length, or all zeros.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
