// Package world provides the simulation data model: NPCs, areas, actions,
// plans, memories, dialogues, and the simulation clock.
package world

// Position is a point inside an area.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	AreaID string  `json:"area_id"`
}

// Bounds is the rectangular extent of an area.
type Bounds struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether the point (x, y) lies within the bounds.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// NPC is a simulated character. Position and CurrentActionID are mutated
// every tick by the action lifecycle; the rest is set at seed time.
type NPC struct {
	ID              string   `json:"id" db:"id"`
	Name            string   `json:"name" db:"name"`
	Traits          []string `json:"traits"`
	Backstory       string   `json:"backstory" db:"backstory"`
	Position        Position `json:"position"`
	CurrentActionID string   `json:"current_action_id,omitempty" db:"current_action_id"` // empty = idle
	WanderChance    float64  `json:"wander_probability" db:"wander_probability"`
}

// DefaultWanderChance is used when a seeded NPC carries no wander
// probability of its own.
const DefaultWanderChance = 0.4

// Area is a named region of the map. Static after seeding.
type Area struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Bounds Bounds `json:"bounds"`
}

// Object is an anchor location inside an area ("PC", "Bed", ...). Actions
// bound to an object relocate the NPC into the object's area.
type Object struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	AreaID string `json:"area_id" db:"area_id"`
}

// ActionDef is a catalog entry. Titles are the only action vocabulary the
// language model may use; plan lines naming anything else are rejected.
type ActionDef struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Emoji       string `json:"emoji" db:"emoji"`
	BaseMinutes int    `json:"base_minutes" db:"base_minutes"`
}

// ActionStatus is the lifecycle state of an action instance. Transitions
// are monotone: queued → active → done, never backward.
type ActionStatus string

const (
	ActionQueued ActionStatus = "queued"
	ActionActive ActionStatus = "active"
	ActionDone   ActionStatus = "done"
)

// ActionInstance is one concrete scheduled activity for one NPC.
type ActionInstance struct {
	ID          string       `json:"id" db:"id"`
	NPCID       string       `json:"npc_id" db:"npc_id"`
	DefID       string       `json:"def_id" db:"def_id"`
	ObjectID    string       `json:"object_id,omitempty" db:"object_id"` // optional anchor
	StartMin    int          `json:"start_min" db:"start_min"`           // minute-of-day, 0–1439
	DurationMin int          `json:"duration_min" db:"duration_min"`
	Status      ActionStatus `json:"status" db:"status"`
}

// StartAbsolute returns the absolute minute this instance begins on the
// given sim day.
func (ai ActionInstance) StartAbsolute(day int) int {
	return (day-1)*MinutesPerDay + ai.StartMin
}

// Plan is one NPC's ordered schedule for one sim day, stored as the list
// of action instance ids. Replanning swaps the not-yet-started tail.
type Plan struct {
	NPCID     string   `json:"npc_id" db:"npc_id"`
	SimDay    int      `json:"sim_day" db:"sim_day"`
	ActionIDs []string `json:"actions"`
}

// MemoryKind classifies an episodic memory record.
type MemoryKind string

const (
	MemObservation     MemoryKind = "obs"
	MemPlan            MemoryKind = "plan"
	MemReflection      MemoryKind = "reflect"
	MemReplan          MemoryKind = "replan"
	MemDialogueSummary MemoryKind = "dialogue_summary"
)

// Memory is an append-only episodic record. Immutable once written.
type Memory struct {
	ID         string     `json:"id" db:"id"`
	NPCID      string     `json:"npc_id" db:"npc_id"`
	SimMin     int        `json:"sim_min" db:"sim_min"` // absolute minute
	Kind       MemoryKind `json:"kind" db:"kind"`
	Content    string     `json:"content" db:"content"`
	Importance int        `json:"importance" db:"importance"` // 1–5
	Embedding  []float32  `json:"-"`
}

// Dialogue groups an ordered sequence of turns between exactly two NPCs.
type Dialogue struct {
	ID       string `json:"id" db:"id"`
	NPCA     string `json:"npc_a" db:"npc_a"`
	NPCB     string `json:"npc_b" db:"npc_b"`
	StartMin int    `json:"start_min" db:"start_min"`
	EndMin   int    `json:"end_min" db:"end_min"` // 0 while open
}

// DialogueTurn is a single utterance within a dialogue.
type DialogueTurn struct {
	ID         string `json:"id" db:"id"`
	DialogueID string `json:"dialogue_id" db:"dialogue_id"`
	SpeakerID  string `json:"speaker_id" db:"speaker_id"`
	SimMin     int    `json:"sim_min" db:"sim_min"`
	Text       string `json:"text" db:"text"`
}

// DialogueCooldown blocks a pair of NPCs from starting a new dialogue
// before CooldownUntil (absolute minute). Keyed by the canonical pair.
type DialogueCooldown struct {
	PairKey       string `json:"pair_key" db:"pair_key"`
	CooldownUntil int    `json:"cooldown_until" db:"cooldown_until"`
}

// CanonicalPair orders two NPC ids lexicographically so (a,b) and (b,a)
// map to one identity for cooldown keying.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairKey returns the canonical storage key for a pair of NPC ids.
func PairKey(a, b string) string {
	lo, hi := CanonicalPair(a, b)
	return lo + "|" + hi
}

// SimEvent is a transient world event. Read-only once created; expiry is
// implicit via EndMin.
type SimEvent struct {
	ID       string            `json:"id" db:"id"`
	Type     string            `json:"type" db:"type"`
	StartMin int               `json:"start_min" db:"start_min"`
	EndMin   int               `json:"end_min" db:"end_min"`
	Metadata map[string]string `json:"metadata"`
}
