// Package engine drives the office simulation: a fixed-cadence tick loop
// that advances the clock, runs the action lifecycle for every NPC, and
// layers cognition (planning, reflection, dialogue) and world events on top.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/memory"
	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

// Broadcast event types pushed to connected clients.
const (
	EvTickUpdate       = "tick_update"
	EvActionStart      = "action_start"
	EvSocialEvent      = "social_event"
	EvPlanningEvent    = "planning_event"
	EvReflectionEvent  = "reflection_event"
	EvDialogueEvent    = "dialogue_event"
	EvReplanEvent      = "replan_event"
	EvSimEvent         = "sim_event"
	EvNPCStatusSummary = "npc_status_summary"
	EvFailedParsing    = "failed_parsing"
)

// Broadcaster fans simulation events out to clients. Implementations must
// not block the tick loop.
type Broadcaster interface {
	Publish(eventType string, payload any)
}

// Config holds the timing and probability knobs for the simulation.
type Config struct {
	TickIncrementMin int           // sim-minutes added per tick
	TickInterval     time.Duration // real time per tick
	PlanningMinute   int           // minute-of-day the daily planning window opens
	DialogueChance   float64       // initiation probability once a pair qualifies
	CooldownMinutes  int           // pairwise dialogue cooldown, sim-minutes
	EventChance      float64       // per-tick world event probability
	StatusEvery      uint64        // ticks between npc_status_summary broadcasts
}

// DefaultConfig returns the standard simulation timing.
func DefaultConfig() Config {
	return Config{
		TickIncrementMin: 15,
		TickInterval:     time.Second,
		PlanningMinute:   300,
		DialogueChance:   0.5,
		CooldownMinutes:  480,
		EventChance:      0.05,
		StatusEvery:      10,
	}
}

// Engine runs the simulation loop.
type Engine struct {
	db    *store.DB
	model llm.LanguageModel
	mem   *memory.Index
	bus   Broadcaster
	cfg   Config

	rng *rand.Rand
	mu  sync.Mutex // guards rng, pending, inFlight

	tick    uint64
	running atomic.Bool
	paused  atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	pending  []dialogueRequest
	inFlight map[string]int // npc id -> open dialogue count
}

// snapshot is the per-tick read of world state shared by all sub-steps.
type snapshot struct {
	clock   world.Clock
	npcs    []world.NPC
	areas   map[string]world.Area
	objects map[string]world.Object    // by name
	defs    map[string]world.ActionDef // by title
	defByID map[string]world.ActionDef
}

// New creates an engine. seed fixes the random stream; pass time-based
// entropy in production.
func New(db *store.DB, model llm.LanguageModel, mem *memory.Index, bus Broadcaster, cfg Config, seed int64) *Engine {
	return &Engine{
		db:       db,
		model:    model,
		mem:      mem,
		bus:      bus,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		inFlight: make(map[string]int),
	}
}

// Run starts the tick loop and blocks until Stop is called or ctx is
// cancelled. The simulation starts paused; call Resume to begin ticking.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer close(e.done)
	slog.Info("simulation engine started",
		"tick_increment_min", e.cfg.TickIncrementMin,
		"tick_interval", e.cfg.TickInterval)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.stop:
			e.shutdown()
			return
		case <-ticker.C:
			if e.paused.Load() {
				continue
			}
			e.AdvanceTick(ctx)
		}
	}
}

func (e *Engine) shutdown() {
	e.running.Store(false)
	slog.Info("simulation engine stopped", "tick", atomic.LoadUint64(&e.tick))
}

// Stop halts the loop. Safe to call once.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

// Pause suspends ticking without stopping the loop.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume continues ticking after a pause.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports whether the loop is suspended.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Tick returns the number of ticks processed so far.
func (e *Engine) Tick() uint64 { return atomic.LoadUint64(&e.tick) }

// AdvanceTick runs exactly one simulation step. Exposed so the API can
// single-step a paused simulation. A clock advance failure aborts the whole
// step; every later sub-step fails soft and is isolated per NPC.
func (e *Engine) AdvanceTick(ctx context.Context) {
	clock, err := e.db.AdvanceClock(ctx, e.cfg.TickIncrementMin)
	if err != nil {
		slog.Error("clock advance failed, tick aborted", "error", err)
		return
	}
	tick := atomic.AddUint64(&e.tick, 1)

	snap, err := e.loadSnapshot(ctx, clock)
	if err != nil {
		// The clock already moved; skip the sub-steps but still tell
		// subscribers that time advanced.
		slog.Error("world snapshot failed, sub-steps skipped", "tick", tick, "error", err)
	} else {
		e.runActionLifecycle(ctx, snap)
		e.sampleEncounter(ctx, snap)
		e.drainDialogues(ctx, snap)
		e.runReflection(ctx, snap)
		e.runPlanning(ctx, snap)
		e.runAdherenceAudit(ctx, snap)
		e.runWorldEvents(ctx, snap)
	}

	e.bus.Publish(EvTickUpdate, map[string]any{
		"tick":          tick,
		"day":           clock.Day,
		"minute_of_day": clock.MinuteOfDay,
		"label":         clock.String(),
	})
	if snap != nil && e.cfg.StatusEvery > 0 && tick%e.cfg.StatusEvery == 0 {
		e.broadcastStatusSummary(ctx, snap)
	}
}

func (e *Engine) loadSnapshot(ctx context.Context, clock world.Clock) (*snapshot, error) {
	npcs, err := e.db.ListNPCs(ctx)
	if err != nil {
		return nil, err
	}
	areas, err := e.db.ListAreas(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := e.db.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := e.db.ListActionDefs(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		clock:   clock,
		npcs:    npcs,
		areas:   make(map[string]world.Area, len(areas)),
		objects: make(map[string]world.Object, len(objects)),
		defs:    make(map[string]world.ActionDef, len(defs)),
		defByID: make(map[string]world.ActionDef, len(defs)),
	}
	for _, a := range areas {
		snap.areas[a.ID] = a
	}
	for _, o := range objects {
		snap.objects[o.Name] = o
	}
	for _, d := range defs {
		snap.defs[d.Title] = d
		snap.defByID[d.ID] = d
	}
	return snap, nil
}

// plannableTitles returns the action vocabulary offered to the planner,
// excluding event-only priority actions.
func (s *snapshot) plannableTitles() []string {
	priority := world.PriorityTitles()
	titles := make([]string, 0, len(s.defs))
	for _, d := range s.defs {
		if !priority[d.Title] {
			titles = append(titles, d.Title)
		}
	}
	return titles
}

func (s *snapshot) titleIndex() map[string]string {
	idx := make(map[string]string, len(s.defs))
	priority := world.PriorityTitles()
	for title := range s.defs {
		if !priority[title] {
			idx[strings.ToLower(title)] = title
		}
	}
	return idx
}

func (e *Engine) broadcastStatusSummary(ctx context.Context, snap *snapshot) {
	type status struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Area   string `json:"area"`
		Action string `json:"action"`
		Emoji  string `json:"emoji"`
	}
	summary := make([]status, 0, len(snap.npcs))
	for _, npc := range snap.npcs {
		st := status{ID: npc.ID, Name: npc.Name, Action: "Idle"}
		if area, ok := snap.areas[npc.Position.AreaID]; ok {
			st.Area = area.Name
		}
		if npc.CurrentActionID != "" {
			inst, err := e.db.GetActionInstance(ctx, npc.CurrentActionID)
			if err == nil {
				if def, ok := snap.defByID[inst.DefID]; ok {
					st.Action = def.Title
					st.Emoji = def.Emoji
				}
			}
		}
		summary = append(summary, st)
	}
	e.bus.Publish(EvNPCStatusSummary, map[string]any{
		"day":           snap.clock.Day,
		"minute_of_day": snap.clock.MinuteOfDay,
		"npcs":          summary,
	})
}

// randFloat and randIntn serialize access to the engine's random stream.
func (e *Engine) randFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}
