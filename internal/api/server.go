// Package api serves the office state over HTTP and streams live events
// over a websocket. GET endpoints are public; POST endpoints require a
// bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/talgya/officeverse/internal/engine"
	"github.com/talgya/officeverse/internal/store"
	"github.com/talgya/officeverse/internal/world"
)

// Server exposes the simulation.
type Server struct {
	DB       *store.DB
	Eng      *engine.Engine
	Hub      *Hub
	Port     int
	AdminKey string // bearer token for POST endpoints; empty disables them
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	tickLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/npcs", s.handleNPCs)
	mux.HandleFunc("/api/v1/npc/", s.handleNPCDetail)
	mux.HandleFunc("/ws", s.Hub.HandleWS)

	mux.HandleFunc("/api/v1/seed", s.adminOnly(s.handleSeed))
	mux.HandleFunc("/api/v1/sim/start", s.adminOnly(s.handleSimStart))
	mux.HandleFunc("/api/v1/sim/stop", s.adminOnly(s.handleSimStop))
	mux.HandleFunc("/api/v1/tick", s.adminOnly(RateLimitMiddleware(tickLimiter, s.handleManualTick)))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, corsMiddleware(mux)); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware allows localhost dev servers plus anything listed in the
// CORS_ORIGINS env var (comma-separated).
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth; these endpoints are POST-only.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no OFFICEVERSE_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clock, err := s.DB.GetClock(ctx)
	if err != nil {
		http.Error(w, "clock unavailable", http.StatusServiceUnavailable)
		return
	}
	areas, err := s.DB.ListAreas(ctx)
	if err != nil {
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}
	objects, _ := s.DB.ListObjects(ctx)
	npcs, _ := s.DB.ListNPCs(ctx)
	events, _ := s.DB.ActiveSimEvents(ctx, clock.AbsoluteMinute())

	writeJSON(w, map[string]any{
		"clock": map[string]any{
			"day":           clock.Day,
			"minute_of_day": clock.MinuteOfDay,
			"label":         clock.String(),
		},
		"tick":          s.Eng.Tick(),
		"paused":        s.Eng.Paused(),
		"areas":         areas,
		"objects":       objects,
		"npcs":          s.npcSummaries(r, npcs),
		"active_events": events,
	})
}

func (s *Server) handleNPCs(w http.ResponseWriter, r *http.Request) {
	npcs, err := s.DB.ListNPCs(r.Context())
	if err != nil {
		http.Error(w, "npcs unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.npcSummaries(r, npcs))
}

type npcSummary struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Traits   []string       `json:"traits"`
	Position world.Position `json:"position"`
	Action   string         `json:"action"`
	Emoji    string         `json:"emoji,omitempty"`
}

func (s *Server) npcSummaries(r *http.Request, npcs []world.NPC) []npcSummary {
	ctx := r.Context()
	defs, _ := s.DB.ListActionDefs(ctx)
	defByID := make(map[string]world.ActionDef, len(defs))
	for _, d := range defs {
		defByID[d.ID] = d
	}

	summaries := make([]npcSummary, 0, len(npcs))
	for _, npc := range npcs {
		sum := npcSummary{
			ID: npc.ID, Name: npc.Name, Traits: npc.Traits,
			Position: npc.Position, Action: "Idle",
		}
		if npc.CurrentActionID != "" {
			if inst, err := s.DB.GetActionInstance(ctx, npc.CurrentActionID); err == nil {
				if def, ok := defByID[inst.DefID]; ok {
					sum.Action = def.Title
					sum.Emoji = def.Emoji
				}
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries
}

// handleNPCDetail returns one NPC with today's schedule, recent memories,
// and recent dialogues.
func (s *Server) handleNPCDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing npc id", http.StatusBadRequest)
		return
	}
	id := parts[4]
	ctx := r.Context()

	npc, err := s.DB.GetNPC(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "npc not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "npc unavailable", http.StatusServiceUnavailable)
		return
	}

	clock, err := s.DB.GetClock(ctx)
	if err != nil {
		http.Error(w, "clock unavailable", http.StatusServiceUnavailable)
		return
	}

	type scheduleEntry struct {
		StartMin int    `json:"start_min"`
		Duration int    `json:"duration_min"`
		Title    string `json:"title"`
		Emoji    string `json:"emoji"`
		Status   string `json:"status"`
	}
	var schedule []scheduleEntry
	if plan, err := s.DB.GetPlan(ctx, id, clock.Day); err == nil {
		defs, _ := s.DB.ListActionDefs(ctx)
		defByID := make(map[string]world.ActionDef, len(defs))
		for _, d := range defs {
			defByID[d.ID] = d
		}
		if instances, err := s.DB.ActionInstancesByIDs(ctx, plan.ActionIDs); err == nil {
			for _, inst := range instances {
				entry := scheduleEntry{
					StartMin: inst.StartMin,
					Duration: inst.DurationMin,
					Status:   string(inst.Status),
				}
				if def, ok := defByID[inst.DefID]; ok {
					entry.Title, entry.Emoji = def.Title, def.Emoji
				}
				schedule = append(schedule, entry)
			}
		}
	}

	memories, _ := s.DB.RecentMemories(ctx, id, 50)
	dialogues, _ := s.DB.DialoguesForNPC(ctx, id, 10)

	writeJSON(w, map[string]any{
		"npc":       npc,
		"day":       clock.Day,
		"schedule":  schedule,
		"memories":  memories,
		"dialogues": dialogues,
	})
}

type seedRequest struct {
	NPCs []struct {
		Name      string   `json:"name"`
		Traits    []string `json:"traits"`
		Backstory string   `json:"backstory"`
		Wander    float64  `json:"wander_probability"`
	} `json:"npcs"`
}

// handleSeed populates the office layout on first call and adds the
// requested NPCs, spread across the areas.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.NPCs) == 0 {
		http.Error(w, "at least one npc required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	areas, err := s.DB.ListAreas(ctx)
	if err != nil {
		http.Error(w, "seed failed", http.StatusInternalServerError)
		return
	}
	if len(areas) == 0 {
		areas = world.DefaultAreas()
		if err := s.DB.InsertAreas(ctx, areas); err != nil {
			slog.Error("area seed failed", "error", err)
			http.Error(w, "seed failed", http.StatusInternalServerError)
			return
		}
		if err := s.DB.InsertObjects(ctx, world.DefaultObjects()); err != nil {
			slog.Error("object seed failed", "error", err)
			http.Error(w, "seed failed", http.StatusInternalServerError)
			return
		}
		if err := s.DB.InsertActionDefs(ctx, world.DefaultActionDefs()); err != nil {
			slog.Error("action seed failed", "error", err)
			http.Error(w, "seed failed", http.StatusInternalServerError)
			return
		}
	}

	npcs := make([]world.NPC, 0, len(req.NPCs))
	for i, in := range req.NPCs {
		if strings.TrimSpace(in.Name) == "" {
			http.Error(w, "npc name required", http.StatusBadRequest)
			return
		}
		area := areas[i%len(areas)]
		if in.Wander <= 0 {
			in.Wander = 0.4
		}
		npcs = append(npcs, world.NPC{
			Name:      in.Name,
			Traits:    in.Traits,
			Backstory: in.Backstory,
			Position: world.Position{
				X:      area.Bounds.X + area.Bounds.W/2,
				Y:      area.Bounds.Y + area.Bounds.H/2,
				AreaID: area.ID,
			},
			WanderChance: in.Wander,
		})
	}
	if err := s.DB.InsertNPCs(ctx, npcs); err != nil {
		slog.Error("npc seed failed", "error", err)
		http.Error(w, "seed failed", http.StatusInternalServerError)
		return
	}

	slog.Info("world seeded", "npcs", len(npcs))
	writeJSON(w, map[string]any{"seeded": len(npcs)})
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	s.Eng.Resume()
	slog.Info("simulation resumed")
	writeJSON(w, map[string]any{"paused": false})
}

func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Pause()
	slog.Info("simulation paused")
	writeJSON(w, map[string]any{"paused": true})
}

// handleManualTick single-steps a paused simulation.
func (s *Server) handleManualTick(w http.ResponseWriter, r *http.Request) {
	if !s.Eng.Paused() {
		http.Error(w, "pause the simulation before stepping", http.StatusConflict)
		return
	}
	s.Eng.AdvanceTick(r.Context())
	clock, err := s.DB.GetClock(r.Context())
	if err != nil {
		http.Error(w, "clock unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"tick":          s.Eng.Tick(),
		"day":           clock.Day,
		"minute_of_day": clock.MinuteOfDay,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
