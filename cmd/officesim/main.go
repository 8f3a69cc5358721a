// Command officesim runs the Officeverse NPC simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/officeverse/internal/api"
	"github.com/talgya/officeverse/internal/config"
	"github.com/talgya/officeverse/internal/engine"
	"github.com/talgya/officeverse/internal/llm"
	"github.com/talgya/officeverse/internal/memory"
	"github.com/talgya/officeverse/internal/store"
)

func main() {
	configPath := flag.String("config", "officeverse.toml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := store.OpenWithPermits(cfg.Database.Path, cfg.Database.Permits)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	// ── LLM Client ────────────────────────────────────────────────────
	model := llm.NewClient(llm.Options{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		CallsPerMinute: cfg.LLM.CallsPerMinute,
	})
	if model.Enabled() {
		slog.Info("LLM client enabled", "model", cfg.LLM.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set, planning, reflection, and dialogue disabled")
	}

	// ── Engine ────────────────────────────────────────────────────────
	wsHub := api.NewHub()
	eng := engine.New(db, model, memory.NewIndex(db, model),
		wsHub, engine.Config{
			TickIncrementMin: cfg.Sim.TickIncrementMin,
			TickInterval:     time.Duration(cfg.Sim.TickIntervalSec * float64(time.Second)),
			PlanningMinute:   cfg.Sim.PlanningMinute,
			DialogueChance:   cfg.Sim.DialogueChance,
			CooldownMinutes:  cfg.Sim.CooldownMinutes,
			EventChance:      cfg.Sim.EventChance,
			StatusEvery:      cfg.Sim.StatusEvery,
		}, time.Now().UnixNano())

	// An empty office has nothing to simulate; wait for a seed call.
	ctx := context.Background()
	npcs, err := db.ListNPCs(ctx)
	if err != nil {
		slog.Error("failed to read world state", "error", err)
		os.Exit(1)
	}
	if len(npcs) == 0 {
		eng.Pause()
		slog.Info("no NPCs yet, starting paused; seed via POST /api/v1/seed then /api/v1/sim/start")
	} else {
		slog.Info("world loaded", "npcs", len(npcs))
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("OFFICEVERSE_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	srv := &api.Server{
		DB:       db,
		Eng:      eng,
		Hub:      wsHub,
		Port:     cfg.Server.Port,
		AdminKey: cfg.Server.AdminKey,
	}
	srv.Start()

	// ── Run ───────────────────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	fmt.Printf("Officeverse is open: %d NPCs on the floor.\n", len(npcs))
	fmt.Printf("API: http://localhost:%d/api/v1/state  WS: ws://localhost:%d/ws\n",
		cfg.Server.Port, cfg.Server.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	eng.Run(runCtx)
	fmt.Println("Simulation stopped.")
}
