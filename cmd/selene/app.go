package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"selene/internal/critique"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/memory"
	"selene/internal/pipeline"
	"selene/internal/provider"
	"selene/internal/router"
	"selene/internal/state"
	"selene/internal/store"
)

const identityID = "selene"

// app wires the full turn pipeline and owns shutdown order.
type app struct {
	store    *store.Store
	registry *identity.Registry
	queue    *critique.Queue
	driver   *pipeline.Driver
}

// buildApp constructs every component from config and starts the
// critique queue.
func buildApp(ctx context.Context) (*app, error) {
	if err := logging.Initialize(cfg.StateDir); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Boot("selene %s starting (state dir: %s)", cfg.Version, cfg.StateDir)

	st, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := provider.NewFromConfig(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	registry, err := loadIdentities()
	if err != nil {
		st.Close()
		return nil, err
	}

	mem := memory.NewProvider(st, cfg.Memory)
	manager := state.NewManager(st, mem)
	rt := router.New(cfg.Router, client, cfg.LLM.ClassifierModel)
	planner := pipeline.NewPlanner(client, cfg.LLM.NanoModel, cfg.Pipeline)
	generator := pipeline.NewGenerator(client, cfg.Pipeline)
	supervisor := pipeline.NewSupervisor(client, cfg.LLM.JudgeModel, cfg.Pipeline)

	queue := critique.NewQueue(st, supervisor, registry, nil, cfg.Critique)
	if err := queue.Start(ctx); err != nil {
		st.Close()
		return nil, err
	}

	// Per-tier model selection. The lookup hook is nil here; deployments
	// with per-user model routing plug one in and the TTL cache bounds it.
	resolver := provider.NewResolver(nil, cfg.LLM.GetResolverTTL(), map[string]provider.Selection{
		"nano": {Provider: cfg.LLM.Provider, Model: cfg.LLM.NanoModel},
		"pro":  {Provider: cfg.LLM.Provider, Model: cfg.LLM.ProModel},
	})

	driver := pipeline.NewDriver(pipeline.DriverDeps{
		Router:     rt,
		Manager:    manager,
		Planner:    planner,
		Generator:  generator,
		Supervisor: supervisor,
		Registry:   registry,
		Store:      st,
		Hints:      queue,
		Critique:   queue,
		Resolver:   resolver,
		LLM:        cfg.LLM,
		Pipeline:   cfg.Pipeline,
	})

	return &app{store: st, registry: registry, queue: queue, driver: driver}, nil
}

// close drains the critique queue, then releases everything else.
func (a *app) close(ctx context.Context) {
	if err := a.queue.Shutdown(ctx); err != nil {
		logging.Boot("critique queue shutdown: %v", err)
	}
	a.registry.Close()
	if err := a.store.Close(); err != nil {
		logging.Boot("store close: %v", err)
	}
	logging.CloseAll()
}

// loadIdentities loads identity documents from the state dir, registers
// the built-in default when none exist, and starts the hot-reload
// watcher.
func loadIdentities() (*identity.Registry, error) {
	registry := identity.NewRegistry()

	dir := filepath.Join(cfg.StateDir, "identity")
	if _, err := os.Stat(dir); err == nil {
		if err := registry.LoadDir(dir); err != nil {
			logging.Identity("failed to load identity dir %s: %v", dir, err)
		}
		if err := registry.Watch(dir); err != nil {
			logging.Identity("identity watcher unavailable: %v", err)
		}
	}

	if _, err := registry.Latest(identityID); err != nil {
		registry.Register(defaultIdentity())
	}
	return registry, nil
}

// defaultIdentity is the built-in document used when the state dir has
// no identity files.
func defaultIdentity() *identity.Document {
	return &identity.Document{
		ID:      identityID,
		Version: 1,
		Traits: []string{
			"warm and attentive",
			"direct without being curt",
			"curious about the user's day-to-day life",
		},
		SharedBaseline: []string{
			"Answer the user's actual question before anything else.",
			"Never invent tool results, calendar entries or search findings.",
			"Admit uncertainty plainly instead of guessing.",
		},
		ModeGuidelines: map[string][]string{
			"assistant": {"Be thorough and structured when the task calls for it."},
			"companion": {"Keep the conversation natural; match the user's energy."},
			"voice":     {"One or two short spoken sentences."},
		},
		BehavioralNorms: []string{
			"Do not repeat the user's message back to them.",
			"Do not open every reply the same way.",
		},
		StyleRules: map[string][]string{
			"assistant": {"Markdown allowed where it helps."},
			"companion": {"Light markdown only."},
			"voice":     {"Plain spoken text, no formatting of any kind."},
		},
		ModeSwitchGuardrail: "Stay in the active mode; never switch modes mid-conversation.",
		Capabilities: []string{
			"research", "search_knowledge", "create_task", "set_reminder", "check_calendar",
		},
		Rubric: []string{
			"The response addresses what the user actually said.",
			"No fabricated tool, search or calendar results.",
			"Tone matches the active mode.",
			"No forbidden formatting in short-form modes.",
		},
	}
}
