package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/aineurostream/synchro/events"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/graph/builder"
	"github.com/aineurostream/synchro/internal/config"
)

// App owns one graph run end to end: loading the RunConfig, building the
// node set, and driving the graph.Manager through its lifecycle. Keep this
// struct thin — delegate to graph.Manager and graph/builder.
type App struct {
	log   *slog.Logger
	bus   *events.Bus
	prefs config.Config

	workingDir string

	mgr *graph.Manager
}

// NewApp creates a new App using log for its own diagnostics and the run's
// event bus.
func NewApp(log *slog.Logger, prefs config.Config) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		log:   log,
		bus:   events.New(log),
		prefs: prefs,
	}
}

// startup initializes PortAudio, mirroring the device-lifecycle shape the
// original voice client used before it is ever asked to open a stream.
func (a *App) startup() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("app: portaudio init: %w", err)
	}
	return nil
}

// shutdown stops any running graph and releases PortAudio.
func (a *App) shutdown() {
	if a.mgr != nil {
		a.mgr.Stop()
	}
	if err := portaudio.Terminate(); err != nil {
		a.log.Error("portaudio terminate", "component", "app", "err", err)
	}
}

// Run loads configPath, builds the graph it describes, and executes it until
// ctx is cancelled or the configured run_time_seconds elapses. Run blocks
// until the graph has fully stopped; it does not stop on its own when the
// graph's sources run dry.
func (a *App) Run(ctx context.Context, configPath, workingDir string) error {
	a.workingDir = workingDir

	run, err := graph.LoadRunConfig(configPath, workingDir)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}

	eventsCb := func(nodeName, eventType string, payload events.Context) {
		a.bus.Publish(eventType, nodeName, payload)
	}

	nodes, edges, err := builder.Build(run.Graph, run.Settings, run.Neural, eventsCb, workingDir, a.log)
	if err != nil {
		return fmt.Errorf("app: build graph: %w", err)
	}

	a.log.Info("graph run starting",
		"component", "app",
		"run_id", a.bus.RunID(),
		"name", run.Settings.Name,
		"nodes", len(nodes),
		"edges", len(edges))

	a.mgr = graph.NewManager(nodes, edges, run.Settings, a.bus, a.log)
	if err := a.mgr.Execute(ctx); err != nil {
		return fmt.Errorf("app: execute graph: %w", err)
	}

	select {
	case <-ctx.Done():
		a.mgr.Stop()
	case <-a.mgr.Done():
	}
	a.log.Info("graph run stopped", "component", "app", "run_id", a.bus.RunID())
	return nil
}

// Bus exposes the run's event bus so callers can subscribe before Run starts
// publishing.
func (a *App) Bus() *events.Bus { return a.bus }
