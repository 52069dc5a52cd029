package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aineurostream/synchro/devicemgr"
)

func main() {
	var (
		graphPath  = flag.String("graph", "", "path to the run's graph config YAML (nodes, edges, settings)")
		workingDir = flag.String("working-dir", ".", "directory substituted for $WORKING_DIR in output paths")
		logLevel   = flag.String("log-level", "", "debug|info|warn|error (defaults to the saved preference)")
		logJSON    = flag.Bool("log-json", false, "emit logs as JSON instead of text")
		listDevs   = flag.Bool("list-devices", false, "list audio devices and exit")
	)
	flag.Parse()

	prefs := LoadConfig()
	if *logLevel != "" {
		prefs.LogLevel = *logLevel
	}

	logger := slog.New(newHandler(*logJSON, prefs.LogLevel))
	slog.SetDefault(logger)

	app := NewApp(logger, prefs)
	if err := app.startup(); err != nil {
		logger.Error("startup failed", "component", "main", "err", err)
		os.Exit(1)
	}
	defer app.shutdown()

	if *listDevs {
		listDevices(logger)
		return
	}

	if *graphPath == "" {
		*graphPath = prefs.LastGraphConfig
	}
	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "error: -graph is required (no last_graph_config saved)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("received shutdown signal", "component", "main", "signal", sig.String())
		cancel()
	}()

	prefs.LastGraphConfig = *graphPath
	_ = SaveConfig(prefs)

	if err := app.Run(ctx, *graphPath, *workingDir); err != nil {
		logger.Error("graph run failed", "component", "main", "err", err)
		os.Exit(1)
	}
}

func newHandler(json bool, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if json {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func listDevices(log *slog.Logger) {
	for _, d := range devicemgr.ListInputDevices(log) {
		fmt.Printf("input  %3d  %-40s  ch=%d  rate=%.0f\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	for _, d := range devicemgr.ListOutputDevices(log) {
		fmt.Printf("output %3d  %-40s  ch=%d  rate=%.0f\n", d.ID, d.Name, d.MaxOutputChannels, d.DefaultSampleRate)
	}
}
