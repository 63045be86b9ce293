package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flowdeck/flowdeck/internal/automation"
	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/gateway"
	"github.com/flowdeck/flowdeck/internal/notify"
	"github.com/flowdeck/flowdeck/internal/recurrence"
	"github.com/flowdeck/flowdeck/internal/storage"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Flowdeck engine and gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Event bus + audit log
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	eventLog := storage.NewEventLogger(cfg.Events.LogDir, bus)
	defer eventLog.Close()

	// Engine components
	registry := board.NewRegistry()
	store := tasks.NewStore(tasks.Config{
		Board:    registry,
		Bus:      bus,
		Notifier: notify.Multi{notify.LogNotifier{}, notify.BusNotifier{Bus: bus}},
	})
	graph := tasks.NewGraph(store)
	subtasks := tasks.NewSubtasks(store)

	scheduler, err := recurrence.New(recurrence.Config{
		Store:       store,
		Bus:         bus,
		TickCron:    cfg.Scheduler.TickCron,
		DueSoonDays: cfg.Scheduler.DueSoonDays,
	})
	if err != nil {
		return err
	}

	rules := automation.NewEngine(automation.Config{
		Store:    store,
		Bus:      bus,
		Notifier: notify.Multi{notify.LogNotifier{}, notify.BusNotifier{Bus: bus}},
	})

	// Persistence boundary: load the last snapshot, replace engine state.
	snapshots, err := storage.OpenSnapshotStore(cfg.Snapshot.Path)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	state, err := snapshots.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if len(state.Columns) > 0 {
		registry.Load(state.Columns)
	}
	store.Import(state.Tasks)
	scheduler.Import(state.Templates)
	rules.Import(state.Rules)
	slog.Info("snapshot loaded",
		"tasks", len(state.Tasks),
		"templates", len(state.Templates),
		"rules", len(state.Rules),
		"columns", len(state.Columns))

	// Rules bootstrap file supplements whatever the snapshot restored.
	if cfg.Rules.File != "" {
		fileRules, err := automation.LoadRulesFile(cfg.Rules.File)
		if err != nil {
			slog.Warn("rules file not loaded", "path", cfg.Rules.File, "error", err)
		} else {
			for _, r := range fileRules {
				if _, ok := rules.GetRule(r.ID); ok {
					continue
				}
				if _, err := rules.AddRule(r); err != nil {
					slog.Warn("rules file: rule rejected", "name", r.Name, "error", err)
				}
			}
		}
	}

	rules.Start()
	defer rules.Stop()

	scheduler.Start()
	defer scheduler.Stop()

	saveSnapshot := func() {
		err := snapshots.Save(storage.EngineState{
			Tasks:     store.Export(),
			Templates: scheduler.Templates(),
			Rules:     rules.Rules(),
			Columns:   registry.Columns(),
		})
		if err != nil {
			slog.Error("save snapshot", "error", err)
		}
	}

	// Periodic snapshot save
	if cfg.Snapshot.IntervalSec > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Snapshot.IntervalSec) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					saveSnapshot()
				}
			}
		}()
	}

	server := gateway.NewServer(gateway.Config{
		Bus:       bus,
		Store:     store,
		Graph:     graph,
		Subtasks:  subtasks,
		Board:     registry,
		Scheduler: scheduler,
		Rules:     rules,
		Host:      cfg.Gateway.Host,
		Port:      cfg.Gateway.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("gateway shutdown", "error", err)
	}

	saveSnapshot()
	slog.Info("flowdeck stopped")
	return nil
}
