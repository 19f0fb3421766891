package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carbsync/carbsync/internal/config"
	"github.com/carbsync/carbsync/internal/logging"
	"github.com/carbsync/carbsync/internal/metrics"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/carbsync/carbsync/internal/syncer"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "carbsync",
		Short:   "Keep meal journals in sync across devices through a shared folder",
		Version: Version,
		Long: `carbsync exchanges foods, meals, favorites and dosing schedules with
other devices through a shared directory. Each device writes its own
snapshot files and merges the files of its peers, newest edit wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newImportCmd(),
		newExportCmd(),
		newFoodsCmd(),
		newMealsCmd(),
		newFavoritesCmd(),
		newScheduleCmd(),
		newOngoingCmd(),
		newFinalizeCmd(),
	)

	return root
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *state.State
	metrics *metrics.Metrics
	engine  *syncer.Engine

	closers []io.Closer
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg}

	if cfg.LogFile != "" {
		logger, closer := logging.NewFileLogger(cfg.Environment, cfg.LogFile)
		a.logger = logger
		a.closers = append(a.closers, closer)
	} else {
		a.logger = logging.NewLogger(cfg.Environment)
	}

	if cfg.StateDB != "" {
		a.store, err = state.LoadAt(cfg.StateDB)
	} else {
		a.store, err = state.Load()
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading state: %w", err)
	}
	a.closers = append(a.closers, a.store)

	a.metrics = metrics.New()
	a.engine = syncer.NewEngine(a.store, nil, syncer.EngineConfig{
		SharedDir:     cfg.SharedDir,
		Device:        cfg.DeviceName,
		IOTimeout:     cfg.IOTimeout,
		PollInterval:  cfg.PollInterval,
		ObserveDevice: cfg.ObserveDevice,
		Metrics:       a.metrics,
	}, a.logger)

	return a, nil
}

// Close releases the store and the log file, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// withApp opens the app for the duration of fn.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, args, a)
	}
}
