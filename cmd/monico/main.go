package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monico-sh/monico/pkg/app"
	"github.com/monico-sh/monico/pkg/config"
	"github.com/monico-sh/monico/pkg/log"
	"github.com/monico-sh/monico/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "monico",
	Short: "Monico - Minimal self-hosted HTTP endpoint monitoring",
	Long: `Monico monitors HTTP endpoints at fixed intervals and records
response time, status code and an optional body-regexp match for each probe.

A manager process schedules the probes and any number of worker processes
execute them; they coordinate only through the shared database, so scaling
out is a matter of starting more workers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Monico version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(runManagerCmd)
	rootCmd.AddCommand(runWorkerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Monico version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

// newApp loads the configuration, initializes logging and returns a connected
// App. The caller is responsible for Shutdown.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{Level: log.ParseLevel(cfg.LogLevel)})

	var store storage.Store
	if cfg.PostgresURI != "" {
		store = storage.NewPostgresStore(cfg.PostgresURI, storage.DefaultPrefix)
	} else {
		store = storage.NewSQLiteStore(cfg.SQLiteURI, storage.DefaultPrefix)
	}

	a := app.New(store)
	if err := a.Connect(ctx); err != nil {
		return nil, adaptError(err)
	}
	return a, nil
}

// adaptError rewrites low-level storage failures into actionable CLI
// messages; everything else passes through.
func adaptError(err error) error {
	if errors.Is(err, storage.ErrConnection) {
		return errors.New("failed to connect to storage backend, please check your configuration")
	}
	return err
}

// withApp runs fn against a connected App and tears it down afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown() //nolint:errcheck
	return adaptError(fn(a))
}
