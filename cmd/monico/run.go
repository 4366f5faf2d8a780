package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/monico-sh/monico/pkg/app"
	"github.com/monico-sh/monico/pkg/log"
	"github.com/monico-sh/monico/pkg/metrics"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initializes the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Setup(cmd.Context(), force); err != nil {
				return err
			}
			fmt.Println("Initialized the database")
			return nil
		})
	},
}

var runManagerCmd = &cobra.Command{
	Use:   "run-manager",
	Short: "Starts the manager process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			startMetrics(cmd)
			return a.RunManager(cmd.Context())
		})
	},
}

var runWorkerCmd = &cobra.Command{
	Use:   "run-worker",
	Short: "Starts the worker process",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")

		return withApp(cmd.Context(), func(a *app.App) error {
			startMetrics(cmd)
			return a.RunWorker(cmd.Context(), id)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Starts both manager and worker processes concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker-id")

		return withApp(cmd.Context(), func(a *app.App) error {
			startMetrics(cmd)
			return a.Run(cmd.Context(), workerID)
		})
	},
}

func init() {
	setupCmd.Flags().BoolP("force", "f", false, "Force reinitialization. DANGER: DESTROYS ALL DATA!")

	runWorkerCmd.Flags().String("id", "", "Worker ID")
	runCmd.Flags().StringP("worker-id", "w", "", "Worker ID")

	for _, cmd := range []*cobra.Command{runManagerCmd, runWorkerCmd, runCmd} {
		cmd.Flags().String("metrics-addr", "", "Address to expose Prometheus metrics on (e.g. :9090, disabled when empty)")
	}
}

// startMetrics serves the Prometheus endpoint in the background when
// --metrics-addr is set. Failures are logged, not fatal; monitoring keeps
// running without metrics.
func startMetrics(cmd *cobra.Command) {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics endpoint failed", err)
		}
	}()
}
