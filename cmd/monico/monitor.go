package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/monico-sh/monico/pkg/app"
	"github.com/monico-sh/monico/pkg/types"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a new monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		interval, _ := cmd.Flags().GetInt("interval")
		bodyRegexp, _ := cmd.Flags().GetString("body-regexp")

		return withApp(cmd.Context(), func(a *app.App) error {
			monitor, err := a.CreateMonitor(cmd.Context(), id, name, endpoint, interval, bodyRegexp)
			if err != nil {
				return err
			}
			fmt.Printf("Added monitor %s for %q every %d seconds\n",
				monitor.Name, monitor.Endpoint, monitor.Interval)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists configured monitors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			monitors, err := a.ListMonitors(cmd.Context())
			if err != nil {
				return err
			}
			printMonitors(monitors)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Deletes a monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")

		return withApp(cmd.Context(), func(a *app.App) error {
			if _, err := a.DeleteMonitor(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Removed monitor %s\n", id)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Displays status of a monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		live, _ := cmd.Flags().GetBool("live")
		numberOfProbes, _ := cmd.Flags().GetInt("number-of-probes")
		if numberOfProbes < 1 || numberOfProbes > 100 {
			return fmt.Errorf("number of probes must be between 1 and 100, got %d", numberOfProbes)
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			if live {
				return statusLive(cmd, a, id, numberOfProbes)
			}
			return statusStatic(cmd, a, id, numberOfProbes)
		})
	},
}

func init() {
	createCmd.Flags().String("id", "", "ID of the monitor")
	createCmd.Flags().String("name", "", "Name of the monitor")
	createCmd.Flags().String("endpoint", "", "URL to monitor")
	createCmd.Flags().Int("interval", 60, "Monitoring interval in seconds")
	createCmd.Flags().String("body-regexp", "", "Regular expression to match in the response body")
	createCmd.MarkFlagRequired("name")     //nolint:errcheck
	createCmd.MarkFlagRequired("endpoint") //nolint:errcheck

	deleteCmd.Flags().String("id", "", "ID of the monitor")
	deleteCmd.MarkFlagRequired("id") //nolint:errcheck

	statusCmd.Flags().String("id", "", "ID of the monitor")
	statusCmd.Flags().BoolP("live", "l", false, "Live output, refreshed every second")
	statusCmd.Flags().IntP("number-of-probes", "n", 10, "Number of probes to display (1-100)")
	statusCmd.MarkFlagRequired("id") //nolint:errcheck
}

func printMonitors(monitors []*types.Monitor) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENDPOINT\tINTERVAL")
	for _, monitor := range monitors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			monitor.ID, monitor.Name, monitor.Endpoint,
			secondsToHuman(monitor.Interval))
	}
	w.Flush() //nolint:errcheck
}

func printStatus(monitor *types.Monitor, probes []*types.Probe, numberOfProbes int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Monitor ID\t%s\n", monitor.ID)
	fmt.Fprintf(w, "Name\t%s\n", monitor.Name)
	fmt.Fprintf(w, "Endpoint\t%s\n", monitor.Endpoint)
	bodyRegexp := "None"
	if monitor.BodyRegexp != "" {
		bodyRegexp = monitor.BodyRegexp
	}
	fmt.Fprintf(w, "Body Regexp\t%s\n", bodyRegexp)
	fmt.Fprintf(w, "Interval\t%s\n", secondsToHuman(monitor.Interval))
	w.Flush() //nolint:errcheck

	fmt.Printf("\nLast %d probes:\n", numberOfProbes)
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRESPONSE TIME\tRESPONSE CODE\tRESPONSE ERROR\tCONTENT MATCH")
	// probes arrive newest first; render oldest first so the latest probe
	// ends up at the bottom of the terminal
	for i := len(probes) - 1; i >= 0; i-- {
		probe := probes[i]
		code := ""
		if probe.ResponseCode != nil {
			code = fmt.Sprintf("%d", *probe.ResponseCode)
		}
		responseError := ""
		if probe.ResponseError != nil {
			responseError = string(*probe.ResponseError)
		}
		contentMatch := ""
		if probe.ContentMatch != nil {
			contentMatch = *probe.ContentMatch
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			timestampToHuman(probe.Timestamp),
			secondsToHumanFloat(probe.ResponseTime),
			code, responseError, contentMatch)
	}
	w.Flush() //nolint:errcheck
}

func statusStatic(cmd *cobra.Command, a *app.App, id string, numberOfProbes int) error {
	monitor, probes, err := a.Status(cmd.Context(), id, numberOfProbes)
	if err != nil {
		return err
	}
	printStatus(monitor, probes, numberOfProbes)
	return nil
}

func statusLive(cmd *cobra.Command, a *app.App, id string, numberOfProbes int) error {
	fmt.Println("Press Ctrl+C to exit")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		monitor, probes, err := a.Status(cmd.Context(), id, numberOfProbes)
		if err != nil {
			return err
		}
		fmt.Println()
		printStatus(monitor, probes, numberOfProbes)

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}
