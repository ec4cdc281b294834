package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/galleria/internal/app"
	"github.com/vmunix/galleria/internal/events"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded session events",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Duration("since", 24*time.Hour, "How far back to look")
	historyCmd.Flags().StringP("service", "s", "", "Only events of this service")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	since, _ := cmd.Flags().GetDuration("since")
	service, _ := cmd.Flags().GetString("service")

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.Options{Stdout: io.Discard})
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(cmd.Context()))

	history, err := a.History(cmd.Context(), time.Now().Add(-since))
	if err != nil {
		return err
	}
	shown := []events.Event{}
	for _, e := range history {
		if service == "" || e.ServiceName() == service {
			shown = append(shown, e)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, shown)
	}
	if len(shown) == 0 {
		fmt.Fprintln(out, "No events recorded")
		return nil
	}
	for _, e := range shown {
		if line, ok := formatEvent(e); ok {
			fmt.Fprintf(out, "%s %s\n", e.OccurredAt().Local().Format(time.DateTime), line)
		}
	}
	return nil
}
