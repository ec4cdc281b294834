package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/galleria/internal/app"
	"github.com/vmunix/galleria/internal/events"
	"github.com/vmunix/galleria/internal/gallery"
	"github.com/vmunix/galleria/internal/session"
)

// closeTimeout bounds how long pending catalog writes may take on exit.
const closeTimeout = 30 * time.Second

var downloadCmd = &cobra.Command{
	Use:   "download [flags] <items>...",
	Short: "Download the galleries of comma separated items",
	Long: `Download the galleries of comma separated items.

Examples:
  galleria download -t tag "f:big breasts, full color"
  galleria download -s nhentai -t artist -o week someone
  galleria download -s hitomi -s nhentai -t id 123456`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringSliceP("service", "s", []string{"hitomi"}, "Site(s) to download from")
	downloadCmd.Flags().StringP("type", "t", "tag", "Download type: artist, character, id, group, series, parody, type, tag")
	downloadCmd.Flags().StringP("order", "o", "recent", "Order: recent, today, week, month, year, all time")
	downloadCmd.Flags().BoolP("quiet", "q", false, "Only print the session summary")
}

// buildJobs turns the command line into one job per service.
func buildJobs(services []string, typ, order string, items []string) ([]app.Job, error) {
	dt, err := gallery.ParseDownloadType(typ)
	if err != nil {
		return nil, err
	}
	ord, err := gallery.ParseOrder(order)
	if err != nil {
		return nil, err
	}
	req := session.Request{Items: strings.Join(items, ","), Type: dt, Order: ord}
	if len(gallery.ParseItems(req.Items)) == 0 {
		return nil, session.ErrNoItems
	}

	var jobs []app.Job
	for _, name := range services {
		src, err := gallery.ParseSource(name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, app.Job{Source: src, Request: req})
	}
	return jobs, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	services, _ := cmd.Flags().GetStringSlice("service")
	typ, _ := cmd.Flags().GetString("type")
	order, _ := cmd.Flags().GetString("order")
	quiet, _ := cmd.Flags().GetBool("quiet")

	jobs, err := buildJobs(services, typ, order, args)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	a, err := app.New(cfg, app.Options{Stdout: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	printed := make(chan struct{})
	if quiet {
		close(printed)
	} else {
		sub := a.Bus().SubscribeAll(256)
		go func() {
			defer close(printed)
			for e := range sub {
				printEvent(out, e)
			}
		}()
	}

	results, runErr := a.RunSessions(ctx, jobs)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	closeErr := a.Close(closeCtx)
	<-printed

	if jsonOutput {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printResult(out, r)
		}
	}
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func printResult(w io.Writer, r app.Result) {
	fmt.Fprintf(w, "\n== %s ==\n", r.Job.Source)
	if r.Err != nil {
		fmt.Fprintf(w, "Session failed: %v\n", r.Err)
		return
	}
	if r.Summary.Halted {
		fmt.Fprintln(w, "Session halted after an error, see the log.")
	} else if r.Summary.Cancelled {
		fmt.Fprintln(w, "Session cancelled.")
	}
	fmt.Fprintln(w, r.Summary.Report())
}

// printEvent renders the session events a user follows on a terminal.
func printEvent(w io.Writer, e events.Event) {
	if line, ok := formatEvent(e); ok {
		fmt.Fprintln(w, line)
	}
}

func formatEvent(e events.Event) (string, bool) {
	prefix := "[" + e.ServiceName() + "] "
	switch ev := e.(type) {
	case *events.SessionStarted:
		return prefix + fmt.Sprintf("session started: %s %s", ev.DownloadType, strings.Join(ev.Items, ", ")), true
	case *events.SessionEnded:
		if ev.Cancelled {
			return prefix + "session cancelled", true
		}
		return prefix + "session ended", true
	case *events.ItemStatusChanged:
		if ev.Status == "invalid" || ev.Status == "completed" {
			return prefix + fmt.Sprintf("item %q %s", ev.Item, ev.Status), true
		}
	case *events.GalleryFiltered:
		return prefix + fmt.Sprintf("gallery %d filtered: %s", ev.EntityID(), ev.Reason), true
	case *events.GallerySkipped:
		return prefix + fmt.Sprintf("gallery %d skipped: %s", ev.EntityID(), ev.Reason), true
	case *events.FileCompleted:
		if ev.Existing {
			return prefix + fmt.Sprintf("  %s already on disk", ev.Filename), true
		}
		return prefix + fmt.Sprintf("  %s %s", ev.Filename, humanize.Bytes(uint64(max(ev.Bytes, 0)))), true
	case *events.GalleryCompleted:
		return prefix + fmt.Sprintf("gallery %d done: %s (%d files)", ev.EntityID(), ev.Title, ev.Files), true
	case *events.NetworkStateChanged:
		if ev.EventType() == events.EventDisconnected {
			return prefix + "network lost, waiting to reconnect", true
		}
		return prefix + "network restored", true
	}
	return "", false
}
