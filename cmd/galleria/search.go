package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/galleria/internal/catalog"
	"github.com/vmunix/galleria/internal/config"
	"github.com/vmunix/galleria/internal/logging"
)

var searchCmd = &cobra.Command{
	Use:   "search [flags] [filter]",
	Short: "Search the catalog",
	Long: `Search the catalog with a filter clause.

A clause is a space separated list of category:"a, b" terms; a leading
"-" excludes the values. Categories: artist, character, group, language,
series, tag, type, source, gallery, title, upload_date, pages.

Examples:
  galleria search 'artist:"someone"'
  galleria search 'tag:"female:big breasts" -type:"manga"' --join auto
  galleria search --select gallery_id,title --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearchCmd,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringSlice("select", []string{"gallery_id", "title", "location"}, "Gallery columns to print")
	searchCmd.Flags().String("join", "", `Name columns to add: a category list, "auto" or "*"`)
	searchCmd.Flags().Int("limit", 0, "Maximum rows (0 for all)")
	searchCmd.Flags().Int("offset", 0, "Rows to skip")
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	sel, _ := cmd.Flags().GetStringSlice("select")
	join, _ := cmd.Flags().GetString("join")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	q := catalog.Query{Select: sel, Join: join, Limit: limit, Offset: offset}
	if len(args) > 0 {
		q.Filter = args[0]
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	rows, err := searchCatalog(cmd.Context(), cfg, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No galleries found")
		return nil
	}
	printRows(out, sel, rows)
	return nil
}

// searchCatalog opens the catalog only for the query.
func searchCatalog(ctx context.Context, cfg *config.Config, q catalog.Query) ([]catalog.Row, error) {
	log, closer := logging.New(logging.Config{Level: "warn"}, io.Discard, nil)
	defer closer.Close()

	store, err := catalog.Open(cfg.Database.Path, catalog.Options{CompareLike: cfg.Database.CompareLike},
		logging.For(log, logging.SubsystemExplorer, "", logging.RoleBase))
	if err != nil {
		return nil, err
	}
	defer store.Close(context.WithoutCancel(ctx))
	return store.Lookup(ctx, q)
}

// columns orders the selected columns first, then the remaining ones
// (joined names, or everything for "*") by name.
func columns(sel []string, rows []catalog.Row) []string {
	var cols []string
	known := make(map[string]bool, len(sel))
	for _, c := range sel {
		if _, ok := rows[0][c]; ok && !known[c] {
			known[c] = true
			cols = append(cols, c)
		}
	}
	var extra []string
	for _, r := range rows {
		for k := range r {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func printRows(w io.Writer, sel []string, rows []catalog.Row) {
	cols := columns(sel, rows)
	fmt.Fprintf(w, "Found %d galleries:\n\n", len(rows))
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, " │ ")))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			v, ok := r[c]
			if !ok || v == nil {
				vals[i] = "-"
				continue
			}
			vals[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(vals, " │ "))
	}
}
