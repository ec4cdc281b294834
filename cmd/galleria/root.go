package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vmunix/galleria/internal/config"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "galleria",
	Short: "Download and catalog galleries from hitomi.la and nhentai.net",
	Long: `galleria - gallery downloader with a local catalog

Resolves artists, tags, groups and other items into galleries, downloads
their files with resume support and records their metadata in a SQLite
catalog that can be searched with filter clauses.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: discovered)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("galleria {{.Version}}\n")
}

// loadConfig loads the --config file, or the discovered one.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		p, err := config.Discover()
		if err != nil {
			return nil, "", fmt.Errorf("%w (run 'galleria init' to create one)", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
