package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/vmunix/galleria/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate configuration file",
	Long:  "Validates syntax, required fields and environment variable substitution without downloading anything.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigCheck,
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configShowCmd)
}

func configFromArgs(args []string) (*config.Config, string, error) {
	if len(args) > 0 {
		configPath = args[0]
	}
	return loadConfig()
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, path, err := configFromArgs(args)
	if path != "" {
		fmt.Fprintf(out, "Validating %s...\n\n", path)
	}
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			printConfigErrors(out, cfgErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(out, cfg)
	fmt.Fprintln(out, "\nConfiguration valid!")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := configFromArgs(args)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), cfg)
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		fmt.Fprintln(w)
	}
	if len(e.Errors) > 0 {
		fmt.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "  - %s\n", err)
		}
		fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration Summary:")
	fmt.Fprintf(w, "  Log:        %s", cfg.Log.Level)
	if cfg.Log.File != "" {
		fmt.Fprintf(w, " (file: %s)", cfg.Log.File)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Catalog:    %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  Downloads:  %s\n", cfg.Download.Root)
	fmt.Fprintf(w, "  Network:    cooldown %s, retry %s, timeout %s\n",
		cfg.Network.RequestCooldown.Duration, cfg.Network.RetryCooldown.Duration, cfg.Network.ReplyTimeout.Duration)

	services := make([]string, 0, len(cfg.Services))
	for name := range cfg.Services {
		services = append(services, name)
	}
	sort.Strings(services)
	if len(services) > 0 {
		fmt.Fprintf(w, "  Formats:    %s\n", strings.Join(services, ", "))
	}

	var rules []string
	if n := len(cfg.Filter.LanguagesInclude); n > 0 {
		rules = append(rules, fmt.Sprintf("%d languages", n))
	}
	if n := len(cfg.Filter.TagsBlacklist); n > 0 {
		rules = append(rules, fmt.Sprintf("%d blacklisted tags", n))
	}
	if n := len(cfg.Filter.TypesBlacklist); n > 0 {
		rules = append(rules, fmt.Sprintf("%d blacklisted types", n))
	}
	if len(rules) > 0 {
		fmt.Fprintf(w, "  Filter:     %s\n", strings.Join(rules, ", "))
	}
}
