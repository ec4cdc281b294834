// Package config handles TOML (or JSON) configuration loading with
// environment variable substitution.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vmunix/galleria/internal/gallery"
)

// Config is the root configuration structure.
type Config struct {
	Log      LogConfig                `toml:"log" json:"log"`
	Database DatabaseConfig           `toml:"database" json:"database"`
	Network  NetworkConfig            `toml:"network" json:"network"`
	Download DownloadConfig           `toml:"download" json:"download"`
	Filter   FilterConfig             `toml:"filter" json:"filter"`
	Services map[string]ServiceConfig `toml:"services" json:"services"`
}

type LogConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
}

type DatabaseConfig struct {
	Path        string `toml:"path" json:"location"`
	CompareLike bool   `toml:"compare_like" json:"compare_like"`
}

type NetworkConfig struct {
	UserAgent       string   `toml:"user_agent" json:"user_agent"`
	RequestCooldown Duration `toml:"request_cooldown" json:"request_cooldown"`
	RetryCooldown   Duration `toml:"retry_cooldown" json:"retry_cooldown"`
	ReplyTimeout    Duration `toml:"reply_timeout" json:"reply_timeout"`
	LivenessURL     string   `toml:"liveness_url" json:"liveness_url"`
	MaxRetries      int      `toml:"max_retries" json:"max_retries"`
}

type DownloadConfig struct {
	Root         string `toml:"root" json:"root"`
	MinFreeBytes int64  `toml:"min_free_bytes" json:"min_free_bytes"`
	MaxRestarts  int    `toml:"max_restarts" json:"max_restarts"`
}

type FilterConfig struct {
	LanguagesInclude     []string `toml:"languages_include" json:"languages_include"`
	TagsBlacklist        []string `toml:"tags_blacklist" json:"tags_blacklist"`
	TypesBlacklist       []string `toml:"types_blacklist" json:"types_blacklist"`
	LanguagesIncludeFile string   `toml:"languages_include_file" json:"languages_include_file"`
	TagsBlacklistFile    string   `toml:"tags_blacklist_file" json:"tags_blacklist_file"`
	TypesBlacklistFile   string   `toml:"types_blacklist_file" json:"types_blacklist_file"`
}

// ServiceConfig holds per-site destination formats keyed by download type
// label, e.g. "Tag(s)".
type ServiceConfig struct {
	Formats map[string]FormatConfig `toml:"formats" json:"destination_formats"`
}

type FormatConfig struct {
	LocationFormat string `toml:"location_format" json:"location_format"`
	FilenameFormat string `toml:"filename_format" json:"filename_format"`
}

// Duration is a time.Duration that decodes from strings like "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads and parses the configuration file. A .env file next to it
// is loaded first; variables already set in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var (
		cfg     Config
		unknown []string
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal([]byte(content), &cfg)
	} else {
		var md toml.MetaData
		md, err = toml.Decode(content, &cfg)
		unknown = unknownKeys(md)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if errs := append(unknown, cfg.Validate()...); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return &cfg, nil
}

// unknownKeys reports keys the file sets that no field decodes, with the
// closest known key as a hint.
func unknownKeys(md toml.MetaData) []string {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	skip := make(map[string]bool, len(undecoded))
	for _, k := range undecoded {
		skip[k.String()] = true
	}
	var known []string
	for _, k := range md.Keys() {
		if !skip[k.String()] {
			known = append(known, k.String())
		}
	}

	errs := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		msg := k.String() + ": unknown key"
		if best := gallery.Suggest(k.String(), known); best != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", best)
		}
		errs = append(errs, msg)
	}
	return errs
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/galleria.db"
	}
	if c.Network.RequestCooldown.Duration == 0 {
		c.Network.RequestCooldown.Duration = 2 * time.Second
	}
	if c.Network.RetryCooldown.Duration == 0 {
		c.Network.RetryCooldown.Duration = 3 * time.Second
	}
	if c.Network.ReplyTimeout.Duration == 0 {
		c.Network.ReplyTimeout.Duration = 10 * time.Second
	}
	if c.Network.LivenessURL == "" {
		c.Network.LivenessURL = "https://github.com/"
	}
	if c.Download.MinFreeBytes == 0 {
		c.Download.MinFreeBytes = 1024
	}
	if c.Download.MaxRestarts == 0 {
		c.Download.MaxRestarts = 3
	}
}

// Format returns the destination format for source and download type,
// falling back to the defaults for unset fields.
func (c *Config) Format(source gallery.Source, dt gallery.DownloadType) gallery.Format {
	f := gallery.Format{
		Location: gallery.DefaultLocationFormat,
		Filename: gallery.DefaultFilenameFormat,
	}
	svc, ok := c.Services[source.String()]
	if !ok {
		return f
	}
	fc, ok := svc.Formats[dt.String()]
	if !ok {
		return f
	}
	if fc.LocationFormat != "" {
		f.Location = fc.LocationFormat
	}
	if fc.FilenameFormat != "" {
		f.Filename = fc.FilenameFormat
	}
	return f
}

// GalleryFilter merges the inline filter lists with the list files.
func (c *Config) GalleryFilter() (gallery.Filter, error) {
	f := gallery.Filter{
		LanguagesInclude: append([]string(nil), c.Filter.LanguagesInclude...),
		TagsBlacklist:    append([]string(nil), c.Filter.TagsBlacklist...),
		TypesBlacklist:   append([]string(nil), c.Filter.TypesBlacklist...),
	}
	for _, src := range []struct {
		path string
		into *[]string
	}{
		{c.Filter.LanguagesIncludeFile, &f.LanguagesInclude},
		{c.Filter.TagsBlacklistFile, &f.TagsBlacklist},
		{c.Filter.TypesBlacklistFile, &f.TypesBlacklist},
	} {
		list, err := gallery.ReadList(src.path)
		if err != nil {
			return gallery.Filter{}, err
		}
		*src.into = append(*src.into, list...)
	}
	return f, nil
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars replaces environment references and reports the ones
// that could not be resolved.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name, op, arg := parts[1], parts[2], parts[3]
		value, ok := os.LookupEnv(name)
		switch op {
		case ":-":
			if !ok || value == "" {
				return arg
			}
			return value
		case ":?":
			if !ok || value == "" {
				missing = append(missing, name+": "+arg)
				return match
			}
			return value
		}
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	return out, missing
}
