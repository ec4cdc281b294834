package config

import (
	"fmt"

	"github.com/vmunix/galleria/internal/gallery"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}
	if c.Log.MaxSizeMB < 0 {
		errs = append(errs, "log.max_size_mb: must not be negative")
	}

	if c.Download.Root == "" {
		errs = append(errs, "download.root: required")
	}
	if c.Download.MaxRestarts < 0 {
		errs = append(errs, "download.max_restarts: must not be negative")
	}

	if c.Network.RetryCooldown.Duration < 0 {
		errs = append(errs, "network.retry_cooldown: must not be negative")
	}
	if c.Network.ReplyTimeout.Duration < 0 {
		errs = append(errs, "network.reply_timeout: must not be negative")
	}
	if c.Network.MaxRetries < 0 {
		errs = append(errs, "network.max_retries: must not be negative")
	}

	for name, svc := range c.Services {
		if _, err := gallery.ParseSource(name); err != nil {
			errs = append(errs, fmt.Sprintf("services.%s: unknown service", name))
			continue
		}
		for label := range svc.Formats {
			if _, err := gallery.ParseDownloadType(label); err != nil {
				errs = append(errs, fmt.Sprintf("services.%s.formats.%q: %v", name, label, err))
			}
		}
	}

	return errs
}
