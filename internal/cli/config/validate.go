package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
)

// Validate checks if the configuration is valid. Every configured grid
// must convert into engine options.
func (c *Config) Validate() error {
	if c.Markup == "" {
		return fmt.Errorf("markup is required")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || !u.IsAbs() {
			return fmt.Errorf("endpoint %q must be an absolute URL", c.Endpoint)
		}
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d is out of range", c.UI.Port)
	}

	var errs []error
	names := make([]string, 0, len(c.Grids))
	for name := range c.Grids {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := c.Grids[name].ToOptions(); err != nil {
			errs = append(errs, fmt.Errorf("grids.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateMarkup checks that the markup file exists.
func (c *Config) ValidateMarkup() error {
	if _, err := os.Stat(c.Markup); os.IsNotExist(err) {
		return fmt.Errorf("markup file does not exist: %s\nHint: create it or use --markup to specify a different path", c.Markup)
	}
	return nil
}
