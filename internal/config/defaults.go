package config

// Default configuration values.
const (
	DefaultMarkup = "grid.html"
	DefaultPort   = 8765
)

// Defaults returns the default keys for a koanf confmap provider.
func Defaults() map[string]any {
	return map[string]any{
		"markup":   DefaultMarkup,
		"url.hash": true,
	}
}

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.Markup == "" {
		c.Markup = DefaultMarkup
	}
	if c.Grids == nil {
		c.Grids = map[string]GridConfig{}
	}
}

// Grid returns the configuration of the named grid, or an empty one.
func (c *ProjectConfig) Grid(name string) GridConfig {
	if c == nil || c.Grids == nil {
		return GridConfig{}
	}
	return c.Grids[name]
}
