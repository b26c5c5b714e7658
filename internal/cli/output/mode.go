// Package output renders command results for terminals, pipes and
// machines.
package output

import "strings"

// Mode selects how results are written.
type Mode string

// Output modes.
const (
	// ModeAuto picks text on a terminal and markdown otherwise.
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeYAML     Mode = "yaml"
)

// ParseMode normalizes a mode name. Unknown names fall back to auto.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeText, ModeMarkdown, ModeJSON, ModeYAML:
		return m
	case "md":
		return ModeMarkdown
	case "yml":
		return ModeYAML
	default:
		return ModeAuto
	}
}
