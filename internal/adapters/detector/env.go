// Package detector provides environment detection for output and store
// mode selection.
package detector

import (
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode represents the log rendering mode for the CLI.
type OutputMode int

const (
	// ModeAuto automatically detects the appropriate mode.
	ModeAuto OutputMode = iota
	// ModePretty forces human-readable colored output.
	ModePretty
	// ModeJSON forces machine-readable JSON log lines.
	ModeJSON
)

// DetectEnvironment returns the recommended output mode based on the
// environment. Non-TTY output and CI both select JSON.
func DetectEnvironment() OutputMode {
	isTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return ModeJSON
	}
	return ModePretty
}

// ResolveMode applies the user override flag to auto-detection.
// userFlag should be one of: "auto", "pretty", "json", or empty.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "pretty":
		return ModePretty
	case "json":
		return ModeJSON
	default:
		return autoDetected
	}
}

// DetectStoreMode picks the default store mode: development on an
// interactive terminal, production otherwise. The definition file may
// override it.
func DetectStoreMode() string {
	if DetectEnvironment() == ModePretty {
		return "development"
	}
	return "production"
}
