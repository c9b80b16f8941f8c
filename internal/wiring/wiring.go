// Package wiring registers all Graft providers. Importing it for side
// effects makes the full dependency graph available to graft.ExecuteFor.
package wiring

import (
	_ "go.trai.ch/requery/internal/adapters/logger"    // Register logger provider
	_ "go.trai.ch/requery/internal/adapters/telemetry" // Register tracer provider
	_ "go.trai.ch/requery/internal/app"                // Register app components provider
)
