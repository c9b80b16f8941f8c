package store

import (
	"time"

	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/core/ports"
)

// DefaultWarnAfter is the duration after which a dev check warns that it is
// slowing dispatch down.
const DefaultWarnAfter = 32 * time.Millisecond

// CheckOptions tunes the development-mode middleware.
type CheckOptions struct {
	// Mode selects which defaults apply. Set by Configure.
	Mode Mode
	// Logger receives check warnings. Set by Configure when used through it.
	Logger ports.Logger
	// DisableImmutabilityCheck turns the immutability check off.
	DisableImmutabilityCheck bool
	// DisableSerializabilityCheck turns the serializability check off.
	DisableSerializabilityCheck bool
	// IgnoredActionTypes are exempt from the serializability check.
	IgnoredActionTypes []string
	// WarnAfter is the slow-check warning threshold. Defaults to DefaultWarnAfter.
	WarnAfter time.Duration

	// stateSnapshot gives the immutability check access to the state.
	// Only Configure can set it; without it the check is skipped.
	stateSnapshot func() any
}

// DefaultMiddleware returns the default middleware list for the given
// options, ordered outermost first.
//
// In development mode the list is [immutability check, serializability
// check, recoverer]; in production only the recoverer is installed.
func DefaultMiddleware(opts CheckOptions) []Middleware {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if opts.WarnAfter <= 0 {
		opts.WarnAfter = DefaultWarnAfter
	}

	var middleware []Middleware
	if opts.Mode == ModeDevelopment {
		if !opts.DisableImmutabilityCheck && opts.stateSnapshot != nil {
			middleware = append(middleware, ImmutabilityCheck(opts.stateSnapshot, log, opts.WarnAfter))
		}
		if !opts.DisableSerializabilityCheck {
			middleware = append(middleware, SerializabilityCheck(log, opts.WarnAfter, opts.IgnoredActionTypes))
		}
	}
	middleware = append(middleware, Recoverer(log))
	return middleware
}
