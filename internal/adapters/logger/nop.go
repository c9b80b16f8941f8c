package logger

import (
	"io"

	"go.trai.ch/requery/internal/core/ports"
)

// Nop is a ports.Logger that discards everything. It is the default for
// library callers that configure no logger.
type Nop struct{}

// NewNop creates a no-op logger.
func NewNop() ports.Logger {
	return Nop{}
}

// Info implements ports.Logger.
func (Nop) Info(string) {}

// Warn implements ports.Logger.
func (Nop) Warn(string) {}

// Error implements ports.Logger.
func (Nop) Error(error) {}

// SetOutput implements ports.Logger.
func (Nop) SetOutput(io.Writer) {}

// SetJSON implements ports.Logger.
func (Nop) SetJSON(bool) {}
