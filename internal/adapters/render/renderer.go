// Package render provides a synchronous, line-oriented renderer for CLI
// output: query results, entry state transitions, and mutation outcomes.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/ui/output"
	"go.trai.ch/requery/internal/ui/style"
)

// Renderer writes chronological, prefixed lines. Data goes to stdout,
// status lines to stderr, so results stay pipeable.
type Renderer struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	out    *termenv.Output
}

// NewRenderer creates a renderer. Nil writers default to the process
// streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		out:    output.New(stderr),
	}
}

// Result prints a fetched value as indented JSON on stdout.
func (r *Renderer) Result(data any) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = fmt.Fprintln(r.stdout, string(encoded))
	return err
}

// EntryState prints one line per entry transition.
func (r *Renderer) EntryState(endpoint string, snap domain.EntrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.out.String(fmt.Sprintf("[%s]", endpoint)).Faint().String()

	var status string
	switch snap.Status {
	case domain.StatusPending:
		status = r.out.String(style.Circle + " loading").Foreground(termenv.RGBColor(style.Yellow)).String()
	case domain.StatusFulfilled:
		status = r.out.String(style.Check + " fulfilled").Foreground(termenv.RGBColor(style.Green)).String()
	case domain.StatusRejected:
		status = r.out.String(style.Cross+" rejected").Foreground(termenv.RGBColor(style.Red)).String() +
			fmt.Sprintf(": %v", snap.Err)
	default:
		status = style.Dot + " uninitialized"
	}

	if snap.Stale {
		status += r.out.String(" (stale)").Faint().String()
	}
	if len(snap.ProvidedTags) > 0 {
		status += r.out.String(" tags=" + joinTags(snap.ProvidedTags)).Faint().String()
	}

	_, _ = fmt.Fprintf(r.stderr, "%s %s\n", prefix, status)
}

// Invalidated prints an applied invalidation.
func (r *Renderer) Invalidated(source string, tags []domain.Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol := r.out.String(style.Warning).Foreground(termenv.RGBColor(style.Yellow)).String()
	_, _ = fmt.Fprintf(r.stderr, "%s invalidated %s (%s)\n", symbol, joinTags(tags), source)
}

// MutationOutcome prints the completion line of a triggered mutation.
func (r *Renderer) MutationOutcome(endpoint, requestID string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.out.String(fmt.Sprintf("[%s]", endpoint)).Faint().String()

	if err != nil {
		symbol := r.out.String(style.Cross).Foreground(termenv.RGBColor(style.Red)).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s failed after %v (request %s): %v\n",
			prefix, symbol, duration.Round(time.Millisecond), requestID, err)
		return
	}

	symbol := r.out.String(style.Check).Foreground(termenv.RGBColor(style.Green)).String()
	_, _ = fmt.Fprintf(r.stderr, "%s %s completed in %v (request %s)\n",
		prefix, symbol, duration.Round(time.Millisecond), requestID)
}

// Info prints a plain status line.
func (r *Renderer) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.stderr, msg)
}

func joinTags(tags []domain.Tag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = tag.String()
	}
	return strings.Join(parts, ",")
}
