// Package app implements the application layer for requery.
package app

import (
	"context"
	"time"

	"go.trai.ch/requery/internal/adapters/render"
	"go.trai.ch/requery/internal/adapters/watcher"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/requery/query"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	specLoader ports.SpecLoader
	logger     ports.Logger
	tracer     ports.Tracer
	renderer   *render.Renderer
	cwd        string
}

// New creates a new App instance.
func New(loader ports.SpecLoader, log ports.Logger, tracer ports.Tracer) *App {
	return &App{
		specLoader: loader,
		logger:     log,
		tracer:     tracer,
		renderer:   render.NewRenderer(nil, nil),
		cwd:        ".",
	}
}

// WithRenderer replaces the renderer. Used for testing.
func (a *App) WithRenderer(r *render.Renderer) *App {
	a.renderer = r
	return a
}

// WithWorkdir sets the directory the definition lookup starts from.
// Used for testing.
func (a *App) WithWorkdir(dir string) *App {
	a.cwd = dir
	return a
}

// Options configures a single command invocation.
type Options struct {
	// Args is the endpoint argument, from repeated --arg k=v flags.
	Args map[string]any
	// NoCache skips snapshot rehydration, forcing fresh fetches.
	NoCache bool
}

// RunQuery resolves a query endpoint once and prints the result.
func (a *App) RunQuery(ctx context.Context, endpoint string, opts Options) error {
	s, err := a.openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	q, ok := s.queries[endpoint]
	if !ok {
		return zerr.With(domain.ErrUnknownEndpoint, "endpoint", endpoint)
	}

	data, err := q.Fetch(ctx, opts.Args)
	if err != nil {
		return err
	}

	if err := a.renderer.Result(data); err != nil {
		return err
	}

	return s.saveSnapshot()
}

// RunMutation triggers a mutation endpoint, waits for it, and prints the
// outcome.
func (a *App) RunMutation(ctx context.Context, endpoint string, opts Options) error {
	s, err := a.openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	m, ok := s.mutations[endpoint]
	if !ok {
		return zerr.With(domain.ErrUnknownEndpoint, "endpoint", endpoint)
	}

	started := time.Now()
	handle := m.Trigger(ctx, opts.Args)

	data, err := handle.Unwrap(ctx)
	a.renderer.MutationOutcome(endpoint, handle.RequestID(), time.Since(started), err)
	if err != nil {
		return zerr.Wrap(err, domain.ErrMutationFailed.Error())
	}

	if data != nil {
		if err := a.renderer.Result(data); err != nil {
			return err
		}
	}

	return s.saveSnapshot()
}

// RunWatch subscribes to a query endpoint and streams its entry state
// transitions until the context is cancelled. File-watch rules from the
// definition invalidate tags while the subscription is live.
func (a *App) RunWatch(ctx context.Context, endpoint string, opts Options) error {
	s, err := a.openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	q, ok := s.queries[endpoint]
	if !ok {
		return zerr.With(domain.ErrUnknownEndpoint, "endpoint", endpoint)
	}

	sub, err := q.Subscribe(ctx, opts.Args)
	if err != nil {
		return err
	}

	var w *watcher.Watcher
	if len(s.spec.Watch) > 0 {
		w, err = watcher.New(s.spec.Root, s.spec.Watch, a.logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for st := range sub.Updates() {
			a.renderer.EntryState(endpoint, domain.EntrySnapshot{
				Key:          st.Key,
				Status:       st.Status,
				Data:         st.Data,
				Err:          st.Err,
				Stale:        st.Stale,
				ProvidedTags: st.Tags,
				FetchedAt:    st.FetchedAt,
			})
		}
		return nil
	})

	if w != nil {
		g.Go(func() error {
			for ev := range w.Events() {
				a.renderer.Invalidated(ev.Source, ev.Tags)
				if err := s.store.Dispatch(ctx, query.InvalidateTagsAction{Tags: ev.Tags}); err != nil {
					a.logger.Error(err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		sub.Unsubscribe()
		if w != nil {
			_ = w.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return s.saveSnapshot()
}
