// Package store implements a small dispatch/reduce state container with a
// composable middleware pipeline. The query package attaches its cache
// lifecycle to a store through a middleware, so cache activity is
// observable like any other action.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
)

// Mode selects between development and production behavior.
type Mode string

const (
	// ModeDevelopment enables the dev-only sanity checks.
	ModeDevelopment Mode = "development"
	// ModeProduction keeps the middleware list lean.
	ModeProduction Mode = "production"
)

// Action is a dispatched event. Implementations should be plain data; the
// serializability check warns about anything else in development mode.
type Action interface {
	// ActionType returns a stable, namespaced identifier like "query/fulfilled".
	ActionType() string
}

// InitActionType identifies the action dispatched once at store creation.
const InitActionType = "store/init"

// InitAction is dispatched through the reducer to produce the initial state
// when no preloaded state is configured.
type InitAction struct{}

// ActionType implements Action.
func (InitAction) ActionType() string { return InitActionType }

// Reducer computes the next state from the current state and an action.
// Reducers must not mutate the given state.
type Reducer[S any] func(state S, action Action) S

// AnyReducer is the untyped reducer form used with CombineReducers.
type AnyReducer func(state any, action Action) any

// CombineReducers builds a root reducer over a map state from per-slice
// reducers, for callers that prefer the map-of-reducers configuration.
func CombineReducers(reducers map[string]AnyReducer) Reducer[map[string]any] {
	return func(state map[string]any, action Action) map[string]any {
		next := make(map[string]any, len(reducers))
		for name, reduce := range reducers {
			var slice any
			if state != nil {
				slice = state[name]
			}
			next[name] = reduce(slice, action)
		}
		return next
	}
}

// Enhancer customizes a store after construction, e.g. to wrap its
// dispatcher with additional middleware.
type Enhancer[S any] func(*Store[S]) error

// Config configures a store.
type Config[S any] struct {
	// Reducer is the root reducer. Required.
	Reducer Reducer[S]
	// PreloadedState seeds the store instead of reducing InitAction.
	PreloadedState *S
	// Mode selects development or production defaults. Empty means production.
	Mode Mode
	// Logger receives middleware warnings. Defaults to a no-op logger.
	Logger ports.Logger
	// Middleware customizes the middleware list. It receives the defaults
	// for the configured mode and returns the list to install, ordered
	// outermost first. Nil installs the defaults unchanged.
	Middleware func(defaults []Middleware) []Middleware
	// DevChecks tunes the development-mode checks.
	DevChecks CheckOptions
	// Enhancers run in order after the store is constructed.
	Enhancers []Enhancer[S]
}

// Store holds application state and dispatches actions through its
// middleware pipeline into the root reducer.
type Store[S any] struct {
	mu        sync.Mutex
	state     S
	reducer   Reducer[S]
	dispatch  Dispatch
	listeners map[string]func(S)
	logger    ports.Logger
}

// Configure builds a store from the given configuration.
func Configure[S any](cfg Config[S]) (*Store[S], error) {
	if cfg.Reducer == nil {
		return nil, domain.ErrNoReducer
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	s := &Store[S]{
		reducer:   cfg.Reducer,
		listeners: make(map[string]func(S)),
		logger:    log,
	}

	if cfg.PreloadedState != nil {
		s.state = *cfg.PreloadedState
	} else {
		s.state = cfg.Reducer(s.state, InitAction{})
	}

	opts := cfg.DevChecks
	opts.Mode = cfg.Mode
	opts.Logger = log
	opts.stateSnapshot = func() any { return s.State() }

	middleware := DefaultMiddleware(opts)
	if cfg.Middleware != nil {
		middleware = cfg.Middleware(middleware)
	}
	s.dispatch = Chain(middleware...)(s.reduce)

	for _, enhance := range cfg.Enhancers {
		if err := enhance(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Dispatch sends an action through the middleware pipeline into the reducer.
func (s *Store[S]) Dispatch(ctx context.Context, action Action) error {
	return s.dispatch(ctx, action)
}

// State returns the current state.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener invoked after every dispatched action.
// The returned function removes the listener.
func (s *Store[S]) Subscribe(listener func(S)) func() {
	id := uuid.NewString()

	s.mu.Lock()
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// WrapDispatch wraps the store's dispatcher with an additional middleware.
// It is intended for enhancers.
func (s *Store[S]) WrapDispatch(mw Middleware) {
	s.dispatch = mw(s.dispatch)
}

// reduce is the innermost dispatcher: it applies the reducer and notifies
// listeners outside the state lock.
func (s *Store[S]) reduce(_ context.Context, action Action) error {
	s.mu.Lock()
	s.state = s.reducer(s.state, action)
	state := s.state
	listeners := make([]func(S), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
	return nil
}
