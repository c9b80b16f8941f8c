package app

import (
	"context"
	"path/filepath"

	"go.trai.ch/requery/internal/adapters/detector"
	"go.trai.ch/requery/internal/adapters/fetcher"
	"go.trai.ch/requery/internal/adapters/snapshot"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/engine/tagexpr"
	"go.trai.ch/requery/query"
	"go.trai.ch/requery/store"
)

// session is one loaded definition with its API, store, and registered
// endpoints. Each command invocation builds one and closes it on exit.
type session struct {
	spec      *domain.APISpec
	api       *query.API
	store     *store.Store[map[string]any]
	queries   map[string]*query.Query[map[string]any, any]
	mutations map[string]*query.Mutation[map[string]any, any]
}

func (a *App) openSession(_ context.Context, opts Options) (*session, error) {
	spec, err := a.specLoader.Load(a.cwd)
	if err != nil {
		return nil, err
	}

	mode := spec.Mode
	if mode == "" {
		mode = detector.DetectStoreMode()
	}

	api, err := query.New(query.Config{
		Fetcher:            fetcher.New(spec.BaseURL, spec.Headers),
		TagTypes:           spec.TagTypes,
		KeepUnusedFor:      spec.KeepUnusedFor,
		RefetchParallelism: spec.RefetchParallelism,
		Mode:               store.Mode(mode),
		Logger:             a.logger,
		Tracer:             a.tracer,
		Snapshots:          snapshot.NewStore(filepath.Join(spec.Root, spec.SnapshotPath)),
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		spec:      spec,
		api:       api,
		queries:   make(map[string]*query.Query[map[string]any, any]),
		mutations: make(map[string]*query.Mutation[map[string]any, any]),
	}

	s.store, err = store.Configure(store.Config[map[string]any]{
		Reducer: store.CombineReducers(map[string]store.AnyReducer{
			"events": EventLogReducer(eventLogLimit),
		}),
		Mode:   store.Mode(mode),
		Logger: a.logger,
		Middleware: func(defaults []store.Middleware) []store.Middleware {
			return append(defaults, api.Middleware())
		},
	})
	if err != nil {
		_ = api.Close()
		return nil, err
	}

	for _, ep := range spec.Endpoints {
		if err := a.registerEndpoint(s, ep); err != nil {
			_ = api.Close()
			return nil, err
		}
	}

	if !opts.NoCache {
		if err := api.RestoreSnapshot(); err != nil {
			_ = api.Close()
			return nil, err
		}
	}

	return s, nil
}

func (a *App) registerEndpoint(s *session, ep domain.EndpointSpec) error {
	request := buildRequest(ep)

	switch ep.Kind {
	case domain.EndpointMutation:
		cfg := query.MutationConfig[map[string]any, any]{
			Request:     request,
			Invalidates: ep.Invalidates,
		}
		if ep.InvalidatesExpr != "" {
			program, err := tagexpr.Compile(ep.InvalidatesExpr, s.spec.TagTypes)
			if err != nil {
				return err
			}
			cfg.InvalidatesFn = a.evalTags(program)
		}

		m, err := query.NewMutation(s.api, ep.Name, cfg)
		if err != nil {
			return err
		}
		s.mutations[ep.Name] = m

	default:
		cfg := query.QueryConfig[map[string]any, any]{
			Request:  request,
			Provides: ep.Provides,
		}
		if ep.ProvidesExpr != "" {
			program, err := tagexpr.Compile(ep.ProvidesExpr, s.spec.TagTypes)
			if err != nil {
				return err
			}
			cfg.ProvidesFn = a.evalTags(program)
		}

		q, err := query.NewQuery(s.api, ep.Name, cfg)
		if err != nil {
			return err
		}
		s.queries[ep.Name] = q
	}

	return nil
}

// evalTags adapts a compiled tag expression to the typed tag callback.
// Evaluation failures drop the computed tags rather than failing the
// request; the static tags still apply.
func (a *App) evalTags(program *tagexpr.Program) func(result any, arg map[string]any) []query.Tag {
	return func(result any, arg map[string]any) []query.Tag {
		tags, err := program.Eval(arg, result)
		if err != nil {
			a.logger.Error(err)
			return nil
		}
		return tags
	}
}

func (s *session) saveSnapshot() error {
	return s.api.SaveSnapshot()
}

func (s *session) close() {
	_ = s.api.Close()
}
