package store

import "context"

// Dispatch sends an action toward the reducer.
type Dispatch func(ctx context.Context, action Action) error

// Middleware wraps a dispatcher. Middleware run in list order: the first
// middleware sees the action first.
type Middleware func(next Dispatch) Dispatch

// Chain composes middleware into a single wrapper, outermost first.
func Chain(middleware ...Middleware) Middleware {
	return func(final Dispatch) Dispatch {
		d := final
		for i := len(middleware) - 1; i >= 0; i-- {
			d = middleware[i](d)
		}
		return d
	}
}
