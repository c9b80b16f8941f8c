package app

import "go.trai.ch/requery/store"

// eventLogLimit bounds the action log slice in the store.
const eventLogLimit = 100

// EventLogReducer keeps the action types of the most recent dispatches.
// It gives the store observable state without holding onto payloads.
func EventLogReducer(limit int) store.AnyReducer {
	return func(state any, action store.Action) any {
		prev, _ := state.([]string)

		next := make([]string, 0, len(prev)+1)
		next = append(next, prev...)
		next = append(next, action.ActionType())
		if len(next) > limit {
			next = next[len(next)-limit:]
		}
		return next
	}
}
