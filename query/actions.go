package query

import (
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/store"
)

// InvalidateTagsAction requests a manual invalidation through the store.
// The API middleware intercepts it and forwards the tags to the cache.
type InvalidateTagsAction struct {
	Tags []Tag
}

// ActionType implements store.Action.
func (InvalidateTagsAction) ActionType() string { return "query/invalidateTags" }

// QueryPendingAction is dispatched when a query fetch starts.
type QueryPendingAction struct {
	Endpoint string
	Key      string
}

// ActionType implements store.Action.
func (QueryPendingAction) ActionType() string { return "query/pending" }

// QueryFulfilledAction is dispatched when a query fetch succeeds.
type QueryFulfilledAction struct {
	Endpoint string
	Key      string
}

// ActionType implements store.Action.
func (QueryFulfilledAction) ActionType() string { return "query/fulfilled" }

// QueryRejectedAction is dispatched when a query fetch fails.
type QueryRejectedAction struct {
	Endpoint string
	Key      string
	Err      string
}

// ActionType implements store.Action.
func (QueryRejectedAction) ActionType() string { return "query/rejected" }

// MutationPendingAction is dispatched when a mutation trigger starts.
type MutationPendingAction struct {
	Endpoint  string
	RequestID string
}

// ActionType implements store.Action.
func (MutationPendingAction) ActionType() string { return "mutation/pending" }

// MutationFulfilledAction is dispatched when a mutation succeeds.
type MutationFulfilledAction struct {
	Endpoint  string
	RequestID string
}

// ActionType implements store.Action.
func (MutationFulfilledAction) ActionType() string { return "mutation/fulfilled" }

// MutationRejectedAction is dispatched when a mutation fails.
type MutationRejectedAction struct {
	Endpoint  string
	RequestID string
	Err       string
}

// ActionType implements store.Action.
func (MutationRejectedAction) ActionType() string { return "mutation/rejected" }

// InvalidatedAction is dispatched after an invalidation event was matched.
type InvalidatedAction struct {
	Tags []string
	Keys []string
}

// ActionType implements store.Action.
func (InvalidatedAction) ActionType() string { return "cache/invalidated" }

// EntryEvictedAction is dispatched when an unused entry leaves the cache.
type EntryEvictedAction struct {
	Endpoint string
	Key      string
}

// ActionType implements store.Action.
func (EntryEvictedAction) ActionType() string { return "cache/evicted" }

func actionFromEvent(ev domain.Event) store.Action {
	switch ev.Kind {
	case domain.EventQueryPending:
		return QueryPendingAction{Endpoint: ev.Endpoint, Key: ev.Key.String()}
	case domain.EventQueryFulfilled:
		return QueryFulfilledAction{Endpoint: ev.Endpoint, Key: ev.Key.String()}
	case domain.EventQueryRejected:
		return QueryRejectedAction{Endpoint: ev.Endpoint, Key: ev.Key.String(), Err: errString(ev.Err)}
	case domain.EventMutationPending:
		return MutationPendingAction{Endpoint: ev.Endpoint, RequestID: ev.RequestID}
	case domain.EventMutationFulfilled:
		return MutationFulfilledAction{Endpoint: ev.Endpoint, RequestID: ev.RequestID}
	case domain.EventMutationRejected:
		return MutationRejectedAction{Endpoint: ev.Endpoint, RequestID: ev.RequestID, Err: errString(ev.Err)}
	case domain.EventInvalidated:
		tags := make([]string, len(ev.Tags))
		for i, tag := range ev.Tags {
			tags[i] = tag.String()
		}
		keys := make([]string, len(ev.Keys))
		for i, key := range ev.Keys {
			keys[i] = key.String()
		}
		return InvalidatedAction{Tags: tags, Keys: keys}
	default:
		return EntryEvictedAction{Endpoint: ev.Endpoint, Key: ev.Key.String()}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
