package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
)

// ImmutabilityCheck warns when the state changed between dispatches, which
// means something mutated it in place instead of going through the reducer.
//
// The check hashes the canonical JSON encoding of the state after every
// dispatch and compares the stored hash against a fresh one on the next
// dispatch. State that does not round-trip through JSON is skipped.
func ImmutabilityCheck(snapshot func() any, log ports.Logger, warnAfter time.Duration) Middleware {
	var mu sync.Mutex
	var lastHash uint64
	var tracked bool

	hash := func() (uint64, bool) {
		encoded, err := json.Marshal(snapshot())
		if err != nil {
			return 0, false
		}
		return xxhash.Sum64(encoded), true
	}

	return func(next Dispatch) Dispatch {
		return func(ctx context.Context, action Action) error {
			started := time.Now()
			mu.Lock()
			if h, ok := hash(); ok && tracked && h != lastHash {
				log.Warn(fmt.Sprintf(
					"state was mutated outside dispatch (detected before action %q)",
					action.ActionType(),
				))
			}
			mu.Unlock()
			elapsed := time.Since(started)

			err := next(ctx, action)

			started = time.Now()
			mu.Lock()
			if h, ok := hash(); ok {
				lastHash = h
				tracked = true
			}
			mu.Unlock()
			elapsed += time.Since(started)

			if elapsed > warnAfter {
				log.Warn(fmt.Sprintf(
					"immutability check took %s, which exceeds the warning threshold of %s; consider disabling it for large states",
					elapsed, warnAfter,
				))
			}
			return err
		}
	}
}

// SerializabilityCheck warns when a dispatched action carries values that
// do not serialize: functions, channels, or unsafe pointers. Actions whose
// type is listed in ignored are exempt.
func SerializabilityCheck(log ports.Logger, warnAfter time.Duration, ignored []string) Middleware {
	ignoredSet := make(map[string]struct{}, len(ignored))
	for _, t := range ignored {
		ignoredSet[t] = struct{}{}
	}

	return func(next Dispatch) Dispatch {
		return func(ctx context.Context, action Action) error {
			if _, skip := ignoredSet[action.ActionType()]; !skip {
				started := time.Now()
				if path, ok := findNonSerializable(reflect.ValueOf(action), action.ActionType(), make(map[uintptr]struct{})); !ok {
					log.Warn(fmt.Sprintf("action %q carries a non-serializable value at %s", action.ActionType(), path))
				}
				if elapsed := time.Since(started); elapsed > warnAfter {
					log.Warn(fmt.Sprintf(
						"serializability check took %s, which exceeds the warning threshold of %s",
						elapsed, warnAfter,
					))
				}
			}
			return next(ctx, action)
		}
	}
}

// findNonSerializable walks v and returns the path of the first value that
// cannot be serialized, with ok=false. Cycles through pointers are broken
// with the visited set.
func findNonSerializable(v reflect.Value, path string, visited map[uintptr]struct{}) (string, bool) {
	if !v.IsValid() {
		return "", true
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return path, false
	case reflect.Interface:
		if v.IsNil() {
			return "", true
		}
		return findNonSerializable(v.Elem(), path, visited)
	case reflect.Pointer:
		if v.IsNil() {
			return "", true
		}
		ptr := v.Pointer()
		if _, seen := visited[ptr]; seen {
			return "", true
		}
		visited[ptr] = struct{}{}
		return findNonSerializable(v.Elem(), path, visited)
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if p, ok := findNonSerializable(v.Field(i), path+"."+t.Field(i).Name, visited); !ok {
				return p, false
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if p, ok := findNonSerializable(v.Index(i), fmt.Sprintf("%s[%d]", path, i), visited); !ok {
				return p, false
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if p, ok := findNonSerializable(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key()), visited); !ok {
				return p, false
			}
		}
	default:
	}
	return "", true
}

// Recoverer converts a panic anywhere below it in the pipeline into an
// error, so a misbehaving reducer or middleware cannot crash the caller.
func Recoverer(log ports.Logger) Middleware {
	return func(next Dispatch) Dispatch {
		return func(ctx context.Context, action Action) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = zerr.With(
						zerr.New(fmt.Sprintf("panic while dispatching: %v", r)),
						"action", action.ActionType(),
					)
					log.Error(err)
				}
			}()
			return next(ctx, action)
		}
	}
}
