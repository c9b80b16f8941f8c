package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/adapters/config"
	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/adapters/render"
	"go.trai.ch/requery/internal/adapters/telemetry"
	"go.trai.ch/requery/internal/app"
	"go.trai.ch/requery/internal/core/domain"
)

// testHarness runs a stub API server and a definition file in a temp
// directory, wired into a fully constructed App.
type testHarness struct {
	app      *app.App
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	dir      string
	getCount atomic.Int64
	putCount atomic.Int64
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		stdout: new(bytes.Buffer),
		stderr: new(bytes.Buffer),
		dir:    t.TempDir(),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.getCount.Add(1)
			_, _ = fmt.Fprint(w, `{"id": 7, "name": "alice"}`)
		case http.MethodPut:
			h.putCount.Add(1)
			_, _ = fmt.Fprint(w, `{"ok": true}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)

	definition := fmt.Sprintf(`version: 1
name: testapi
base_url: %s
mode: production
tag_types:
  - User
endpoints:
  getUser:
    kind: query
    path: /users/{id}
    provides:
      - User
  updateUser:
    kind: mutation
    method: PUT
    path: /users/{id}
    invalidates:
      - User
`, server.URL)

	err := os.WriteFile(filepath.Join(h.dir, domain.RequeryFileName), []byte(definition), 0o644)
	require.NoError(t, err)

	log := logger.NewNop()
	h.app = app.New(config.NewLoader(log), log, telemetry.NewNoop()).
		WithRenderer(render.NewRenderer(h.stdout, h.stderr)).
		WithWorkdir(h.dir)

	return h
}

func TestApp_RunQuery(t *testing.T) {
	h := newHarness(t)

	err := h.app.RunQuery(context.Background(), "getUser", app.Options{
		Args: map[string]any{"id": 7},
	})
	require.NoError(t, err)

	assert.Contains(t, h.stdout.String(), `"alice"`)
	assert.Equal(t, int64(1), h.getCount.Load())

	// The snapshot lands next to the definition.
	_, err = os.Stat(filepath.Join(h.dir, domain.DefaultSnapshotPath))
	require.NoError(t, err)
}

func TestApp_RunQuery_AnswersFromSnapshot(t *testing.T) {
	h := newHarness(t)
	opts := app.Options{Args: map[string]any{"id": 7}}

	require.NoError(t, h.app.RunQuery(context.Background(), "getUser", opts))
	require.NoError(t, h.app.RunQuery(context.Background(), "getUser", opts))

	// The second invocation rehydrates the snapshot and never hits the
	// server.
	assert.Equal(t, int64(1), h.getCount.Load())
}

func TestApp_RunQuery_NoCacheBypassesSnapshot(t *testing.T) {
	h := newHarness(t)
	opts := app.Options{Args: map[string]any{"id": 7}}

	require.NoError(t, h.app.RunQuery(context.Background(), "getUser", opts))
	require.NoError(t, h.app.RunQuery(context.Background(), "getUser", app.Options{
		Args:    opts.Args,
		NoCache: true,
	}))

	assert.Equal(t, int64(2), h.getCount.Load())
}

func TestApp_RunQuery_UnknownEndpoint(t *testing.T) {
	h := newHarness(t)

	err := h.app.RunQuery(context.Background(), "nonexistent", app.Options{})
	require.ErrorContains(t, err, domain.ErrUnknownEndpoint.Error())
}

func TestApp_RunMutation(t *testing.T) {
	h := newHarness(t)

	err := h.app.RunMutation(context.Background(), "updateUser", app.Options{
		Args: map[string]any{"id": 3, "name": "bob"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), h.putCount.Load())
	assert.Contains(t, h.stderr.String(), "updateUser")
	assert.Contains(t, h.stderr.String(), "completed")
	assert.Contains(t, h.stdout.String(), `"ok"`)
}

func TestApp_RunMutation_UnknownEndpoint(t *testing.T) {
	h := newHarness(t)

	err := h.app.RunMutation(context.Background(), "nonexistent", app.Options{})
	require.ErrorContains(t, err, domain.ErrUnknownEndpoint.Error())
}

func TestApp_RunWatch_StreamsEntryStates(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := h.app.RunWatch(ctx, "getUser", app.Options{
		Args: map[string]any{"id": 7},
	})
	require.NoError(t, err)

	out := h.stderr.String()
	assert.Contains(t, out, "[getUser]")
	assert.Contains(t, out, "fulfilled")
}
