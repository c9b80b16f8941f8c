package render_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/adapters/render"
	"go.trai.ch/requery/internal/core/domain"
)

func newRenderer(t *testing.T) (*render.Renderer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	return render.NewRenderer(&stdout, &stderr), &stdout, &stderr
}

func TestRenderer_ResultGoesToStdout(t *testing.T) {
	r, stdout, stderr := newRenderer(t)

	require.NoError(t, r.Result(map[string]string{"id": "1"}))

	assert.JSONEq(t, `{"id":"1"}`, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_EntryStateTransitions(t *testing.T) {
	r, stdout, stderr := newRenderer(t)

	r.EntryState("getUser", domain.EntrySnapshot{Status: domain.StatusUninitialized})
	r.EntryState("getUser", domain.EntrySnapshot{Status: domain.StatusPending})
	r.EntryState("getUser", domain.EntrySnapshot{
		Status:       domain.StatusFulfilled,
		ProvidedTags: []domain.Tag{domain.NewTag("User", "1")},
	})
	r.EntryState("getUser", domain.EntrySnapshot{
		Status: domain.StatusFulfilled,
		Stale:  true,
	})
	r.EntryState("getUser", domain.EntrySnapshot{
		Status: domain.StatusRejected,
		Err:    errors.New("boom"),
	})

	out := stderr.String()
	assert.Contains(t, out, "[getUser]")
	assert.Contains(t, out, "uninitialized")
	assert.Contains(t, out, "loading")
	assert.Contains(t, out, "fulfilled")
	assert.Contains(t, out, "tags=User(1)")
	assert.Contains(t, out, "(stale)")
	assert.Contains(t, out, "rejected: boom")
	assert.Empty(t, stdout.String())
}

func TestRenderer_Invalidated(t *testing.T) {
	r, _, stderr := newRenderer(t)

	r.Invalidated("fixtures/users.json", []domain.Tag{domain.TypeTag("User"), domain.NewTag("Post", "3")})

	assert.Contains(t, stderr.String(), "invalidated User,Post(3) (fixtures/users.json)")
}

func TestRenderer_MutationOutcome(t *testing.T) {
	r, _, stderr := newRenderer(t)

	r.MutationOutcome("updateUser", "req-1", 1500*time.Microsecond, nil)
	r.MutationOutcome("updateUser", "req-2", time.Second, errors.New("rejected"))

	out := stderr.String()
	assert.Contains(t, out, "[updateUser]")
	assert.Contains(t, out, "completed in 2ms (request req-1)")
	assert.Contains(t, out, "failed after 1s (request req-2): rejected")
}
