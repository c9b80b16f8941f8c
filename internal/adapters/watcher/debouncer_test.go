package watcher_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/adapters/watcher"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) callback(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, paths)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := watcher.NewDebouncer(30*time.Millisecond, rec.callback)

	d.Add("a.json")
	d.Add("b.json")
	d.Add("a.json")

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.calls[0], 2)
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, rec.calls[0])
}

func TestDebouncer_WindowRestartsPerAdd(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := watcher.NewDebouncer(50*time.Millisecond, rec.callback)

	d.Add("a.json")
	time.Sleep(25 * time.Millisecond)
	d.Add("b.json")
	time.Sleep(25 * time.Millisecond)

	// The window restarted on the second add, so nothing fired yet.
	assert.Equal(t, 0, rec.count())

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncer_FlushIsSynchronous(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := watcher.NewDebouncer(time.Hour, rec.callback)

	d.Add("a.json")
	d.Flush()

	assert.Equal(t, 1, rec.count())
}

func TestDebouncer_FlushWithoutPending(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := watcher.NewDebouncer(time.Hour, rec.callback)

	d.Flush()
	assert.Equal(t, 0, rec.count())
}
