package query_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/requery/internal/core/ports/mocks"
	"go.trai.ch/requery/query"
	"go.uber.org/mock/gomock"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type userArg struct {
	ID int `json:"id"`
}

func newTestAPI(t *testing.T, cfg query.Config) *query.API {
	t.Helper()

	if len(cfg.TagTypes) == 0 {
		cfg.TagTypes = []string{"User", "Post"}
	}

	api, err := query.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })
	return api
}

func TestNewQuery_Validation(t *testing.T) {
	api := newTestAPI(t, query.Config{})

	fn := func(_ context.Context, _ userArg) (user, error) { return user{}, nil }
	request := func(_ userArg) (ports.Request, error) { return ports.Request{}, nil }

	t.Run("requires exactly one source", func(t *testing.T) {
		_, err := query.NewQuery(api, "neither", query.QueryConfig[userArg, user]{})
		require.ErrorContains(t, err, domain.ErrNoRequestSource.Error())

		_, err = query.NewQuery(api, "both", query.QueryConfig[userArg, user]{Request: request, Fn: fn})
		require.ErrorContains(t, err, domain.ErrNoRequestSource.Error())
	})

	t.Run("request builders need a fetcher", func(t *testing.T) {
		_, err := query.NewQuery(api, "noFetcher", query.QueryConfig[userArg, user]{Request: request})
		require.ErrorContains(t, err, domain.ErrNoFetcher.Error())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := query.NewQuery(api, "dup", query.QueryConfig[userArg, user]{Fn: fn})
		require.NoError(t, err)

		_, err = query.NewQuery(api, "dup", query.QueryConfig[userArg, user]{Fn: fn})
		require.ErrorContains(t, err, domain.ErrDuplicateEndpoint.Error())
	})
}

func TestQuery_Fetch_Fn(t *testing.T) {
	api := newTestAPI(t, query.Config{})

	var count atomic.Int64
	q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
		Fn: func(_ context.Context, arg userArg) (user, error) {
			count.Add(1)
			return user{ID: arg.ID, Name: "alice"}, nil
		},
	})
	require.NoError(t, err)

	got, err := q.Fetch(context.Background(), userArg{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Name: "alice"}, got)

	// Same argument answers from cache.
	_, err = q.Fetch(context.Background(), userArg{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Load())

	// A different argument is a separate entry.
	got, err = q.Fetch(context.Background(), userArg{ID: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, got.ID)
	assert.Equal(t, int64(2), count.Load())
}

func TestQuery_Fetch_Request(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFetcher := mocks.NewMockFetcher(ctrl)
	api := newTestAPI(t, query.Config{Fetcher: mockFetcher})

	q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
		Request: func(arg userArg) (ports.Request, error) {
			return ports.Request{Method: "GET", Path: "/users/7"}, nil
		},
	})
	require.NoError(t, err)

	mockFetcher.EXPECT().
		Do(gomock.Any(), ports.Request{Method: "GET", Path: "/users/7"}).
		Return(ports.Response{StatusCode: 200, Body: []byte(`{"id": 7, "name": "alice"}`)}, nil)

	got, err := q.Fetch(context.Background(), userArg{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Name: "alice"}, got)
}

func TestQuery_Fetch_UpstreamRejection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFetcher := mocks.NewMockFetcher(ctrl)
	api := newTestAPI(t, query.Config{Fetcher: mockFetcher})

	q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
		Request: func(_ userArg) (ports.Request, error) {
			return ports.Request{Method: "GET", Path: "/users/7"}, nil
		},
	})
	require.NoError(t, err)

	mockFetcher.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(ports.Response{StatusCode: 503}, nil)

	_, err = q.Fetch(context.Background(), userArg{ID: 7})
	require.ErrorContains(t, err, domain.ErrRequestRejected.Error())
}

func TestQuery_Fetch_Transform(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFetcher := mocks.NewMockFetcher(ctrl)
	api := newTestAPI(t, query.Config{Fetcher: mockFetcher})

	// The endpoint returns a wrapped payload; the transform unwraps it.
	q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
		Request: func(_ userArg) (ports.Request, error) {
			return ports.Request{Method: "GET", Path: "/users/7"}, nil
		},
		Transform: func(body []byte) (user, error) {
			var wrapped struct {
				Data user `json:"data"`
			}
			if err := json.Unmarshal(body, &wrapped); err != nil {
				return user{}, err
			}
			return wrapped.Data, nil
		},
	})
	require.NoError(t, err)

	mockFetcher.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(ports.Response{StatusCode: 200, Body: []byte(`{"data": {"id": 7, "name": "alice"}}`)}, nil)

	got, err := q.Fetch(context.Background(), userArg{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Name: "alice"}, got)
}

func TestQuery_Subscribe(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		api := newTestAPI(t, query.Config{})

		q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
			Fn: func(_ context.Context, arg userArg) (user, error) {
				return user{ID: arg.ID, Name: "alice"}, nil
			},
			Provides: []query.Tag{query.TypeTag("User")},
		})
		require.NoError(t, err)

		sub, err := q.Subscribe(context.Background(), userArg{ID: 7})
		require.NoError(t, err)

		var statuses []domain.QueryStatus
		var final query.State[user]
		for st := range sub.Updates() {
			statuses = append(statuses, st.Status)
			if st.IsSuccess() {
				final = st
				break
			}
		}

		assert.Equal(t, []domain.QueryStatus{
			domain.StatusUninitialized,
			domain.StatusPending,
			domain.StatusFulfilled,
		}, statuses)
		assert.Equal(t, user{ID: 7, Name: "alice"}, final.Data)
		assert.Equal(t, []query.Tag{query.TypeTag("User")}, final.Tags)
		assert.False(t, final.Stale)

		current := sub.Current()
		assert.True(t, current.IsSuccess())

		sub.Unsubscribe()
		for range sub.Updates() {
		}
	})
}

func TestQuery_Subscribe_SlowConsumerDoesNotLeakForwarder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		api := newTestAPI(t, query.Config{})

		q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
			Fn: func(_ context.Context, arg userArg) (user, error) {
				return user{ID: arg.ID, Name: "alice"}, nil
			},
			Provides: []query.Tag{query.TypeTag("User")},
		})
		require.NoError(t, err)

		sub, err := q.Subscribe(context.Background(), userArg{ID: 7})
		require.NoError(t, err)
		synctest.Wait()

		// Never drain: push more transitions than the stream buffers. A
		// blocking forwarder would wedge on the full channel and keep the
		// stream open past Unsubscribe.
		for range 10 {
			require.NoError(t, api.InvalidateTags(context.Background(), query.TypeTag("User")))
			synctest.Wait()
		}

		sub.Unsubscribe()
		synctest.Wait()

		for range sub.Updates() {
		}
	})
}

func TestQuery_ProvidesFn_DrivesInvalidation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		api := newTestAPI(t, query.Config{})

		var count atomic.Int64
		q, err := query.NewQuery(api, "getUser", query.QueryConfig[userArg, user]{
			Fn: func(_ context.Context, arg userArg) (user, error) {
				count.Add(1)
				return user{ID: arg.ID, Name: "alice"}, nil
			},
			ProvidesFn: func(result user, _ userArg) []query.Tag {
				return []query.Tag{query.NewTag("User", strconv.Itoa(result.ID))}
			},
		})
		require.NoError(t, err)

		sub, err := q.Subscribe(context.Background(), userArg{ID: 7})
		require.NoError(t, err)
		waitSuccess(t, sub)

		// A tag for a different user leaves the entry alone.
		require.NoError(t, api.InvalidateTags(context.Background(), query.NewTag("User", "99")))
		synctest.Wait()
		assert.Equal(t, int64(1), count.Load())

		// The result-derived tag triggers a refetch.
		require.NoError(t, api.InvalidateTags(context.Background(), query.NewTag("User", "7")))
		synctest.Wait()
		assert.Equal(t, int64(2), count.Load())

		sub.Unsubscribe()
	})
}

func waitSuccess[R any](t *testing.T, sub *query.Subscription[R]) query.State[R] {
	t.Helper()
	for st := range sub.Updates() {
		if st.IsSuccess() && !st.Stale {
			return st
		}
	}
	t.Fatal("updates closed before success")
	var zero query.State[R]
	return zero
}
