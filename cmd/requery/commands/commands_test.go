package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/cmd/requery/commands"
	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/app"
	"go.trai.ch/requery/internal/build"
	"go.trai.ch/requery/internal/core/domain"
)

type mockApp struct {
	queryFunc  func(ctx context.Context, endpoint string, opts app.Options) error
	mutateFunc func(ctx context.Context, endpoint string, opts app.Options) error
	watchFunc  func(ctx context.Context, endpoint string, opts app.Options) error
}

func (m *mockApp) RunQuery(ctx context.Context, endpoint string, opts app.Options) error {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, endpoint, opts)
	}
	return nil
}

func (m *mockApp) RunMutation(ctx context.Context, endpoint string, opts app.Options) error {
	if m.mutateFunc != nil {
		return m.mutateFunc(ctx, endpoint, opts)
	}
	return nil
}

func (m *mockApp) RunWatch(ctx context.Context, endpoint string, opts app.Options) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, endpoint, opts)
	}
	return nil
}

func newCLI(a commands.Application) (*commands.CLI, *bytes.Buffer) {
	cli := commands.New(a, logger.NewNop())
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	return cli, buf
}

func TestCommands_Query(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedEndpoint string
		var capturedOpts app.Options

		mock := &mockApp{
			queryFunc: func(_ context.Context, endpoint string, opts app.Options) error {
				capturedEndpoint = endpoint
				capturedOpts = opts
				return nil
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"query", "getUser", "--arg", "id=7", "--arg", "name=alice", "--no-cache"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "getUser", capturedEndpoint)
		assert.True(t, capturedOpts.NoCache)
		assert.Equal(t, map[string]any{"id": float64(7), "name": "alice"}, capturedOpts.Args)
	})

	t.Run("rejects malformed argument flags", func(t *testing.T) {
		mock := &mockApp{
			queryFunc: func(_ context.Context, _ string, _ app.Options) error {
				panic("should not be called")
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"query", "getUser", "--arg", "no-equals-sign"})

		err := cli.Execute(context.Background())
		require.ErrorContains(t, err, domain.ErrInvalidArgument.Error())
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		mock := &mockApp{
			queryFunc: func(_ context.Context, _ string, _ app.Options) error {
				return errors.New("simulated error")
			},
		}

		cli, _ := newCLI(mock)
		cli.SetArgs([]string{"query", "getUser"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("requires an endpoint argument", func(t *testing.T) {
		cli, _ := newCLI(&mockApp{})
		cli.SetArgs([]string{"query"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
	})
}

func TestCommands_Mutate(t *testing.T) {
	var capturedEndpoint string
	var capturedOpts app.Options

	mock := &mockApp{
		mutateFunc: func(_ context.Context, endpoint string, opts app.Options) error {
			capturedEndpoint = endpoint
			capturedOpts = opts
			return nil
		},
	}

	cli, _ := newCLI(mock)
	cli.SetArgs([]string{"mutate", "updateUser", "--arg", "id=3", "--arg", "active=true"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "updateUser", capturedEndpoint)
	assert.Equal(t, map[string]any{"id": float64(3), "active": true}, capturedOpts.Args)
}

func TestCommands_Watch(t *testing.T) {
	var capturedEndpoint string
	var capturedOpts app.Options

	mock := &mockApp{
		watchFunc: func(_ context.Context, endpoint string, opts app.Options) error {
			capturedEndpoint = endpoint
			capturedOpts = opts
			return nil
		},
	}

	cli, _ := newCLI(mock)
	cli.SetArgs([]string{"watch", "listUsers", "--no-cache"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "listUsers", capturedEndpoint)
	assert.True(t, capturedOpts.NoCache)
	assert.Nil(t, capturedOpts.Args)
}

func TestCommands_Version(t *testing.T) {
	cli, buf := newCLI(&mockApp{})
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), build.Version)
}
