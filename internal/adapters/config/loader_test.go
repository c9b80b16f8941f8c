package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/requery/internal/adapters/config"
	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/core/domain"
)

func TestLoader_Load_FullDefinition(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	createFile(t, rootDir, domain.RequeryFileName, `
version: "1"
name: petstore
base_url: https://api.example.com/
mode: development
tag_types: [User, Post]
keep_unused_for: 90s
refetch_parallelism: 4
snapshot: .cache/snap.yaml
headers:
  Authorization: Bearer test
endpoints:
  getUser:
    path: /users/{id}
    provides: ["User"]
    provides_expr: '["User(" + arg.id + ")"]'
  listUsers:
    kind: query
    path: /users
    provides: ["User"]
  updateUser:
    kind: mutation
    method: PUT
    path: /users/{id}
    invalidates_expr: '["User(" + arg.id + ")"]'
  resetAll:
    kind: mutation
    path: /reset
    invalidates: ["User", "Post"]
watch:
  - path: fixtures/users.json
    invalidates: ["User"]
    debounce: 50ms
`)

	loader := config.NewLoader(logger.NewNop())
	spec, err := loader.Load(rootDir)
	require.NoError(t, err)

	assert.Equal(t, "petstore", spec.Name)
	assert.Equal(t, "https://api.example.com", spec.BaseURL)
	assert.Equal(t, "development", spec.Mode)
	assert.Equal(t, []string{"User", "Post"}, spec.TagTypes)
	assert.Equal(t, 90*time.Second, spec.KeepUnusedFor)
	assert.Equal(t, 4, spec.RefetchParallelism)
	assert.Equal(t, ".cache/snap.yaml", spec.SnapshotPath)
	assert.Equal(t, "Bearer test", spec.Headers["Authorization"])
	assert.Equal(t, rootDir, spec.Root)

	require.Len(t, spec.Endpoints, 4)
	// Endpoints are sorted by name.
	assert.Equal(t, "getUser", spec.Endpoints[0].Name)
	assert.Equal(t, domain.EndpointQuery, spec.Endpoints[0].Kind)
	assert.Equal(t, "GET", spec.Endpoints[0].Method)
	assert.Equal(t, []domain.Tag{domain.TypeTag("User")}, spec.Endpoints[0].Provides)
	assert.NotEmpty(t, spec.Endpoints[0].ProvidesExpr)

	assert.Equal(t, "resetAll", spec.Endpoints[2].Name)
	assert.Equal(t, domain.EndpointMutation, spec.Endpoints[2].Kind)
	assert.Equal(t, "POST", spec.Endpoints[2].Method)
	assert.Equal(t, []domain.Tag{domain.TypeTag("User"), domain.TypeTag("Post")}, spec.Endpoints[2].Invalidates)

	assert.Equal(t, "updateUser", spec.Endpoints[3].Name)
	assert.Equal(t, "PUT", spec.Endpoints[3].Method)

	require.Len(t, spec.Watch, 1)
	assert.Equal(t, "fixtures/users.json", spec.Watch[0].Path)
	assert.Equal(t, []domain.Tag{domain.TypeTag("User")}, spec.Watch[0].Tags)
	assert.Equal(t, 50*time.Millisecond, spec.Watch[0].Debounce)
}

func TestLoader_Load_FindsDefinitionInParent(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	createFile(t, rootDir, domain.RequeryFileName, `
tag_types: [User]
base_url: https://api.example.com
endpoints:
  getUser:
    path: /users/{id}
`)

	nested := filepath.Join(rootDir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	loader := config.NewLoader(logger.NewNop())
	spec, err := loader.Load(nested)
	require.NoError(t, err)
	assert.Equal(t, rootDir, spec.Root)
}

func TestLoader_Load_NotFound(t *testing.T) {
	t.Parallel()

	loader := config.NewLoader(logger.NewNop())
	_, err := loader.Load(t.TempDir())
	require.ErrorContains(t, err, domain.ErrConfigNotFound.Error())
}

func TestLoader_Load_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "malformed yaml",
			content: "endpoints: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "unknown tag type",
			content: `
tag_types: [User]
endpoints:
  getPost:
    path: /posts/{id}
    provides: ["Post"]
`,
			wantErr: domain.ErrUnknownTagType,
		},
		{
			name: "invalid endpoint name",
			content: `
tag_types: [User]
endpoints:
  "9bad name":
    path: /users
`,
			wantErr: domain.ErrInvalidEndpointName,
		},
		{
			name: "missing path",
			content: `
tag_types: [User]
endpoints:
  getUser:
    provides: ["User"]
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "query cannot invalidate",
			content: `
tag_types: [User]
endpoints:
  getUser:
    path: /users
    invalidates: ["User"]
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "mutation cannot provide",
			content: `
tag_types: [User]
endpoints:
  updateUser:
    kind: mutation
    path: /users
    provides: ["User"]
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "bad kind",
			content: `
tag_types: [User]
endpoints:
  getUser:
    kind: subscription
    path: /users
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "bad duration",
			content: `
tag_types: [User]
keep_unused_for: soon
endpoints:
  getUser:
    path: /users
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "bad mode",
			content: `
mode: staging
tag_types: [User]
endpoints:
  getUser:
    path: /users
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "watch without tags",
			content: `
tag_types: [User]
watch:
  - path: fixtures
`,
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "malformed tag",
			content: `
tag_types: [User]
endpoints:
  getUser:
    path: /users
    provides: ["User()"]
`,
			wantErr: domain.ErrInvalidTagExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rootDir := t.TempDir()
			createFile(t, rootDir, domain.RequeryFileName, tt.content)

			loader := config.NewLoader(logger.NewNop())
			_, err := loader.Load(rootDir)
			require.ErrorContains(t, err, tt.wantErr.Error())
		})
	}
}

func createFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), domain.FilePerm))
}
