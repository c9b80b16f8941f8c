package domain

import "time"

// File and directory names the CLI looks for.
const (
	// RequeryFileName is the API definition file the CLI loads.
	RequeryFileName = "requery.yaml"
	// DefaultSnapshotPath is where snapshots are stored relative to the
	// definition file, unless the definition overrides it.
	DefaultSnapshotPath = ".requery/snapshot.yaml"
)

// Default file permissions for files and directories the CLI creates.
const (
	FilePerm = 0o644
	DirPerm  = 0o755
)

// APISpec is a loaded, validated API definition.
type APISpec struct {
	// Name identifies the API. Used as the tracer instrumentation name.
	Name string
	// BaseURL is the prefix request paths are resolved against.
	BaseURL string
	// Mode selects development or production behavior.
	Mode string
	// TagTypes is the closed registry of tag type names.
	TagTypes []string
	// KeepUnusedFor overrides the retention window when positive.
	KeepUnusedFor time.Duration
	// RefetchParallelism bounds concurrent invalidation refetches.
	RefetchParallelism int
	// SnapshotPath is where the cache snapshot lives, relative to Root.
	SnapshotPath string
	// Headers are attached to every request.
	Headers map[string]string
	// Root is the directory containing the definition file.
	Root string
	// Endpoints are the declared endpoints, ordered by name.
	Endpoints []EndpointSpec
	// Watch are the file-watch invalidation rules.
	Watch []WatchRule
}

// EndpointKind distinguishes declared queries from mutations.
type EndpointKind string

const (
	// EndpointQuery marks a cached, deduplicated read endpoint.
	EndpointQuery EndpointKind = "query"
	// EndpointMutation marks a write endpoint that invalidates tags.
	EndpointMutation EndpointKind = "mutation"
)

// EndpointSpec is a declared endpoint.
type EndpointSpec struct {
	// Name uniquely identifies the endpoint within the API.
	Name string
	// Kind is query or mutation.
	Kind EndpointKind
	// Method is the HTTP method. Defaults to GET for queries and POST
	// for mutations.
	Method string
	// Path is the request path template. Placeholders of the form
	// {key} are substituted from the argument; remaining argument keys
	// become query parameters for GET requests and the JSON body
	// otherwise.
	Path string
	// Provides are static tags attached to every successful result.
	// Queries only.
	Provides []Tag
	// ProvidesExpr computes result-dependent provided tags. The
	// expression sees `arg` and `result` and returns a list of tag
	// strings. Queries only.
	ProvidesExpr string
	// Invalidates are static tags invalidated on success. Mutations only.
	Invalidates []Tag
	// InvalidatesExpr computes result-dependent invalidated tags.
	// Mutations only.
	InvalidatesExpr string
}

// WatchRule invalidates tags when watched files change.
type WatchRule struct {
	// Path is the file or directory to watch, relative to Root.
	Path string
	// Recursive watches subdirectories as well.
	Recursive bool
	// Tags are invalidated on a change.
	Tags []Tag
	// Debounce collapses change bursts. Defaults to 500ms.
	Debounce time.Duration
}
