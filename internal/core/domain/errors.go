package domain

import "go.trai.ch/zerr"

var (
	// ErrUnknownTagType is returned when a tag uses a type that is not in the registry.
	ErrUnknownTagType = zerr.New("unknown tag type")

	// ErrUnknownEndpoint is returned when an operation references an endpoint that was never registered.
	ErrUnknownEndpoint = zerr.New("unknown endpoint")

	// ErrDuplicateEndpoint is returned when registering an endpoint with a name that already exists.
	ErrDuplicateEndpoint = zerr.New("endpoint already registered")

	// ErrInvalidEndpointName is returned when an endpoint name is empty or malformed.
	ErrInvalidEndpointName = zerr.New("invalid endpoint name")

	// ErrNoRequestSource is returned when an endpoint declares neither a request builder nor a fetch function.
	ErrNoRequestSource = zerr.New("endpoint must declare a request builder or a fetch function")

	// ErrKeyEncodingFailed is returned when an endpoint argument cannot be encoded for key hashing.
	ErrKeyEncodingFailed = zerr.New("failed to encode argument for cache key")

	// ErrFetchFailed is returned when the base fetcher fails to execute a request.
	ErrFetchFailed = zerr.New("fetch failed")

	// ErrTransformFailed is returned when a response transform fails.
	ErrTransformFailed = zerr.New("failed to transform response")

	// ErrRequestRejected is returned when the upstream answers with an error status.
	ErrRequestRejected = zerr.New("upstream rejected request")

	// ErrCacheClosed is returned when an operation is attempted on a closed cache.
	ErrCacheClosed = zerr.New("cache is closed")

	// ErrNoReducer is returned when a store is configured without a root reducer.
	ErrNoReducer = zerr.New("store requires a reducer")

	// ErrNoFetcher is returned when an API is configured without a base fetcher.
	ErrNoFetcher = zerr.New("api requires a base fetcher")

	// ErrConfigReadFailed is returned when the API definition file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read definition file")

	// ErrConfigParseFailed is returned when the API definition file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse definition file")

	// ErrConfigNotFound is returned when no API definition file can be found.
	ErrConfigNotFound = zerr.New("could not find requery.yaml")

	// ErrInvalidTagExpression is returned when a tag expression fails to compile.
	ErrInvalidTagExpression = zerr.New("invalid tag expression")

	// ErrTagExpressionResult is returned when a tag expression evaluates to an unusable value.
	ErrTagExpressionResult = zerr.New("tag expression must return a tag or a list of tags")

	// ErrSnapshotReadFailed is returned when the snapshot file cannot be read.
	ErrSnapshotReadFailed = zerr.New("failed to read snapshot")

	// ErrSnapshotWriteFailed is returned when the snapshot file cannot be written.
	ErrSnapshotWriteFailed = zerr.New("failed to write snapshot")

	// ErrSnapshotMarshalFailed is returned when the snapshot cannot be marshaled.
	ErrSnapshotMarshalFailed = zerr.New("failed to marshal snapshot")

	// ErrSnapshotUnmarshalFailed is returned when the snapshot cannot be unmarshaled.
	ErrSnapshotUnmarshalFailed = zerr.New("failed to unmarshal snapshot")

	// ErrWatcherStartFailed is returned when the file watcher cannot be started.
	ErrWatcherStartFailed = zerr.New("failed to start file watcher")

	// ErrTracerSetupFailed is returned when the trace exporter cannot be created.
	ErrTracerSetupFailed = zerr.New("failed to set up tracer")

	// ErrMissingArgument is returned when a path template references an
	// argument that was not supplied.
	ErrMissingArgument = zerr.New("missing required argument")

	// ErrInvalidArgument is returned when an argument flag is not of the form key=value.
	ErrInvalidArgument = zerr.New("invalid argument, expected key=value")

	// ErrMutationFailed is returned when a mutation trigger fails.
	ErrMutationFailed = zerr.New("mutation failed")
)
