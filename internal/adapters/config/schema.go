package config

// APIFile represents the structure of the requery.yaml definition file.
type APIFile struct {
	Version            string                  `yaml:"version"`
	Name               string                  `yaml:"name"`
	BaseURL            string                  `yaml:"base_url"`
	Mode               string                  `yaml:"mode"`
	TagTypes           []string                `yaml:"tag_types"`
	KeepUnusedFor      string                  `yaml:"keep_unused_for"`
	RefetchParallelism int                     `yaml:"refetch_parallelism"`
	Snapshot           string                  `yaml:"snapshot"`
	Headers            map[string]string       `yaml:"headers"`
	Endpoints          map[string]*EndpointDTO `yaml:"endpoints"`
	Watch              []*WatchDTO             `yaml:"watch"`
}

// EndpointDTO represents an endpoint definition in the configuration.
type EndpointDTO struct {
	Kind            string   `yaml:"kind"`
	Method          string   `yaml:"method"`
	Path            string   `yaml:"path"`
	Provides        []string `yaml:"provides"`
	ProvidesExpr    string   `yaml:"provides_expr"`
	Invalidates     []string `yaml:"invalidates"`
	InvalidatesExpr string   `yaml:"invalidates_expr"`
}

// WatchDTO represents a file-watch invalidation rule in the configuration.
type WatchDTO struct {
	Path        string   `yaml:"path"`
	Recursive   bool     `yaml:"recursive"`
	Invalidates []string `yaml:"invalidates"`
	Debounce    string   `yaml:"debounce"`
}
