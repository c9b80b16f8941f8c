// Package config provides the loader for requery.yaml API definitions.
package config

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce collapses file-watch change bursts when a rule does not
// set its own window.
const DefaultDebounce = 500 * time.Millisecond

var validEndpointNameRegex = regexp.MustCompile("^[a-zA-Z][a-zA-Z0-9_-]*$")

// Loader implements ports.SpecLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// Load finds the definition file by walking up from cwd and parses it.
func (l *Loader) Load(cwd string) (*domain.APISpec, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	data, err := l.FS.ReadFile(configPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", configPath)
	}

	var file APIFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", configPath)
	}

	return l.buildSpec(configPath, &file)
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	currentDir := cwd

	for {
		configPath := filepath.Join(currentDir, domain.RequeryFileName)
		if _, err := l.FS.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) buildSpec(configPath string, file *APIFile) (*domain.APISpec, error) {
	spec := &domain.APISpec{
		Name:               file.Name,
		BaseURL:            strings.TrimRight(file.BaseURL, "/"),
		Mode:               file.Mode,
		TagTypes:           file.TagTypes,
		RefetchParallelism: file.RefetchParallelism,
		SnapshotPath:       file.Snapshot,
		Headers:            file.Headers,
		Root:               filepath.Dir(configPath),
	}
	if spec.Name == "" {
		spec.Name = "requery"
	}
	if spec.SnapshotPath == "" {
		spec.SnapshotPath = domain.DefaultSnapshotPath
	}

	switch file.Mode {
	case "", "development", "production":
	default:
		return nil, zerr.With(domain.ErrConfigParseFailed, "mode", file.Mode)
	}

	if file.KeepUnusedFor != "" {
		d, err := time.ParseDuration(file.KeepUnusedFor)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "keep_unused_for", file.KeepUnusedFor)
		}
		spec.KeepUnusedFor = d
	}

	known := make(map[string]bool, len(file.TagTypes))
	for _, t := range file.TagTypes {
		known[t] = true
	}

	names := make([]string, 0, len(file.Endpoints))
	for name := range file.Endpoints {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ep, err := l.buildEndpoint(name, file.Endpoints[name], known)
		if err != nil {
			return nil, err
		}
		spec.Endpoints = append(spec.Endpoints, ep)
	}

	for _, dto := range file.Watch {
		rule, err := l.buildWatchRule(dto, known)
		if err != nil {
			return nil, err
		}
		spec.Watch = append(spec.Watch, rule)
	}

	return spec, nil
}

func (l *Loader) buildEndpoint(name string, dto *EndpointDTO, known map[string]bool) (domain.EndpointSpec, error) {
	if !validEndpointNameRegex.MatchString(name) {
		return domain.EndpointSpec{}, zerr.With(domain.ErrInvalidEndpointName, "endpoint", name)
	}

	ep := domain.EndpointSpec{
		Name:            name,
		Method:          strings.ToUpper(dto.Method),
		Path:            dto.Path,
		ProvidesExpr:    dto.ProvidesExpr,
		InvalidatesExpr: dto.InvalidatesExpr,
	}

	switch dto.Kind {
	case "", string(domain.EndpointQuery):
		ep.Kind = domain.EndpointQuery
	case string(domain.EndpointMutation):
		ep.Kind = domain.EndpointMutation
	default:
		return domain.EndpointSpec{}, zerr.With(zerr.With(domain.ErrConfigParseFailed, "endpoint", name), "kind", dto.Kind)
	}

	if ep.Path == "" {
		return domain.EndpointSpec{}, zerr.With(zerr.With(domain.ErrConfigParseFailed, "endpoint", name), "missing", "path")
	}
	if ep.Method == "" {
		if ep.Kind == domain.EndpointQuery {
			ep.Method = "GET"
		} else {
			ep.Method = "POST"
		}
	}

	if ep.Kind == domain.EndpointQuery && (len(dto.Invalidates) > 0 || dto.InvalidatesExpr != "") {
		return domain.EndpointSpec{}, zerr.With(zerr.With(domain.ErrConfigParseFailed, "endpoint", name), "reason", "queries cannot invalidate tags")
	}
	if ep.Kind == domain.EndpointMutation && (len(dto.Provides) > 0 || dto.ProvidesExpr != "") {
		return domain.EndpointSpec{}, zerr.With(zerr.With(domain.ErrConfigParseFailed, "endpoint", name), "reason", "mutations cannot provide tags")
	}

	var err error
	if ep.Provides, err = parseTags(dto.Provides, known); err != nil {
		return domain.EndpointSpec{}, zerr.With(err, "endpoint", name)
	}
	if ep.Invalidates, err = parseTags(dto.Invalidates, known); err != nil {
		return domain.EndpointSpec{}, zerr.With(err, "endpoint", name)
	}

	return ep, nil
}

func (l *Loader) buildWatchRule(dto *WatchDTO, known map[string]bool) (domain.WatchRule, error) {
	if dto.Path == "" {
		return domain.WatchRule{}, zerr.With(domain.ErrConfigParseFailed, "watch", "missing path")
	}
	if len(dto.Invalidates) == 0 {
		return domain.WatchRule{}, zerr.With(zerr.With(domain.ErrConfigParseFailed, "watch", dto.Path), "missing", "invalidates")
	}

	rule := domain.WatchRule{
		Path:      dto.Path,
		Recursive: dto.Recursive,
		Debounce:  DefaultDebounce,
	}

	if dto.Debounce != "" {
		d, err := time.ParseDuration(dto.Debounce)
		if err != nil {
			return domain.WatchRule{}, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "debounce", dto.Debounce)
		}
		rule.Debounce = d
	}

	var err error
	if rule.Tags, err = parseTags(dto.Invalidates, known); err != nil {
		return domain.WatchRule{}, zerr.With(err, "watch", dto.Path)
	}

	return rule, nil
}

// parseTags parses textual tags and checks their types against the
// declared registry.
func parseTags(raw []string, known map[string]bool) ([]domain.Tag, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	tags := make([]domain.Tag, 0, len(raw))
	for _, s := range raw {
		tag, err := domain.ParseTag(s)
		if err != nil {
			return nil, err
		}
		if !known[tag.Type] {
			return nil, zerr.With(domain.ErrUnknownTagType, "type", tag.Type)
		}
		tags = append(tags, tag)
	}

	return domain.DedupTags(tags), nil
}
