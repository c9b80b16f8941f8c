package ports

import "go.trai.ch/requery/internal/core/domain"

// SpecLoader loads the declarative API definition the CLI runs against.
//
//go:generate mockgen -source=config.go -destination=mocks/mock_config.go -package=mocks
type SpecLoader interface {
	// Load finds and parses the definition, searching cwd and its
	// ancestors.
	Load(cwd string) (*domain.APISpec, error)
}
