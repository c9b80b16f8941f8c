package ports

import "go.trai.ch/requery/internal/core/domain"

// SnapshotStore persists cache snapshots for rehydration across runs.
//
//go:generate mockgen -source=snapshot.go -destination=mocks/mock_snapshot.go -package=mocks
type SnapshotStore interface {
	// Load reads the most recent snapshot.
	// Returns nil, nil if no snapshot exists.
	Load() (*domain.CacheSnapshot, error)

	// Save persists the snapshot, replacing any previous one.
	Save(snapshot domain.CacheSnapshot) error
}
