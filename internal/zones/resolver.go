package zones

import (
	"context"
	"fmt"
	"sync"
)

// Resolver maps zone numbers to names from an in-memory copy of the
// zone directory.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Refresh swaps the cache atomically; readers never see a partial load.
type Resolver struct {
	repo Repository

	mu    sync.RWMutex
	names map[int]string
}

// NewResolver creates a Resolver backed by the given repository.
// Call Refresh before first use to load the directory.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{
		repo:  repo,
		names: make(map[int]string),
	}
}

// Refresh reloads the zone directory from the repository.
func (r *Resolver) Refresh(ctx context.Context) error {
	zones, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("refreshing zone directory: %w", err)
	}

	names := make(map[int]string, len(zones))
	for _, z := range zones {
		if z.Name != "" {
			names[z.Number] = z.Name
		}
	}

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return nil
}

// Name returns the name for a zone number, or UnnamedZone if the zone
// has no directory entry.
func (r *Resolver) Name(number int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.names[number]; ok {
		return name
	}
	return UnnamedZone
}

// Count returns the number of named zones currently cached.
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
