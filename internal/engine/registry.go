package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/vexdb/vexdb/internal/domain"
)

// Registry maps collection names to collections. Its lock scopes registry
// structure only (create/drop); point data inside a collection is guarded by
// that collection's own lock, so lookups and point operations on different
// collections never contend here beyond the read lock.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
	}
}

// Create registers a new empty collection. A second create with the same
// name fails with AlreadyExists even when the parameters are identical.
func (r *Registry) Create(name string, dims int, metric domain.Metric) (*Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.InvalidArgumentf("collection name is required")
	}
	if dims <= 0 {
		return nil, domain.InvalidArgumentf("dims must be greater than zero")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[name]; ok {
		return nil, domain.AlreadyExistsf("collection %q", name)
	}
	coll := newCollection(name, dims, metric)
	r.collections[name] = coll
	return coll, nil
}

// Get looks up a collection by name.
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coll, ok := r.collections[name]
	if !ok {
		return nil, domain.NotFoundf("collection %q", name)
	}
	return coll, nil
}

// Drop removes a collection and all its points.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[name]; !ok {
		return domain.NotFoundf("collection %q", name)
	}
	delete(r.collections, name)
	return nil
}

// List describes all collections, sorted by name.
func (r *Registry) List() []domain.CollectionInfo {
	r.mu.RLock()
	colls := make([]*Collection, 0, len(r.collections))
	for _, coll := range r.collections {
		colls = append(colls, coll)
	}
	r.mu.RUnlock()

	infos := make([]domain.CollectionInfo, 0, len(colls))
	for _, coll := range colls {
		infos = append(infos, coll.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of registered collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

// TotalPoints returns the live point count across all collections.
func (r *Registry) TotalPoints() int {
	r.mu.RLock()
	colls := make([]*Collection, 0, len(r.collections))
	for _, coll := range r.collections {
		colls = append(colls, coll)
	}
	r.mu.RUnlock()

	total := 0
	for _, coll := range colls {
		total += coll.Count()
	}
	return total
}
