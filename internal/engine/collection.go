package engine

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vexdb/vexdb/internal/domain"
)

// Collection is a fixed-dimensionality point store with one configured
// metric. Points live in slots addressed by a byID map, so replace-by-id and
// delete-by-id are O(1); deleted slots are reused for later inserts.
//
// A single RWMutex guards all slot state. Upserts and deletes take the write
// lock, queries the read lock, so a query observes every point either before
// or after a replace, never a torn mix. Concurrent upserts to the same id are
// last-write-wins in lock acquisition order.
type Collection struct {
	name   string
	dims   int
	metric domain.Metric

	mu       sync.RWMutex
	ids      []string
	vectors  [][]float32
	payloads []string
	terms    [][]string

	byID map[string]uint32
	live *roaring.Bitmap
	free []uint32

	payloadIdx *payloadIndex
}

func newCollection(name string, dims int, metric domain.Metric) *Collection {
	return &Collection{
		name:       name,
		dims:       dims,
		metric:     metric,
		byID:       make(map[string]uint32),
		live:       roaring.New(),
		payloadIdx: newPayloadIndex(),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Dims returns the fixed vector dimensionality.
func (c *Collection) Dims() int { return c.dims }

// Metric returns the configured similarity metric.
func (c *Collection) Metric() domain.Metric { return c.metric }

// Count returns the number of live points.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Info returns a snapshot description of the collection.
func (c *Collection) Info() domain.CollectionInfo {
	return domain.CollectionInfo{
		Name:   c.name,
		Dims:   c.dims,
		Metric: c.metric.String(),
		Points: c.Count(),
	}
}

// Upsert inserts or replaces the given points. The batch is atomic: any
// vector whose length differs from the collection dims rejects the whole
// request with InvalidArgument before anything is applied. Points with an
// empty id get a generated UUID. The returned slice carries the points as
// applied, generated ids included, for write-ahead logging.
func (c *Collection) Upsert(points []domain.Point) ([]domain.Point, error) {
	for i, p := range points {
		if len(p.Vector) == 0 {
			return nil, domain.InvalidArgumentf("point %d: vector must not be empty", i)
		}
		if len(p.Vector) != c.dims {
			return nil, domain.InvalidArgumentf(
				"point %d: vector has %d dimensions, collection %q expects %d",
				i, len(p.Vector), c.name, c.dims)
		}
	}

	applied := make([]domain.Point, len(points))

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range points {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}

		vec := slices.Clone(p.Vector)
		terms := payloadTerms(p.PayloadJSON)

		if slot, ok := c.byID[id]; ok {
			c.payloadIdx.remove(slot, c.terms[slot])
			c.vectors[slot] = vec
			c.payloads[slot] = p.PayloadJSON
			c.terms[slot] = terms
			c.payloadIdx.add(slot, terms)
		} else {
			slot := c.allocSlot()
			c.ids[slot] = id
			c.vectors[slot] = vec
			c.payloads[slot] = p.PayloadJSON
			c.terms[slot] = terms
			c.byID[id] = slot
			c.live.Add(slot)
			c.payloadIdx.add(slot, terms)
		}

		applied[i] = domain.Point{ID: id, Vector: vec, PayloadJSON: p.PayloadJSON}
	}

	return applied, nil
}

// allocSlot reuses a freed slot or grows the slot arrays. Caller holds the
// write lock.
func (c *Collection) allocSlot() uint32 {
	if n := len(c.free); n > 0 {
		slot := c.free[n-1]
		c.free = c.free[:n-1]
		return slot
	}
	c.ids = append(c.ids, "")
	c.vectors = append(c.vectors, nil)
	c.payloads = append(c.payloads, "")
	c.terms = append(c.terms, nil)
	return uint32(len(c.ids) - 1)
}

// Delete removes points by id and returns how many were present. Unknown ids
// are ignored.
func (c *Collection) Delete(ids []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, id := range ids {
		slot, ok := c.byID[id]
		if !ok {
			continue
		}
		c.payloadIdx.remove(slot, c.terms[slot])
		c.live.Remove(slot)
		delete(c.byID, id)
		c.ids[slot] = ""
		c.vectors[slot] = nil
		c.payloads[slot] = ""
		c.terms[slot] = nil
		c.free = append(c.free, slot)
		removed++
	}
	return removed
}

// Search runs an exact exhaustive scan over the points matching all filters
// and returns at most topK hits sorted by descending score, ties broken by
// ascending id. The ctx deadline is honored by aborting before the scan
// starts.
func (c *Collection) Search(ctx context.Context, query []float32, topK int, filters []domain.Filter, withPayloads bool, metric domain.Metric) ([]domain.Hit, error) {
	if topK <= 0 {
		return nil, domain.InvalidArgumentf("top_k must be greater than zero")
	}
	if len(query) != c.dims {
		return nil, domain.InvalidArgumentf(
			"query vector has %d dimensions, collection %q expects %d",
			len(query), c.name, c.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "query aborted")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	candidates := c.live
	if len(filters) > 0 {
		candidates = c.payloadIdx.candidates(filters)
	}

	hits := make([]domain.Hit, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		slot := it.Next()
		hit := domain.Hit{
			ID:    c.ids[slot],
			Score: float64(score(metric, query, c.vectors[slot])),
		}
		if withPayloads {
			hit.PayloadJSON = c.payloads[slot]
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
