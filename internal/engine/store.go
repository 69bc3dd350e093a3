package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/vexdb/vexdb/internal/domain"
	"github.com/vexdb/vexdb/pkg/log"
	"github.com/vexdb/vexdb/pkg/metrics"
	"github.com/vexdb/vexdb/pkg/wal"
)

// Store is the database state: the collection registry plus an optional
// write-ahead log and optional metrics gauges. Every transport (HTTP facade,
// Kafka consumer) drives the same Store, so durability and inventory gauges
// stay consistent no matter where a write came from.
//
// Mutations append to the WAL after they have been applied; a WAL append
// failure is logged but does not fail the request.
type Store struct {
	logger   *slog.Logger
	registry *Registry
	wal      *wal.WAL
	metrics  *metrics.Metrics
}

// NewStore builds a Store and, when a WAL is supplied, replays it to rebuild
// in-memory state. A replay failure is logged and otherwise ignored: the
// store starts with whatever prefix of the log applied cleanly.
func NewStore(w *wal.WAL, m *metrics.Metrics) *Store {
	s := &Store{
		logger:   log.Logger("engine"),
		registry: NewRegistry(),
		wal:      w,
		metrics:  m,
	}
	s.replay()
	s.refreshGauges()
	return s
}

func (s *Store) replay() {
	if s.wal == nil {
		return
	}

	records := 0
	err := s.wal.Replay(func(rec wal.Record) error {
		records++
		s.applyRecord(rec)
		return nil
	})
	if err != nil {
		s.logger.Warn("wal replay stopped early", "applied", records, "error", err)
		return
	}
	if records > 0 {
		s.logger.Info("wal replay complete", "records", records)
	}
}

// applyRecord replays one WAL record. Records that no longer apply (for
// example an upsert into a collection dropped later in the log) are logged
// and skipped rather than aborting the replay.
func (s *Store) applyRecord(rec wal.Record) {
	switch rec.Type {
	case wal.RecordCreateCollection:
		metric, err := domain.ParseMetric(rec.Metric)
		if err == nil {
			_, err = s.registry.Create(rec.Collection, rec.Dims, metric)
		}
		if err != nil {
			s.logger.Warn("skipping wal create_collection", "collection", rec.Collection, "error", err)
		}
	case wal.RecordDropCollection:
		if err := s.registry.Drop(rec.Collection); err != nil {
			s.logger.Warn("skipping wal drop_collection", "collection", rec.Collection, "error", err)
		}
	case wal.RecordUpsert:
		coll, err := s.registry.Get(rec.Collection)
		if err == nil {
			_, err = coll.Upsert(walPointsToDomain(rec.Points))
		}
		if err != nil {
			s.logger.Warn("skipping wal upsert", "collection", rec.Collection, "error", err)
		}
	case wal.RecordDeletePoints:
		coll, err := s.registry.Get(rec.Collection)
		if err != nil {
			s.logger.Warn("skipping wal delete_points", "collection", rec.Collection, "error", err)
			return
		}
		coll.Delete(rec.IDs)
	default:
		s.logger.Warn("skipping unknown wal record", "type", string(rec.Type))
	}
}

// CreateCollection registers a new collection.
func (s *Store) CreateCollection(ctx context.Context, req *domain.CreateCollectionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	metric, err := domain.ParseMetric(req.Metric)
	if err != nil {
		return err
	}

	if _, err := s.registry.Create(req.Name, req.Dims, metric); err != nil {
		return err
	}

	s.appendWAL(wal.Record{
		Type:       wal.RecordCreateCollection,
		Collection: req.Name,
		Dims:       req.Dims,
		Metric:     metric.String(),
		TsMs:       nowMs(),
	})
	s.refreshGauges()
	return nil
}

// DropCollection removes a collection and all its points.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := s.registry.Drop(name); err != nil {
		return err
	}

	s.appendWAL(wal.Record{
		Type:       wal.RecordDropCollection,
		Collection: name,
		TsMs:       nowMs(),
	})
	s.refreshGauges()
	return nil
}

// ListCollections describes all collections.
func (s *Store) ListCollections(ctx context.Context) []domain.CollectionInfo {
	return s.registry.List()
}

// DescribeCollection describes one collection.
func (s *Store) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	coll, err := s.registry.Get(name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	return coll.Info(), nil
}

// Upsert inserts or replaces points in a collection and returns how many
// were applied.
func (s *Store) Upsert(ctx context.Context, collection string, points []domain.Point) (int64, error) {
	coll, err := s.registry.Get(collection)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	applied, err := coll.Upsert(points)
	if err != nil {
		return 0, err
	}

	s.appendWAL(wal.Record{
		Type:       wal.RecordUpsert,
		Collection: collection,
		Points:     domainPointsToWAL(applied),
		TsMs:       nowMs(),
	})
	s.refreshGauges()
	return int64(len(applied)), nil
}

// DeletePoints removes points by id and returns how many were present.
func (s *Store) DeletePoints(ctx context.Context, collection string, ids []string) (int64, error) {
	coll, err := s.registry.Get(collection)
	if err != nil {
		return 0, err
	}

	removed := coll.Delete(ids)
	if removed > 0 {
		s.appendWAL(wal.Record{
			Type:       wal.RecordDeletePoints,
			Collection: collection,
			IDs:        ids,
			TsMs:       nowMs(),
		})
		s.refreshGauges()
	}
	return int64(removed), nil
}

// Query runs a top-k similarity search against a collection.
func (s *Store) Query(ctx context.Context, collection string, req *domain.QueryRequest) ([]domain.Hit, error) {
	coll, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}

	metric := coll.Metric()
	if req.MetricOverride != "" {
		metric, err = domain.ParseMetric(req.MetricOverride)
		if err != nil {
			return nil, err
		}
	}

	return coll.Search(ctx, req.Vector, req.TopK, req.Filters, req.WithPayloads, metric)
}

// Registry exposes the underlying registry for composition and tests.
func (s *Store) Registry() *Registry {
	return s.registry
}

func (s *Store) appendWAL(rec wal.Record) {
	if s.wal == nil {
		return
	}
	if err := s.wal.Append(rec); err != nil {
		s.logger.Error("failed to append wal record", "type", string(rec.Type), "error", err)
	}
}

func (s *Store) refreshGauges() {
	s.metrics.SetCollectionCount(s.registry.Len())
	s.metrics.SetPointCount(s.registry.TotalPoints())
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func walPointsToDomain(points []wal.Point) []domain.Point {
	out := make([]domain.Point, len(points))
	for i, p := range points {
		out[i] = domain.Point{ID: p.ID, Vector: p.Vector, PayloadJSON: p.PayloadJSON}
	}
	return out
}

func domainPointsToWAL(points []domain.Point) []wal.Point {
	out := make([]wal.Point, len(points))
	for i, p := range points {
		out[i] = wal.Point{ID: p.ID, Vector: p.Vector, PayloadJSON: p.PayloadJSON}
	}
	return out
}
