package service

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jellyneo/idb/internal/domain"
)

// Outcome is the per-item result emitted by batch and queue runs.
type Outcome struct {
	ID     domain.ItemID      `json:"id"`
	Kind   string             `json:"kind"`
	Record *domain.ItemRecord `json:"record,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func NewOutcome(id domain.ItemID, record *domain.ItemRecord, err error) Outcome {
	outcome := Outcome{ID: id, Kind: domain.Kind(err), Record: record}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

// Sink receives outcomes one at a time. A sink error stops the run.
type Sink func(Outcome) error

// Batch looks up every id with at most MaxWorkers lookups in flight, paced by
// the service limiter. A failed item is reported to sink and does not stop
// the others.
func (s *Service) Batch(ctx context.Context, ids []domain.ItemID, sink Sink) error {
	var mu sync.Mutex
	emit := func(o Outcome) error {
		mu.Lock()
		defer mu.Unlock()
		return sink(o)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	log.Infof("🚀 Looking up %d items with %d workers", len(ids), s.maxWorkers)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.limiter.Take()
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := s.GetItemRecord(gctx, id)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return emit(NewOutcome(id, record, err))
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
