package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/ratelimit"

	"jellyneo/idb/internal/client"
	"jellyneo/idb/internal/document"
	"jellyneo/idb/internal/domain"
	"jellyneo/idb/internal/extract"
	"jellyneo/idb/internal/queue"
)

var tracer = otel.Tracer("jellyneo.idb.service")

type Options struct {
	URLTemplate string
	MaxWorkers  int
	// Limiter paces batch and queue lookups. Nil means unlimited.
	Limiter     ratelimit.Limiter
	MinIdleTime time.Duration
	MaxRequeues int
}

type Service struct {
	fetcher     client.Fetcher
	queue       queue.Queue
	metrics     *client.Metrics
	urlTemplate string
	maxWorkers  int
	limiter     ratelimit.Limiter
	minIdleTime time.Duration
	maxRequeues int
}

// NewService wires the lookup pipeline. q may be nil when no queue mode is used.
func NewService(fetcher client.Fetcher, q queue.Queue, metrics *client.Metrics, opts Options) *Service {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}
	minIdleTime := opts.MinIdleTime
	if minIdleTime <= 0 {
		minIdleTime = time.Minute
	}

	return &Service{
		fetcher:     fetcher,
		queue:       q,
		metrics:     metrics,
		urlTemplate: opts.URLTemplate,
		maxWorkers:  max(opts.MaxWorkers, 1),
		limiter:     limiter,
		minIdleTime: minIdleTime,
		maxRequeues: max(opts.MaxRequeues, 0),
	}
}

// ItemURL builds the price history page address for id.
func (s *Service) ItemURL(id domain.ItemID) string {
	return fmt.Sprintf(s.urlTemplate, int64(id))
}

// LookupItem parses raw user input as an item id and fetches its record.
func (s *Service) LookupItem(ctx context.Context, raw string) (*domain.ItemRecord, error) {
	id, err := domain.ParseItemID(raw)
	if err != nil {
		s.metrics.IncRecord(domain.Kind(err))
		return nil, err
	}
	return s.GetItemRecord(ctx, id)
}

// GetItemRecord fetches, parses and extracts the record for one item.
//
// Errors are one of *domain.ValidationError, domain.ErrItemNotFound,
// *domain.UnreachableError, *domain.MalformedPageError or
// *domain.MalformedNoticeError, or a wrapped context error on cancellation.
func (s *Service) GetItemRecord(ctx context.Context, id domain.ItemID) (*domain.ItemRecord, error) {
	ctx, span := tracer.Start(ctx, "GetItemRecord")
	defer span.End()

	span.SetAttributes(attribute.Int64("item_id", int64(id)))

	record, err := s.getItemRecord(ctx, id)
	kind := domain.Kind(err)
	s.metrics.IncRecord(kind)
	span.SetAttributes(attribute.String("result", kind))

	if err != nil {
		span.RecordError(err)
		if !domain.IsRecoverable(err) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) getItemRecord(ctx context.Context, id domain.ItemID) (*domain.ItemRecord, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	url := s.ItemURL(id)
	log.Debugf("🔎 Fetching item %d from %s", id, url)

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		var exhausted *client.ExhaustedRetriesError
		switch {
		case errors.Is(err, client.ErrNotFound):
			return nil, fmt.Errorf("item %d: %w", id, domain.ErrItemNotFound)
		case errors.As(err, &exhausted):
			return nil, &domain.UnreachableError{Cause: err}
		default:
			return nil, fmt.Errorf("failed to fetch item %d: %w", id, err)
		}
	}

	doc, err := document.Parse(body)
	if err != nil {
		return nil, &domain.MalformedPageError{Field: "document", Err: err}
	}

	name, err := extract.Name(doc)
	if err != nil {
		return nil, err
	}

	imageURL, err := extract.ImageURL(doc)
	if err != nil {
		return nil, err
	}

	notice, err := extract.InflationNotice(doc)
	if err != nil {
		return nil, err
	}

	record := &domain.ItemRecord{
		ID:              id,
		Name:            name,
		ImageURL:        imageURL,
		PriceHistory:    extract.PriceHistory(doc),
		InflationNotice: notice,
	}

	log.Debugf("Successfully fetched and parsed item %d (%s) with %d price entries", id, name, len(record.PriceHistory))
	return record, nil
}
