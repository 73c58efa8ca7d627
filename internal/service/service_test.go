package service

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jellyneo/idb/internal/client"
	"jellyneo/idb/internal/domain"
)

const urlTemplate = "https://items.jellyneo.net/item/%d/price-history/"

const greenApplePage = `<!DOCTYPE html>
<html><head>
<meta property="og:image" content="https://images.neopets.com/items/foo_greenapple.gif">
</head><body>
<h1>Green Apple</h1>
<div class="alert-box inflated"><strong>45%</strong> price increase detected as of August 14, 2023.</div>
<div class="pricing-row-container">
<div class="price-row"><span class="price-date">March 3, 2020</span> - <a href="#">12,000 NP</a></div>
<div class="price-row"><span class="price-date">N/A</span> - <a href="#">1 NP</a></div>
<div class="price-row"><span class="price-date">January 1, 2019</span> - <a href="#">500 NP</a></div>
</div>
</body></html>`

const plainPage = `<html><head>
<meta property="og:image" content="https://images.neopets.com/items/plain.gif">
</head><body><h1>Plain Item</h1></body></html>`

type fixture struct {
	service   *Service
	transport *httpmock.MockTransport
	metrics   *client.Metrics
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	transport := httpmock.NewMockTransport()
	metrics := client.NewMetrics()
	fetcher := client.NewFetcher(
		client.Options{Timeout: time.Second, Transport: transport},
		client.NewRetryPolicy(maxAttempts, 0, 0),
		nil,
		metrics,
	)
	svc := NewService(fetcher, nil, metrics, Options{URLTemplate: urlTemplate, MaxWorkers: 2})
	return &fixture{service: svc, transport: transport, metrics: metrics}
}

func (f *fixture) respond(id domain.ItemID, responder httpmock.Responder) {
	f.transport.RegisterResponder(http.MethodGet, f.service.ItemURL(id), responder)
}

func TestItemURL(t *testing.T) {
	f := newFixture(t, 1)
	assert.Equal(t, "https://items.jellyneo.net/item/2288/price-history/", f.service.ItemURL(2288))
}

func TestGetItemRecord(t *testing.T) {
	f := newFixture(t, 3)
	f.respond(2288, httpmock.NewStringResponder(200, greenApplePage))

	record, err := f.service.GetItemRecord(context.Background(), 2288)
	require.NoError(t, err)

	assert.Equal(t, domain.ItemID(2288), record.ID)
	assert.Equal(t, "Green Apple", record.Name)
	assert.Equal(t, "https://images.neopets.com/items/foo_greenapple.gif", record.ImageURL)

	require.Len(t, record.PriceHistory, 2)
	assert.Equal(t, time.Date(2020, time.March, 3, 0, 0, 0, 0, time.UTC), record.PriceHistory[0].Date)
	assert.Equal(t, "12", record.PriceHistory[0].Price.String())
	assert.Equal(t, "0.5", record.PriceHistory[1].Price.String())

	require.True(t, record.Inflated())
	assert.Equal(t, "45%", record.InflationNotice.PercentIncrease)
	assert.Equal(t, time.Date(2023, time.August, 14, 0, 0, 0, 0, time.UTC), record.InflationNotice.ObservedDate)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsTotal.WithLabelValues("ok")))
}

func TestGetItemRecordWithoutPricesOrNotice(t *testing.T) {
	f := newFixture(t, 1)
	f.respond(5, httpmock.NewStringResponder(200, plainPage))

	record, err := f.service.GetItemRecord(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, record.PriceHistory)
	assert.Empty(t, record.PriceHistory)
	assert.Nil(t, record.InflationNotice)
}

func TestGetItemRecordValidationNeverFetches(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.service.GetItemRecord(context.Background(), 0)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = f.service.LookupItem(context.Background(), "green apple")
	require.ErrorAs(t, err, &validation)

	assert.Zero(t, f.transport.GetTotalCallCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RecordsTotal.WithLabelValues("validation")))
}

func TestLookupItemParsesInput(t *testing.T) {
	f := newFixture(t, 1)
	f.respond(5, httpmock.NewStringResponder(200, plainPage))

	record, err := f.service.LookupItem(context.Background(), " 5 ")
	require.NoError(t, err)
	assert.Equal(t, "Plain Item", record.Name)
}

func TestGetItemRecordNotFound(t *testing.T) {
	f := newFixture(t, 5)
	f.respond(999999, httpmock.NewStringResponder(404, "Not Found"))

	_, err := f.service.GetItemRecord(context.Background(), 999999)
	require.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.True(t, domain.IsRecoverable(err))
	assert.Equal(t, 1, f.transport.GetTotalCallCount())
}

func TestGetItemRecordRecoversFromTransientFailures(t *testing.T) {
	f := newFixture(t, 3)
	f.respond(2288, httpmock.NewStringResponder(503, "").
		Then(httpmock.NewStringResponder(502, "")).
		Then(httpmock.NewStringResponder(200, greenApplePage)))

	record, err := f.service.GetItemRecord(context.Background(), 2288)
	require.NoError(t, err)
	assert.Equal(t, "Green Apple", record.Name)
	assert.Equal(t, 3, f.transport.GetTotalCallCount())
}

func TestGetItemRecordUnreachable(t *testing.T) {
	f := newFixture(t, 3)
	f.respond(2288, httpmock.NewStringResponder(500, "Internal Server Error"))

	_, err := f.service.GetItemRecord(context.Background(), 2288)

	var unreachable *domain.UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.False(t, domain.IsRecoverable(err))
	assert.Equal(t, 3, f.transport.GetTotalCallCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsTotal.WithLabelValues("unreachable")))
}

func TestGetItemRecordMalformedPage(t *testing.T) {
	tests := map[string]struct {
		page  string
		field string
	}{
		"no heading": {
			page:  `<html><head><meta property="og:image" content="x.gif"></head><body></body></html>`,
			field: "name",
		},
		"no image": {
			page:  `<html><body><h1>Green Apple</h1></body></html>`,
			field: "image",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 1)
			f.respond(1, httpmock.NewStringResponder(200, tt.page))

			_, err := f.service.GetItemRecord(context.Background(), 1)
			var page *domain.MalformedPageError
			require.ErrorAs(t, err, &page)
			assert.Equal(t, tt.field, page.Field)
		})
	}
}

func TestGetItemRecordMalformedNotice(t *testing.T) {
	f := newFixture(t, 1)
	f.respond(1, httpmock.NewStringResponder(200, `<html><head>
<meta property="og:image" content="x.gif"></head><body><h1>Green Apple</h1>
<div class="alert-box inflated"><strong>45%</strong> price increase detected recently.</div>
</body></html>`))

	_, err := f.service.GetItemRecord(context.Background(), 1)
	var notice *domain.MalformedNoticeError
	require.ErrorAs(t, err, &notice)
	assert.Equal(t, "malformed_notice", domain.Kind(err))
}

func TestGetItemRecordCancelled(t *testing.T) {
	transport := httpmock.NewMockTransport()
	fetcher := client.NewFetcher(
		client.Options{Timeout: time.Second, Transport: transport},
		client.NewRetryPolicy(3, time.Hour, time.Hour),
		nil,
		nil,
	)
	svc := NewService(fetcher, nil, nil, Options{URLTemplate: urlTemplate})
	transport.RegisterResponder(http.MethodGet, svc.ItemURL(1), httpmock.NewStringResponder(503, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.GetItemRecord(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "other", domain.Kind(err))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestBatch(t *testing.T) {
	f := newFixture(t, 2)
	f.respond(1, httpmock.NewStringResponder(200, greenApplePage))
	f.respond(2, httpmock.NewStringResponder(404, ""))
	f.respond(3, httpmock.NewStringResponder(500, ""))
	f.respond(4, httpmock.NewStringResponder(200, plainPage))

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	err := f.service.Batch(context.Background(), []domain.ItemID{1, 2, 3, 4, 0}, func(o Outcome) error {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
		return nil
	})
	require.NoError(t, err)

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })
	require.Len(t, outcomes, 5)

	kinds := make(map[domain.ItemID]string, len(outcomes))
	for _, o := range outcomes {
		kinds[o.ID] = o.Kind
	}
	assert.Equal(t, map[domain.ItemID]string{
		0: "validation",
		1: "ok",
		2: "not_found",
		3: "unreachable",
		4: "ok",
	}, kinds)

	assert.Equal(t, "Green Apple", outcomes[1].Record.Name)
	assert.Empty(t, outcomes[1].Error)
	assert.Nil(t, outcomes[2].Record)
	assert.NotEmpty(t, outcomes[2].Error)
}

func TestBatchStopsOnSinkError(t *testing.T) {
	f := newFixture(t, 1)
	f.respond(1, httpmock.NewStringResponder(200, plainPage))

	err := f.service.Batch(context.Background(), []domain.ItemID{1}, func(Outcome) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
}
