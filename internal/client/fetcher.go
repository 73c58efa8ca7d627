package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"resty.dev/v3"

	"jellyneo/idb/internal/proxy"
)

var tracer = otel.Tracer("jellyneo.idb.client")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Fetcher retrieves the raw HTML behind a URL.
//
// Errors are ErrNotFound for a 404, *ExhaustedRetriesError once every attempt
// failed transiently, or a wrapped context error if ctx ends first.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Transport replaces the HTTP transport. Proxies are ignored when it is set.
	Transport http.RoundTripper
}

type fetcher struct {
	httpClient *resty.Client
	retry      *RetryPolicy
	proxies    proxy.ProxySupplier
	proxyURL   atomic.Pointer[url.URL]
	metrics    *Metrics
}

func NewFetcher(opts Options, retry *RetryPolicy, proxies proxy.ProxySupplier, metrics *Metrics) Fetcher {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(log.StandardLogger()).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	f := &fetcher{
		httpClient: client,
		retry:      retry,
		proxies:    proxies,
		metrics:    metrics,
	}

	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	} else if proxies != nil && proxies.Len() > 0 {
		if transport, err := client.HTTPTransport(); err == nil {
			transport.Proxy = f.proxy
			f.rotateProxy()
		}
	}

	return f
}

func (f *fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	span.SetAttributes(attribute.String("url", url))

	var body []byte
	err := f.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			f.metrics.IncRetries()
			f.rotateProxy()
		}
		span.SetAttributes(attribute.Int("attempts", attempt))

		b, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	return body, nil
}

// get issues exactly one GET and classifies the outcome.
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(url)
	f.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			f.metrics.IncAttempt("cancelled")
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		f.metrics.IncAttempt("transient")
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		f.metrics.IncAttempt("not_found")
		return nil, ErrNotFound
	case !resp.IsSuccess():
		f.metrics.IncAttempt("transient")
		return nil, &TransientError{
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("HTTP error: %s", resp.Status()),
		}
	}

	f.metrics.IncAttempt("success")
	return resp.Bytes(), nil
}

func (f *fetcher) proxy(*http.Request) (*url.URL, error) {
	return f.proxyURL.Load(), nil
}

func (f *fetcher) rotateProxy() {
	if f.proxies == nil || f.proxies.Len() == 0 {
		return
	}
	next := f.proxies.Next()
	if previous := f.proxyURL.Swap(next); previous != nil && next != nil && previous.String() != next.String() {
		log.Infof("🔄 Switching to new proxy: %s", next.Redacted())
	}
}
