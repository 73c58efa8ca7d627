package proxy

import (
	"context"
	"crypto/tls"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const maxConcurrentChecks = 50

// ProxySupplier hands out validated proxies in round-robin order.
type ProxySupplier interface {
	// Next returns the next proxy, or nil when the pool is empty.
	Next() *url.URL
	Len() int
}

type proxySupplier struct {
	proxies []*url.URL
	current int
	mutex   sync.Mutex
}

// NewProxySupplier checks every proxy against testURL in parallel and keeps
// the ones that answer with a non-error status. Unparseable entries are skipped.
func NewProxySupplier(ctx context.Context, proxies []string, testURL string, timeout time.Duration) (ProxySupplier, error) {
	if len(proxies) == 0 {
		return &proxySupplier{}, nil
	}

	log.Infof("🔄 Testing %d proxies in parallel...", len(proxies))

	valid := make([]*url.URL, len(proxies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i, raw := range proxies {
		g.Go(func() error {
			proxyURL, err := url.Parse(raw)
			if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
				log.Warnf("❌ Proxy %q is not a valid URL, skipping", raw)
				return nil
			}

			log.Debugf("🔄 Testing proxy %d/%d: %s", i+1, len(proxies), proxyURL.Redacted())

			if isProxyValid(gctx, proxyURL, testURL, timeout) {
				valid[i] = proxyURL
				log.Infof("✅ Proxy %s is working", proxyURL.Redacted())
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxyURL.Redacted())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	working := make([]*url.URL, 0, len(proxies))
	for _, proxyURL := range valid {
		if proxyURL != nil {
			working = append(working, proxyURL)
		}
	}

	if len(working) == 0 {
		log.Warnf("⚠️ None of the %d configured proxies work, fetching directly", len(proxies))
	} else {
		log.Infof("✅ ProxySupplier initialized with %d working proxies out of %d tested", len(working), len(proxies))
	}

	return &proxySupplier{proxies: working}, nil
}

// NewStaticProxySupplier rotates over proxies without checking them.
func NewStaticProxySupplier(proxies ...*url.URL) ProxySupplier {
	return &proxySupplier{proxies: proxies}
}

func (p *proxySupplier) Next() *url.URL {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}

	proxyURL := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxyURL
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

// isProxyValid tests if a proxy can successfully make a request to the test URL
func isProxyValid(ctx context.Context, proxyURL *url.URL, testURL string, timeout time.Duration) bool {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(log.StandardLogger()).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		}).
		SetProxy(proxyURL.String())
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)

	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL.Redacted(), err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL.Redacted(), resp.Status())
		return false
	}

	return true
}
