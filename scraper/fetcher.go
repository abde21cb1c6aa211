// Package scraper fetches catalog documents from the source site.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// Page is a fetched and parsed catalog document.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewPage parses body as the document served at rawURL.
func NewPage(rawURL string, body io.Reader) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", rawURL, err)
	}
	return &Page{URL: parsed, Doc: doc}, nil
}

// AbsoluteURL resolves href against the page location.
func (p *Page) AbsoluteURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.URL.ResolveReference(ref).String()
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithTransport replaces the HTTP transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.collector.WithTransport(rt)
	}
}

// Fetcher issues blocking GET requests for catalog pages. It never retries;
// a failed fetch is reported to the caller, and HTTP 404 is reported as
// ErrNotFound so pagination can stop cleanly.
type Fetcher struct {
	collector *colly.Collector
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *slog.Logger
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics, logger *slog.Logger, opts ...Option) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	f := &Fetcher{
		collector: collector,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		metrics:   metrics,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads and parses rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	c := f.collector.Clone()
	c.Context = ctx

	var (
		page     *Page
		fetchErr error
		start    = time.Now()
	)

	c.OnResponse(func(r *colly.Response) {
		parsed, err := NewPage(r.Request.URL.String(), bytes.NewReader(r.Body))
		if err != nil {
			fetchErr = err
			return
		}
		page = parsed
	})
	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = classifyError(err, statusCode)
	})

	visitErr := c.Visit(rawURL)
	f.metrics.ObserveDuration(time.Since(start))

	if fetchErr == nil && visitErr != nil {
		fetchErr = classifyError(visitErr, 0)
	}
	if fetchErr == nil && page == nil {
		fetchErr = errors.New("empty response")
	}
	if fetchErr != nil {
		label := errorTypeLabel(fetchErr)
		f.metrics.IncRequest("error")
		f.metrics.IncError(label)
		f.logger.Debug("fetch failed",
			slog.String("url", rawURL),
			slog.String("category", label),
			slog.Any("error", fetchErr),
		)
		return nil, FetchError{URL: rawURL, Err: fetchErr}
	}

	f.metrics.IncRequest("ok")
	f.logger.Debug("fetched page", slog.String("url", rawURL))
	return page, nil
}
