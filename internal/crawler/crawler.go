package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNoContent means the crawl finished but produced no page with text.
	ErrNoContent = errors.New("no content crawled from the URL")
	// ErrQuotaExceeded marks primary-crawler failures caused by billing or
	// rate limits. Service falls back to a single-page scrape on these.
	ErrQuotaExceeded = errors.New("crawl quota exceeded")
)

// Page is one crawled page rendered as markdown.
type Page struct {
	Content   string
	SourceURL string
	Title     string
}

type Crawler interface {
	Crawl(ctx context.Context, url string) ([]Page, error)
}

// PageFetcher fetches exactly one page.
type PageFetcher interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

// Service crawls with the primary crawler when one is configured and falls
// back to scraping only the submitted page when the primary reports a quota
// or rate-limit problem.
type Service struct {
	primary  Crawler
	fallback PageFetcher
}

// NewService builds the crawl orchestrator. primary may be nil, in which
// case every crawl is a single-page scrape.
func NewService(primary Crawler, fallback PageFetcher) *Service {
	return &Service{primary: primary, fallback: fallback}
}

func (s *Service) Crawl(ctx context.Context, url string) ([]Page, error) {
	var pages []Page

	if s.primary == nil {
		slog.Info("no crawl service configured, scraping single page", "url", url)
		p, err := s.scrape(ctx, url)
		if err != nil {
			return nil, err
		}
		pages = []Page{*p}
	} else {
		crawled, err := s.primary.Crawl(ctx, url)
		switch {
		case err == nil:
			pages = crawled
		case IsQuotaError(err):
			slog.Warn("crawl service limited, falling back to single page scrape", "url", url, "error", err)
			p, ferr := s.scrape(ctx, url)
			if ferr != nil {
				return nil, ferr
			}
			pages = []Page{*p}
		default:
			return nil, fmt.Errorf("crawl %s: %w", url, err)
		}
	}

	usable := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			slog.Info("skipping page with no content", "url", p.SourceURL)
			continue
		}
		usable = append(usable, p)
	}
	if len(usable) == 0 {
		return nil, ErrNoContent
	}

	slog.Info("crawl finished", "url", url, "pages", len(usable), "skipped", len(pages)-len(usable))
	return usable, nil
}

func (s *Service) scrape(ctx context.Context, url string) (*Page, error) {
	p, err := s.fallback.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", url, err)
	}
	return p, nil
}

var quotaMarkers = []string{
	"quota",
	"payment",
	"credit",
	"rate limit",
	"too many requests",
}

// IsQuotaError reports whether err is a billing or rate-limit failure.
// Status codes are classified by APIError; the message markers cover
// failures the crawl service reports inside a 2xx body.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
