package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response from the crawl service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: status %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrQuotaExceeded for payment-required and rate-limited responses.
func (e *APIError) Is(target error) bool {
	if target != ErrQuotaExceeded {
		return false
	}
	return e.StatusCode == http.StatusPaymentRequired || e.StatusCode == http.StatusTooManyRequests
}

type FirecrawlClient struct {
	baseURL      string
	apiKey       string
	limit        int
	pollInterval time.Duration
	jobTimeout   time.Duration
	httpClient   *http.Client
}

func NewFirecrawlClient(baseURL, apiKey string, limit int, pollInterval time.Duration) *FirecrawlClient {
	if limit <= 0 {
		limit = 50
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FirecrawlClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		limit:        limit,
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type crawlStartReq struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type crawlStartResp struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type crawlStatusResp struct {
	Status string          `json:"status"`
	Total  int             `json:"total"`
	Data   []crawlDocument `json:"data"`
	Next   string          `json:"next"`
	Error  string          `json:"error"`
}

type crawlDocument struct {
	Markdown string `json:"markdown"`
	Metadata struct {
		Title     string `json:"title"`
		SourceURL string `json:"sourceURL"`
		URL       string `json:"url"`
	} `json:"metadata"`
}

// WithJobTimeout bounds a whole crawl, including polling and pagination.
// Zero means no bound beyond the caller's context.
func (c *FirecrawlClient) WithJobTimeout(d time.Duration) *FirecrawlClient {
	c.jobTimeout = d
	return c
}

// Crawl starts a crawl job for url and blocks until the job completes or the
// job timeout elapses.
func (c *FirecrawlClient) Crawl(ctx context.Context, url string) ([]Page, error) {
	if c.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}

	var start crawlStartResp
	err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/crawl", crawlStartReq{
		URL:           url,
		Limit:         c.limit,
		ScrapeOptions: scrapeOptions{Formats: []string{"markdown"}},
	}, &start)
	if err != nil {
		return nil, fmt.Errorf("start crawl: %w", err)
	}
	if !start.Success || start.ID == "" {
		return nil, fmt.Errorf("start crawl: %s", start.Error)
	}

	slog.Info("crawl job started", "url", url, "job_id", start.ID, "limit", c.limit)

	status, err := c.wait(ctx, start.ID)
	if err != nil {
		return nil, err
	}

	var pages []Page
	pages = appendPages(pages, status.Data)

	next := status.Next
	for next != "" {
		var more crawlStatusResp
		if err := c.do(ctx, http.MethodGet, next, nil, &more); err != nil {
			return nil, fmt.Errorf("fetch crawl page: %w", err)
		}
		pages = appendPages(pages, more.Data)
		next = more.Next
	}

	return pages, nil
}

func (c *FirecrawlClient) wait(ctx context.Context, id string) (*crawlStatusResp, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status crawlStatusResp
		if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/crawl/"+id, nil, &status); err != nil {
			return nil, fmt.Errorf("poll crawl %s: %w", id, err)
		}

		switch status.Status {
		case "completed":
			return &status, nil
		case "failed", "cancelled":
			msg := status.Error
			if msg == "" {
				msg = status.Status
			}
			return nil, fmt.Errorf("crawl %s failed: %s", id, msg)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("crawl %s still %q at deadline: %w", id, status.Status, ctx.Err())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func appendPages(pages []Page, docs []crawlDocument) []Page {
	for _, d := range docs {
		src := d.Metadata.SourceURL
		if src == "" {
			src = d.Metadata.URL
		}
		title := d.Metadata.Title
		if title == "" {
			title = "No Title"
		}
		pages = append(pages, Page{
			Content:   d.Markdown,
			SourceURL: src,
			Title:     title,
		})
	}
	return pages
}

func (c *FirecrawlClient) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
