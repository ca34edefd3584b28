package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// ErrInsufficientContent means a scraped page had too little text to index.
var ErrInsufficientContent = errors.New("insufficient content on page")

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// strippedElements never carry page content worth indexing.
const strippedElements = "script, style, nav, footer, header, iframe"

// Scraper fetches a single page over plain HTTP and converts its body to
// markdown. It does not execute JavaScript.
type Scraper struct {
	httpClient *http.Client
	converter  *md.Converter
	minContent int
}

func NewScraper(timeout time.Duration, minContent int) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{
		httpClient: &http.Client{Timeout: timeout},
		converter:  md.NewConverter("", true, nil),
		minContent: minContent,
	}
}

func (s *Scraper) Scrape(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No Title"
	}

	doc.Find(strippedElements).Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	markdown, err := s.converter.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)

	if n := utf8.RuneCountInString(markdown); n < s.minContent {
		return nil, fmt.Errorf("%w: %d characters", ErrInsufficientContent, n)
	}

	return &Page{
		Content:   markdown,
		SourceURL: url,
		Title:     title,
	}, nil
}
