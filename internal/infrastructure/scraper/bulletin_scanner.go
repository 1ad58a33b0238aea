package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"

	"VisaDecisions/internal/ports"
)

const (
	// DefaultIndexURL is the visa desk page that links the weekly bulletins.
	DefaultIndexURL = "https://www.irishimmigration.ie/south-africa-visa-desk/#tourist"
	// DefaultPrefix is the filename prefix every bulletin carries.
	DefaultPrefix = "SAVD-"

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
)

// Options tune the scanner; zero values fall back to defaults.
type Options struct {
	IndexURL   string
	Prefix     string
	UserAgent  string
	MaxRetries uint64
	RetryBase  time.Duration
}

// BulletinScanner lists bulletin links on the index page and downloads them.
type BulletinScanner struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

var (
	_ ports.BulletinSource = (*BulletinScanner)(nil)
	_ ports.Downloader     = (*BulletinScanner)(nil)
)

// NewBulletinScanner wires an HTTP client; a nil client gets a 60s timeout.
func NewBulletinScanner(client *http.Client, opts Options, logger *slog.Logger) *BulletinScanner {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.IndexURL == "" {
		opts.IndexURL = DefaultIndexURL
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	return &BulletinScanner{client: client, opts: opts, logger: logger}
}

// ListBulletins fetches the index page and returns every PDF link whose file
// name starts with the bulletin prefix, resolved against the page URL.
func (s *BulletinScanner) ListBulletins(ctx context.Context) ([]ports.BulletinLink, error) {
	base, err := url.Parse(s.opts.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index url %s: %w", s.opts.IndexURL, err)
	}

	doc, err := s.fetchDocument(ctx, base.String())
	if err != nil {
		return nil, err
	}

	links := extractLinks(doc, base, s.opts.Prefix)
	s.debug("bulletins listed", "url", base.String(), "count", len(links))
	return links, nil
}

// Download fetches a bulletin, retrying transport errors and 5xx/429 responses
// with exponential backoff. The caller closes the returned body.
func (s *BulletinScanner) Download(ctx context.Context, link ports.BulletinLink) (io.ReadCloser, error) {
	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewExponential(s.opts.RetryBase))

	var body io.ReadCloser
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := s.get(ctx, link.URL)
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			statusErr := fmt.Errorf("download %s returned %s", link.Filename, resp.Status)
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				s.debug("retry download", "file", link.Filename, "status", resp.StatusCode)
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *BulletinScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *BulletinScanner) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	return resp, nil
}

func extractLinks(doc *goquery.Document, base *url.URL, prefix string) []ports.BulletinLink {
	var (
		links []ports.BulletinLink
		seen  = map[string]struct{}{}
	)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		name := path.Base(resolved.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		if !strings.HasPrefix(name, prefix) {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}

		links = append(links, ports.BulletinLink{Filename: name, URL: resolved.String()})
	})

	return links
}

func (s *BulletinScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
