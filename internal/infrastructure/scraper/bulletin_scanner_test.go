package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"VisaDecisions/internal/ports"
)

const indexPage = `
<html><body>
  <div id="tourist">
    <a href="/wp-content/uploads/2025/04/SAVD-Decisions-25-March-to-31-March-2025.pdf">Week 13</a>
    <a href="https://cdn.example.org/files/SAVD-Decisions-1-April-to-7-April.PDF">Week 14</a>
    <a href="/wp-content/uploads/2025/04/SAVD-Decisions-25-March-to-31-March-2025.pdf">Duplicate</a>
    <a href="/wp-content/uploads/guide.pdf">Guide</a>
    <a href="/wp-content/uploads/SAVD-notes.docx">Notes</a>
    <a>No href</a>
  </div>
</body></html>`

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	scanner := NewBulletinScanner(nil, Options{IndexURL: "https://www.irishimmigration.ie/south-africa-visa-desk/#tourist"}, nil)
	base, err := url.Parse(scanner.opts.IndexURL)
	if err != nil {
		t.Fatalf("parse index url: %v", err)
	}
	links := extractLinks(doc, base, DefaultPrefix)

	want := []ports.BulletinLink{
		{
			Filename: "SAVD-Decisions-25-March-to-31-March-2025.pdf",
			URL:      "https://www.irishimmigration.ie/wp-content/uploads/2025/04/SAVD-Decisions-25-March-to-31-March-2025.pdf",
		},
		{
			Filename: "SAVD-Decisions-1-April-to-7-April.PDF",
			URL:      "https://cdn.example.org/files/SAVD-Decisions-1-April-to-7-April.PDF",
		},
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Fatalf("link %d: want %+v, got %+v", i, want[i], links[i])
		}
	}
}

func TestListBulletins(t *testing.T) {
	t.Parallel()

	var agent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(indexPage))
	}))
	defer server.Close()

	scanner := NewBulletinScanner(server.Client(), Options{IndexURL: server.URL + "/south-africa-visa-desk/"}, nil)
	links, err := scanner.ListBulletins(context.Background())
	if err != nil {
		t.Fatalf("ListBulletins error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if !strings.HasPrefix(links[0].URL, server.URL+"/wp-content/") {
		t.Fatalf("link not resolved against index: %s", links[0].URL)
	}
	if ua, _ := agent.Load().(string); !strings.Contains(ua, "Mozilla") {
		t.Fatalf("unexpected user agent: %q", ua)
	}
}

func TestListBulletinsFailsOnBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scanner := NewBulletinScanner(server.Client(), Options{IndexURL: server.URL}, nil)
	if _, err := scanner.ListBulletins(context.Background()); err == nil {
		t.Fatalf("expected error for 503 index")
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	scanner := NewBulletinScanner(server.Client(), Options{MaxRetries: 3, RetryBase: time.Millisecond}, nil)
	body, err := scanner.Download(context.Background(), ports.BulletinLink{Filename: "SAVD-x.pdf", URL: server.URL + "/SAVD-x.pdf"})
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected body: %q", data)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDownloadDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	scanner := NewBulletinScanner(server.Client(), Options{MaxRetries: 3, RetryBase: time.Millisecond}, nil)
	if _, err := scanner.Download(context.Background(), ports.BulletinLink{Filename: "SAVD-x.pdf", URL: server.URL}); err == nil {
		t.Fatalf("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}
