package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFindBestLink(t *testing.T) {
	html := `<html><body>
		<a href="https://example.com/unsubscribe">Unsubscribe</a>
		<a href="https://twitter.com/share?u=x">Share on Twitter</a>
		<a href="https://short.co/">Hi</a>
		<a href="https://example.com/2024/01/deep-dive-on-caching">Read the full deep dive on caching</a>
		<a href="mailto:editor@example.com">Reply</a>
	</body></html>`

	best := FindBestLink(html)
	if best != "https://example.com/2024/01/deep-dive-on-caching" {
		t.Errorf("expected the article link, got %q", best)
	}
}

func TestFindBestLinkNothingQualifies(t *testing.T) {
	html := `<html><body>
		<a href="https://example.com/privacy-policy">Privacy</a>
		<a href="https://links.beehiiv.com/abc123">Tracked</a>
	</body></html>`

	if best := FindBestLink(html); best != "" {
		t.Errorf("expected no link, got %q", best)
	}
}

func TestFindBestLinkEmpty(t *testing.T) {
	if best := FindBestLink(""); best != "" {
		t.Errorf("expected empty result for empty body, got %q", best)
	}
}

func TestScoreLink(t *testing.T) {
	tests := []struct {
		name   string
		href   string
		anchor string
		want   float64
		ok     bool
	}{
		{"relative", "/local/path", "text", 0, false},
		{"unsubscribe", "https://x.com/unsubscribe", "text", 0, false},
		{"image", "https://example.com/logo.png", "text", 0, false},
		{"tracking domain", "https://email.mg.example.com/c/abc", "long anchor text", 0, false},
		{"bare shallow", "https://example.com/p", "hi", 0.5, true},
		{"long anchor", "https://example.com/p", "this is a long anchor", 0.8, true},
		{"deep path", "https://example.com/2024/post", "hi", 0.7, true},
		{"preferred domain deep long", "https://blog.substack.com/2024/post", "a long anchor text here", 1.1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := scoreLink(tt.href, tt.anchor)
			if ok != tt.ok {
				t.Fatalf("scoreLink(%q) ok = %v, want %v", tt.href, ok, tt.ok)
			}
			if ok && (score < tt.want-0.001 || score > tt.want+0.001) {
				t.Errorf("scoreLink(%q) = %g, want %g", tt.href, score, tt.want)
			}
		})
	}
}

func TestLinkFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>
			<nav>Navigation junk</nav>
			<article><p>The actual article text.</p></article>
			<footer>Footer junk</footer>
		</body></html>`))
	}))
	defer srv.Close()

	f := newLinkFetcher()
	text := f.fetch(context.Background(), srv.URL)
	if !strings.Contains(text, "The actual article text.") {
		t.Errorf("expected article text, got %q", text)
	}
	if strings.Contains(text, "Navigation junk") || strings.Contains(text, "Footer junk") {
		t.Errorf("nav/footer should be stripped, got %q", text)
	}
}

func TestLinkFetcherCapsOnRuneBoundary(t *testing.T) {
	// Multi-byte content longer than the cap must not be cut mid-rune
	body := "<html><body><article><p>" + strings.Repeat("日本語テキスト ", 1500) + "</p></article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newLinkFetcher()
	text := f.fetch(context.Background(), srv.URL)
	if text == "" {
		t.Fatal("expected fetched text")
	}
	if !utf8.ValidString(text) {
		t.Error("capped text must remain valid UTF-8")
	}
	if n := utf8.RuneCountInString(text); n > linkContentLimit {
		t.Errorf("expected at most %d runes, got %d", linkContentLimit, n)
	}
}

func TestLinkFetcherNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := newLinkFetcher()
	if text := f.fetch(context.Background(), srv.URL); text != "" {
		t.Errorf("non-HTML should be ignored, got %q", text)
	}
}

func TestLinkFetcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newLinkFetcher()
	if text := f.fetch(context.Background(), srv.URL); text != "" {
		t.Errorf("404 should return empty text, got %q", text)
	}
}
