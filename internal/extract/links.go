package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsbrief/internal/logger"
)

const (
	// linkContentLimit caps how much fetched article text is kept.
	linkContentLimit = 8000

	linkFetchTimeout = 15 * time.Second
	linkUserAgent    = "Mozilla/5.0 (compatible; newsbrief/1.0)"
)

// skipLinkPatterns matches URLs that are never article content: list
// management, social shares, media assets, shorteners.
var skipLinkPatterns = regexp.MustCompile(`(?i)unsubscribe|manage[-_.]?preferences|mailto:|twitter\.com|x\.com/|facebook\.com|instagram\.com|linkedin\.com/share|youtube\.com|t\.co/|bit\.ly|list-manage\.com|mailchimp\.com|campaign-archive|view.{0,3}in.{0,3}browser|privacy[-_.]?policy|terms[-_.]?of[-_.]?service|\.png|\.jpe?g|\.gif|\.svg`)

// skipLinkDomains are click-tracking redirect hosts whose targets can't be
// judged from the URL.
var skipLinkDomains = []string{
	"email.mg",
	"clicks.mlsend",
	"click.convertkit-mail",
	"trk.klclick",
	"t.dripemail2",
	"links.beehiiv",
}

// preferredDomains get a scoring bonus as likely long-form sources.
var preferredDomains = []string{
	"medium.com",
	"substack.com",
	"arxiv.org",
	"github.com",
}

// FindBestLink picks the most promising outbound article link from a
// newsletter's HTML body. Returns "" when nothing qualifies.
func FindBestLink(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	bestURL := ""
	bestScore := 0.0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		score, ok := scoreLink(href, strings.TrimSpace(s.Text()))
		if ok && score > bestScore {
			bestScore = score
			bestURL = href
		}
	})
	return bestURL
}

// scoreLink rates one candidate link. The second return value is false for
// links that should be skipped outright.
func scoreLink(href, anchorText string) (float64, bool) {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return 0, false
	}
	if skipLinkPatterns.MatchString(href) {
		return 0, false
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return 0, false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range skipLinkDomains {
		if strings.Contains(host, domain) {
			return 0, false
		}
	}

	score := 0.5
	if len(anchorText) > 10 {
		score += 0.3
	}
	if strings.Count(strings.Trim(parsed.Path, "/"), "/") >= 1 {
		score += 0.2
	}
	for _, domain := range preferredDomains {
		if strings.Contains(host, domain) {
			score += 0.1
			break
		}
	}
	return score, true
}

// linkFetcher downloads and cleans linked article pages.
type linkFetcher struct {
	client *http.Client
}

func newLinkFetcher() *linkFetcher {
	return &linkFetcher{
		client: &http.Client{Timeout: linkFetchTimeout},
	}
}

// fetch downloads a linked article and returns its readable text, capped at
// linkContentLimit. Any failure returns "" so the email body stands alone.
func (f *linkFetcher) fetch(ctx context.Context, articleURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", linkUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Debugf("Link fetch failed for %s: %v", articleURL, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debugf("Link fetch returned %d for %s", resp.StatusCode, articleURL)
		return ""
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer, header, aside, iframe").Remove()

	// Prefer semantic article containers over the whole page
	var text string
	for _, selector := range []string{"article", "main", "body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			text = sel.Text()
			break
		}
	}
	text = CleanText(text)

	text = truncateRunes(text, linkContentLimit)
	logger.Debugf("Fetched %d chars from %s", len(text), articleURL)
	return text
}
