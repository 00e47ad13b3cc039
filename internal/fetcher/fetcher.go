// Package fetcher turns a prompt into fetched documents: it extracts URLs
// from prompt text, retrieves each one, strips HTML down to plain text, and
// discovers one further hop of URLs inside the fetched bodies for the
// whitelist to consume.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vivekhaldar/mcpboot/internal/cache"
)

// FetchedContent is the text a URL turned into.
type FetchedContent struct {
	URL            string   `json:"url"`
	Text           string   `json:"text"`
	ContentType    string   `json:"contentType"`
	DiscoveredURLs []string `json:"discoveredUrls"`
}

const (
	// maxContentLen is the truncation ceiling, in bytes/chars, applied to
	// every fetched body before it is scanned for discovered URLs.
	maxContentLen = 100_000

	fetchTimeout     = 15 * time.Second
	userAgent        = "mcpboot/1.0 (+https://github.com/vivekhaldar/mcpboot)"
	maxConcurrent    = 8
	dedupeCacheTTL   = time.Hour
	dedupeCacheLimit = 256
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

var githubRepoRootPattern = regexp.MustCompile(`^https?://github\.com/([^/\s]+)/([^/\s]+)/?$`)

// Fetcher retrieves URLs referenced by a prompt.
type Fetcher struct {
	client *http.Client
	// dedupe memoizes fetchOne by URL within (and slightly beyond) a single
	// run, so a link that appears twice in one prompt costs one round trip.
	dedupe *cache.Cache[string, FetchedContent]
}

// New creates a Fetcher with the default HTTP client and timeout.
func New() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		dedupe: cache.New[string, FetchedContent](dedupeCacheLimit, dedupeCacheTTL),
	}
}

// ExtractURLs returns the ordered, deduplicated list of URLs referenced in
// prompt text, with trailing prose punctuation trimmed.
func ExtractURLs(prompt string) []string {
	matches := urlPattern.FindAllString(prompt, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = trimTrailingPunctuation(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func trimTrailingPunctuation(s string) string {
	return strings.TrimRight(s, ".,;:!?)")
}

// FetchAll retrieves every URL in urls concurrently. Individual failures are
// logged and dropped; FetchAll never returns an error on its own — partial
// (or even total) failure is non-fatal per the fetcher's failure semantics.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []FetchedContent {
	if len(urls) == 0 {
		return nil
	}

	results := make([]FetchedContent, len(urls))
	ok := make([]bool, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			fc, err := f.fetchOneCached(gctx, u)
			if err != nil {
				slog.Warn("fetch failed", "url", u, "error", err)
				return nil
			}
			results[i] = fc
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait() // goroutines never return non-nil errors; failures are absorbed above

	out := make([]FetchedContent, 0, len(urls))
	for i, wasOK := range ok {
		if wasOK {
			out = append(out, results[i])
		}
	}
	return out
}

func (f *Fetcher) fetchOneCached(ctx context.Context, url string) (FetchedContent, error) {
	return f.dedupe.GetOrLoad(url, func() (FetchedContent, error) {
		return f.FetchOne(ctx, url)
	})
}

// FetchOne retrieves a single URL and returns its extracted text content.
func (f *Fetcher) FetchOne(ctx context.Context, url string) (FetchedContent, error) {
	originalURL := url
	fetchURL := rewriteGitHubRepoRoot(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return FetchedContent{}, fmt.Errorf("build request for %s: %w", fetchURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchedContent{}, fmt.Errorf("fetch %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return FetchedContent{}, fmt.Errorf("fetch %s: status %d", fetchURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentLen*4))
	if err != nil {
		return FetchedContent{}, fmt.Errorf("read body of %s: %w", fetchURL, err)
	}

	contentType := baseContentType(resp.Header.Get("Content-Type"))

	text := string(body)
	if contentType == "text/html" {
		text = StripHTML(text)
	}
	text = truncate(text, maxContentLen)

	return FetchedContent{
		URL:            originalURL,
		Text:           text,
		ContentType:    contentType,
		DiscoveredURLs: ExtractURLs(text),
	}, nil
}

// rewriteGitHubRepoRoot rewrites a bare GitHub repo root URL to the raw
// README on the HEAD ref; the caller-visible URL (used for the whitelist and
// the returned FetchedContent.URL) stays the original input.
func rewriteGitHubRepoRoot(url string) string {
	m := githubRepoRootPattern.FindStringSubmatch(url)
	if m == nil {
		return url
	}
	owner, repo := m[1], m[2]
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/HEAD/README.md", owner, repo)
}

func baseContentType(header string) string {
	ct := strings.TrimSpace(header)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
