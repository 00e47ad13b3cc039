// Package whitelist builds the set of hostnames a generated tool's fetch
// capability is allowed to reach, and wraps an underlying HTTP fetch
// function with that check.
package whitelist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vivekhaldar/mcpboot/internal/fetcher"
)

// Whitelist is an immutable set of bare hostnames.
type Whitelist struct {
	domains map[string]struct{}
}

// Build collects the hostname of every well-formed URL in promptURLs plus
// every URL in every piece of content's DiscoveredURLs. Malformed URLs are
// silently skipped.
func Build(promptURLs []string, contents []fetcher.FetchedContent) *Whitelist {
	domains := make(map[string]struct{})

	addHost := func(raw string) {
		h := hostOf(raw)
		if h != "" {
			domains[h] = struct{}{}
		}
	}

	for _, u := range promptURLs {
		addHost(u)
	}
	for _, c := range contents {
		for _, u := range c.DiscoveredURLs {
			addHost(u)
		}
	}

	return &Whitelist{domains: domains}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Domains returns the whitelist's hostnames in no particular order; used to
// persist the whitelist alongside a cached CompiledTools entry so a
// cache-only restart can reconstruct it without refetching.
func (w *Whitelist) Domains() []string {
	out := make([]string, 0, len(w.domains))
	for d := range w.domains {
		out = append(out, d)
	}
	return out
}

// FromDomains reconstructs a Whitelist from a persisted domain list.
func FromDomains(domains []string) *Whitelist {
	w := &Whitelist{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		w.domains[strings.ToLower(d)] = struct{}{}
	}
	return w
}

// Allows reports whether url's hostname equals some whitelist member or is a
// proper subdomain of one. The reverse never holds: whitelisting
// api.example.com does not admit example.com.
func (w *Whitelist) Allows(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	return w.AllowsHost(host)
}

// AllowsHost applies the subdomain rule directly to a hostname.
func (w *Whitelist) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	for member := range w.domains {
		if host == member || strings.HasSuffix(host, "."+member) {
			return true
		}
	}
	return false
}

// Fetch is the gated HTTP capability signature: callers supply the target
// URL and get back a response or a blocked-fetch error.
type Fetch func(ctx context.Context, req *http.Request) (*http.Response, error)

// BlockedError is returned when a fetch is rejected by the whitelist. Its
// Error() text is part of the contract: it tells the caller how to fix the
// situation.
type BlockedError struct {
	Host string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("Fetch blocked: domain %q not in whitelist. Add it to your prompt to allow access.", e.Host)
}

// ErrInvalidURL is returned when the target URL can't be parsed.
var ErrInvalidURL = fmt.Errorf("Fetch blocked: invalid URL")

// CreateGatedFetch wraps underlying with a whitelist check: it parses the
// request URL, rejects unparsable URLs, rejects hosts the whitelist doesn't
// allow, and otherwise delegates.
func CreateGatedFetch(w *Whitelist, underlying Fetch) Fetch {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		if req.URL == nil || req.URL.Hostname() == "" {
			return nil, ErrInvalidURL
		}
		host := strings.ToLower(req.URL.Hostname())
		if !w.AllowsHost(host) {
			return nil, &BlockedError{Host: host}
		}
		return underlying(ctx, req)
	}
}

// DefaultUnderlyingFetch performs req against the real network with
// http.DefaultClient. It is the underlying delegate CreateGatedFetch wraps
// in production; tests and the sandbox's own unit tests supply stubs
// instead.
func DefaultUnderlyingFetch(_ context.Context, req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}
