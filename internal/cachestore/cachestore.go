// Package cachestore is the content-addressed, on-disk cache that makes a
// (prompt, fetched content) pair's expensive startup work — fetch, plan,
// compile — a one-time cost. One JSON file per entry, keyed by a pair of
// short fingerprints.
package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vivekhaldar/mcpboot/internal/compile"
	"github.com/vivekhaldar/mcpboot/internal/fetcher"
	"github.com/vivekhaldar/mcpboot/internal/plan"
)

// fingerprintLen is the hex-character prefix length taken from a SHA-256
// digest for both prompt and content fingerprints.
const fingerprintLen = 16

// contentSeparator joins sorted FetchedContent bodies before hashing;
// sorting by URL is load-bearing — unordered fetch completion must not
// produce different content fingerprints.
const contentSeparator = "\n---\n"

// Entry is one cached (prompt, content) generation result.
type Entry struct {
	PromptFingerprint  string                 `json:"promptFingerprint"`
	ContentFingerprint string                 `json:"contentFingerprint"`
	Plan               *plan.GenerationPlan   `json:"plan"`
	CompiledTools      []compile.CompiledTool `json:"compiledTools"`
	WhitelistDomains   []string               `json:"whitelistDomains"`
	CreatedAt          time.Time              `json:"createdAt"`
}

// Fingerprint returns the first fingerprintLen hex characters of the
// SHA-256 digest of s.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// ContentFingerprint hashes the fetched documents' bodies, sorted by URL
// ascending and joined by a fixed separator, so that two runs with the
// same documents fetched in any order produce the same key.
func ContentFingerprint(contents []fetcher.FetchedContent) string {
	sorted := make([]fetcher.FetchedContent, len(contents))
	copy(sorted, contents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = c.Text
	}
	return Fingerprint(strings.Join(parts, contentSeparator))
}

// Cache is a directory of JSON entry files on disk.
type Cache struct {
	dir     string
	enabled bool
}

// New creates a Cache rooted at dir. If enabled is false, Get always misses
// and Set is a no-op — the directory is never created.
func New(dir string, enabled bool) *Cache {
	return &Cache{dir: dir, enabled: enabled}
}

func (c *Cache) path(promptFp, contentFp string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.json", promptFp, contentFp))
}

// Get loads the entry for (promptFp, contentFp). A missing file, a file
// that fails to parse, or one missing required fields is treated as a
// miss; a corrupt file is deleted so it doesn't linger as dead weight.
func (c *Cache) Get(promptFp, contentFp string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.path(promptFp, contentFp)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || !valid(&entry) {
		os.Remove(path)
		return nil, false
	}
	return &entry, true
}

func valid(e *Entry) bool {
	return e.PromptFingerprint != "" && e.ContentFingerprint != "" && e.Plan != nil && len(e.CompiledTools) > 0
}

// Set persists entry, overwriting any existing file for the same key.
// The directory is created lazily on first write. Writes go to a temp file
// in the same directory followed by os.Rename, so a crash never leaves a
// half-written entry on disk.
func (c *Cache) Set(entry *Entry) error {
	if !c.enabled {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cachestore: create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("cachestore: marshal entry: %w", err)
	}

	dest := c.path(entry.PromptFingerprint, entry.ContentFingerprint)
	tmp, err := os.CreateTemp(c.dir, ".cachestore-*.tmp")
	if err != nil {
		return fmt.Errorf("cachestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cachestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cachestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("cachestore: rename into place: %w", err)
	}
	return nil
}

// ToCompiledTools restores a fresh ordered compile.CompiledTools from the
// entry's serialized tool list and whitelist domains.
func (e *Entry) ToCompiledTools() *compile.CompiledTools {
	ct := compile.NewCompiledTools(e.WhitelistDomains)
	for _, t := range e.CompiledTools {
		ct.Add(t)
	}
	return ct
}

// NewEntry builds an Entry from a freshly generated plan and compiled tool
// table, stamping CreatedAt with now (callers pass time.Now() — the package
// itself never calls it, since the orchestrator owns wall-clock time).
func NewEntry(promptFp, contentFp string, gp *plan.GenerationPlan, tools *compile.CompiledTools, now time.Time) *Entry {
	return &Entry{
		PromptFingerprint:  promptFp,
		ContentFingerprint: contentFp,
		Plan:               gp,
		CompiledTools:      tools.Ordered(),
		WhitelistDomains:   tools.WhitelistDomains,
		CreatedAt:          now,
	}
}
