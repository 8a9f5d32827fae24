// Package locale holds the Locale/LocaleCatalog types and the
// locale-index reconciler: turning Apple's alternate-locale links into a
// catalog, classified against whatever catalog the monitor last stored.
package locale

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"sync"

	"telegram-userbot/internal/adapters/htmlx"
	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/storage"

	"golang.org/x/net/html"
)

// tagPattern matches a locale tag xx-yy: a 2-3 letter language subtag and
// a 2 letter region subtag, both lowercase.
var tagPattern = regexp.MustCompile(`^[a-z]{2,3}-[a-z]{2}$`)

// IsValidTag reports whether tag has the shape a Locale requires.
func IsValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Catalog is the durable locale -> URL mapping. Exactly one instance
// exists per data directory; only the monitor mutates it.
type Catalog struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{urls: make(map[string]string)}
}

// Snapshot returns a defensive copy of the locale -> URL mapping.
func (c *Catalog) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.urls))
	for k, v := range c.urls {
		out[k] = v
	}
	return out
}

// URL returns the URL registered for tag, if any.
func (c *Catalog) URL(tag string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.urls[tag]
	return u, ok
}

// Tags returns every known locale tag, sorted ascending.
func (c *Catalog) Tags() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.urls))
	for k := range c.urls {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Replace swaps in a freshly reconciled mapping wholesale.
func (c *Catalog) Replace(urls map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = urls
}

// LoadCatalog reads the locale -> URL JSON document at path. A missing
// file returns an empty catalog, not an error — the first monitor tick
// treats every discovered locale as added.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	urls := make(map[string]string)
	if data != nil {
		if err := json.Unmarshal(data, &urls); err != nil {
			return nil, fmt.Errorf("locale: parse %s: %w", path, err)
		}
	}
	return &Catalog{urls: urls}, nil
}

// Save atomically writes the catalog to path.
func (c *Catalog) Save(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("locale: marshal catalog: %w", err)
	}
	return storage.AtomicWriteFile(path, data)
}

// Names is the locale -> display-name sidecar document
// (data/language_names.json). It shares the catalog's lifecycle but is
// a plain map since display names have no reconciliation semantics of
// their own: the reconciler only classifies URLs, and a name simply
// rides along with whatever URL each locale currently has.
type Names struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewNames returns an empty Names store.
func NewNames() *Names { return &Names{names: make(map[string]string)} }

// LoadNames reads the locale -> display-name JSON document at path.
func LoadNames(path string) (*Names, error) {
	data, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	if data != nil {
		if err := json.Unmarshal(data, &names); err != nil {
			return nil, fmt.Errorf("locale: parse %s: %w", path, err)
		}
	}
	return &Names{names: names}, nil
}

// Set records tag's display name.
func (n *Names) Set(tag, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names[tag] = name
}

// Get returns the display name for tag, or tag itself if unknown.
func (n *Names) Get(tag string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.names[tag]; ok {
		return name
	}
	return tag
}

// Save atomically writes the names map to path.
func (n *Names) Save(path string) error {
	n.mu.RLock()
	snapshot := make(map[string]string, len(n.names))
	for k, v := range n.names {
		snapshot[k] = v
	}
	n.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("locale: marshal names: %w", err)
	}
	return storage.AtomicWriteFile(path, data)
}

// Classification buckets the outcome of reconciling a freshly scraped
// locale index against the prior catalog.
type Classification struct {
	Added     []string
	Removed   []string
	Updated   []string
	Unchanged []string
}

// ReconcileResult is the output of Reconcile: the new catalog (not yet
// persisted — the caller saves it only after a successful tick) plus
// the locale -> display-name mapping observed on this page, and the
// classification against the prior catalog.
type ReconcileResult struct {
	URLs           map[string]string
	Names          map[string]string
	Classification Classification
}

// Reconcile extracts every alternate-locale link from the index page's
// parsed HTML and classifies the result against prior. It is
// idempotent: calling it twice with the same document and prior catalog
// produces the same Classification both times.
//
// Apple marks locale alternates with <link rel="alternate" hreflang="xx-yy"
// href="...">. If the index instead links locales as anchors carrying a
// data-locale/hreflang-shaped attribute, those are picked up too — the
// match is driven entirely by attribute shape, never a fixed element list.
func Reconcile(doc *html.Node, baseURL string, prior map[string]string) (ReconcileResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("locale: parse base url: %w", err)
	}

	candidates := htmlx.FindAll(doc, func(n *html.Node) bool {
		if n.Data != "link" && n.Data != "a" {
			return false
		}
		tag, ok := localeAttr(n)
		return ok && IsValidTag(tag)
	})

	urls := make(map[string]string)
	names := make(map[string]string)

	for _, n := range candidates {
		tag, _ := localeAttr(n)
		href, ok := htmlx.ResolveHRef(n, base)
		if !ok {
			continue
		}
		if existing, dup := urls[tag]; dup && existing != href {
			logger.Warnf("locale index: duplicate locale %s (urls %s, %s); last occurrence wins", tag, existing, href)
		}
		urls[tag] = href // last occurrence wins
		if text := htmlx.InnerText(n); text != "" {
			names[tag] = text
		}
	}

	return ReconcileResult{
		URLs:           urls,
		Names:          names,
		Classification: classify(prior, urls),
	}, nil
}

func localeAttr(n *html.Node) (string, bool) {
	if v, ok := htmlx.Attr(n, "hreflang"); ok {
		return v, true
	}
	if v, ok := htmlx.Attr(n, "data-locale"); ok {
		return v, true
	}
	return "", false
}

func classify(prior, next map[string]string) Classification {
	var c Classification
	for tag, url := range next {
		priorURL, existed := prior[tag]
		switch {
		case !existed:
			c.Added = append(c.Added, tag)
		case priorURL != url:
			c.Updated = append(c.Updated, tag)
		default:
			c.Unchanged = append(c.Unchanged, tag)
		}
	}
	for tag := range prior {
		if _, stillThere := next[tag]; !stillThere {
			c.Removed = append(c.Removed, tag)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Updated)
	sort.Strings(c.Unchanged)
	return c
}

func readOptional(path string) ([]byte, error) {
	data, err := readFileIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("locale: read %s: %w", path, err)
	}
	return data, nil
}
