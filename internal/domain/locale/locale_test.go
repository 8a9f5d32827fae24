package locale_test

import (
	"sort"
	"strings"
	"testing"

	"telegram-userbot/internal/domain/locale"

	"golang.org/x/net/html"
)

func TestIsValidTag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag  string
		want bool
	}{
		{"en-us", true},
		{"zh-cn", true},
		{"EN-US", false},
		{"en_us", false},
		{"english", false},
		{"e-us", false},
	}

	for _, tc := range cases {
		if got := locale.IsValidTag(tc.tag); got != tc.want {
			t.Errorf("IsValidTag(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func parseDoc(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	return doc
}

func TestReconcileExtractsAlternateLinksAndClassifies(t *testing.T) {
	t.Parallel()

	body := `<html><head>
		<link rel="alternate" hreflang="en-us" href="/en-us/security">
		<link rel="alternate" hreflang="es-es" href="/es-es/security">
	</head><body></body></html>`
	doc := parseDoc(t, body)

	prior := map[string]string{
		"en-us": "https://support.apple.com/en-us/security",
		"fr-fr": "https://support.apple.com/fr-fr/security",
	}

	result, err := locale.Reconcile(doc, "https://support.apple.com/en-us/security", prior)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	wantURLs := map[string]string{
		"en-us": "https://support.apple.com/en-us/security",
		"es-es": "https://support.apple.com/es-es/security",
	}
	for tag, wantURL := range wantURLs {
		if got := result.URLs[tag]; got != wantURL {
			t.Errorf("URLs[%q] = %q, want %q", tag, got, wantURL)
		}
	}

	sort.Strings(result.Classification.Added)
	sort.Strings(result.Classification.Removed)
	sort.Strings(result.Classification.Unchanged)

	if got := result.Classification.Added; len(got) != 1 || got[0] != "es-es" {
		t.Errorf("Classification.Added = %v, want [es-es]", got)
	}
	if got := result.Classification.Removed; len(got) != 1 || got[0] != "fr-fr" {
		t.Errorf("Classification.Removed = %v, want [fr-fr]", got)
	}
	if got := result.Classification.Unchanged; len(got) != 1 || got[0] != "en-us" {
		t.Errorf("Classification.Unchanged = %v, want [en-us]", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	body := `<html><head>
		<link rel="alternate" hreflang="ja-jp" href="https://support.apple.com/ja-jp/security">
	</head></html>`
	doc := parseDoc(t, body)
	prior := map[string]string{}

	first, err := locale.Reconcile(doc, "https://support.apple.com/ja-jp/security", prior)
	if err != nil {
		t.Fatalf("Reconcile() first call error = %v", err)
	}
	second, err := locale.Reconcile(doc, "https://support.apple.com/ja-jp/security", prior)
	if err != nil {
		t.Fatalf("Reconcile() second call error = %v", err)
	}

	if len(first.Classification.Added) != len(second.Classification.Added) {
		t.Fatalf("Reconcile() not idempotent: %v vs %v", first.Classification, second.Classification)
	}
}

func TestCatalogTagsSortedAndURLLookup(t *testing.T) {
	t.Parallel()

	c := locale.NewCatalog()
	c.Replace(map[string]string{"zh-cn": "u1", "en-us": "u2", "ja-jp": "u3"})

	if got := c.Tags(); len(got) != 3 || got[0] != "en-us" || got[1] != "ja-jp" || got[2] != "zh-cn" {
		t.Fatalf("Tags() = %v, want sorted [en-us ja-jp zh-cn]", got)
	}
	if u, ok := c.URL("en-us"); !ok || u != "u2" {
		t.Fatalf("URL(en-us) = (%q, %v), want (u2, true)", u, ok)
	}
	if _, ok := c.URL("de-de"); ok {
		t.Fatalf("URL(de-de) matched, want false")
	}
}

func TestNamesGetFallsBackToTag(t *testing.T) {
	t.Parallel()

	n := locale.NewNames()
	n.Set("en-us", "English (US)")

	if got := n.Get("en-us"); got != "English (US)" {
		t.Fatalf("Get(en-us) = %q, want English (US)", got)
	}
	if got := n.Get("xx-yy"); got != "xx-yy" {
		t.Fatalf("Get(xx-yy) = %q, want the tag itself", got)
	}
}
