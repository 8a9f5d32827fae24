// Package htmlx collects the small DOM-walking helpers the locale-index
// reconciler and the per-locale scraper both need on top of
// golang.org/x/net/html: finding elements by tag or attribute, reading
// inner text, and resolving a possibly-relative href against a page's
// base URL.
package htmlx

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of attribute key on n, and whether it was present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FindAll walks the tree rooted at n (depth-first, pre-order) and
// returns every element node for which match returns true.
func FindAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && match(cur) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Find returns the first element matching match, depth-first pre-order,
// or nil.
func Find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// ByTag matches an element node with the given tag name.
func ByTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

// InnerText concatenates all text node descendants of n, collapsing
// surrounding whitespace on the result.
func InnerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			sb.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// ResolveHRef resolves an element's href attribute against base. Returns
// ("", false) if the element has no href or it fails to parse.
func ResolveHRef(n *html.Node, base *url.URL) (string, bool) {
	href, ok := Attr(n, "href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}

// Children returns the direct element-node children of n in document order.
func Children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Parse parses the document body into a node tree, returning the root
// document node as produced by html.Parse.
func Parse(body []byte) (*html.Node, error) {
	return html.Parse(strings.NewReader(string(body)))
}
