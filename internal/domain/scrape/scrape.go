// Package scrape fetches one locale's security-releases page, short-
// circuits on an unchanged fingerprint, and parses the releases table
// into normalized records.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"telegram-userbot/internal/adapters/htmlx"
	"telegram-userbot/internal/infra/logger"

	"golang.org/x/net/html"
)

// desktopUserAgent is sent with every fetch so Apple serves the same
// markup a desktop browser would see.
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// fetchDeadline bounds a single locale fetch.
const fetchDeadline = 30 * time.Second

// Record is one row parsed from a locale's releases table, before ids
// are assigned.
type Record struct {
	Name   string
	URL    string
	Target string
	Date   string
}

// Result is what a scrape produces: the new fingerprint, the parsed
// records (nil when Unchanged), and whether the page changed at all.
type Result struct {
	Fingerprint string
	Unchanged   bool
	Records     []Record
}

// ErrTableNotFound is a parse-failure: the releases table could not be
// located by its column shape. Callers must leave the fingerprint
// unchanged so the next tick retries.
var ErrTableNotFound = fmt.Errorf("scrape: releases table not found")

// FetchDocument retrieves rawURL with the same desktop User-Agent and
// deadline as Fetch, but returns the parsed HTML document unconditionally
// — used for the locale index page, which has no releases table and no
// tracked fingerprint of its own.
func FetchDocument(ctx context.Context, client *http.Client, rawURL string) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape: fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scrape: read body %s: %w", rawURL, err)
	}

	doc, err := htmlx.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("scrape: parse html %s: %w", rawURL, err)
	}
	return doc, nil
}

// Fetch retrieves localeURL and parses it against priorFingerprint. A
// network failure is returned as an error (network-transient, retried
// next tick). A structural parse failure is also returned as an error
// (ErrTableNotFound) so the caller can apply the parse-failure policy
// (§7: fingerprint not updated).
func Fetch(ctx context.Context, client *http.Client, localeURL, priorFingerprint string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, localeURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", desktopUserAgent)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: fetch %s: %w", localeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("scrape: fetch %s: unexpected status %d", localeURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: read body %s: %w", localeURL, err)
	}

	sum := sha256.Sum256(body)
	fingerprint := hex.EncodeToString(sum[:])

	if priorFingerprint != "" && fingerprint == priorFingerprint {
		return Result{Fingerprint: fingerprint, Unchanged: true}, nil
	}

	doc, err := htmlx.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: parse html %s: %w", localeURL, err)
	}

	base, err := url.Parse(localeURL)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: parse base url: %w", err)
	}

	records, err := parseTable(doc, base)
	if err != nil {
		return Result{}, err
	}

	return Result{Fingerprint: fingerprint, Records: records}, nil
}

// parseTable locates the releases table by column shape (three columns:
// name, target, date — confirmed by an anchor in the first column on
// typical rows) and extracts every data row.
func parseTable(doc *html.Node, base *url.URL) ([]Record, error) {
	tables := htmlx.FindAll(doc, htmlx.ByTag("table"))

	for _, table := range tables {
		rows := htmlx.FindAll(table, htmlx.ByTag("tr"))
		var records []Record
		sawAnchoredRow := false

		for _, row := range rows {
			cells := htmlx.Children(row)
			cells = filterCells(cells)
			if len(cells) != 3 {
				continue
			}
			if cells[0].Data == "th" && cells[1].Data == "th" && cells[2].Data == "th" {
				continue // header row, not a data row
			}

			nameCell, targetCell, dateCell := cells[0], cells[1], cells[2]
			name := htmlx.InnerText(nameCell)
			if name == "" {
				continue
			}

			anchor := htmlx.Find(nameCell, htmlx.ByTag("a"))
			href := ""
			if anchor != nil {
				sawAnchoredRow = true
				if resolved, ok := htmlx.ResolveHRef(anchor, base); ok {
					href = resolved
				}
			}

			target := htmlx.InnerText(targetCell)
			rawDate := htmlx.InnerText(dateCell)
			date, ok := ParseDate(rawDate)
			if !ok {
				logger.Warnf("scrape: unrecognized date format %q for %q; storing sentinel", rawDate, name)
			}

			records = append(records, Record{Name: name, URL: href, Target: target, Date: date})
		}

		if sawAnchoredRow && len(records) > 0 {
			return records, nil
		}
	}

	return nil, ErrTableNotFound
}

func filterCells(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if n.Data == "td" || n.Data == "th" {
			out = append(out, n)
		}
	}
	return out
}
