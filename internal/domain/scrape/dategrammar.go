package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SentinelDate is substituted whenever no grammar recognizes a raw date
// string. The caller logs a date-parse-failure when this is returned.
const SentinelDate = "0000-00-00"

// grammar recognizes one locale family's date rendering and extracts
// (year, month, day) from a regex match.
type grammar struct {
	name    string
	pattern *regexp.Regexp
	months  map[string]int // lowercased month name -> 1..12; nil for numeric-only grammars
	// extract pulls (year, month, day) out of a regex match using months
	// to resolve a textual month group when present.
	extract func(m []string, months map[string]int) (year, month, day int, ok bool)
}

var englishMonths = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
}

var frenchMonths = map[string]int{
	"janvier": 1, "février": 2, "fevrier": 2, "mars": 3, "avril": 4, "mai": 5, "juin": 6,
	"juillet": 7, "août": 8, "aout": 8, "septembre": 9, "octobre": 10, "novembre": 11, "décembre": 12, "decembre": 12,
}

var germanMonths = map[string]int{
	"januar": 1, "februar": 2, "märz": 3, "marz": 3, "april": 4, "mai": 5, "juni": 6,
	"juli": 7, "august": 8, "september": 9, "oktober": 10, "november": 11, "dezember": 12,
}

// grammars is tried in order; the first grammar whose pattern matches
// and whose month name resolves in its own month table wins. A pattern
// match with an unknown month falls through to the next grammar, which
// is how "22 janvier 2024" reaches the French entry after the English
// one with the same shape. The literal connective words ("de", "de",
// and the comma) keep the English forms and the Spanish form apart.
var grammars = []grammar{
	{ // English: "22 January 2024"
		name:    "en-day-month-year",
		pattern: regexp.MustCompile(`^(\d{1,2})\s+([A-Za-zÀ-ÿ]+)\s+(\d{4})$`),
		months:  englishMonths,
		extract: func(m []string, months map[string]int) (int, int, int, bool) {
			day, errD := strconv.Atoi(m[1])
			mon, ok := months[strings.ToLower(m[2])]
			year, errY := strconv.Atoi(m[3])
			return year, mon, day, errD == nil && errY == nil && ok
		},
	},
	{ // English: "January 22, 2024"
		name:    "en-month-day-year",
		pattern: regexp.MustCompile(`^([A-Za-zÀ-ÿ]+)\s+(\d{1,2}),?\s+(\d{4})$`),
		months:  englishMonths,
		extract: func(m []string, months map[string]int) (int, int, int, bool) {
			mon, ok := months[strings.ToLower(m[1])]
			day, errD := strconv.Atoi(m[2])
			year, errY := strconv.Atoi(m[3])
			return year, mon, day, errD == nil && errY == nil && ok
		},
	},
	{ // Spanish: "22 de enero de 2024"
		name:    "es-day-de-month-de-year",
		pattern: regexp.MustCompile(`^(\d{1,2})\s+de\s+([A-Za-zÀ-ÿ]+)\s+de\s+(\d{4})$`),
		months:  spanishMonths,
		extract: func(m []string, months map[string]int) (int, int, int, bool) {
			day, errD := strconv.Atoi(m[1])
			mon, ok := months[strings.ToLower(m[2])]
			year, errY := strconv.Atoi(m[3])
			return year, mon, day, errD == nil && errY == nil && ok
		},
	},
	{ // French: "22 janvier 2024"
		name:    "fr-day-month-year",
		pattern: regexp.MustCompile(`^(\d{1,2})\s+([A-Za-zÀ-ÿ]+)\s+(\d{4})$`),
		months:  frenchMonths,
		extract: func(m []string, months map[string]int) (int, int, int, bool) {
			day, errD := strconv.Atoi(m[1])
			mon, ok := months[strings.ToLower(m[2])]
			year, errY := strconv.Atoi(m[3])
			return year, mon, day, errD == nil && errY == nil && ok
		},
	},
	{ // German: "22. Januar 2024"
		name:    "de-day-dot-month-year",
		pattern: regexp.MustCompile(`^(\d{1,2})\.\s+([A-Za-zÀ-ÿ]+)\s+(\d{4})$`),
		months:  germanMonths,
		extract: func(m []string, months map[string]int) (int, int, int, bool) {
			day, errD := strconv.Atoi(m[1])
			mon, ok := months[strings.ToLower(m[2])]
			year, errY := strconv.Atoi(m[3])
			return year, mon, day, errD == nil && errY == nil && ok
		},
	},
	{ // Japanese / Chinese: "2024年1月22日"
		name:    "cjk-year-month-day",
		pattern: regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日$`),
		months:  nil,
		extract: func(m []string, _ map[string]int) (int, int, int, bool) {
			year, errY := strconv.Atoi(m[1])
			mon, errM := strconv.Atoi(m[2])
			day, errD := strconv.Atoi(m[3])
			return year, mon, day, errY == nil && errM == nil && errD == nil
		},
	},
}

// ParseDate converts raw, the third cell's inner text on a releases
// table row, into an ISO-8601 date using whichever grammar recognizes
// its shape. Unrecognized input returns (SentinelDate, false).
func ParseDate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return SentinelDate, false
	}

	for _, g := range grammars {
		m := g.pattern.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		year, month, day, ok := g.extract(m, g.months)
		if !ok || month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
	}
	return SentinelDate, false
}
