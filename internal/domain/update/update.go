// Package update holds the SecurityUpdate record, the per-locale store
// and its id-assigner: the piece of the monitor that turns a freshly
// scraped record list into a stable, ascending-id JSON store while
// retaining anything Apple's page no longer lists.
package update

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"telegram-userbot/internal/domain/scrape"
	"telegram-userbot/internal/infra/storage"
)

// SecurityUpdate is one row of a locale's releases table.
type SecurityUpdate struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Target string `json:"target"`
	Date   string `json:"date"`
}

// contentIdentity is the tuple that recognizes a re-observation of the
// same row across fetches, independent of its assigned id.
type contentIdentity struct {
	Name   string
	Target string
	Date   string
}

// Store is the ordered list of SecurityUpdate for one locale.
type Store struct {
	Updates []SecurityUpdate
}

// LoadStore reads the locale store at path. A missing file is an empty
// store, not an error.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{}, nil
		}
		return nil, fmt.Errorf("update: read %s: %w", path, err)
	}
	var updates []SecurityUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("update: parse %s: %w", path, err)
	}
	return &Store{Updates: updates}, nil
}

// Save atomically persists the store as a human-readable JSON array.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s.Updates, "", "  ")
	if err != nil {
		return fmt.Errorf("update: marshal %s: %w", path, err)
	}
	return storage.AtomicWriteFile(path, data)
}

// ByID returns the update with the given id, if present.
func (s *Store) ByID(id int) (SecurityUpdate, bool) {
	for _, u := range s.Updates {
		if u.ID == id {
			return u, true
		}
	}
	return SecurityUpdate{}, false
}

// AssignResult is the output of Assign: the new store contents and the
// set of ids allocated for genuinely new content-identities this round
// (the "novelty set").
type AssignResult struct {
	Updates []SecurityUpdate
	Novelty []int
}

// Assign builds the new store contents from a freshly parsed record
// list and the existing store. Re-observed content-identities keep
// their id and have mutable fields refreshed (url if now present, date
// if previously the sentinel); new content-identities get
// max(existing)+1, strictly ascending within the tick. Records from the
// existing store that the new fetch doesn't mention are preserved,
// appended after the current fetch's entries in their prior relative
// order — Apple's list occasionally truncates, and this spec mandates
// retention over silent loss.
func Assign(records []scrape.Record, existing *Store) AssignResult {
	if existing == nil {
		existing = &Store{}
	}

	byIdentity := make(map[contentIdentity]SecurityUpdate, len(existing.Updates))
	seen := make(map[contentIdentity]bool, len(existing.Updates))
	sentinelDated := make(map[contentIdentity]SecurityUpdate)
	maxID := 0
	for _, u := range existing.Updates {
		byIdentity[contentIdentity{Name: u.Name, Target: u.Target, Date: u.Date}] = u
		if u.ID > maxID {
			maxID = u.ID
		}
		if u.Date == scrape.SentinelDate {
			sentinelDated[contentIdentity{Name: u.Name, Target: u.Target}] = u
		}
	}

	var fresh []SecurityUpdate
	var novelty []int

	for _, r := range records {
		identity := contentIdentity{Name: r.Name, Target: r.Target, Date: r.Date}
		seen[identity] = true

		prior, ok := byIdentity[identity]
		if key := (contentIdentity{Name: r.Name, Target: r.Target}); !ok && r.Date != scrape.SentinelDate {
			// A row stored with the sentinel date is the same row once its date resolves.
			if prior, ok = sentinelDated[key]; ok {
				delete(sentinelDated, key)
				seen[contentIdentity{Name: prior.Name, Target: prior.Target, Date: prior.Date}] = true
			}
		}
		if ok {
			refreshed := prior
			if refreshed.URL == "" && r.URL != "" {
				refreshed.URL = r.URL
			}
			if refreshed.Date == scrape.SentinelDate && r.Date != scrape.SentinelDate {
				refreshed.Date = r.Date
			}
			refreshed.Target = r.Target
			refreshed.Name = r.Name
			fresh = append(fresh, refreshed)
			continue
		}

		maxID++
		newUpdate := SecurityUpdate{ID: maxID, Name: r.Name, URL: r.URL, Target: r.Target, Date: r.Date}
		fresh = append(fresh, newUpdate)
		novelty = append(novelty, maxID)
	}

	var preserved []SecurityUpdate
	for _, u := range existing.Updates {
		identity := contentIdentity{Name: u.Name, Target: u.Target, Date: u.Date}
		if !seen[identity] {
			preserved = append(preserved, u)
		}
	}

	sort.Ints(novelty)

	return AssignResult{
		Updates: append(fresh, preserved...),
		Novelty: novelty,
	}
}
