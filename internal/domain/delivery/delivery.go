// Package delivery tracks which security-update ids have already been
// sent to which subscriber for which locale, giving the fan-out sender
// at-most-once delivery per (chat, locale, id).
package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"telegram-userbot/internal/infra/storage"
)

// Ledger is the JSON-backed {chat_id: {locale: [id, ...]}} delivery
// record. All reads and writes go through mu so concurrent fan-out
// workers never race on the same chat.
type Ledger struct {
	path string

	mu   sync.Mutex
	data map[int64]map[string][]int
}

// New returns an empty ledger bound to path.
func New(path string) *Ledger {
	return &Ledger{path: path, data: make(map[int64]map[string][]int)}
}

// Load reads the ledger at path. A missing file is an empty ledger.
func Load(path string) (*Ledger, error) {
	l := New(path)

	raw, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("delivery: read %s: %w", path, err)
	}

	var wire map[string]map[string][]int
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("delivery: parse %s: %w", path, err)
	}
	for chatStr, byLocale := range wire {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			continue
		}
		l.data[chatID] = byLocale
	}
	return l, nil
}

// Delivered returns the set of ids already recorded as sent to chatID
// for locale.
func (l *Ledger) Delivered(chatID int64, locale string) map[int]bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := make(map[int]bool)
	for _, id := range l.data[chatID][locale] {
		set[id] = true
	}
	return set
}

// Pending returns the subset of ids not yet recorded as delivered to
// chatID for locale, preserving ids' input order.
func (l *Ledger) Pending(chatID int64, locale string, ids []int) []int {
	delivered := l.Delivered(chatID, locale)
	var pending []int
	for _, id := range ids {
		if !delivered[id] {
			pending = append(pending, id)
		}
	}
	return pending
}

// MarkDelivered records id as sent to chatID for locale. Idempotent:
// marking an already-recorded id is a no-op.
func (l *Ledger) MarkDelivered(chatID int64, locale string, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byLocale, ok := l.data[chatID]
	if !ok {
		byLocale = make(map[string][]int)
		l.data[chatID] = byLocale
	}
	for _, existing := range byLocale[locale] {
		if existing == id {
			return
		}
	}
	byLocale[locale] = append(byLocale[locale], id)
	sort.Ints(byLocale[locale])
}

// Save persists the ledger atomically.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	wire := make(map[string]map[string][]int, len(l.data))
	for chatID, byLocale := range l.data {
		wire[strconv.FormatInt(chatID, 10)] = byLocale
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("delivery: marshal: %w", err)
	}
	return storage.AtomicWriteFile(l.path, data)
}
