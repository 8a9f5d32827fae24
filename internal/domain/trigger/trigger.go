// Package trigger implements the single-producer, single-consumer
// handoff document between the monitor and the bot: a transient JSON
// file enumerating the update ids newly observed in the monitor's last
// tick, created by the monitor and consumed-then-deleted by the bot.
package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"telegram-userbot/internal/infra/storage"
)

// Document is the wire-exact trigger shape: {"en-us":[412,413],"es-es":[287]}.
type Document map[string][]int

// Write atomically creates the trigger document. The caller must only
// call this when the union of novelty sets across the tick is
// non-empty — an empty document is never written (§4.4).
func Write(path string, novelty map[string][]int) error {
	doc := make(Document, len(novelty))
	for loc, ids := range novelty {
		sorted := append([]int(nil), ids...)
		sort.Ints(sorted)
		doc[loc] = sorted
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("trigger: marshal: %w", err)
	}
	return storage.AtomicWriteFile(path, data)
}

// Read loads and validates the trigger document. A missing file returns
// (nil, nil) — "not ready yet", not an error. A file that fails to parse
// is treated the same way by the caller (§5: "not ready, retry next
// tick"), so Read reports the parse error and lets the caller decide.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("trigger: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("trigger: parse %s: %w", path, err)
	}
	for locale, ids := range doc {
		for _, id := range ids {
			if id <= 0 {
				return nil, fmt.Errorf("trigger: locale %s has non-positive id %d", locale, id)
			}
		}
	}
	return doc, nil
}

// Delete removes the trigger document. A missing file is not an error —
// the fan-out loop may be retried after a crash between send and delete.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("trigger: delete %s: %w", path, err)
	}
	return nil
}
