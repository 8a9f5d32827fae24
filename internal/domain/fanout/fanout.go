// Package fanout is the trigger watcher: it polls the data directory
// for the monitor's trigger document, resolves the referenced records,
// sends one message per (subscriber, record) pair through a throttled
// Telegram client, and retires the trigger once every pair has been
// attempted.
package fanout

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"telegram-userbot/internal/domain/delivery"
	"telegram-userbot/internal/domain/locale"
	"telegram-userbot/internal/domain/subscriber"
	"telegram-userbot/internal/domain/translation"
	"telegram-userbot/internal/domain/trigger"
	"telegram-userbot/internal/domain/update"
	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/throttle"
)

// PollInterval is how often the trigger document is checked for.
const PollInterval = 30 * time.Second

// DefaultMaxRetries bounds the transient-failure backoff before a send
// is given up on. The trigger is still deleted after the pass, and later
// triggers list only ids that are new in their own tick, so a given-up
// send is not attempted again.
const DefaultMaxRetries = 5

// Sender is the minimal transport contract the fanout loop needs.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Classifier reports whether an error from Sender is a permanent block
// (deactivate and stop), leaving everything else treated as retryable
// by the throttler's own backoff until MaxRetries is exhausted.
type Classifier func(err error) (blocked bool, permanentOther bool)

// Watcher drives the poll loop.
type Watcher struct {
	dataDir      string
	sender       Sender
	classify     Classifier
	subscribers  *subscriber.Store
	ledger       *delivery.Ledger
	translations *translation.Catalog
	names        *locale.Names
	throttler    *throttle.Throttler
}

// New builds a Watcher. throttler must already be constructed with the
// desired wait extractors (e.g. telegram.RetryAfterExtractor) and
// max-retry cap; Run calls Start/Stop on it as the watcher runs.
func New(dataDir string, sender Sender, classify Classifier, subscribers *subscriber.Store, ledger *delivery.Ledger, translations *translation.Catalog, names *locale.Names, throttler *throttle.Throttler) *Watcher {
	return &Watcher{
		dataDir:      dataDir,
		sender:       sender,
		classify:     classify,
		subscribers:  subscribers,
		ledger:       ledger,
		translations: translations,
		names:        names,
		throttler:    throttler,
	}
}

func (w *Watcher) triggerPath() string {
	return filepath.Join(w.dataDir, "new_updates_trigger.json")
}

func (w *Watcher) localeStorePath(tag string) string {
	return filepath.Join(w.dataDir, "updates", tag+".json")
}

// Run polls every PollInterval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.throttler.Start(ctx)
	defer w.throttler.Stop()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.pollOnce(ctx); err != nil {
				logger.Errorf("fanout: poll failed: %v", err)
			}
		}
	}
}

// pollOnce performs one trigger-document cycle: read, process, delete.
// A parse failure is treated as "not ready" per the shared-resource
// policy and retried on the next tick without logging at error level.
func (w *Watcher) pollOnce(ctx context.Context) error {
	doc, err := trigger.Read(w.triggerPath())
	if err != nil {
		logger.Warnf("fanout: trigger not ready this poll: %v", err)
		return nil
	}
	if doc == nil {
		return nil
	}

	for localeTag, ids := range doc {
		if err := w.deliverLocale(ctx, localeTag, ids); err != nil {
			logger.Errorf("fanout: deliver locale %s failed: %v", localeTag, err)
		}
	}

	return trigger.Delete(w.triggerPath())
}

func (w *Watcher) deliverLocale(ctx context.Context, localeTag string, ids []int) error {
	store, err := update.LoadStore(w.localeStorePath(localeTag))
	if err != nil {
		return fmt.Errorf("load locale store: %w", err)
	}

	recipients := w.subscribers.ActiveForLocale(localeTag)
	for _, sub := range recipients {
		pending := w.ledger.Pending(sub.ChatID, localeTag, ids)
		for _, id := range pending {
			record, ok := store.ByID(id)
			if !ok {
				continue
			}
			if err := w.deliverOne(ctx, sub.ChatID, sub.UILang, localeTag, record); err != nil {
				logger.Errorf("fanout: deliver update %d to chat %d: %v", id, sub.ChatID, err)
				if current, ok := w.subscribers.Get(sub.ChatID); ok && !current.Active {
					break // blocked and deactivated: no further sends to this chat
				}
				continue
			}
			w.ledger.MarkDelivered(sub.ChatID, localeTag, id)
			if err := w.ledger.Save(); err != nil {
				return fmt.Errorf("save delivery ledger: %w", err)
			}
		}
	}
	return nil
}

func (w *Watcher) deliverOne(ctx context.Context, chatID int64, uiLang, localeTag string, record update.SecurityUpdate) error {
	text := w.translations.Render(uiLang, "update_line", record.Name, record.Target, record.Date)

	err := w.throttler.Do(ctx, func() error {
		return w.sender.Send(ctx, chatID, text)
	})
	if err == nil {
		return nil
	}

	blocked, permanentOther := w.classify(err)
	switch {
	case blocked:
		if stopErr := w.subscribers.Deactivate(chatID); stopErr != nil {
			logger.Errorf("fanout: deactivate chat %d: %v", chatID, stopErr)
		}
		return fmt.Errorf("chat blocked, deactivated: %w", err)
	case permanentOther:
		return fmt.Errorf("permanent send error: %w", err)
	default:
		return fmt.Errorf("send retries exhausted: %w", err)
	}
}
