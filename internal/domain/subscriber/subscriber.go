// Package subscriber manages the set of Telegram chats subscribed to
// notifications: creation on /start, deactivation on /stop or a
// membership-loss/blocked event, and the locale/UI-language a
// subscriber is bound to.
package subscriber

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/storage"
)

// Subscriber is one Telegram chat's subscription state.
type Subscriber struct {
	ChatID int64     `json:"chat_id"`
	Locale string    `json:"locale"`
	UILang string    `json:"ui_lang"`
	Active bool      `json:"active"`
	Since  time.Time `json:"since"`
}

// Store manages the subscriber set with a single writer lock: every
// mutation (add, deactivate, locale change) happens through the write
// path below, serialized by mu and flushed to disk before returning.
type Store struct {
	path string

	mu   sync.RWMutex
	byID map[int64]Subscriber
}

// NewStore returns an empty store bound to path.
func NewStore(path string) *Store {
	return &Store{path: path, byID: make(map[int64]Subscriber)}
}

// Load reads the subscriber array at path. A missing file is an empty
// store.
func Load(path string) (*Store, error) {
	s := NewStore(path)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config/CLI
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("subscriber: read %s: %w", path, err)
	}

	var list []Subscriber
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("subscriber: parse %s: %w", path, err)
	}
	for _, sub := range list {
		if sub.ChatID == 0 {
			logger.Warnf("subscriber: skipping entry with zero chat_id")
			continue
		}
		s.byID[sub.ChatID] = sub
	}
	return s, nil
}

// Get returns the subscriber for chatID, if one exists.
func (s *Store) Get(chatID int64) (Subscriber, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[chatID]
	return sub, ok
}

// ActiveForLocale returns a snapshot of every subscriber whose Active flag is set
// and whose locale equals want.
func (s *Store) ActiveForLocale(want string) []Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Subscriber
	for _, sub := range s.byID {
		if sub.Active && sub.Locale == want {
			out = append(out, sub)
		}
	}
	return out
}

// All returns a defensive copy of every known subscriber.
func (s *Store) All() []Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscriber, 0, len(s.byID))
	for _, sub := range s.byID {
		out = append(out, sub)
	}
	return out
}

// Start creates or reactivates chatID's subscription with the given
// locale and UI language, persisting immediately.
func (s *Store) Start(chatID int64, locale, uiLang string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, existed := s.byID[chatID]
	if !existed {
		sub = Subscriber{ChatID: chatID, Since: now}
	}
	sub.Locale = locale
	sub.UILang = uiLang
	sub.Active = true
	s.byID[chatID] = sub

	return s.saveLocked()
}

// Stop deactivates chatID's subscription, persisting immediately. A
// stop on an unknown chat is a no-op (nothing to deactivate).
func (s *Store) Stop(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[chatID]
	if !ok {
		return nil
	}
	sub.Active = false
	s.byID[chatID] = sub
	return s.saveLocked()
}

// SetLocale records chatID's chosen locale without touching UI language.
// It is called once, when the subscriber taps a button on the /start
// locale-selection menu; a fresh Start leaves Locale empty, and the
// subscription isn't notification-eligible until this runs.
func (s *Store) SetLocale(chatID int64, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[chatID]
	if !ok {
		return fmt.Errorf("subscriber: unknown chat %d", chatID)
	}
	sub.Locale = locale
	s.byID[chatID] = sub
	return s.saveLocked()
}

// Deactivate marks chatID inactive due to a transport-reported
// membership loss or a send failure classified permanent-blocked.
func (s *Store) Deactivate(chatID int64) error {
	return s.Stop(chatID)
}

func (s *Store) saveLocked() error {
	list := make([]Subscriber, 0, len(s.byID))
	for _, sub := range s.byID {
		list = append(list, sub)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("subscriber: marshal: %w", err)
	}
	return storage.AtomicWriteFile(s.path, data)
}
