package command_test

import (
	"path/filepath"
	"testing"
	"time"

	"telegram-userbot/internal/domain/command"
	"telegram-userbot/internal/domain/locale"
	"telegram-userbot/internal/domain/subscriber"
	"telegram-userbot/internal/domain/translation"
	"telegram-userbot/internal/domain/update"
)

func newTestStores(t *testing.T, entries []update.SecurityUpdate) command.Stores {
	t.Helper()

	catalog := locale.NewCatalog()
	catalog.Replace(map[string]string{"en-us": "https://example.com/en-us", "es-es": "https://example.com/es-es"})

	names := locale.NewNames()
	names.Set("en-us", "English (US)")
	names.Set("es-es", "Español (España)")

	translations, err := translation.Load(t.TempDir())
	if err != nil {
		t.Fatalf("translation.Load() error = %v", err)
	}

	return command.Stores{
		Subscribers:  subscriber.NewStore(filepath.Join(t.TempDir(), "subscribers.json")),
		Catalog:      catalog,
		Names:        names,
		Translations: translations,
		LoadLocale: func(tag string) (*update.Store, error) {
			return &update.Store{Updates: entries}, nil
		},
	}
}

func TestParseRequestStripsSlashAndBotNameSuffix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want command.Request
	}{
		{"plainVerb", "/start", command.Request{ChatID: 1, Verb: "start", Arg: ""}},
		{"verbWithArg", "/updates ios", command.Request{ChatID: 1, Verb: "updates", Arg: "ios"}},
		{"verbWithBotSuffix", "/start@crazyones_bot", command.Request{ChatID: 1, Verb: "start", Arg: ""}},
		{"verbWithBotSuffixAndArg", "/updates@crazyones_bot macos", command.Request{ChatID: 1, Verb: "updates", Arg: "macos"}},
		{"noLeadingSlash", "help", command.Request{ChatID: 1, Verb: "help", Arg: ""}},
		{"extraWhitespace", "  /language   es-es  ", command.Request{ChatID: 1, Verb: "language", Arg: "es-es"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := command.ParseRequest(1, tc.text)
			if got != tc.want {
				t.Fatalf("ParseRequest(%q) = %#v, want %#v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDispatchStartThenStop(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	now := time.Now()

	resp := command.Dispatch(stores, command.Request{ChatID: 1, Verb: "start"}, now)
	if resp.Text != "start_choose_locale" {
		t.Fatalf("Dispatch(/start) = %q, want raw translation key start_choose_locale", resp.Text)
	}
	if sub, ok := stores.Subscribers.Get(1); !ok || !sub.Active {
		t.Fatalf("subscriber not created/active after /start")
	}

	resp = command.Dispatch(stores, command.Request{ChatID: 1, Verb: "stop"}, now)
	if resp.Text != "stop_confirmed" {
		t.Fatalf("Dispatch(/stop) = %q, want raw translation key stop_confirmed", resp.Text)
	}
	if sub, _ := stores.Subscribers.Get(1); sub.Active {
		t.Fatalf("subscriber still active after /stop")
	}
}

func TestDispatchStartPresentsLocaleKeyboard(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	resp := command.Dispatch(stores, command.Request{ChatID: 1, Verb: "start"}, time.Now())

	if len(resp.Keyboard) != 2 {
		t.Fatalf("Dispatch(/start) keyboard rows = %d, want 2 (one per catalog locale)", len(resp.Keyboard))
	}
	var data []string
	for _, row := range resp.Keyboard {
		for _, btn := range row {
			data = append(data, btn.Data)
		}
	}
	want := []string{"locale:en-us", "locale:es-es"}
	for _, w := range want {
		found := false
		for _, d := range data {
			if d == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("Dispatch(/start) keyboard data = %v, want it to include %q", data, w)
		}
	}
}

func TestDispatchCallbackSelectsLocaleAndActivatesSubscriber(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	now := time.Now()
	command.Dispatch(stores, command.Request{ChatID: 5, Verb: "start"}, now)

	resp := command.DispatchCallback(stores, 5, "locale:en-us")
	if resp.Text != "welcome" {
		t.Fatalf("DispatchCallback(locale:en-us) = %q, want raw translation key welcome", resp.Text)
	}

	sub, ok := stores.Subscribers.Get(5)
	if !ok || sub.Locale != "en-us" {
		t.Fatalf("subscriber locale = %q, ok=%v, want en-us/true", sub.Locale, ok)
	}

	if !stores.Subscribers.ActiveForLocale("en-us")[0].Active {
		t.Fatalf("subscriber not eligible for en-us fan-out after locale selection")
	}
}

func TestDispatchCallbackUnknownLocale(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	command.Dispatch(stores, command.Request{ChatID: 6, Verb: "start"}, time.Now())

	resp := command.DispatchCallback(stores, 6, "locale:zz-zz")
	if resp.Text != "unknown_locale" {
		t.Fatalf("DispatchCallback(locale:zz-zz) = %q, want unknown_locale", resp.Text)
	}
	if sub, _ := stores.Subscribers.Get(6); sub.Locale != "" {
		t.Fatalf("subscriber locale = %q, want unchanged empty locale on unknown tag", sub.Locale)
	}
}

func TestDispatchCallbackUnrecognizedDataIsNoOp(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	resp := command.DispatchCallback(stores, 7, "something:else")
	if resp.Text != "" || resp.Keyboard != nil {
		t.Fatalf("DispatchCallback(unrecognized) = %#v, want empty Response", resp)
	}
}

func TestDispatchUpdatesBeforeSubscribing(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	resp := command.Dispatch(stores, command.Request{ChatID: 2, Verb: "updates"}, time.Now())
	if resp.Text != "not_subscribed" {
		t.Fatalf("Dispatch(/updates) before /start = %q, want not_subscribed", resp.Text)
	}
}

func TestDispatchUpdatesListsRecentForSubscriberLocale(t *testing.T) {
	t.Parallel()

	entries := []update.SecurityUpdate{
		{ID: 1, Name: "Safari 17.4", Target: "macOS", Date: "2024-01-22"},
		{ID: 2, Name: "iOS 17.4", Target: "iPhone", Date: "2024-01-22"},
	}
	stores := newTestStores(t, entries)
	now := time.Now()

	_ = stores.Subscribers.Start(3, "en-us", "en-us", now)

	resp := command.Dispatch(stores, command.Request{ChatID: 3, Verb: "updates"}, now)
	want := "update_line\nupdate_line"
	if resp.Text != want {
		t.Fatalf("Dispatch(/updates) = %q, want %q (one rendered line per entry)", resp.Text, want)
	}
}

func TestDispatchUnknownVerbFallsBackToFuzzyMatch(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	resp := command.Dispatch(stores, command.Request{ChatID: 4, Verb: "stat"}, time.Now())
	want := "did_you_mean_command\nstart_choose_locale"
	if resp.Text != want {
		t.Fatalf("Dispatch(stat) = %q, want %q", resp.Text, want)
	}
}

func TestDispatchUnknownVerbNoMatch(t *testing.T) {
	t.Parallel()

	stores := newTestStores(t, nil)
	resp := command.Dispatch(stores, command.Request{ChatID: 4, Verb: "zzzzzzzzzzzzzzzz"}, time.Now())
	if resp.Text != "unknown_command" {
		t.Fatalf("Dispatch(zzz...) = %q, want unknown_command", resp.Text)
	}
}
