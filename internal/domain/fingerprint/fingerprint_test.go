package fingerprint_test

import (
	"path/filepath"
	"testing"

	"telegram-userbot/internal/domain/fingerprint"
)

func TestLoadMissingFileIsEmptyLedger(t *testing.T) {
	t.Parallel()

	l, err := fingerprint.Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := l.Get("https://support.apple.com/en-us/security"); ok {
		t.Fatalf("Get() on empty ledger = ok, want false")
	}
}

func TestSetGetDelete(t *testing.T) {
	t.Parallel()

	l := fingerprint.New()
	l.Set("https://support.apple.com/en-us/security", "abc123")

	got, ok := l.Get("https://support.apple.com/en-us/security")
	if !ok || got != "abc123" {
		t.Fatalf("Get() = (%q, %v), want (abc123, true)", got, ok)
	}

	l.Delete("https://support.apple.com/en-us/security")
	if _, ok := l.Get("https://support.apple.com/en-us/security"); ok {
		t.Fatalf("Get() after Delete = ok, want false")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fingerprints.json")
	l := fingerprint.New()
	l.Set("https://support.apple.com/en-us/security", "digest-one")
	l.Set("https://support.apple.com/es-es/security", "digest-two")

	if err := l.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := fingerprint.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, ok := reloaded.Get("https://support.apple.com/en-us/security"); !ok || got != "digest-one" {
		t.Fatalf("Get(en-us) after reload = (%q, %v), want (digest-one, true)", got, ok)
	}
	if got, ok := reloaded.Get("https://support.apple.com/es-es/security"); !ok || got != "digest-two" {
		t.Fatalf("Get(es-es) after reload = (%q, %v), want (digest-two, true)", got, ok)
	}
}
