package delivery_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"telegram-userbot/internal/domain/delivery"
)

func TestPendingFiltersAlreadyDeliveredPreservingOrder(t *testing.T) {
	t.Parallel()

	l := delivery.New(filepath.Join(t.TempDir(), "ledger.json"))
	l.MarkDelivered(1, "en-us", 10)
	l.MarkDelivered(1, "en-us", 12)

	got := l.Pending(1, "en-us", []int{12, 11, 10, 13})
	want := []int{11, 13}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending() = %v, want %v", got, want)
	}
}

func TestPendingIsPerLocale(t *testing.T) {
	t.Parallel()

	l := delivery.New(filepath.Join(t.TempDir(), "ledger.json"))
	l.MarkDelivered(1, "en-us", 10)

	got := l.Pending(1, "es-es", []int{10})
	want := []int{10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending() across locales = %v, want %v (delivery in one locale doesn't affect another)", got, want)
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	t.Parallel()

	l := delivery.New(filepath.Join(t.TempDir(), "ledger.json"))
	l.MarkDelivered(1, "en-us", 5)
	l.MarkDelivered(1, "en-us", 2)
	l.MarkDelivered(1, "en-us", 5)

	delivered := l.Delivered(1, "en-us")
	if len(delivered) != 2 || !delivered[2] || !delivered[5] {
		t.Fatalf("Delivered() = %v, want {2,5}", delivered)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.json")
	l := delivery.New(path)
	l.MarkDelivered(100, "en-us", 1)
	l.MarkDelivered(100, "ja-jp", 2)
	if err := l.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := delivery.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reloaded.Pending(100, "en-us", []int{1, 2}); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("Pending() after reload = %v, want [2]", got)
	}
}

func TestLoadMissingFileIsEmptyLedger(t *testing.T) {
	t.Parallel()

	l, err := delivery.Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.Pending(1, "en-us", []int{1, 2}); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("Pending() on empty ledger = %v, want everything pending", got)
	}
}
