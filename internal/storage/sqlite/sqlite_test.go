package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	l := &lead.Lead{
		ID:          "lead1234",
		State:       "Texas",
		StateCode:   "TX",
		Name:        "Chick-fil-A",
		Summary:     "located at 123 Main St",
		Location:    "123 Main St",
		Phone:       "512-555-0100",
		Opening:     "Spring 2026",
		Temperature: lead.Warm,
		Signage:     []string{"Monument sign", "Channel letters", "Menu boards", "Drive-thru signage"},
		Revenue:     "$45K - $90K",
		Source:      "https://news.example.com/a",
		Discovered:  now,
	}

	if err := b.Save(ctx, l); err != nil {
		t.Fatalf("Failed to save lead: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{State: "TX"})
	if err != nil {
		t.Fatalf("Failed to query leads: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 lead, got %d", len(results))
	}

	got := results[0]
	if got.ID != l.ID || got.Name != l.Name || got.Location != l.Location || got.Phone != l.Phone {
		t.Errorf("Expected %+v, got %+v", l, got)
	}
	if got.Temperature != l.Temperature {
		t.Errorf("Expected temperature %s, got %s", l.Temperature, got.Temperature)
	}
	if !reflect.DeepEqual(got.Signage, l.Signage) {
		t.Errorf("Expected signage %v, got %v", l.Signage, got.Signage)
	}
	if got.Discovered.Unix() != l.Discovered.Unix() {
		t.Errorf("Expected Discovered %v, got %v", l.Discovered, got.Discovered)
	}

	// Saving the same id again replaces the row.
	updated := *l
	updated.Temperature = lead.Hot
	if err := b.Save(ctx, &updated); err != nil {
		t.Fatalf("Failed to resave lead: %v", err)
	}
	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 1 || all[0].Temperature != lead.Hot {
		t.Fatalf("Expected one replaced lead, got %+v", all)
	}

	if err := b.Save(ctx, &lead.Lead{ID: "older", State: "Ohio", StateCode: "OH", Temperature: lead.Warm, Discovered: now.Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("Failed to save second lead: %v", err)
	}

	past := now.Add(-1 * time.Hour)
	since, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(since) != 1 || since[0].ID != l.ID {
		t.Fatalf("Expected only the recent lead, got %+v", since)
	}

	warm, err := b.Query(ctx, storage.Filter{Temperature: lead.Warm})
	if err != nil {
		t.Fatalf("Failed to query by temperature: %v", err)
	}
	if len(warm) != 1 || warm[0].ID != "older" {
		t.Fatalf("Expected the Ohio lead, got %+v", warm)
	}

	offset, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with offset: %v", err)
	}
	if len(offset) != 1 || offset[0].ID != "older" {
		t.Fatalf("Expected the older lead at offset 1, got %+v", offset)
	}
}
