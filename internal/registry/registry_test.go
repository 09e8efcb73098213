package registry

import (
	"slices"
	"testing"
)

func count(labels []string, want string) int {
	n := 0
	for _, l := range labels {
		if l == want {
			n++
		}
	}
	return n
}

func TestNew_Seeds(t *testing.T) {
	r := New()
	snap := r.Snapshot()

	if !slices.Contains(snap.Categories, "Credit card") {
		t.Errorf("Categories = %v, want seed Credit card", snap.Categories)
	}
	if len(snap.Subcategories) != 2 {
		t.Errorf("Subcategories = %v, want 2 seeds", snap.Subcategories)
	}
}

func TestRecord_NewCategorySkipsSubcategory(t *testing.T) {
	r := NewEmpty()
	r.Record("Mortgage", "Conventional home mortgage")

	snap := r.Snapshot()
	if count(snap.Categories, "Mortgage") != 1 {
		t.Errorf("Categories = %v, want Mortgage exactly once", snap.Categories)
	}
	// The subcategory check is exclusive with the category one.
	if len(snap.Subcategories) != 0 {
		t.Errorf("Subcategories = %v, want unchanged", snap.Subcategories)
	}
}

func TestRecord_KnownCategoryRecordsSubcategory(t *testing.T) {
	r := NewEmpty()
	r.Record("Mortgage", "Conventional home mortgage")
	r.Record("Mortgage", "Conventional home mortgage")

	snap := r.Snapshot()
	if count(snap.Categories, "Mortgage") != 1 {
		t.Errorf("Categories = %v, want no duplicate", snap.Categories)
	}
	if count(snap.Subcategories, "Conventional home mortgage") != 1 {
		t.Errorf("Subcategories = %v, want subcategory recorded on second call", snap.Subcategories)
	}
}

func TestRecord_NoDuplicates(t *testing.T) {
	r := NewEmpty()
	for range 3 {
		r.Record("Mortgage", "")
	}
	if got := r.Snapshot().Categories; len(got) != 1 {
		t.Errorf("Categories = %v, want exactly one entry", got)
	}
}

func TestRecord_EmptyLabels(t *testing.T) {
	r := NewEmpty()
	r.Record("", "")
	snap := r.Snapshot()
	if len(snap.Categories) != 0 || len(snap.Subcategories) != 0 {
		t.Errorf("empty labels recorded: %+v", snap)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	r := New()
	snap := r.Snapshot()
	snap.Categories[0] = "mutated"

	if got := r.Snapshot().Categories[0]; got != "Credit card" {
		t.Errorf("registry mutated through snapshot: %q", got)
	}
}
