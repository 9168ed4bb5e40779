package ratecard

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func loadComplete(t *testing.T) *RateCard {
	t.Helper()

	f, err := os.Open("testdata/complete.yaml")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := DecodeYAML(f)
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return card
}

func TestLookups_ResolveExactlyOneRow(t *testing.T) {
	card := loadComplete(t)

	if got, err := card.PanelPrice("Aluminium 3mm", "2.4 x 1.2"); err != nil || got != 8500 {
		t.Fatalf("PanelPrice = %d, %v", got, err)
	}
	if got, err := card.LetterUnitPrice("Fabricated", "Powder Coating", 200); err != nil || got != 2200 {
		t.Fatalf("LetterUnitPrice = %d, %v", got, err)
	}
	if got, err := card.IlluminationProfile(500); err != nil || got != 10 {
		t.Fatalf("IlluminationProfile = %d, %v", got, err)
	}
	if got, err := card.ManufacturingRate(TaskFabrication); err != nil || got != 3800 {
		t.Fatalf("ManufacturingRate = %d, %v", got, err)
	}
}

func TestLookupMiss_NamesTableAndKey(t *testing.T) {
	card := loadComplete(t)

	_, err := card.LetterUnitPrice("Acrylic", "Brushed", 200)
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *LookupError, got %T (%v)", err, err)
	}
	if lookupErr.Kind() != KindMissingRateRow {
		t.Fatalf("Kind = %q", lookupErr.Kind())
	}
	want := `letter_unit_price[letter_type="Acrylic" finish="Brushed" height_mm="200"]`
	if lookupErr.Row() != want {
		t.Fatalf("Row = %s, want %s", lookupErr.Row(), want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("Error = %q", err.Error())
	}
}

func TestTransformers_OrderedByCapacity(t *testing.T) {
	card := loadComplete(t)

	var got []string
	for _, tr := range card.Transformers() {
		got = append(got, tr.Type)
	}
	if diff := cmp.Diff([]string{"20W", "60W", "100W"}, got); diff != "" {
		t.Fatalf("transformer order mismatch (-want +got):\n%s", diff)
	}
}

func TestFinishRules_Allows(t *testing.T) {
	rules := loadComplete(t).FinishRules()

	if known, allowed := rules.Allows("Acrylic", "Brushed"); !known || allowed {
		t.Fatalf("Acrylic/Brushed known=%v allowed=%v, want known and disallowed", known, allowed)
	}
	if known, allowed := rules.Allows("Fabricated", "Brushed"); !known || !allowed {
		t.Fatalf("Fabricated/Brushed known=%v allowed=%v", known, allowed)
	}
	if known, _ := rules.Allows("Neon", "Painted"); known {
		t.Fatalf("expected unknown letter type")
	}

	// Mutating the copy must not leak into the card.
	delete(rules, "Acrylic")
	if _, ok := loadComplete(t).FinishRules()["Acrylic"]; !ok {
		t.Fatalf("expected fresh card to keep Acrylic rule")
	}
}

func TestDecodeYAML_RejectsUnknownTable(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("name: x\nneon_tubes:\n  - {colour: red}\n"))
	if err == nil {
		t.Fatalf("expected unknown table to be rejected")
	}
}

func TestDecodeJSON_RejectsUnknownField(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"name":"x","panel_prices":[{"material":"A","sheet_size":"2.4 x 1.2","unit_cost":1,"colour":"red"}]}`))
	if err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestBuild_CollectsEveryProblem(t *testing.T) {
	_, err := NewBuilder(Meta{ID: "bad"}).
		PanelPrice("Aluminium 3mm", "2.4 x 1.2", 100).
		PanelPrice("Aluminium 3mm", "2.4 x 1.2", 200).
		PanelPrice("Aluminium 3mm", "9 x 9", 100).
		ManufacturingRate("welding", 100).
		PanelFinish("Brushed", -1).
		Transformer(Transformer{Type: "10W", LEDCapacity: 0, UnitCost: 10}).
		LetterFinishRule("Neon").
		LetterFinishRule("Fabricated", "Brushed", "Brushed").
		Build()
	if err == nil {
		t.Fatalf("expected build error")
	}

	msg := err.Error()
	for _, want := range []string{
		"duplicate row", "unknown sheet size", "unknown task", "must not be negative", "led_capacity must be positive",
		"at least one allowed finish is required", `duplicate finish "Brushed"`,
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestDocument_RoundTripsThroughBuild(t *testing.T) {
	card := loadComplete(t)

	rebuilt, err := card.Document().Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if diff := cmp.Diff(card.Document(), rebuilt.Document()); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

type countingRepo struct {
	calls int
	inner Repository
}

func (r *countingRepo) Load(ctx context.Context, id string) (*RateCard, error) {
	r.calls++
	return r.inner.Load(ctx, id)
}

func TestRequestCache_LoadsOncePerScope(t *testing.T) {
	card := loadComplete(t)
	repo := &countingRepo{inner: NewMemoryRepository(card)}
	cache := NewRequestCache(repo)

	for i := 0; i < 3; i++ {
		got, err := cache.Load(context.Background(), card.Meta().ID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != card {
			t.Fatalf("expected same card instance")
		}
	}
	if repo.calls != 1 {
		t.Fatalf("expected 1 repository call, got %d", repo.calls)
	}

	if _, err := NewRequestCache(repo).Load(context.Background(), card.Meta().ID); err != nil {
		t.Fatalf("Load on new scope: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected a new scope to reload, calls=%d", repo.calls)
	}

	if _, err := cache.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusArchived, true},
		{StatusActive, StatusArchived, true},
		{StatusActive, StatusDraft, false},
		{StatusArchived, StatusActive, false},
		{StatusArchived, StatusDraft, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	if Status("published").IsValid() {
		t.Fatalf("unexpected valid status")
	}
}
