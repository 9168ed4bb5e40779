package ratecard

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckCompleteness_CompleteCardIsOK(t *testing.T) {
	report := CheckCompleteness(loadComplete(t), DefaultCatalog())

	if !report.OK {
		t.Fatalf("expected OK report, missing=%v", report.Missing)
	}
	if len(report.Missing) != 0 {
		t.Fatalf("expected no missing rows, got %v", report.Missing)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", report.Warnings)
	}
}

func TestCheckCompleteness_ReportsEveryMissingRow(t *testing.T) {
	doc := loadComplete(t).Document()
	doc.PanelPrices = doc.PanelPrices[1:] // drops Acrylic 5mm / 2.4 x 1.2
	doc.Consumables = nil
	doc.LetterUnitPrices = dropLetterPrice(doc.LetterUnitPrices, "Acrylic", "Painted", 300)

	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	report := CheckCompleteness(card, DefaultCatalog())
	if report.OK {
		t.Fatalf("expected incomplete report")
	}
	want := []string{
		`panel_price[material="Acrylic 5mm" sheet_size="2.4 x 1.2"]`,
		`letter_unit_price[letter_type="Acrylic" finish="Painted" height_mm="300"]`,
		`consumable[key="led_unit"]`,
	}
	if diff := cmp.Diff(want, report.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckCompleteness_MissingFinishRule(t *testing.T) {
	doc := loadComplete(t).Document()
	var rules []LetterFinishRuleRow
	for _, r := range doc.LetterFinishRules {
		if r.LetterType != "Built-up" {
			rules = append(rules, r)
		}
	}
	doc.LetterFinishRules = rules

	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	report := CheckCompleteness(card, DefaultCatalog())
	if diff := cmp.Diff([]string{`letter_finish_rule[letter_type="Built-up"]`}, report.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckCompleteness_TransformerWarnings(t *testing.T) {
	doc := loadComplete(t).Document()
	doc.Transformers = []Transformer{{Type: "20W", LEDCapacity: 40, UnitCost: 1800}}

	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	report := CheckCompleteness(card, DefaultCatalog())
	if !report.OK {
		t.Fatalf("warnings must not fail the report: %v", report.Missing)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected single-size and headroom warnings, got %v", report.Warnings)
	}
	if !strings.Contains(report.Warnings[0], "only one transformer size") {
		t.Fatalf("unexpected first warning %q", report.Warnings[0])
	}
	if !strings.Contains(report.Warnings[1], "cannot light 10 letters at 500mm") {
		t.Fatalf("unexpected second warning %q", report.Warnings[1])
	}
}

func TestCheckCompleteness_NoTransformers(t *testing.T) {
	doc := loadComplete(t).Document()
	doc.Transformers = nil

	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	report := CheckCompleteness(card, DefaultCatalog())
	if diff := cmp.Diff([]string{`transformer[type="*"]`}, report.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckCompleteness_IlluminationDisabledSkipsLEDTables(t *testing.T) {
	doc := loadComplete(t).Document()
	doc.Transformers = nil
	doc.IlluminationProfiles = nil
	doc.OpalPrices = nil

	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	catalog := DefaultCatalog()
	catalog.Illumination = false
	if report := CheckCompleteness(card, catalog); !report.OK {
		t.Fatalf("expected OK without illumination, missing=%v", report.Missing)
	}
}

func dropLetterPrice(rows []LetterUnitPriceRow, letterType, finish string, height int) []LetterUnitPriceRow {
	out := rows[:0:0]
	for _, r := range rows {
		if r.LetterType == letterType && r.Finish == finish && r.HeightMM == height {
			continue
		}
		out = append(out, r)
	}
	return out
}
