package ratecard

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
)

// Report is the outcome of a completeness check. OK is true iff Missing is empty.
type Report struct {
	OK       bool     `json:"ok"`
	Missing  []string `json:"missing"`
	Warnings []string `json:"warnings"`
}

// CheckCompleteness lists every row the catalog may need that card lacks,
// plus non-fatal warnings about thin coverage. Entries are in a stable order.
func CheckCompleteness(card *RateCard, catalog Catalog) Report {
	r := Report{Missing: []string{}, Warnings: []string{}}

	missing := func(err error) {
		if err != nil {
			r.Missing = append(r.Missing, err.(*LookupError).Row())
		}
	}
	warn := func(format string, args ...any) {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	}

	for _, m := range catalog.Materials {
		for _, s := range catalog.SheetSizes {
			_, err := card.PanelPrice(m, s)
			missing(err)
		}
	}
	for _, f := range catalog.PanelFinishes {
		_, err := card.PanelFinish(f)
		missing(err)
	}
	for _, t := range Tasks() {
		_, err := card.ManufacturingRate(t)
		missing(err)
	}

	sold := make(map[string]struct{}, len(catalog.LetterFinishes))
	for _, f := range catalog.LetterFinishes {
		sold[f] = struct{}{}
	}
	rules := card.FinishRules()
	for _, lt := range catalog.LetterTypes {
		if _, ok := rules[lt]; !ok {
			r.Missing = append(r.Missing, rowName(TableLetterFinishRule, "letter_type", lt))
			continue
		}
		for _, f := range rules.Finishes(lt) {
			if len(sold) > 0 {
				if _, ok := sold[f]; !ok {
					warn("letter type %q allows finish %q which the catalog does not offer", lt, f)
					continue
				}
			}
			for _, h := range catalog.LetterHeightsMM {
				_, err := card.LetterUnitPrice(lt, f, h)
				missing(err)
			}
		}
	}

	for _, key := range catalog.Consumables {
		_, err := card.Consumable(key)
		missing(err)
	}

	if catalog.Illumination {
		checkIllumination(card, catalog, &r, missing, warn)
	}

	zeroCostWarnings(card, warn)

	r.OK = len(r.Missing) == 0
	return r
}

func checkIllumination(card *RateCard, catalog Catalog, r *Report, missing func(error), warn func(string, ...any)) {
	tallest, tallestLEDs := 0, 0
	for _, h := range catalog.LetterHeightsMM {
		leds, err := card.IlluminationProfile(h)
		missing(err)
		if err == nil && h > tallest {
			tallest, tallestLEDs = h, leds
		}
	}
	for _, o := range catalog.OpalTypes {
		for _, s := range catalog.SheetSizes {
			_, err := card.OpalPrice(o, s)
			missing(err)
		}
	}
	if _, err := card.Consumable(ConsumableLEDUnit); err != nil && !lo.Contains(catalog.Consumables, ConsumableLEDUnit) {
		missing(err)
	}

	transformers := card.Transformers()
	switch len(transformers) {
	case 0:
		r.Missing = append(r.Missing, rowName(TableTransformer, "type", "*"))
		return
	case 1:
		warn("only one transformer size (%s, %d LEDs) is available; larger signs cannot be illuminated", transformers[0].Type, transformers[0].LEDCapacity)
	}

	if catalog.ReferenceLetters > 0 && tallest > 0 {
		largest := transformers[len(transformers)-1]
		need := tallestLEDs * catalog.ReferenceLetters
		if largest.LEDCapacity < need {
			warn("largest transformer %s (%d LEDs) cannot light %d letters at %dmm (%d LEDs)",
				largest.Type, largest.LEDCapacity, catalog.ReferenceLetters, tallest, need)
		}
	}
}

func zeroCostWarnings(card *RateCard, warn func(string, ...any)) {
	doc := card.Document()
	for _, p := range doc.PanelPrices {
		if p.UnitCost == 0 {
			warn("%s has zero cost", rowName(TablePanelPrice, "material", p.Material, "sheet_size", p.SheetSize))
		}
	}
	for _, t := range doc.ManufacturingRates {
		if t.CostPerHour == 0 {
			warn("%s has zero cost", rowName(TableManufacturingRate, "task", t.Task))
		}
	}
	for _, l := range doc.LetterUnitPrices {
		if l.UnitPrice == 0 {
			warn("%s has zero cost", rowName(TableLetterUnitPrice, "letter_type", l.LetterType, "finish", l.Finish, "height_mm", strconv.Itoa(l.HeightMM)))
		}
	}
}
