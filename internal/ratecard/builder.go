package ratecard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/signquote/internal/money"
)

// Builder assembles a RateCard, rejecting malformed or duplicate rows.
// Problems are collected and reported together by Build.
type Builder struct {
	card *RateCard
	errs []error
}

// NewBuilder starts an empty rate card for the given pricing set.
func NewBuilder(meta Meta) *Builder {
	return &Builder{card: &RateCard{
		meta:          meta,
		panelPrices:   make(map[PanelKey]money.Pence),
		panelFinishes: make(map[string]money.Pence),
		labourRates:   make(map[Task]money.Pence),
		illumination:  make(map[int]int),
		transformers:  make(map[string]Transformer),
		opalPrices:    make(map[OpalKey]money.Pence),
		consumables:   make(map[string]money.Pence),
		finishRules:   make(map[string]map[string]struct{}),
		letterPrices:  make(map[LetterPriceKey]money.Pence),
	}}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *Builder) checkCost(row string, cost money.Pence) bool {
	if cost < 0 {
		b.fail("%s: cost must not be negative, got %d", row, cost)
		return false
	}
	return true
}

func (b *Builder) checkName(row, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		b.fail("%s: %s is required", row, field)
		return false
	}
	return true
}

// PanelPrice adds a (material, sheet_size) unit cost.
func (b *Builder) PanelPrice(material, sheetSize string, unitCost money.Pence) *Builder {
	row := rowName(TablePanelPrice, "material", material, "sheet_size", sheetSize)
	if !b.checkName(row, "material", material) || !b.checkCost(row, unitCost) {
		return b
	}
	if _, ok := LookupSheetSize(sheetSize); !ok {
		b.fail("%s: unknown sheet size", row)
		return b
	}
	k := PanelKey{Material: material, SheetSize: sheetSize}
	if _, dup := b.card.panelPrices[k]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.panelPrices[k] = unitCost
	return b
}

// PanelFinish adds a finish cost per square metre.
func (b *Builder) PanelFinish(finish string, costPerArea money.Pence) *Builder {
	row := rowName(TablePanelFinish, "finish", finish)
	if !b.checkName(row, "finish", finish) || !b.checkCost(row, costPerArea) {
		return b
	}
	if _, dup := b.card.panelFinishes[finish]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.panelFinishes[finish] = costPerArea
	return b
}

// ManufacturingRate adds an hourly labour rate for a task.
func (b *Builder) ManufacturingRate(task string, costPerHour money.Pence) *Builder {
	row := rowName(TableManufacturingRate, "task", task)
	t, ok := ParseTask(task)
	if !ok {
		b.fail("%s: unknown task", row)
		return b
	}
	if !b.checkCost(row, costPerHour) {
		return b
	}
	if _, dup := b.card.labourRates[t]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.labourRates[t] = costPerHour
	return b
}

// IlluminationProfile adds the LED count for letters of heightMM.
func (b *Builder) IlluminationProfile(heightMM, ledsPerLetter int) *Builder {
	row := rowName(TableIlluminationProfile, "height_mm", fmt.Sprint(heightMM))
	if heightMM <= 0 {
		b.fail("%s: height must be positive", row)
		return b
	}
	if ledsPerLetter < 0 {
		b.fail("%s: leds_per_letter must not be negative, got %d", row, ledsPerLetter)
		return b
	}
	if _, dup := b.card.illumination[heightMM]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.illumination[heightMM] = ledsPerLetter
	return b
}

// Transformer adds a transformer option.
func (b *Builder) Transformer(t Transformer) *Builder {
	row := rowName(TableTransformer, "type", t.Type)
	if !b.checkName(row, "type", t.Type) || !b.checkCost(row, t.UnitCost) {
		return b
	}
	if t.LEDCapacity <= 0 {
		b.fail("%s: led_capacity must be positive, got %d", row, t.LEDCapacity)
		return b
	}
	if _, dup := b.card.transformers[t.Type]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.transformers[t.Type] = t
	return b
}

// OpalPrice adds an opal sheet unit cost.
func (b *Builder) OpalPrice(opalType, sheetSize string, unitCost money.Pence) *Builder {
	row := rowName(TableOpalPrice, "opal_type", opalType, "sheet_size", sheetSize)
	if !b.checkName(row, "opal_type", opalType) || !b.checkCost(row, unitCost) {
		return b
	}
	if _, ok := LookupSheetSize(sheetSize); !ok {
		b.fail("%s: unknown sheet size", row)
		return b
	}
	k := OpalKey{OpalType: opalType, SheetSize: sheetSize}
	if _, dup := b.card.opalPrices[k]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.opalPrices[k] = unitCost
	return b
}

// Consumable adds a named consumable constant.
func (b *Builder) Consumable(key string, value money.Pence) *Builder {
	row := rowName(TableConsumable, "key", key)
	if !b.checkName(row, "key", key) || !b.checkCost(row, value) {
		return b
	}
	if _, dup := b.card.consumables[key]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.consumables[key] = value
	return b
}

// LetterFinishRule sets the allowed finishes for a letter type. Each finish
// may appear once and at least one is required.
func (b *Builder) LetterFinishRule(letterType string, allowed ...string) *Builder {
	row := rowName(TableLetterFinishRule, "letter_type", letterType)
	if !b.checkName(row, "letter_type", letterType) {
		return b
	}
	if _, dup := b.card.finishRules[letterType]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	if len(allowed) == 0 {
		b.fail("%s: at least one allowed finish is required", row)
		return b
	}
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		if strings.TrimSpace(f) == "" {
			b.fail("%s: empty finish", row)
			continue
		}
		if _, dup := set[f]; dup {
			b.fail("%s: duplicate finish %q", row, f)
			continue
		}
		set[f] = struct{}{}
	}
	b.card.finishRules[letterType] = set
	return b
}

// LetterUnitPrice adds the price of one letter.
func (b *Builder) LetterUnitPrice(letterType, finish string, heightMM int, unitPrice money.Pence) *Builder {
	row := rowName(TableLetterUnitPrice, "letter_type", letterType, "finish", finish, "height_mm", fmt.Sprint(heightMM))
	if !b.checkName(row, "letter_type", letterType) || !b.checkName(row, "finish", finish) || !b.checkCost(row, unitPrice) {
		return b
	}
	if heightMM <= 0 {
		b.fail("%s: height must be positive", row)
		return b
	}
	k := LetterPriceKey{LetterType: letterType, Finish: finish, HeightMM: heightMM}
	if _, dup := b.card.letterPrices[k]; dup {
		b.fail("%s: duplicate row", row)
		return b
	}
	b.card.letterPrices[k] = unitPrice
	return b
}

// Build returns the rate card, or every problem found while adding rows.
// The Builder must not be reused after Build.
func (b *Builder) Build() (*RateCard, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("build rate card %q: %w", b.card.meta.ID, errors.Join(b.errs...))
	}
	card := b.card
	b.card = nil
	return card, nil
}
