// Package ratecard defines the versioned pricing tables consumed by the
// quoting engine. A RateCard is immutable once built; every lookup either
// resolves to exactly one row or fails with a *LookupError naming the row.
package ratecard

import (
	"sort"
	"strconv"

	"github.com/Simplici0/signquote/internal/money"
)

// Meta identifies a pricing set version.
type Meta struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// RateCard is a complete bundle of pricing tables. Build one with Builder or
// Document.Build; the zero value has no rows.
type RateCard struct {
	meta Meta

	panelPrices   map[PanelKey]money.Pence
	panelFinishes map[string]money.Pence
	labourRates   map[Task]money.Pence
	illumination  map[int]int
	transformers  map[string]Transformer
	opalPrices    map[OpalKey]money.Pence
	consumables   map[string]money.Pence
	finishRules   map[string]map[string]struct{}
	letterPrices  map[LetterPriceKey]money.Pence
}

// Meta returns the pricing set identity.
func (c *RateCard) Meta() Meta {
	return c.meta
}

// PanelPrice returns the unit cost of one sheet of material.
func (c *RateCard) PanelPrice(material, sheetSize string) (money.Pence, error) {
	k := PanelKey{Material: material, SheetSize: sheetSize}
	v, ok := c.panelPrices[k]
	if !ok {
		return 0, MissingRow(TablePanelPrice, "material", material, "sheet_size", sheetSize)
	}
	return v, nil
}

// PanelFinish returns the finish cost per square metre.
func (c *RateCard) PanelFinish(finish string) (money.Pence, error) {
	v, ok := c.panelFinishes[finish]
	if !ok {
		return 0, MissingRow(TablePanelFinish, "finish", finish)
	}
	return v, nil
}

// ManufacturingRate returns the hourly cost of a labour task.
func (c *RateCard) ManufacturingRate(task Task) (money.Pence, error) {
	v, ok := c.labourRates[task]
	if !ok {
		return 0, MissingRow(TableManufacturingRate, "task", string(task))
	}
	return v, nil
}

// IlluminationProfile returns the LEDs fitted to one letter of the given height.
func (c *RateCard) IlluminationProfile(heightMM int) (int, error) {
	v, ok := c.illumination[heightMM]
	if !ok {
		return 0, MissingRow(TableIlluminationProfile, "height_mm", strconv.Itoa(heightMM))
	}
	return v, nil
}

// Transformers returns every transformer ordered by capacity, then cost, then type.
func (c *RateCard) Transformers() []Transformer {
	out := make([]Transformer, 0, len(c.transformers))
	for _, t := range c.transformers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LEDCapacity != out[j].LEDCapacity {
			return out[i].LEDCapacity < out[j].LEDCapacity
		}
		if out[i].UnitCost != out[j].UnitCost {
			return out[i].UnitCost < out[j].UnitCost
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// OpalPrice returns the unit cost of one opal sheet.
func (c *RateCard) OpalPrice(opalType, sheetSize string) (money.Pence, error) {
	k := OpalKey{OpalType: opalType, SheetSize: sheetSize}
	v, ok := c.opalPrices[k]
	if !ok {
		return 0, MissingRow(TableOpalPrice, "opal_type", opalType, "sheet_size", sheetSize)
	}
	return v, nil
}

// Consumable returns a named consumable constant.
func (c *RateCard) Consumable(key string) (money.Pence, error) {
	v, ok := c.consumables[key]
	if !ok {
		return 0, MissingRow(TableConsumable, "key", key)
	}
	return v, nil
}

// LetterUnitPrice returns the price of a single letter.
func (c *RateCard) LetterUnitPrice(letterType, finish string, heightMM int) (money.Pence, error) {
	k := LetterPriceKey{LetterType: letterType, Finish: finish, HeightMM: heightMM}
	v, ok := c.letterPrices[k]
	if !ok {
		return 0, MissingRow(TableLetterUnitPrice, "letter_type", letterType, "finish", finish, "height_mm", strconv.Itoa(heightMM))
	}
	return v, nil
}

// FinishRules returns a copy of the letter finish compatibility table.
func (c *RateCard) FinishRules() FinishRules {
	rules := make(FinishRules, len(c.finishRules))
	for letterType, finishes := range c.finishRules {
		set := make(map[string]struct{}, len(finishes))
		for f := range finishes {
			set[f] = struct{}{}
		}
		rules[letterType] = set
	}
	return rules
}

// FinishRules maps a letter type to the finishes it may be ordered in.
type FinishRules map[string]map[string]struct{}

// Allows reports whether letterType has a rule and whether finish is allowed by it.
func (r FinishRules) Allows(letterType, finish string) (known, allowed bool) {
	set, ok := r[letterType]
	if !ok {
		return false, false
	}
	_, allowed = set[finish]
	return true, allowed
}

// Finishes returns the allowed finishes for letterType in sorted order.
func (r FinishRules) Finishes(letterType string) []string {
	set := r[letterType]
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
