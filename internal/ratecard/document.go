package ratecard

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/signquote/internal/money"
)

// Document is the serialised form of a rate card, shared by YAML files,
// JSON request bodies and the sqlite store. Unknown tables and fields are
// rejected when decoding.
type Document struct {
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
	Name    string `yaml:"name" json:"name"`
	Version int    `yaml:"version,omitempty" json:"version,omitempty"`

	PanelPrices          []PanelPriceRow          `yaml:"panel_prices" json:"panel_prices"`
	PanelFinishes        []PanelFinishRow         `yaml:"panel_finishes" json:"panel_finishes"`
	ManufacturingRates   []ManufacturingRateRow   `yaml:"manufacturing_rates" json:"manufacturing_rates"`
	IlluminationProfiles []IlluminationProfileRow `yaml:"illumination_profiles" json:"illumination_profiles"`
	Transformers         []Transformer            `yaml:"transformers" json:"transformers"`
	OpalPrices           []OpalPriceRow           `yaml:"opal_prices" json:"opal_prices"`
	Consumables          []ConsumableRow          `yaml:"consumables" json:"consumables"`
	LetterFinishRules    []LetterFinishRuleRow    `yaml:"letter_finish_rules" json:"letter_finish_rules"`
	LetterUnitPrices     []LetterUnitPriceRow     `yaml:"letter_unit_prices" json:"letter_unit_prices"`
}

// PanelPriceRow is the unit cost of one sheet of material at a sheet size.
type PanelPriceRow struct {
	Material  string      `yaml:"material" json:"material"`
	SheetSize string      `yaml:"sheet_size" json:"sheet_size"`
	UnitCost  money.Pence `yaml:"unit_cost" json:"unit_cost"`
}

// PanelFinishRow is a panel finish cost per square metre.
type PanelFinishRow struct {
	Finish      string      `yaml:"finish" json:"finish"`
	CostPerArea money.Pence `yaml:"cost_per_area" json:"cost_per_area"`
}

// ManufacturingRateRow is the hourly rate for a labour task.
type ManufacturingRateRow struct {
	Task        string      `yaml:"task" json:"task"`
	CostPerHour money.Pence `yaml:"cost_per_hour" json:"cost_per_hour"`
}

// IlluminationProfileRow gives the LEDs needed per letter of a height.
type IlluminationProfileRow struct {
	HeightMM      int `yaml:"height_mm" json:"height_mm"`
	LEDsPerLetter int `yaml:"leds_per_letter" json:"leds_per_letter"`
}

// OpalPriceRow is the unit cost of one opal backing sheet.
type OpalPriceRow struct {
	OpalType  string      `yaml:"opal_type" json:"opal_type"`
	SheetSize string      `yaml:"sheet_size" json:"sheet_size"`
	UnitCost  money.Pence `yaml:"unit_cost" json:"unit_cost"`
}

// ConsumableRow is a named consumable constant, such as the cost of one LED.
type ConsumableRow struct {
	Key   string      `yaml:"key" json:"key"`
	Value money.Pence `yaml:"value" json:"value"`
}

// LetterFinishRuleRow lists the finishes a letter type may be ordered in.
type LetterFinishRuleRow struct {
	LetterType      string   `yaml:"letter_type" json:"letter_type"`
	AllowedFinishes []string `yaml:"allowed_finishes" json:"allowed_finishes"`
}

// LetterUnitPriceRow is the price of one letter by type, finish and height.
type LetterUnitPriceRow struct {
	LetterType string      `yaml:"letter_type" json:"letter_type"`
	Finish     string      `yaml:"finish" json:"finish"`
	HeightMM   int         `yaml:"height_mm" json:"height_mm"`
	UnitPrice  money.Pence `yaml:"unit_price" json:"unit_price"`
}

// DecodeYAML reads a rate card document, rejecting unknown keys.
func DecodeYAML(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode rate card yaml: %w", err)
	}
	return doc, nil
}

// DecodeJSON reads a rate card document, rejecting unknown keys.
func DecodeJSON(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode rate card json: %w", err)
	}
	return doc, nil
}

// Build validates the document and returns the immutable rate card.
func (d Document) Build() (*RateCard, error) {
	b := NewBuilder(Meta{ID: d.ID, Name: d.Name, Version: d.Version})
	for _, r := range d.PanelPrices {
		b.PanelPrice(r.Material, r.SheetSize, r.UnitCost)
	}
	for _, r := range d.PanelFinishes {
		b.PanelFinish(r.Finish, r.CostPerArea)
	}
	for _, r := range d.ManufacturingRates {
		b.ManufacturingRate(r.Task, r.CostPerHour)
	}
	for _, r := range d.IlluminationProfiles {
		b.IlluminationProfile(r.HeightMM, r.LEDsPerLetter)
	}
	for _, t := range d.Transformers {
		b.Transformer(t)
	}
	for _, r := range d.OpalPrices {
		b.OpalPrice(r.OpalType, r.SheetSize, r.UnitCost)
	}
	for _, r := range d.Consumables {
		b.Consumable(r.Key, r.Value)
	}
	for _, r := range d.LetterFinishRules {
		b.LetterFinishRule(r.LetterType, r.AllowedFinishes...)
	}
	for _, r := range d.LetterUnitPrices {
		b.LetterUnitPrice(r.LetterType, r.Finish, r.HeightMM, r.UnitPrice)
	}
	return b.Build()
}

// Document returns the card's rows in a stable order.
func (c *RateCard) Document() Document {
	d := Document{ID: c.meta.ID, Name: c.meta.Name, Version: c.meta.Version}

	for k, v := range c.panelPrices {
		d.PanelPrices = append(d.PanelPrices, PanelPriceRow{Material: k.Material, SheetSize: k.SheetSize, UnitCost: v})
	}
	sort.Slice(d.PanelPrices, func(i, j int) bool {
		a, b := d.PanelPrices[i], d.PanelPrices[j]
		if a.Material != b.Material {
			return a.Material < b.Material
		}
		return a.SheetSize < b.SheetSize
	})

	for k, v := range c.panelFinishes {
		d.PanelFinishes = append(d.PanelFinishes, PanelFinishRow{Finish: k, CostPerArea: v})
	}
	sort.Slice(d.PanelFinishes, func(i, j int) bool { return d.PanelFinishes[i].Finish < d.PanelFinishes[j].Finish })

	for _, t := range Tasks() {
		if v, ok := c.labourRates[t]; ok {
			d.ManufacturingRates = append(d.ManufacturingRates, ManufacturingRateRow{Task: string(t), CostPerHour: v})
		}
	}

	for h, n := range c.illumination {
		d.IlluminationProfiles = append(d.IlluminationProfiles, IlluminationProfileRow{HeightMM: h, LEDsPerLetter: n})
	}
	sort.Slice(d.IlluminationProfiles, func(i, j int) bool {
		return d.IlluminationProfiles[i].HeightMM < d.IlluminationProfiles[j].HeightMM
	})

	d.Transformers = c.Transformers()

	for k, v := range c.opalPrices {
		d.OpalPrices = append(d.OpalPrices, OpalPriceRow{OpalType: k.OpalType, SheetSize: k.SheetSize, UnitCost: v})
	}
	sort.Slice(d.OpalPrices, func(i, j int) bool {
		a, b := d.OpalPrices[i], d.OpalPrices[j]
		if a.OpalType != b.OpalType {
			return a.OpalType < b.OpalType
		}
		return a.SheetSize < b.SheetSize
	})

	for k, v := range c.consumables {
		d.Consumables = append(d.Consumables, ConsumableRow{Key: k, Value: v})
	}
	sort.Slice(d.Consumables, func(i, j int) bool { return d.Consumables[i].Key < d.Consumables[j].Key })

	rules := c.FinishRules()
	for letterType := range rules {
		d.LetterFinishRules = append(d.LetterFinishRules, LetterFinishRuleRow{
			LetterType:      letterType,
			AllowedFinishes: rules.Finishes(letterType),
		})
	}
	sort.Slice(d.LetterFinishRules, func(i, j int) bool {
		return d.LetterFinishRules[i].LetterType < d.LetterFinishRules[j].LetterType
	})

	for k, v := range c.letterPrices {
		d.LetterUnitPrices = append(d.LetterUnitPrices, LetterUnitPriceRow{
			LetterType: k.LetterType, Finish: k.Finish, HeightMM: k.HeightMM, UnitPrice: v,
		})
	}
	sort.Slice(d.LetterUnitPrices, func(i, j int) bool {
		a, b := d.LetterUnitPrices[i], d.LetterUnitPrices[j]
		if a.LetterType != b.LetterType {
			return a.LetterType < b.LetterType
		}
		if a.Finish != b.Finish {
			return a.Finish < b.Finish
		}
		return a.HeightMM < b.HeightMM
	})

	return d
}
