package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/signquote/internal/ratecard"
)

// Limits enforced by Validate.
const (
	MaxPanelDimensionMM = 12000
	MaxLetterHeightMM   = 2000
	MaxLetterQuantity   = 500
	MaxLetterSets       = 50
	MaxLabourHours      = 500
	MaxMarkupPercent    = 500
)

// RawInput is a quote item as submitted, before validation.
type RawInput struct {
	WidthMM       json.Number                `json:"width_mm,omitempty"`
	HeightMM      json.Number                `json:"height_mm,omitempty"`
	Material      string                     `json:"material"`
	SheetSize     string                     `json:"sheet_size"`
	Finish        string                     `json:"finish"`
	LetterSets    []RawLetterSet             `json:"letter_sets"`
	Illumination  bool                       `json:"illumination"`
	OpalType      string                     `json:"opal_type,omitempty"`
	LabourHours   map[string]decimal.Decimal `json:"labour_hours,omitempty"`
	MarkupPercent *decimal.Decimal           `json:"markup_percent,omitempty"`
	Overrides     map[string]json.RawMessage `json:"overrides,omitempty"`
}

// RawLetterSet is one submitted letter set. Quantity may be omitted when
// Text is given, in which case the non-space characters are counted.
type RawLetterSet struct {
	LetterType string      `json:"letter_type"`
	Finish     string      `json:"finish"`
	HeightMM   json.Number `json:"height_mm,omitempty"`
	Quantity   json.Number `json:"qty,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// LetterSet is a validated group of identical letters.
type LetterSet struct {
	LetterType string `json:"letter_type"`
	Finish     string `json:"finish"`
	HeightMM   int    `json:"height_mm"`
	Quantity   int    `json:"qty"`
	Text       string `json:"text,omitempty"`
}

// Overrides force values in place of the computed or stated ones.
type Overrides struct {
	MarkupPercent *decimal.Decimal                  `json:"markup_percent,omitempty"`
	LabourHours   map[ratecard.Task]decimal.Decimal `json:"labour_hours,omitempty"`
}

// Input is a validated, normalised quote item. The engine
// never mutates it.
type Input struct {
	WidthMM       int                               `json:"width_mm"`
	HeightMM      int                               `json:"height_mm"`
	Material      string                            `json:"material"`
	SheetSize     string                            `json:"sheet_size"`
	Finish        string                            `json:"finish"`
	LetterSets    []LetterSet                       `json:"letter_sets"`
	Illumination  bool                              `json:"illumination"`
	OpalType      string                            `json:"opal_type,omitempty"`
	LabourHours   map[ratecard.Task]decimal.Decimal `json:"labour_hours"`
	MarkupPercent decimal.Decimal                   `json:"markup_percent"`
	Overrides     Overrides                         `json:"overrides"`
}

// Resolved pairs a base value with an optional override.
type Resolved[T any] struct {
	Base     T  `json:"base"`
	Override *T `json:"override,omitempty"`
}

// Effective returns the override when present, else the base.
func (r Resolved[T]) Effective() T {
	if r.Override != nil {
		return *r.Override
	}
	return r.Base
}

// Overridden reports whether an override is in force.
func (r Resolved[T]) Overridden() bool {
	return r.Override != nil
}

func (r Resolved[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Base       T    `json:"base"`
		Override   *T   `json:"override,omitempty"`
		Effective  T    `json:"effective"`
		Overridden bool `json:"overridden"`
	}{r.Base, r.Override, r.Effective(), r.Overridden()})
}

// Terms are the overridable values after resolution.
type Terms struct {
	MarkupPercent Resolved[decimal.Decimal]
	LabourHours   map[ratecard.Task]Resolved[decimal.Decimal]
}

// Resolve pairs each overridable field with its override. It runs once,
// before any cost is computed.
func Resolve(in Input) Terms {
	t := Terms{
		MarkupPercent: Resolved[decimal.Decimal]{Base: in.MarkupPercent, Override: in.Overrides.MarkupPercent},
		LabourHours:   make(map[ratecard.Task]Resolved[decimal.Decimal], len(ratecard.Tasks())),
	}
	for _, task := range ratecard.Tasks() {
		r := Resolved[decimal.Decimal]{Base: in.LabourHours[task]}
		if v, ok := in.Overrides.LabourHours[task]; ok {
			r.Override = &v
		}
		t.LabourHours[task] = r
	}
	return t
}
