// Package pricing turns a validated signage job and a rate card into an
// itemised cost breakdown. Calculate does no I/O and is safe for concurrent
// use.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/signquote/internal/money"
	"github.com/Simplici0/signquote/internal/ratecard"
)

// LetterSetLine records how one letter set was priced.
type LetterSetLine struct {
	Qty       int         `json:"qty"`
	Type      string      `json:"type"`
	Finish    string      `json:"finish"`
	HeightMM  int         `json:"height_mm"`
	UnitPrice money.Pence `json:"unit_price"`
	Subtotal  money.Pence `json:"subtotal"`
}

// IlluminationLine records LED sizing for an illuminated sign. The opal
// fields are set only when an opal backing was requested.
type IlluminationLine struct {
	TotalLEDs    int                  `json:"total_leds"`
	Transformer  ratecard.Transformer `json:"transformer"`
	OpalType     string               `json:"opal_type,omitempty"`
	OpalSheets   int                  `json:"opal_sheets,omitempty"`
	OpalUnitCost money.Pence          `json:"opal_unit_cost,omitempty"`
	LEDUnitCost  money.Pence          `json:"led_unit_cost,omitempty"`
}

// LabourLine records the hours billed for one task.
type LabourLine struct {
	Task        ratecard.Task             `json:"task"`
	Hours       Resolved[decimal.Decimal] `json:"hours"`
	CostPerHour money.Pence               `json:"cost_per_hour"`
}

// Costs are the itemised cost fields; their sum is the total.
type Costs struct {
	PanelOverallCost    money.Pence  `json:"panel_overall_cost"`
	ApertureTotalCost   *money.Pence `json:"aperture_total_cost,omitempty"`
	TransformerCost     *money.Pence `json:"transformer_cost,omitempty"`
	LettersTotalCost    money.Pence  `json:"letters_total_cost"`
	LabourCost          money.Pence  `json:"labour_cost"`
	MaterialsMarkupCost money.Pence  `json:"materials_markup_cost"`
}

// Materials is the markup base: panel, letters and transformer. The
// aperture is billed at cost and carries no markup.
func (c Costs) Materials() money.Pence {
	return money.Sum(c.PanelOverallCost, c.LettersTotalCost, deref(c.TransformerCost))
}

// Sum adds every itemised field.
func (c Costs) Sum() money.Pence {
	return c.Materials() + deref(c.ApertureTotalCost) + c.LabourCost + c.MaterialsMarkupCost
}

// Output is the engine's cost breakdown for one quote item.
type Output struct {
	PricingSetID        string                    `json:"pricing_set_id"`
	Derived             Derived                   `json:"derived"`
	LetterSetsBreakdown []LetterSetLine           `json:"letter_sets_breakdown"`
	Illumination        *IlluminationLine         `json:"illumination,omitempty"`
	Labour              []LabourLine              `json:"labour"`
	MarkupPercent       Resolved[decimal.Decimal] `json:"markup_percent"`
	Costs               Costs                     `json:"costs"`
	TotalCost           money.Pence               `json:"total_cost"`
}

// Calculate prices in against card. A missing row fails with a
// *ratecard.LookupError naming it; an LED load no transformer can carry
// fails with a *ConstraintError. No partial breakdown is ever returned.
func Calculate(in Input, card *ratecard.RateCard) (Output, error) {
	sheet, ok := ratecard.LookupSheetSize(in.SheetSize)
	if !ok {
		return Output{}, fmt.Errorf("calculate: sheet size %q is not a standard sheet", in.SheetSize)
	}

	terms := Resolve(in)
	out := Output{
		PricingSetID:  card.Meta().ID,
		Derived:       fitPanel(in.WidthMM, in.HeightMM, sheet),
		MarkupPercent: terms.MarkupPercent,
	}

	sheetCost, err := card.PanelPrice(in.Material, in.SheetSize)
	if err != nil {
		return Output{}, err
	}
	finishRate, err := card.PanelFinish(in.Finish)
	if err != nil {
		return Output{}, err
	}
	out.Costs.PanelOverallCost = sheetCost.Times(out.Derived.PanelsNeeded) + money.MulRound(finishRate, out.Derived.AreaM2)

	for _, ls := range in.LetterSets {
		unit, err := card.LetterUnitPrice(ls.LetterType, ls.Finish, ls.HeightMM)
		if err != nil {
			return Output{}, err
		}
		line := LetterSetLine{
			Qty:       ls.Quantity,
			Type:      ls.LetterType,
			Finish:    ls.Finish,
			HeightMM:  ls.HeightMM,
			UnitPrice: unit,
			Subtotal:  unit.Times(ls.Quantity),
		}
		out.LetterSetsBreakdown = append(out.LetterSetsBreakdown, line)
		out.Costs.LettersTotalCost += line.Subtotal
	}

	if in.Illumination {
		if err := illuminate(&out, in, card); err != nil {
			return Output{}, err
		}
	}

	labour := decimal.Zero
	for _, task := range ratecard.Tasks() {
		hours := terms.LabourHours[task]
		line := LabourLine{Task: task, Hours: hours}
		if !hours.Effective().IsZero() {
			rate, err := card.ManufacturingRate(task)
			if err != nil {
				return Output{}, err
			}
			line.CostPerHour = rate
			labour = labour.Add(hours.Effective().Mul(rate.Decimal()))
		}
		out.Labour = append(out.Labour, line)
	}
	out.Costs.LabourCost = money.RoundHalfUp(labour)

	pct := terms.MarkupPercent.Effective()
	out.Costs.MaterialsMarkupCost = money.MulRound(out.Costs.Materials(), pct.Shift(-2))

	out.TotalCost = out.Costs.Sum()
	return out, nil
}

func illuminate(out *Output, in Input, card *ratecard.RateCard) error {
	leds := 0
	for _, ls := range in.LetterSets {
		perLetter, err := card.IlluminationProfile(ls.HeightMM)
		if err != nil {
			return err
		}
		leds += perLetter * ls.Quantity
	}

	tr, err := selectTransformer(card.Transformers(), leds)
	if err != nil {
		return err
	}

	transformer := tr.UnitCost
	out.Illumination = &IlluminationLine{TotalLEDs: leds, Transformer: tr}
	out.Costs.TransformerCost = &transformer
	if in.OpalType == "" {
		return nil
	}

	opalUnit, err := card.OpalPrice(in.OpalType, in.SheetSize)
	if err != nil {
		return err
	}
	ledUnit, err := card.Consumable(ratecard.ConsumableLEDUnit)
	if err != nil {
		return err
	}

	// One opal backing sheet sits behind each panel sheet.
	aperture := opalUnit.Times(out.Derived.PanelsNeeded) + ledUnit.Times(leds)
	out.Illumination.OpalType = in.OpalType
	out.Illumination.OpalSheets = out.Derived.PanelsNeeded
	out.Illumination.OpalUnitCost = opalUnit
	out.Illumination.LEDUnitCost = ledUnit
	out.Costs.ApertureTotalCost = &aperture
	return nil
}

// selectTransformer picks the smallest transformer whose capacity covers
// leds. transformers must be ordered as RateCard.Transformers returns them.
func selectTransformer(transformers []ratecard.Transformer, leds int) (ratecard.Transformer, error) {
	if len(transformers) == 0 {
		return ratecard.Transformer{}, ratecard.MissingRow(ratecard.TableTransformer, "type", "*")
	}
	for _, t := range transformers {
		if t.LEDCapacity >= leds {
			return t, nil
		}
	}
	largest := transformers[len(transformers)-1]
	return ratecard.Transformer{}, &ConstraintError{
		Code:               KindNoSuitableTransformer,
		RequiredLEDs:       leds,
		LargestTransformer: largest.Type,
		LargestCapacity:    largest.LEDCapacity,
	}
}

func deref(p *money.Pence) money.Pence {
	if p == nil {
		return 0
	}
	return *p
}
