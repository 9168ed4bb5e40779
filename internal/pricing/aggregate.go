package pricing

import "github.com/Simplici0/signquote/internal/money"

// Summary rolls itemised outputs up into quote totals.
type Summary struct {
	Items           int         `json:"items"`
	PanelCost       money.Pence `json:"panel_cost"`
	LettersCost     money.Pence `json:"letters_cost"`
	ApertureCost    money.Pence `json:"aperture_cost"`
	TransformerCost money.Pence `json:"transformer_cost"`
	LabourCost      money.Pence `json:"labour_cost"`
	MarkupCost      money.Pence `json:"markup_cost"`
	Total           money.Pence `json:"total"`
}

// Aggregate sums outputs field by field. Total equals the sum of every
// item's TotalCost.
func Aggregate(outputs ...Output) Summary {
	var s Summary
	for _, o := range outputs {
		s.Items++
		s.PanelCost += o.Costs.PanelOverallCost
		s.LettersCost += o.Costs.LettersTotalCost
		s.ApertureCost += deref(o.Costs.ApertureTotalCost)
		s.TransformerCost += deref(o.Costs.TransformerCost)
		s.LabourCost += o.Costs.LabourCost
		s.MarkupCost += o.Costs.MaterialsMarkupCost
		s.Total += o.TotalCost
	}
	return s
}
