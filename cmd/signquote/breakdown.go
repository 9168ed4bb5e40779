package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Simplici0/signquote/internal/pricing"
	"github.com/Simplici0/signquote/internal/ratecard"
)

func printBreakdown(w io.Writer, meta ratecard.Meta, in pricing.Input, out pricing.Output) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Pricing set\t%s v%d\t%s\n", meta.Name, meta.Version, meta.ID)
	d := out.Derived
	fmt.Fprintf(tw, "Panel\t%d x %d mm\t%d sheet(s) of %s, %s m²\n",
		d.AdjustedWidthMM, d.AdjustedHeightMM, d.PanelsNeeded, in.SheetSize, d.AreaM2.StringFixed(3))
	for _, ls := range out.LetterSetsBreakdown {
		fmt.Fprintf(tw, "Letters\t%d x %s %s %dmm @ %s\t%s\n",
			ls.Qty, ls.Type, ls.Finish, ls.HeightMM, ls.UnitPrice.Pounds(), ls.Subtotal.Pounds())
	}
	if il := out.Illumination; il != nil {
		fmt.Fprintf(tw, "LEDs\t%d on %s (%d capacity)\t\n", il.TotalLEDs, il.Transformer.Type, il.Transformer.LEDCapacity)
		if il.OpalType != "" {
			fmt.Fprintf(tw, "Aperture\t%d x %s @ %s, LEDs @ %s\t\n",
				il.OpalSheets, il.OpalType, il.OpalUnitCost.Pounds(), il.LEDUnitCost.Pounds())
		}
	}
	for _, l := range out.Labour {
		note := ""
		if l.Hours.Overridden() {
			note = " (override)"
		}
		fmt.Fprintf(tw, "Labour\t%s %sh%s\t@ %s/h\n", l.Task, l.Hours.Effective().String(), note, l.CostPerHour.Pounds())
	}
	fmt.Fprintln(tw, "\t\t")

	costs := out.Costs
	fmt.Fprintf(tw, "Panel\t\t%s\n", costs.PanelOverallCost.Pounds())
	fmt.Fprintf(tw, "Letters\t\t%s\n", costs.LettersTotalCost.Pounds())
	if costs.ApertureTotalCost != nil {
		fmt.Fprintf(tw, "Aperture\t\t%s\n", costs.ApertureTotalCost.Pounds())
	}
	if costs.TransformerCost != nil {
		fmt.Fprintf(tw, "Transformer\t\t%s\n", costs.TransformerCost.Pounds())
	}
	fmt.Fprintf(tw, "Labour\t\t%s\n", costs.LabourCost.Pounds())
	fmt.Fprintf(tw, "Markup\t%s%%\t%s\n", out.MarkupPercent.Effective().String(), costs.MaterialsMarkupCost.Pounds())
	fmt.Fprintf(tw, "Total\t\t%s\n", out.TotalCost.Pounds())

	return tw.Flush()
}
