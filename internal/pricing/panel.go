package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/signquote/internal/ratecard"
)

// FabricationStepMM is the increment panel dimensions are rounded up to.
const FabricationStepMM = 10

// Derived holds the manufactured panel geometry.
type Derived struct {
	AdjustedWidthMM  int             `json:"adjusted_width_mm"`
	AdjustedHeightMM int             `json:"adjusted_height_mm"`
	PanelsNeeded     int             `json:"panels_needed"`
	SheetsAcross     int             `json:"sheets_across"`
	SheetsDown       int             `json:"sheets_down"`
	SheetRotated     bool            `json:"sheet_rotated"`
	AreaM2           decimal.Decimal `json:"area_m2"`
}

// fitPanel tiles the requested panel with whole sheets. Dimensions are
// rounded up, never down, and the sheet orientation needing fewer sheets
// wins; ties keep the sheet upright.
func fitPanel(widthMM, heightMM int, sheet ratecard.SheetSize) Derived {
	w := roundUp(widthMM, FabricationStepMM)
	h := roundUp(heightMM, FabricationStepMM)

	d := Derived{
		AdjustedWidthMM:  w,
		AdjustedHeightMM: h,
		SheetsAcross:     ceilDiv(w, sheet.WidthMM),
		SheetsDown:       ceilDiv(h, sheet.HeightMM),
		AreaM2:           decimal.NewFromInt(int64(w) * int64(h)).Shift(-6),
	}
	d.PanelsNeeded = d.SheetsAcross * d.SheetsDown

	across, down := ceilDiv(w, sheet.HeightMM), ceilDiv(h, sheet.WidthMM)
	if across*down < d.PanelsNeeded {
		d.SheetsAcross, d.SheetsDown = across, down
		d.PanelsNeeded = across * down
		d.SheetRotated = true
	}
	return d
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func roundUp(n, step int) int {
	return ceilDiv(n, step) * step
}
