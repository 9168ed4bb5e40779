package ratecard

import (
	"github.com/Simplici0/signquote/internal/money"
)

// Table names, as they appear in lookup errors and completeness reports.
const (
	TablePanelPrice          = "panel_price"
	TablePanelFinish         = "panel_finish"
	TableManufacturingRate   = "manufacturing_rate"
	TableIlluminationProfile = "illumination_profile"
	TableTransformer         = "transformer"
	TableOpalPrice           = "opal_price"
	TableConsumable          = "consumable"
	TableLetterFinishRule    = "letter_finish_rule"
	TableLetterUnitPrice     = "letter_unit_price"
)

// ConsumableLEDUnit is the consumable key holding the cost of one LED module.
const ConsumableLEDUnit = "led_unit"

// Task is a manufacturing labour task billed by the hour.
type Task string

const (
	TaskRouter      Task = "router"
	TaskFabrication Task = "fabrication"
	TaskAssembly    Task = "assembly"
	TaskVinyl       Task = "vinyl"
	TaskPrint       Task = "print"
)

var tasks = []Task{TaskRouter, TaskFabrication, TaskAssembly, TaskVinyl, TaskPrint}

// Tasks returns every labour task in billing order.
func Tasks() []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// ParseTask maps a task name to a Task.
func ParseTask(name string) (Task, bool) {
	for _, t := range tasks {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// PanelKey identifies a PanelPrice row.
type PanelKey struct {
	Material  string
	SheetSize string
}

// OpalKey identifies an OpalPrice row.
type OpalKey struct {
	OpalType  string
	SheetSize string
}

// LetterPriceKey identifies a LetterUnitPrice row.
type LetterPriceKey struct {
	LetterType string
	Finish     string
	HeightMM   int
}

// Transformer is an LED power supply option.
type Transformer struct {
	Type        string      `yaml:"type" json:"type"`
	LEDCapacity int         `yaml:"led_capacity" json:"led_capacity"`
	UnitCost    money.Pence `yaml:"unit_cost" json:"unit_cost"`
}

// SheetSize is a standard manufacturing sheet.
type SheetSize struct {
	Name     string
	WidthMM  int
	HeightMM int
}

var standardSheets = []SheetSize{
	{Name: "2.4 x 1.2", WidthMM: 2400, HeightMM: 1200},
	{Name: "2.5 x 1.25", WidthMM: 2500, HeightMM: 1250},
	{Name: "3.0 x 1.5", WidthMM: 3000, HeightMM: 1500},
	{Name: "4.0 x 2.0", WidthMM: 4000, HeightMM: 2000},
}

// SheetSizes returns the fixed catalog of standard sheets.
func SheetSizes() []SheetSize {
	out := make([]SheetSize, len(standardSheets))
	copy(out, standardSheets)
	return out
}

// LookupSheetSize finds a standard sheet by name.
func LookupSheetSize(name string) (SheetSize, bool) {
	for _, s := range standardSheets {
		if s.Name == name {
			return s, true
		}
	}
	return SheetSize{}, false
}
