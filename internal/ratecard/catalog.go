package ratecard

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Catalog is the closed set of options a quote may select. Completeness is
// judged against it: every combination it allows must be priced.
type Catalog struct {
	Materials       []string `yaml:"materials" json:"materials"`
	SheetSizes      []string `yaml:"sheet_sizes" json:"sheet_sizes"`
	PanelFinishes   []string `yaml:"panel_finishes" json:"panel_finishes"`
	LetterTypes     []string `yaml:"letter_types" json:"letter_types"`
	LetterFinishes  []string `yaml:"letter_finishes" json:"letter_finishes"`
	LetterHeightsMM []int    `yaml:"letter_heights_mm" json:"letter_heights_mm"`
	OpalTypes       []string `yaml:"opal_types" json:"opal_types"`
	Consumables     []string `yaml:"consumables" json:"consumables"`
	Illumination    bool     `yaml:"illumination" json:"illumination"`

	// ReferenceLetters is the number of letters at the tallest height one
	// transformer is expected to light; below that a warning is raised.
	ReferenceLetters int `yaml:"reference_letters" json:"reference_letters"`
}

// DefaultCatalog is the option set offered when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		Materials:       []string{"Aluminium 3mm", "Acrylic 5mm"},
		SheetSizes:      []string{"2.4 x 1.2", "3.0 x 1.5"},
		PanelFinishes:   []string{"Powder Coating", "Brushed", "Vinyl Wrap"},
		LetterTypes:     []string{"Fabricated", "Acrylic", "Built-up"},
		LetterFinishes:  []string{"Powder Coating", "Brushed", "Painted", "Polished"},
		LetterHeightsMM: []int{100, 200, 300, 500},
		OpalTypes:       []string{"Opal 3mm", "Opal 5mm"},
		Consumables:     []string{ConsumableLEDUnit},
		Illumination:    true,

		ReferenceLetters: 10,
	}
}

// ParseCatalog decodes a YAML catalog and checks its sheet sizes exist.
func ParseCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog yaml: %w", err)
	}
	for _, s := range c.SheetSizes {
		if _, ok := LookupSheetSize(s); !ok {
			return Catalog{}, fmt.Errorf("catalog sheet size %q is not a standard sheet", s)
		}
	}
	for _, h := range c.LetterHeightsMM {
		if h <= 0 {
			return Catalog{}, fmt.Errorf("catalog letter height %d must be positive", h)
		}
	}
	return c, nil
}
