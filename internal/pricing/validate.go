package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/signquote/internal/ratecard"
)

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks raw against shape and domain rules and returns the
// normalised Input. On failure the error is a ValidationErrors holding every
// problem found, never just the first.
func Validate(raw RawInput, rules ratecard.FinishRules) (Input, error) {
	v := &validator{}
	in := Input{
		Material:     strings.TrimSpace(raw.Material),
		SheetSize:    strings.TrimSpace(raw.SheetSize),
		Finish:       strings.TrimSpace(raw.Finish),
		Illumination: raw.Illumination,
		OpalType:     strings.TrimSpace(raw.OpalType),
		LabourHours:  make(map[ratecard.Task]decimal.Decimal),
	}

	in.WidthMM = v.dimension("width_mm", raw.WidthMM, MaxPanelDimensionMM)
	in.HeightMM = v.dimension("height_mm", raw.HeightMM, MaxPanelDimensionMM)

	if in.Material == "" {
		v.add("material", "is required")
	}
	if in.SheetSize == "" {
		v.add("sheet_size", "is required")
	} else if _, ok := ratecard.LookupSheetSize(in.SheetSize); !ok {
		v.add("sheet_size", "%q is not a standard sheet (have %s)", in.SheetSize, sheetNames())
	}
	if in.Finish == "" {
		v.add("finish", "is required")
	}

	switch {
	case len(raw.LetterSets) == 0:
		v.add("letter_sets", "at least one letter set is required")
	case len(raw.LetterSets) > MaxLetterSets:
		v.add("letter_sets", "at most %d letter sets are allowed, got %d", MaxLetterSets, len(raw.LetterSets))
	}
	for i, ls := range raw.LetterSets {
		in.LetterSets = append(in.LetterSets, v.letterSet(i, ls, rules))
	}

	if in.OpalType != "" && !in.Illumination {
		v.add("opal_type", "only applies when illumination is requested")
	}

	for _, name := range sortedKeys(raw.LabourHours) {
		field := "labour_hours." + name
		task, ok := ratecard.ParseTask(name)
		if !ok {
			v.add(field, "unknown task %q", name)
			continue
		}
		if h, ok := v.hours(field, raw.LabourHours[name]); ok {
			in.LabourHours[task] = h
		}
	}

	if raw.MarkupPercent == nil {
		v.add("markup_percent", "is required")
	} else if m, ok := v.percent("markup_percent", *raw.MarkupPercent); ok {
		in.MarkupPercent = m
	}

	in.Overrides = v.overrides(raw.Overrides)

	if len(v.errs) > 0 {
		return Input{}, v.errs
	}
	return in, nil
}

func (v *validator) letterSet(i int, raw RawLetterSet, rules ratecard.FinishRules) LetterSet {
	prefix := fmt.Sprintf("letter_sets[%d].", i)
	ls := LetterSet{
		LetterType: strings.TrimSpace(raw.LetterType),
		Finish:     strings.TrimSpace(raw.Finish),
		Text:       raw.Text,
	}

	if ls.LetterType == "" {
		v.add(prefix+"letter_type", "is required")
	}
	if ls.Finish == "" {
		v.add(prefix+"finish", "is required")
	}
	if ls.LetterType != "" && ls.Finish != "" {
		known, allowed := rules.Allows(ls.LetterType, ls.Finish)
		switch {
		case !known:
			v.add(prefix+"letter_type", "unknown letter type %q", ls.LetterType)
		case !allowed:
			v.add(prefix+"finish", "%q is not available for %s letters (allowed: %s)",
				ls.Finish, ls.LetterType, strings.Join(rules.Finishes(ls.LetterType), ", "))
		}
	}

	ls.HeightMM = v.dimension(prefix+"height_mm", raw.HeightMM, MaxLetterHeightMM)

	switch {
	case raw.Quantity != "":
		ls.Quantity = v.positiveInt(prefix+"qty", raw.Quantity, MaxLetterQuantity)
	case strings.TrimSpace(raw.Text) != "":
		ls.Quantity = countLetters(raw.Text)
		if ls.Quantity > MaxLetterQuantity {
			v.add(prefix+"text", "has %d letters, at most %d are allowed", ls.Quantity, MaxLetterQuantity)
		}
	default:
		v.add(prefix+"qty", "is required")
	}
	return ls
}

func (v *validator) overrides(raw map[string]json.RawMessage) Overrides {
	var o Overrides
	for _, key := range sortedKeys(raw) {
		field := "overrides." + key
		switch key {
		case "markup_percent":
			// null means no override; decimal would read it as zero.
			if isNull(raw[key]) {
				continue
			}
			var d decimal.Decimal
			if err := json.Unmarshal(raw[key], &d); err != nil {
				v.add(field, "must be a number")
				continue
			}
			if m, ok := v.percent(field, d); ok {
				o.MarkupPercent = &m
			}
		case "labour_hours":
			var hours map[string]*decimal.Decimal
			if err := json.Unmarshal(raw[key], &hours); err != nil {
				v.add(field, "must map task names to hours")
				continue
			}
			for _, name := range sortedKeys(hours) {
				taskField := field + "." + name
				task, ok := ratecard.ParseTask(name)
				if !ok {
					v.add(taskField, "unknown task %q", name)
					continue
				}
				if hours[name] == nil {
					continue
				}
				if h, ok := v.hours(taskField, *hours[name]); ok {
					if o.LabourHours == nil {
						o.LabourHours = make(map[ratecard.Task]decimal.Decimal)
					}
					o.LabourHours[task] = h
				}
			}
		default:
			v.add(field, "no such overridable field")
		}
	}
	return o
}

func (v *validator) dimension(field string, raw json.Number, max int) int {
	if raw == "" {
		v.add(field, "is required")
		return 0
	}
	return v.positiveInt(field, raw, max)
}

// positiveInt accepts any JSON number with an integral value in 1..max,
// so 1e3 and 200.0 are both whole numbers.
func (v *validator) positiveInt(field string, raw json.Number, max int) int {
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		v.add(field, "must be a number, got %q", raw.String())
		return 0
	}
	if !d.IsInteger() {
		v.add(field, "must be a whole number, got %s", raw)
		return 0
	}
	if !d.IsPositive() {
		v.add(field, "must be greater than 0, got %s", d)
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(int64(max))) {
		v.add(field, "must be at most %d, got %s", max, d)
		return 0
	}
	return int(d.IntPart())
}

func (v *validator) hours(field string, h decimal.Decimal) (decimal.Decimal, bool) {
	if h.IsNegative() {
		v.add(field, "must not be negative, got %s", h)
		return decimal.Zero, false
	}
	if h.GreaterThan(decimal.NewFromInt(MaxLabourHours)) {
		v.add(field, "must be at most %d hours, got %s", MaxLabourHours, h)
		return decimal.Zero, false
	}
	return h, true
}

func (v *validator) percent(field string, p decimal.Decimal) (decimal.Decimal, bool) {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(MaxMarkupPercent)) {
		v.add(field, "must be between 0 and %d, got %s", MaxMarkupPercent, p)
		return decimal.Zero, false
	}
	return p, true
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func countLetters(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func sheetNames() string {
	return strings.Join(lo.Map(ratecard.SheetSizes(), func(s ratecard.SheetSize, _ int) string {
		return strconv.Quote(s.Name)
	}), ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
