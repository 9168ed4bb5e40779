package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/signquote/internal/ratecard"
)

// Error kinds callers can switch on to pick a remediation message.
const (
	KindValidation            = "validation_failed"
	KindMissingRateRow        = ratecard.KindMissingRateRow
	KindNoSuitableTransformer = "no_suitable_transformer"
)

// FieldError attributes one validation failure to an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is every problem found in a raw input, in check order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Kind returns KindValidation.
func (v ValidationErrors) Kind() string {
	return KindValidation
}

// ConstraintError means the rate card has the rows asked for but cannot
// satisfy the requested scale.
type ConstraintError struct {
	Code               string `json:"kind"`
	RequiredLEDs       int    `json:"required_leds"`
	LargestTransformer string `json:"largest_transformer"`
	LargestCapacity    int    `json:"largest_capacity"`
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("no transformer covers %d LEDs (largest is %s with capacity %d)",
		e.RequiredLEDs, e.LargestTransformer, e.LargestCapacity)
}

// Kind returns the constraint code.
func (e *ConstraintError) Kind() string {
	return e.Code
}

type kinded interface {
	Kind() string
}

// KindOf returns the machine-readable kind of an engine or validation error,
// or "" when err carries none.
func KindOf(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
