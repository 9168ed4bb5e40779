package ratecard

import (
	"errors"
	"fmt"
	"strings"
)

// KindMissingRateRow marks a lookup that found no row in the rate card.
const KindMissingRateRow = "missing_rate_row"

var (
	ErrNotFound          = errors.New("pricing set not found")
	ErrInvalidTransition = errors.New("invalid pricing set status transition")
	ErrIncomplete        = errors.New("pricing set is incomplete")
)

// KeyPart is one named component of a compound key.
type KeyPart struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LookupError reports a required row absent from a rate card.
type LookupError struct {
	Table string    `json:"table"`
	Key   []KeyPart `json:"key"`
}

// MissingRow builds a LookupError from alternating key names and values.
func MissingRow(table string, kv ...string) *LookupError {
	e := &LookupError{Table: table}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Key = append(e.Key, KeyPart{Name: kv[i], Value: kv[i+1]})
	}
	return e
}

func (e *LookupError) Error() string {
	return "missing rate row " + e.Row()
}

// Kind returns KindMissingRateRow.
func (e *LookupError) Kind() string {
	return KindMissingRateRow
}

// Row renders the table and key tuple, e.g.
// panel_price[material="Aluminium 3mm" sheet_size="2.4 x 1.2"].
func (e *LookupError) Row() string {
	kv := make([]string, 0, len(e.Key)*2)
	for _, p := range e.Key {
		kv = append(kv, p.Name, p.Value)
	}
	return rowName(e.Table, kv...)
}

func rowName(table string, kv ...string) string {
	var b strings.Builder
	b.WriteString(table)
	b.WriteByte('[')
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%q", kv[i], kv[i+1])
	}
	b.WriteByte(']')
	return b.String()
}
