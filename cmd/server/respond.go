package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/pricing"
	"github.com/Simplici0/signquote/internal/quotes"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`

	Fields     pricing.ValidationErrors `json:"fields,omitempty"`
	Row        string                   `json:"row,omitempty"`
	Table      string                   `json:"table,omitempty"`
	Key        []ratecard.KeyPart       `json:"key,omitempty"`
	Constraint *pricing.ConstraintError `json:"constraint,omitempty"`
	Report     *ratecard.Report         `json:"report,omitempty"`
}

// badRequest marks a body the server could not decode.
type badRequest struct {
	err error
}

func (e badRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// invalidDocument marks a pricing set document the builder rejected.
type invalidDocument struct {
	err error
}

func (e invalidDocument) Error() string { return e.err.Error() }
func (e invalidDocument) Unwrap() error { return e.err }

// incomplete carries the completeness report of a refused activation.
type incomplete struct {
	err    error
	report ratecard.Report
}

func (e incomplete) Error() string { return e.err.Error() }
func (e incomplete) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{err: err}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := decodeJSON(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeError maps domain errors to status codes: 422 for invalid input,
// 409 when the rate card or lifecycle cannot satisfy the request, 404 for
// unknown pricing sets and quotes.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Kind: pricing.KindOf(err), Message: err.Error()}
	status := http.StatusInternalServerError

	var (
		verrs   pricing.ValidationErrors
		lookup  *ratecard.LookupError
		cerr    *pricing.ConstraintError
		bad     badRequest
		partial incomplete
		invalid invalidDocument
	)
	switch {
	case errors.As(err, &bad):
		status, body.Kind = http.StatusBadRequest, "bad_request"
	case errors.As(err, &invalid):
		status, body.Kind = http.StatusUnprocessableEntity, "invalid_pricing_set"
	case errors.As(err, &verrs):
		status, body.Fields = http.StatusUnprocessableEntity, verrs
	case errors.As(err, &lookup):
		status = http.StatusConflict
		body.Row, body.Table, body.Key = lookup.Row(), lookup.Table, lookup.Key
	case errors.As(err, &cerr):
		status, body.Constraint = http.StatusConflict, cerr
	case errors.As(err, &partial):
		status, body.Kind, body.Report = http.StatusConflict, "incomplete_pricing_set", &partial.report
	case errors.Is(err, ratecard.ErrInvalidTransition):
		status, body.Kind = http.StatusConflict, "invalid_transition"
	case errors.Is(err, sqlstore.ErrDuplicate):
		status, body.Kind = http.StatusConflict, "duplicate_pricing_set"
	case errors.Is(err, ratecard.ErrNotFound), errors.Is(err, quotes.ErrNotFound):
		status, body.Kind = http.StatusNotFound, "not_found"
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		body = errorBody{Kind: "internal", Message: "internal server error"}
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}
