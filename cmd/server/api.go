package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/pricing"
	"github.com/Simplici0/signquote/internal/quotes"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
)

// activeAlias stands in for the ID of whichever pricing set is active.
const activeAlias = "active"

func (s *server) routes(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pricing-sets", func(r chi.Router) {
			r.Get("/", s.handlePricingSetsList)
			r.Post("/", s.handlePricingSetImport)
			r.Get("/active", s.handlePricingSetActive)
			r.Get("/{id}", s.handlePricingSetDocument)
			r.Get("/{id}/completeness", s.handlePricingSetCompleteness)
			r.Post("/{id}/activate", s.handlePricingSetActivate)
			r.Post("/{id}/archive", s.handlePricingSetArchive)
			r.Post("/{id}/validate", s.handleValidate)
			r.Post("/{id}/calculate", s.handleCalculate)
		})
		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", s.handleQuotesList)
			r.Post("/", s.handleQuoteCreate)
			r.Get("/{id}", s.handleQuoteGet)
			r.Post("/{id}/items", s.handleQuoteItemAdd)
			r.Post("/{id}/items/{itemID}/recalculate", s.handleQuoteItemRecalculate)
		})
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pricingSetID resolves the {id} URL parameter, mapping "active" to the
// currently active set.
func (s *server) pricingSetID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if id != activeAlias {
		return id, nil
	}
	active, err := s.cards.Active(r.Context())
	if err != nil {
		return "", err
	}
	return active.ID, nil
}

func (s *server) handlePricingSetsList(w http.ResponseWriter, r *http.Request) {
	sets, err := s.cards.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *server) handlePricingSetImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		doc ratecard.Document
		err error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		doc, err = ratecard.DecodeYAML(body)
	} else {
		doc, err = ratecard.DecodeJSON(body)
	}
	if err != nil {
		s.writeError(w, r, badRequest{err: err})
		return
	}
	if _, err := doc.Build(); err != nil {
		s.writeError(w, r, invalidDocument{err: err})
		return
	}

	summary, err := s.cards.Save(r.Context(), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *server) handlePricingSetActive(w http.ResponseWriter, r *http.Request) {
	active, err := s.cards.Active(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *server) handlePricingSetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := s.pricingSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.cards.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.cards.Document(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		sqlstore.Summary
		Document ratecard.Document `json:"document"`
	}{summary, doc})
}

func (s *server) handlePricingSetCompleteness(w http.ResponseWriter, r *http.Request) {
	id, err := s.pricingSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.cards.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratecard.CheckCompleteness(card, s.catalog.Current()))
}

func (s *server) handlePricingSetActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.cards.Activate(r.Context(), id, s.catalog.Current())
	s.metrics.observeTransition(string(ratecard.StatusActive), err)
	if errors.Is(err, ratecard.ErrIncomplete) {
		err = incomplete{err: err, report: report}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.cards.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricing_set": summary, "report": report})
}

func (s *server) handlePricingSetArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.cards.Archive(r.Context(), id)
	s.metrics.observeTransition(string(ratecard.StatusArchived), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.cards.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// loadForInput resolves the pricing set and decodes the raw input body.
// The rate card is loaded through a cache scoped to this request.
func (s *server) loadForInput(r *http.Request) (*ratecard.RateCard, pricing.RawInput, error) {
	var raw pricing.RawInput
	if err := decodeJSON(r, &raw); err != nil {
		return nil, raw, err
	}
	id, err := s.pricingSetID(r)
	if err != nil {
		return nil, raw, err
	}
	card, err := ratecard.NewRequestCache(s.cards).Load(r.Context(), id)
	if err != nil {
		return nil, raw, err
	}
	return card, raw, nil
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	card, raw, err := s.loadForInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := pricing.Validate(raw, card.FinishRules())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	out, err := s.calculate(r)
	s.metrics.observeCalculation(started, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) calculate(r *http.Request) (pricing.Output, error) {
	card, raw, err := s.loadForInput(r)
	if err != nil {
		return pricing.Output{}, err
	}
	in, err := pricing.Validate(raw, card.FinishRules())
	if err != nil {
		return pricing.Output{}, err
	}
	return pricing.Calculate(in, card)
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	listings, err := s.quotes.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	var nq quotes.NewQuote
	if err := decodeOptionalJSON(r, &nq); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.quotes.Create(r.Context(), nq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *server) handleQuoteGet(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type addItemRequest struct {
	Description  string           `json:"description"`
	PricingSetID string           `json:"pricing_set_id"`
	Input        pricing.RawInput `json:"input"`
}

func (s *server) handleQuoteItemAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PricingSetID == "" || req.PricingSetID == activeAlias {
		active, err := s.cards.Active(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.PricingSetID = active.ID
	}

	started := time.Now()
	item, err := s.quotes.AddItem(r.Context(), chi.URLParam(r, "id"), quotes.NewItem{
		Description:  req.Description,
		PricingSetID: req.PricingSetID,
		Input:        req.Input,
	})
	s.metrics.observeCalculation(started, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *server) handleQuoteItemRecalculate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PricingSetID string `json:"pricing_set_id"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PricingSetID == activeAlias {
		active, err := s.cards.Active(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.PricingSetID = active.ID
	}

	started := time.Now()
	item, err := s.quotes.Recalculate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.PricingSetID)
	s.metrics.observeCalculation(started, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
