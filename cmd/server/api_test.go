package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/Simplici0/signquote/internal/config"
	"github.com/Simplici0/signquote/internal/db"
	"github.com/Simplici0/signquote/internal/migrations"
	"github.com/Simplici0/signquote/internal/quotes"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
	"github.com/Simplici0/signquote/internal/seed"
)

const fasciaJSON = `{
	"width_mm": 1200,
	"height_mm": 600,
	"material": "Aluminium 3mm",
	"sheet_size": "2.4 x 1.2",
	"finish": "Powder Coating",
	"letter_sets": [{"letter_type": "Fabricated", "finish": "Powder Coating", "height_mm": 200, "text": "ACME"}],
	"labour_hours": {"router": 1, "fabrication": 2},
	"markup_percent": 20
}`

type testServer struct {
	srv     *server
	db      *sql.DB
	handler http.Handler
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(ctx, database))

	log := zaptest.NewLogger(t)
	catalog, err := config.NewCatalogSource("", log)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	srv := newServer(log, database, catalog, reg)
	_, err = seed.Run(ctx, srv.cards, catalog.Current())
	require.NoError(t, err)

	return testServer{srv: srv, db: database, handler: srv.routes(reg)}
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doType(t, method, path, body, "application/json")
}

func (ts testServer) doType(t *testing.T, method, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

type errorResponse struct {
	Error struct {
		Kind   string `json:"kind"`
		Row    string `json:"row"`
		Table  string `json:"table"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
		Report *ratecard.Report `json:"report"`
	} `json:"error"`
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCalculateAgainstActiveSet(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/pricing-sets/active/calculate", fasciaJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	out := decodeBody[struct {
		PricingSetID string `json:"pricing_set_id"`
		TotalCost    int64  `json:"total_cost"`
	}](t, rr)

	doc, err := seed.DefaultDocument()
	require.NoError(t, err)
	require.Equal(t, doc.ID, out.PricingSetID)
	require.Equal(t, int64(34415), out.TotalCost)

	metrics := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), `signquote_calculations_total{outcome="ok"} 1`)
}

func TestCalculateMapsErrorKindsToStatus(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/v1/pricing-sets/active/calculate"

	tests := []struct {
		name   string
		edit   func(string) string
		status int
		kind   string
	}{
		{
			name: "incompatible letter finish",
			edit: func(s string) string {
				return strings.Replace(s, `"letter_type": "Fabricated"`, `"letter_type": "Acrylic"`, 1)
			},
			status: http.StatusUnprocessableEntity,
			kind:   "validation_failed",
		},
		{
			name:   "unpriced material",
			edit:   func(s string) string { return strings.Replace(s, "Aluminium 3mm", "Brass 2mm", 1) },
			status: http.StatusConflict,
			kind:   "missing_rate_row",
		},
		{
			name: "LED load beyond every transformer",
			edit: func(s string) string {
				s = strings.Replace(s, `"height_mm": 200, "text": "ACME"`, `"height_mm": 500, "qty": 13`, 1)
				return strings.Replace(s, `"markup_percent": 20`, `"markup_percent": 20, "illumination": true, "opal_type": "Opal 3mm"`, 1)
			},
			status: http.StatusConflict,
			kind:   "no_suitable_transformer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, path, tt.edit(fasciaJSON))
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			require.Equal(t, tt.kind, decodeBody[errorResponse](t, rr).Error.Kind)
		})
	}

	rr := ts.do(t, http.MethodPost, path, strings.Replace(fasciaJSON, "Aluminium 3mm", "Brass 2mm", 1))
	body := decodeBody[errorResponse](t, rr)
	require.Equal(t, "panel_price", body.Error.Table)
	require.Equal(t, `panel_price[material="Brass 2mm" sheet_size="2.4 x 1.2"]`, body.Error.Row)

	rr = ts.do(t, http.MethodPost, path, `{"width_mm": `)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/missing/calculate", fasciaJSON)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestValidateReturnsEveryFieldError(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/pricing-sets/active/validate", `{"material": "Aluminium 3mm", "letter_sets": []}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var fields []string
	for _, f := range decodeBody[errorResponse](t, rr).Error.Fields {
		fields = append(fields, f.Field)
	}
	require.Contains(t, fields, "width_mm")
	require.Contains(t, fields, "sheet_size")
	require.Contains(t, fields, "letter_sets")
	require.Contains(t, fields, "markup_percent")

	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/active/validate", fasciaJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	in := decodeBody[struct {
		LetterSets []struct {
			Quantity int `json:"qty"`
		} `json:"letter_sets"`
	}](t, rr)
	require.Equal(t, 4, in.LetterSets[0].Quantity)
}

func TestPricingSetLifecycle(t *testing.T) {
	ts := newTestServer(t)

	original, err := seed.DefaultDocument()
	require.NoError(t, err)

	next := original
	next.ID, next.Version = "", 0
	raw, err := yaml.Marshal(next)
	require.NoError(t, err)

	rr := ts.doType(t, http.MethodPost, "/api/v1/pricing-sets", string(raw), "application/yaml")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[sqlstore.Summary](t, rr)
	require.Equal(t, 2, created.Version)
	require.Equal(t, ratecard.StatusDraft, created.Status)

	rr = ts.do(t, http.MethodGet, "/api/v1/pricing-sets/"+created.ID+"/completeness", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decodeBody[ratecard.Report](t, rr).OK)

	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/"+created.ID+"/activate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/v1/pricing-sets/active", "")
	require.Equal(t, created.ID, decodeBody[sqlstore.Summary](t, rr).ID)

	rr = ts.do(t, http.MethodGet, "/api/v1/pricing-sets/"+original.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, ratecard.StatusArchived, decodeBody[sqlstore.Summary](t, rr).Status)

	// Archived sets cannot come back.
	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/"+original.ID+"/activate", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "invalid_transition", decodeBody[errorResponse](t, rr).Error.Kind)

	rr = ts.do(t, http.MethodGet, "/api/v1/pricing-sets", "")
	require.Len(t, decodeBody[[]sqlstore.Summary](t, rr), 2)

	rr = ts.doType(t, http.MethodPost, "/api/v1/pricing-sets", string(raw), "application/yaml")
	require.Equal(t, http.StatusCreated, rr.Code)
	third := decodeBody[sqlstore.Summary](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/"+third.ID+"/archive", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, ratecard.StatusArchived, decodeBody[sqlstore.Summary](t, rr).Status)
}

func TestActivateRefusesIncompleteSet(t *testing.T) {
	ts := newTestServer(t)

	doc, err := seed.DefaultDocument()
	require.NoError(t, err)
	doc.ID, doc.Version = "", 0
	var finishes []ratecard.PanelFinishRow
	for _, row := range doc.PanelFinishes {
		if row.Finish != "Powder Coating" {
			finishes = append(finishes, row)
		}
	}
	doc.PanelFinishes = finishes

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(doc))
	rr := ts.do(t, http.MethodPost, "/api/v1/pricing-sets", buf.String())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	draft := decodeBody[sqlstore.Summary](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets/"+draft.ID+"/activate", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	body := decodeBody[errorResponse](t, rr)
	require.Equal(t, "incomplete_pricing_set", body.Error.Kind)
	require.NotNil(t, body.Error.Report)
	require.Contains(t, body.Error.Report.Missing, `panel_finish[finish="Powder Coating"]`)

	rr = ts.do(t, http.MethodGet, "/api/v1/pricing-sets/active", "")
	require.NotEqual(t, draft.ID, decodeBody[sqlstore.Summary](t, rr).ID)
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/pricing-sets", `{"name": "Broken", "surcharges": []}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	for _, body := range []string{
		`{"name": "Broken", "manufacturing_rates": [{"task": "welding", "cost_per_hour": 100}]}`,
		`{"name": "Broken", "letter_finish_rules": [{"letter_type": "Fabricated", "allowed_finishes": ["Brushed", "Brushed"]}]}`,
		`{"name": "Broken", "letter_finish_rules": [{"letter_type": "Neon", "allowed_finishes": []}]}`,
	} {
		rr = ts.do(t, http.MethodPost, "/api/v1/pricing-sets", body)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code, body)
		require.Equal(t, "invalid_pricing_set", decodeBody[errorResponse](t, rr).Error.Kind)
	}
}

func TestQuoteFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/quotes", `{"customer_name": "Harbour Café", "reference": "HC-104"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	q := decodeBody[quotes.Quote](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/v1/quotes/"+q.ID+"/items", `{"description": "Shop fascia", "input": `+fasciaJSON+`}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	item := decodeBody[quotes.Item](t, rr)
	require.EqualValues(t, 34415, item.TotalCost)

	rr = ts.do(t, http.MethodPost, "/api/v1/quotes/"+q.ID+"/items/"+item.ID+"/recalculate", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 34415, decodeBody[quotes.Item](t, rr).TotalCost)

	rr = ts.do(t, http.MethodGet, "/api/v1/quotes/"+q.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[quotes.Quote](t, rr)
	require.Len(t, got.Items, 1)
	require.Equal(t, "Shop fascia", got.Items[0].Description)
	require.EqualValues(t, 34415, got.Summary.Total)

	rr = ts.do(t, http.MethodGet, "/api/v1/quotes/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/quotes/"+q.ID+"/items/missing/recalculate", `{}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuoteDetailReadsSnapshotWithoutRecalculation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/quotes", `{"customer_name": "Northgate Dental"}`)
	q := decodeBody[quotes.Quote](t, rr)
	rr = ts.do(t, http.MethodPost, "/api/v1/quotes/"+q.ID+"/items", `{"input": `+fasciaJSON+`}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	item := decodeBody[quotes.Item](t, rr)

	if _, err := ts.db.Exec(`UPDATE panel_prices SET unit_cost = 1`); err != nil {
		t.Fatalf("update panel prices: %v", err)
	}
	if _, err := ts.db.Exec(`UPDATE quote_items SET calculation_json = json_set(calculation_json, '$.total_cost', 99999) WHERE id = ?`, item.ID); err != nil {
		t.Fatalf("tamper snapshot: %v", err)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/quotes/"+q.ID, "")
	got := decodeBody[quotes.Quote](t, rr)
	if got.Items[0].Calculation.TotalCost != 99999 {
		t.Fatalf("expected snapshot total 99999, got %d", got.Items[0].Calculation.TotalCost)
	}
	if got.Items[0].Calculation.Costs.PanelOverallCost != item.Calculation.Costs.PanelOverallCost {
		t.Fatalf("panel cost was recalculated: %d != %d",
			got.Items[0].Calculation.Costs.PanelOverallCost, item.Calculation.Costs.PanelOverallCost)
	}
}

func TestListQuotesFiltersByNameAndReference(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{"customer_name": "Harbour Café", "reference": "HC-1"}`,
		`{"customer_name": "Northgate Dental", "reference": "ND-7"}`,
		`{"customer_name": "Old Harbour Inn", "reference": "OH-2"}`,
	} {
		rr := ts.do(t, http.MethodPost, "/api/v1/quotes", body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ts.do(t, http.MethodGet, "/api/v1/quotes", "")
	require.Len(t, decodeBody[[]quotes.Listing](t, rr), 3)

	rr = ts.do(t, http.MethodGet, "/api/v1/quotes?q=Harbour", "")
	require.Len(t, decodeBody[[]quotes.Listing](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/api/v1/quotes?q=ND-", "")
	byRef := decodeBody[[]quotes.Listing](t, rr)
	if len(byRef) != 1 || byRef[0].CustomerName != "Northgate Dental" {
		t.Fatalf("expected Northgate Dental only, got %+v", byRef)
	}
}
