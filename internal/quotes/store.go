// Package quotes stores customer quotes and their priced items. Each item
// keeps the input it was priced from, the pricing set used and the full
// calculation snapshot; reading a quote never recalculates it.
package quotes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/money"
	"github.com/Simplici0/signquote/internal/pricing"
	"github.com/Simplici0/signquote/internal/ratecard"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrNotFound is returned when a quote or quote item does not exist.
var ErrNotFound = errors.New("quote not found")

// Quote is a customer quote with its items as last priced.
type Quote struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	Reference    string          `json:"reference"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []Item          `json:"items"`
	Summary      pricing.Summary `json:"summary"`
}

// Item is one priced sign on a quote.
type Item struct {
	ID           string           `json:"id"`
	QuoteID      string           `json:"quote_id"`
	Position     int              `json:"position"`
	Description  string           `json:"description"`
	PricingSetID string           `json:"pricing_set_id"`
	Input        pricing.RawInput `json:"input"`
	Calculation  pricing.Output   `json:"calculation"`
	TotalCost    money.Pence      `json:"total_cost"`
	CalculatedAt time.Time        `json:"calculated_at"`
}

// NewQuote holds the fields a quote is opened with.
type NewQuote struct {
	CustomerName string `json:"customer_name"`
	Reference    string `json:"reference"`
}

// NewItem is a quote item to price.
type NewItem struct {
	Description  string
	PricingSetID string
	Input        pricing.RawInput
}

// Store persists quotes in SQLite and prices items through the engine.
type Store struct {
	db    *sql.DB
	cards ratecard.Repository
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Store that loads pricing sets for items from cards.
func New(db *sql.DB, cards ratecard.Repository, log *zap.Logger) *Store {
	return &Store{db: db, cards: cards, log: log, now: time.Now}
}

// Create opens an empty quote.
func (s *Store) Create(ctx context.Context, nq NewQuote) (Quote, error) {
	q := Quote{
		ID:           uuid.NewString(),
		CustomerName: nq.CustomerName,
		Reference:    nq.Reference,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
		Items:        []Item{},
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, customer_name, reference, created_at)
		VALUES (?, ?, ?, ?)
	`, q.ID, q.CustomerName, q.Reference, q.CreatedAt.Format(timeLayout)); err != nil {
		return Quote{}, fmt.Errorf("insert quote: %w", err)
	}

	s.log.Info("quote created", zap.String("quote_id", q.ID))
	return q, nil
}

// price validates and calculates raw against the given pricing set. Cards
// are loaded through cards so callers can scope a cache to one request.
func price(ctx context.Context, cards ratecard.Repository, pricingSetID string, raw pricing.RawInput) (pricing.Output, error) {
	card, err := cards.Load(ctx, pricingSetID)
	if err != nil {
		return pricing.Output{}, err
	}
	in, err := pricing.Validate(raw, card.FinishRules())
	if err != nil {
		return pricing.Output{}, err
	}
	return pricing.Calculate(in, card)
}

// AddItem prices ni and appends it to the quote with its snapshot.
func (s *Store) AddItem(ctx context.Context, quoteID string, ni NewItem) (Item, error) {
	if err := s.quoteExists(ctx, quoteID); err != nil {
		return Item{}, err
	}

	out, err := price(ctx, ratecard.NewRequestCache(s.cards), ni.PricingSetID, ni.Input)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:           uuid.NewString(),
		QuoteID:      quoteID,
		Description:  ni.Description,
		PricingSetID: ni.PricingSetID,
		Input:        ni.Input,
		Calculation:  out,
		TotalCost:    out.TotalCost,
		CalculatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	inputJSON, calcJSON, err := snapshot(item)
	if err != nil {
		return Item{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, fmt.Errorf("begin add item transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM quote_items WHERE quote_id = ?`, quoteID,
	).Scan(&item.Position); err != nil {
		return Item{}, fmt.Errorf("next item position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quote_items (
			id,
			quote_id,
			position,
			description,
			pricing_set_id,
			input_json,
			calculation_json,
			total_cost,
			calculated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, quoteID, item.Position, item.Description, item.PricingSetID,
		inputJSON, calcJSON, item.TotalCost, item.CalculatedAt.Format(timeLayout)); err != nil {
		return Item{}, fmt.Errorf("insert quote item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("commit add item transaction: %w", err)
	}

	s.log.Info("quote item priced",
		zap.String("quote_id", quoteID),
		zap.String("item_id", item.ID),
		zap.String("pricing_set_id", item.PricingSetID),
		zap.Int64("total_cost", int64(item.TotalCost)))
	return item, nil
}

// Recalculate re-prices a stored item and overwrites its snapshot. An empty
// pricingSetID keeps the set the item was last priced with.
func (s *Store) Recalculate(ctx context.Context, quoteID, itemID, pricingSetID string) (Item, error) {
	item, err := s.getItem(ctx, quoteID, itemID)
	if err != nil {
		return Item{}, err
	}
	previous := item.TotalCost
	if pricingSetID != "" {
		item.PricingSetID = pricingSetID
	}

	out, err := price(ctx, ratecard.NewRequestCache(s.cards), item.PricingSetID, item.Input)
	if err != nil {
		return Item{}, err
	}
	item.Calculation = out
	item.TotalCost = out.TotalCost
	item.CalculatedAt = s.now().UTC().Truncate(time.Millisecond)

	_, calcJSON, err := snapshot(item)
	if err != nil {
		return Item{}, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE quote_items
		SET pricing_set_id = ?, calculation_json = ?, total_cost = ?, calculated_at = ?
		WHERE id = ? AND quote_id = ?
	`, item.PricingSetID, calcJSON, item.TotalCost, item.CalculatedAt.Format(timeLayout), itemID, quoteID); err != nil {
		return Item{}, fmt.Errorf("update quote item snapshot: %w", err)
	}

	s.log.Info("quote item recalculated",
		zap.String("quote_id", quoteID),
		zap.String("item_id", itemID),
		zap.String("pricing_set_id", item.PricingSetID),
		zap.Int64("previous_total_cost", int64(previous)),
		zap.Int64("total_cost", int64(item.TotalCost)))
	return item, nil
}

// Get reads a quote and its item snapshots exactly as stored.
func (s *Store) Get(ctx context.Context, quoteID string) (Quote, error) {
	var (
		q       Quote
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, reference, created_at FROM quotes WHERE id = ?`, quoteID,
	).Scan(&q.ID, &q.CustomerName, &q.Reference, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, fmt.Errorf("quote %s: %w", quoteID, ErrNotFound)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("query quote: %w", err)
	}
	if q.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Quote{}, fmt.Errorf("parse quote created_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM quote_items WHERE quote_id = ? ORDER BY position`, quoteID)
	if err != nil {
		return Quote{}, fmt.Errorf("query quote items: %w", err)
	}
	defer rows.Close()

	q.Items = []Item{}
	outputs := []pricing.Output{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return Quote{}, err
		}
		q.Items = append(q.Items, item)
		outputs = append(outputs, item.Calculation)
	}
	if err := rows.Err(); err != nil {
		return Quote{}, fmt.Errorf("iterate quote items: %w", err)
	}

	q.Summary = pricing.Aggregate(outputs...)
	return q, nil
}

// Listing is one quote in a search result, totalled from stored snapshots.
type Listing struct {
	ID           string      `json:"id"`
	CustomerName string      `json:"customer_name"`
	Reference    string      `json:"reference"`
	CreatedAt    time.Time   `json:"created_at"`
	Items        int         `json:"items"`
	Total        money.Pence `json:"total"`
}

// List returns quotes newest first. A non-empty query matches customer
// name or reference.
func (s *Store) List(ctx context.Context, query string) ([]Listing, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			q.id,
			q.customer_name,
			q.reference,
			q.created_at,
			COUNT(i.id),
			COALESCE(SUM(i.total_cost), 0)
		FROM quotes q
		LEFT JOIN quote_items i ON i.quote_id = q.id
		WHERE (? = '' OR q.customer_name LIKE ? OR q.reference LIKE ?)
		GROUP BY q.id
		ORDER BY q.created_at DESC, q.id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	listings := make([]Listing, 0)
	for rows.Next() {
		var (
			l       Listing
			created string
		)
		if err := rows.Scan(&l.ID, &l.CustomerName, &l.Reference, &created, &l.Items, &l.Total); err != nil {
			return nil, fmt.Errorf("scan quote listing: %w", err)
		}
		if l.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse quote created_at: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return listings, nil
}

const itemColumns = `id, quote_id, position, description, pricing_set_id, input_json, calculation_json, total_cost, calculated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item                Item
		inputJSON, calcJSON string
		calculated          string
	)
	if err := row.Scan(&item.ID, &item.QuoteID, &item.Position, &item.Description, &item.PricingSetID,
		&inputJSON, &calcJSON, &item.TotalCost, &calculated); err != nil {
		return Item{}, fmt.Errorf("scan quote item: %w", err)
	}
	if err := json.Unmarshal([]byte(inputJSON), &item.Input); err != nil {
		return Item{}, fmt.Errorf("decode item %s input snapshot: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(calcJSON), &item.Calculation); err != nil {
		return Item{}, fmt.Errorf("decode item %s calculation snapshot: %w", item.ID, err)
	}
	var err error
	if item.CalculatedAt, err = time.Parse(time.RFC3339Nano, calculated); err != nil {
		return Item{}, fmt.Errorf("parse item calculated_at: %w", err)
	}
	return item, nil
}

func (s *Store) getItem(ctx context.Context, quoteID, itemID string) (Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM quote_items WHERE id = ? AND quote_id = ?`, itemID, quoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("quote %s item %s: %w", quoteID, itemID, ErrNotFound)
	}
	return item, err
}

func (s *Store) quoteExists(ctx context.Context, quoteID string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM quotes WHERE id = ? LIMIT 1)`, quoteID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check quote existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("quote %s: %w", quoteID, ErrNotFound)
	}
	return nil
}

func snapshot(item Item) (inputJSON, calcJSON string, err error) {
	in, err := json.Marshal(item.Input)
	if err != nil {
		return "", "", fmt.Errorf("encode input snapshot: %w", err)
	}
	calc, err := json.Marshal(item.Calculation)
	if err != nil {
		return "", "", fmt.Errorf("encode calculation snapshot: %w", err)
	}
	return string(in), string(calc), nil
}
