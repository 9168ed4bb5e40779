// Package sqlstore persists pricing sets in SQLite and runs their
// draft -> active -> archived lifecycle.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/ratecard"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrDuplicate is returned when a pricing set with the same ID, or the same
// name and version, already exists.
var ErrDuplicate = errors.New("pricing set already exists")

// Summary describes a stored pricing set without its rows.
type Summary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Version     int             `json:"version"`
	Status      ratecard.Status `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ActivatedAt *time.Time      `json:"activated_at,omitempty"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
}

// Store is a ratecard.Repository backed by SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

var _ ratecard.Repository = (*Store)(nil)

// New returns a Store over db. The schema must already be migrated.
func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log, now: time.Now}
}

// Save validates doc and stores it as a new draft. An empty ID is replaced
// by a fresh UUID; a zero version becomes the next version for the name.
func (s *Store) Save(ctx context.Context, doc ratecard.Document) (Summary, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	card, err := doc.Build()
	if err != nil {
		return Summary{}, fmt.Errorf("save pricing set: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	if doc.Version == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM pricing_sets WHERE name = ?`, doc.Name,
		).Scan(&doc.Version); err != nil {
			return Summary{}, fmt.Errorf("next pricing set version: %w", err)
		}
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pricing_sets
			WHERE id = ? OR (name = ? AND version = ?)
		)
	`, doc.ID, doc.Name, doc.Version).Scan(&exists); err != nil {
		return Summary{}, fmt.Errorf("check pricing set existence: %w", err)
	}
	if exists {
		return Summary{}, fmt.Errorf("save pricing set %s %q v%d: %w", doc.ID, doc.Name, doc.Version, ErrDuplicate)
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pricing_sets (id, name, version, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, doc.Version, ratecard.StatusDraft, createdAt.Format(timeLayout)); err != nil {
		return Summary{}, fmt.Errorf("insert pricing set: %w", err)
	}

	// Rows come from the built card so stored tables match what Load rebuilds.
	if err := insertRows(ctx, tx, doc.ID, card.Document()); err != nil {
		return Summary{}, err
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit save transaction: %w", err)
	}

	s.log.Info("pricing set saved",
		zap.String("pricing_set_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("version", doc.Version))

	return Summary{
		ID:        doc.ID,
		Name:      doc.Name,
		Version:   doc.Version,
		Status:    ratecard.StatusDraft,
		CreatedAt: createdAt,
	}, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, id string, doc ratecard.Document) error {
	exec := func(table, query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s row: %w", table, err)
		}
		return nil
	}

	for _, r := range doc.PanelPrices {
		if err := exec(ratecard.TablePanelPrice,
			`INSERT INTO panel_prices (pricing_set_id, material, sheet_size, unit_cost) VALUES (?, ?, ?, ?)`,
			id, r.Material, r.SheetSize, r.UnitCost); err != nil {
			return err
		}
	}
	for _, r := range doc.PanelFinishes {
		if err := exec(ratecard.TablePanelFinish,
			`INSERT INTO panel_finishes (pricing_set_id, finish, cost_per_area) VALUES (?, ?, ?)`,
			id, r.Finish, r.CostPerArea); err != nil {
			return err
		}
	}
	for _, r := range doc.ManufacturingRates {
		if err := exec(ratecard.TableManufacturingRate,
			`INSERT INTO manufacturing_rates (pricing_set_id, task, cost_per_hour) VALUES (?, ?, ?)`,
			id, r.Task, r.CostPerHour); err != nil {
			return err
		}
	}
	for _, r := range doc.IlluminationProfiles {
		if err := exec(ratecard.TableIlluminationProfile,
			`INSERT INTO illumination_profiles (pricing_set_id, height_mm, leds_per_letter) VALUES (?, ?, ?)`,
			id, r.HeightMM, r.LEDsPerLetter); err != nil {
			return err
		}
	}
	for _, t := range doc.Transformers {
		if err := exec(ratecard.TableTransformer,
			`INSERT INTO transformers (pricing_set_id, type, led_capacity, unit_cost) VALUES (?, ?, ?, ?)`,
			id, t.Type, t.LEDCapacity, t.UnitCost); err != nil {
			return err
		}
	}
	for _, r := range doc.OpalPrices {
		if err := exec(ratecard.TableOpalPrice,
			`INSERT INTO opal_prices (pricing_set_id, opal_type, sheet_size, unit_cost) VALUES (?, ?, ?, ?)`,
			id, r.OpalType, r.SheetSize, r.UnitCost); err != nil {
			return err
		}
	}
	for _, r := range doc.Consumables {
		if err := exec(ratecard.TableConsumable,
			`INSERT INTO consumables (pricing_set_id, key, value) VALUES (?, ?, ?)`,
			id, r.Key, r.Value); err != nil {
			return err
		}
	}
	for _, r := range doc.LetterFinishRules {
		for _, finish := range r.AllowedFinishes {
			if err := exec(ratecard.TableLetterFinishRule,
				`INSERT INTO letter_finish_rules (pricing_set_id, letter_type, finish) VALUES (?, ?, ?)`,
				id, r.LetterType, finish); err != nil {
				return err
			}
		}
	}
	for _, r := range doc.LetterUnitPrices {
		if err := exec(ratecard.TableLetterUnitPrice,
			`INSERT INTO letter_unit_prices (pricing_set_id, letter_type, finish, height_mm, unit_price) VALUES (?, ?, ?, ?, ?)`,
			id, r.LetterType, r.Finish, r.HeightMM, r.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a pricing set's rows and builds its rate card.
func (s *Store) Load(ctx context.Context, pricingSetID string) (*ratecard.RateCard, error) {
	doc, err := s.Document(ctx, pricingSetID)
	if err != nil {
		return nil, err
	}
	card, err := doc.Build()
	if err != nil {
		return nil, fmt.Errorf("build pricing set %s: %w", pricingSetID, err)
	}
	return card, nil
}

// Document reads a pricing set in its serialised form.
func (s *Store) Document(ctx context.Context, pricingSetID string) (ratecard.Document, error) {
	sum, err := s.Get(ctx, pricingSetID)
	if err != nil {
		return ratecard.Document{}, err
	}
	doc := ratecard.Document{ID: sum.ID, Name: sum.Name, Version: sum.Version}

	if err := s.each(ctx, `SELECT material, sheet_size, unit_cost FROM panel_prices WHERE pricing_set_id = ? ORDER BY material, sheet_size`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.PanelPriceRow
			if err := rows.Scan(&r.Material, &r.SheetSize, &r.UnitCost); err != nil {
				return err
			}
			doc.PanelPrices = append(doc.PanelPrices, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read panel prices: %w", err)
	}

	if err := s.each(ctx, `SELECT finish, cost_per_area FROM panel_finishes WHERE pricing_set_id = ? ORDER BY finish`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.PanelFinishRow
			if err := rows.Scan(&r.Finish, &r.CostPerArea); err != nil {
				return err
			}
			doc.PanelFinishes = append(doc.PanelFinishes, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read panel finishes: %w", err)
	}

	if err := s.each(ctx, `SELECT task, cost_per_hour FROM manufacturing_rates WHERE pricing_set_id = ? ORDER BY task`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.ManufacturingRateRow
			if err := rows.Scan(&r.Task, &r.CostPerHour); err != nil {
				return err
			}
			doc.ManufacturingRates = append(doc.ManufacturingRates, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read manufacturing rates: %w", err)
	}

	if err := s.each(ctx, `SELECT height_mm, leds_per_letter FROM illumination_profiles WHERE pricing_set_id = ? ORDER BY height_mm`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.IlluminationProfileRow
			if err := rows.Scan(&r.HeightMM, &r.LEDsPerLetter); err != nil {
				return err
			}
			doc.IlluminationProfiles = append(doc.IlluminationProfiles, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read illumination profiles: %w", err)
	}

	if err := s.each(ctx, `SELECT type, led_capacity, unit_cost FROM transformers WHERE pricing_set_id = ? ORDER BY led_capacity, unit_cost, type`,
		pricingSetID, func(rows *sql.Rows) error {
			var t ratecard.Transformer
			if err := rows.Scan(&t.Type, &t.LEDCapacity, &t.UnitCost); err != nil {
				return err
			}
			doc.Transformers = append(doc.Transformers, t)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read transformers: %w", err)
	}

	if err := s.each(ctx, `SELECT opal_type, sheet_size, unit_cost FROM opal_prices WHERE pricing_set_id = ? ORDER BY opal_type, sheet_size`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.OpalPriceRow
			if err := rows.Scan(&r.OpalType, &r.SheetSize, &r.UnitCost); err != nil {
				return err
			}
			doc.OpalPrices = append(doc.OpalPrices, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read opal prices: %w", err)
	}

	if err := s.each(ctx, `SELECT key, value FROM consumables WHERE pricing_set_id = ? ORDER BY key`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.ConsumableRow
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				return err
			}
			doc.Consumables = append(doc.Consumables, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read consumables: %w", err)
	}

	rules := map[string]int{}
	if err := s.each(ctx, `SELECT letter_type, finish FROM letter_finish_rules WHERE pricing_set_id = ? ORDER BY letter_type, finish`,
		pricingSetID, func(rows *sql.Rows) error {
			var letterType, finish string
			if err := rows.Scan(&letterType, &finish); err != nil {
				return err
			}
			i, ok := rules[letterType]
			if !ok {
				i = len(doc.LetterFinishRules)
				rules[letterType] = i
				doc.LetterFinishRules = append(doc.LetterFinishRules, ratecard.LetterFinishRuleRow{LetterType: letterType})
			}
			doc.LetterFinishRules[i].AllowedFinishes = append(doc.LetterFinishRules[i].AllowedFinishes, finish)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read letter finish rules: %w", err)
	}

	if err := s.each(ctx, `SELECT letter_type, finish, height_mm, unit_price FROM letter_unit_prices WHERE pricing_set_id = ? ORDER BY letter_type, finish, height_mm`,
		pricingSetID, func(rows *sql.Rows) error {
			var r ratecard.LetterUnitPriceRow
			if err := rows.Scan(&r.LetterType, &r.Finish, &r.HeightMM, &r.UnitPrice); err != nil {
				return err
			}
			doc.LetterUnitPrices = append(doc.LetterUnitPrices, r)
			return nil
		}); err != nil {
		return ratecard.Document{}, fmt.Errorf("read letter unit prices: %w", err)
	}

	return doc, nil
}

func (s *Store) each(ctx context.Context, query, pricingSetID string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, pricingSetID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

const summaryColumns = `id, name, version, status, created_at, activated_at, archived_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (Summary, error) {
	var (
		sum                 Summary
		status, created     string
		activated, archived sql.NullString
	)
	if err := row.Scan(&sum.ID, &sum.Name, &sum.Version, &status, &created, &activated, &archived); err != nil {
		return Summary{}, err
	}
	sum.Status = ratecard.Status(status)

	var err error
	if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Summary{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if sum.ActivatedAt, err = parseNullTime(activated); err != nil {
		return Summary{}, err
	}
	if sum.ArchivedAt, err = parseNullTime(archived); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

// Get returns a pricing set's summary.
func (s *Store) Get(ctx context.Context, pricingSetID string) (Summary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM pricing_sets WHERE id = ?`, pricingSetID))
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("pricing set %s: %w", pricingSetID, ratecard.ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("query pricing set: %w", err)
	}
	return sum, nil
}

// Active returns the single active pricing set.
func (s *Store) Active(ctx context.Context) (Summary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM pricing_sets WHERE status = ?`, ratecard.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("active pricing set: %w", ratecard.ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("query active pricing set: %w", err)
	}
	return sum, nil
}

// List returns every pricing set, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM pricing_sets ORDER BY created_at DESC, name, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("query pricing sets: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing set: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing sets: %w", err)
	}
	return out, nil
}
