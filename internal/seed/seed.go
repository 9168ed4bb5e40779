package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
)

//go:embed default_ratecard.yaml
var defaultRateCard []byte

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// DefaultDocument returns the bundled rate card.
func DefaultDocument() (ratecard.Document, error) {
	return ratecard.DecodeYAML(bytes.NewReader(defaultRateCard))
}

// Run executes the startup seed in an idempotent way: the bundled rate
// card is imported once, and activated only while no pricing set is active.
func Run(ctx context.Context, store *sqlstore.Store, catalog ratecard.Catalog) (Stats, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return Stats{}, fmt.Errorf("decode default rate card: %w", err)
	}

	stats := Stats{}

	if err := ensureDefaultSet(ctx, store, doc, &stats); err != nil {
		return Stats{}, err
	}
	if err := ensureActiveSet(ctx, store, doc.ID, catalog, &stats); err != nil {
		return Stats{}, err
	}

	return stats, nil
}

func ensureDefaultSet(ctx context.Context, store *sqlstore.Store, doc ratecard.Document, stats *Stats) error {
	_, err := store.Get(ctx, doc.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ratecard.ErrNotFound) {
		return fmt.Errorf("check default pricing set existence: %w", err)
	}

	if _, err := store.Save(ctx, doc); err != nil {
		return fmt.Errorf("insert default pricing set: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureActiveSet(ctx context.Context, store *sqlstore.Store, id string, catalog ratecard.Catalog, stats *Stats) error {
	_, err := store.Active(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ratecard.ErrNotFound) {
		return fmt.Errorf("check active pricing set: %w", err)
	}

	sum, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("read default pricing set: %w", err)
	}
	// An archived default means an operator retired it; leave it retired.
	if sum.Status != ratecard.StatusDraft {
		return nil
	}

	if _, err := store.Activate(ctx, id, catalog); err != nil {
		return fmt.Errorf("activate default pricing set: %w", err)
	}
	stats.Updates++
	return nil
}
