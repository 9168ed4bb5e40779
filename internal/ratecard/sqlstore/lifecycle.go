package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/ratecard"
)

// Activate makes a draft pricing set the active one. The set must pass the
// completeness check against catalog; the report is returned either way.
// The previously active set, if any, is archived in the same transaction.
func (s *Store) Activate(ctx context.Context, pricingSetID string, catalog ratecard.Catalog) (ratecard.Report, error) {
	card, err := s.Load(ctx, pricingSetID)
	if err != nil {
		return ratecard.Report{}, err
	}

	report := ratecard.CheckCompleteness(card, catalog)
	if !report.OK {
		s.log.Warn("pricing set activation refused",
			zap.String("pricing_set_id", pricingSetID),
			zap.Strings("missing", report.Missing))
		return report, fmt.Errorf("activate pricing set %s: %d missing rows: %w",
			pricingSetID, len(report.Missing), ratecard.ErrIncomplete)
	}

	now := s.now().UTC().Format(timeLayout)
	var archived string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkTransition(ctx, tx, pricingSetID, ratecard.StatusActive); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `SELECT id FROM pricing_sets WHERE status = ?`, ratecard.StatusActive).Scan(&archived)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("query active pricing set: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE pricing_sets SET status = ?, archived_at = ? WHERE id = ?`,
				ratecard.StatusArchived, now, archived); err != nil {
				return fmt.Errorf("archive previous pricing set: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE pricing_sets SET status = ?, activated_at = ? WHERE id = ?`,
			ratecard.StatusActive, now, pricingSetID); err != nil {
			return fmt.Errorf("activate pricing set: %w", err)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	fields := []zap.Field{zap.String("pricing_set_id", pricingSetID), zap.Int("warnings", len(report.Warnings))}
	if archived != "" {
		fields = append(fields, zap.String("archived_pricing_set_id", archived))
	}
	s.log.Info("pricing set activated", fields...)
	return report, nil
}

// Archive retires a draft or active pricing set. Archived sets stay
// loadable so historical quotes remain auditable.
func (s *Store) Archive(ctx context.Context, pricingSetID string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkTransition(ctx, tx, pricingSetID, ratecard.StatusArchived); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE pricing_sets SET status = ?, archived_at = ? WHERE id = ?`,
			ratecard.StatusArchived, s.now().UTC().Format(timeLayout), pricingSetID); err != nil {
			return fmt.Errorf("archive pricing set: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("pricing set archived", zap.String("pricing_set_id", pricingSetID))
	return nil
}

func checkTransition(ctx context.Context, tx *sql.Tx, pricingSetID string, next ratecard.Status) error {
	var current string
	err := tx.QueryRowContext(ctx, `SELECT status FROM pricing_sets WHERE id = ?`, pricingSetID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pricing set %s: %w", pricingSetID, ratecard.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query pricing set status: %w", err)
	}
	if !ratecard.Status(current).CanTransitionTo(next) {
		return fmt.Errorf("pricing set %s is %s, cannot become %s: %w",
			pricingSetID, current, next, ratecard.ErrInvalidTransition)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
