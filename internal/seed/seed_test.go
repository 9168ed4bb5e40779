package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/db"
	"github.com/Simplici0/signquote/internal/migrations"
	"github.com/Simplici0/signquote/internal/ratecard"
	"github.com/Simplici0/signquote/internal/ratecard/sqlstore"
)

func newSeedStore(t *testing.T) (*sql.DB, *sqlstore.Store) {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database, sqlstore.New(database, zap.NewNop())
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database, store := newSeedStore(t)

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, store, ratecard.DefaultCatalog())
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 1 || stats.Updates != 1 {
				t.Fatalf("expected 1 insert and 1 activation in first run, got %+v", stats)
			}
			continue
		}
		if stats.Inserts != 0 || stats.Updates != 0 {
			t.Fatalf("expected no changes in iteration %d, got %+v", i, stats)
		}
	}

	assertCount(t, database, 1, `SELECT COUNT(*) FROM pricing_sets`)
	assertCount(t, database, 1, `SELECT COUNT(*) FROM pricing_sets WHERE status = ?`, "active")
	assertCount(t, database, 28, `SELECT COUNT(*) FROM letter_unit_prices`)
}

func TestRunLeavesExistingActiveSetAlone(t *testing.T) {
	ctx := context.Background()
	database, store := newSeedStore(t)

	doc, err := DefaultDocument()
	if err != nil {
		t.Fatalf("DefaultDocument: %v", err)
	}
	doc.ID, doc.Name, doc.Version = "operator-set", "Operator", 1
	if _, err := store.Save(ctx, doc); err != nil {
		t.Fatalf("save operator set: %v", err)
	}
	if _, err := store.Activate(ctx, doc.ID, ratecard.DefaultCatalog()); err != nil {
		t.Fatalf("activate operator set: %v", err)
	}

	stats, err := Run(ctx, store, ratecard.DefaultCatalog())
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 1 || stats.Updates != 0 {
		t.Fatalf("expected import without activation, got %+v", stats)
	}

	active, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != "operator-set" {
		t.Fatalf("active pricing set = %s, want operator-set", active.ID)
	}
	assertCount(t, database, 1, `SELECT COUNT(*) FROM pricing_sets WHERE status = ?`, "draft")
}

func TestDefaultDocumentIsComplete(t *testing.T) {
	doc, err := DefaultDocument()
	if err != nil {
		t.Fatalf("DefaultDocument: %v", err)
	}
	card, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report := ratecard.CheckCompleteness(card, ratecard.DefaultCatalog()); !report.OK {
		t.Fatalf("default rate card is incomplete: %v", report.Missing)
	}
}

func assertCount(t *testing.T, database *sql.DB, want int, query string, args ...any) {
	t.Helper()

	var got int
	if err := database.QueryRow(query, args...).Scan(&got); err != nil {
		t.Fatalf("count query %q: %v", query, err)
	}
	if got != want {
		t.Fatalf("%s: expected %d, got %d", query, want, got)
	}
}
