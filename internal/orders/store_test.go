package orders

import (
	"context"
	"testing"
	"time"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/shopspring/decimal"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	return NewStore(database)
}

func order(id, date string, status models.OrderStatus, at time.Time) *models.Order {
	return &models.Order{
		ID:                id,
		CustomerID:        "cust-1",
		ProductID:         "f18-fdg",
		RequestedActivity: decimal.NewFromInt(10),
		ActivityUnit:      "mCi",
		DeliveryDate:      date,
		DeliveryTimeStart: at,
		Status:            status,
	}
}

func TestEligibleAndMarkScheduled(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for _, o := range []*models.Order{
		order("o-2", "2026-03-02", models.OrderValidated, base.Add(2*time.Hour)),
		order("o-1", "2026-03-02", models.OrderValidated, base),
		order("o-3", "2026-03-02", models.OrderPending, base),
		order("o-4", "2026-03-03", models.OrderValidated, base.Add(24*time.Hour)),
	} {
		if err := s.Upsert(ctx, o); err != nil {
			t.Fatalf("upsert %s: %v", o.ID, err)
		}
	}

	got, err := s.Eligible(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	if len(got) != 2 || got[0].ID != "o-1" || got[1].ID != "o-2" {
		t.Fatalf("eligible = %+v", got)
	}

	n, err := s.MarkScheduled(ctx, []string{"o-1", "o-2", "o-3"}, "batch-1")
	if err != nil {
		t.Fatalf("MarkScheduled: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2 (pending order must not be stamped)", n)
	}

	got, _ = s.Eligible(ctx, "2026-03-02")
	if len(got) != 0 {
		t.Fatalf("scheduled orders still eligible: %+v", got)
	}

	// A later push from the order service must not clear the batch stamp.
	if err := s.Upsert(ctx, order("o-1", "2026-03-02", models.OrderScheduled, base)); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	o, err := s.Get(ctx, "o-1")
	if err != nil || o.BatchID == nil || *o.BatchID != "batch-1" {
		t.Fatalf("batch stamp lost: %+v, %v", o, err)
	}
}

func TestCustomerExists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.UpsertCustomer(ctx, &models.Customer{ID: "c1", Name: "KFSH Riyadh", Active: true}); err != nil {
		t.Fatalf("UpsertCustomer: %v", err)
	}
	ok, err := s.CustomerExists(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("CustomerExists(c1) = %v, %v", ok, err)
	}
	ok, _ = s.CustomerExists(ctx, "nobody")
	if ok {
		t.Fatal("unknown customer reported as existing")
	}
}
