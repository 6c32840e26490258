package batching

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
)

type fakeOrders []models.Order

func (f fakeOrders) Eligible(_ context.Context, date string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f {
		if o.DeliveryDate == date {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeWindows []models.CapacityWindow

func (f fakeWindows) WindowAt(_ context.Context, t time.Time, _ *time.Location) (*models.CapacityWindow, error) {
	for i := range f {
		if f[i].IsActive && f[i].Contains(t) {
			return &f[i], nil
		}
	}
	return nil, capacity.ErrWindowNotFound
}

func TestPlannerAttachesWindowAndFlagsCapacity(t *testing.T) {
	cat, err := catalog.NewStatic(fdg)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := fakeWindows{
		{ID: "morning", Date: "2026-03-02", StartTime: day.Add(6 * time.Hour), EndTime: day.Add(10 * time.Hour), CapacityMinutes: 240, IsActive: true},
		{ID: "noon", Date: "2026-03-02", StartTime: day.Add(10 * time.Hour), EndTime: day.Add(14 * time.Hour), CapacityMinutes: 240, UsedMinutes: 200, IsActive: true},
	}

	tests := []struct {
		name       string
		delivery   time.Time
		wantWindow string
		wantReason Reason
	}{
		{"fits morning window", day.Add(10 * time.Hour), "morning", ""},
		{"noon window too full", day.Add(13 * time.Hour), "noon", ReasonCapacityShortfall},
		{"no window at start", day.Add(17 * time.Hour), "", ReasonNoWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := fakeOrders{testOrder("a", "f18-fdg", tt.delivery, 10)}
			p := NewPlanner(orders, cat, windows, clock.NewFixed(day), time.UTC, "", zerolog.Nop())

			got, err := p.Suggest(context.Background(), "2026-03-02")
			if err != nil {
				t.Fatalf("Suggest: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("suggestions = %d", len(got))
			}
			s := got[0]
			if s.WindowID != tt.wantWindow {
				t.Fatalf("window = %q, want %q", s.WindowID, tt.wantWindow)
			}
			if tt.wantReason == "" && !s.Feasible {
				t.Fatalf("unexpected reasons %v", s.Reasons)
			}
			if tt.wantReason != "" && !hasReason(s, tt.wantReason) {
				t.Fatalf("reasons = %v, want %s", s.Reasons, tt.wantReason)
			}
		})
	}
}

func TestPlannerEmptyDay(t *testing.T) {
	cat, _ := catalog.NewStatic(fdg)
	p := NewPlanner(fakeOrders{}, cat, fakeWindows{}, clock.NewFixed(t0), time.UTC, AnchorEarliest, zerolog.Nop())
	got, err := p.Suggest(context.Background(), "2026-03-02")
	if err != nil || len(got) != 0 {
		t.Fatalf("Suggest = %v, %v", got, err)
	}
}
