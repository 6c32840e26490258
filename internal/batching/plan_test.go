package batching

import (
	"testing"
	"time"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/models"
	"github.com/shopspring/decimal"
)

var (
	t0  = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	fdg = catalog.Product{
		ID:                    "f18-fdg",
		HalfLife:              110 * time.Minute,
		ProductionDuration:    60 * time.Minute,
		Buffer:                30 * time.Minute,
		DoseProcessingMinutes: 15,
		MaxBatchActivity:      decimal.NewFromInt(1000),
		ActivityUnit:          "mCi",
	}
)

func testOrder(id, product string, delivery time.Time, mci int64) models.Order {
	return models.Order{
		ID:                id,
		CustomerID:        "cust-" + id,
		ProductID:         product,
		RequestedActivity: decimal.NewFromInt(mci),
		ActivityUnit:      "mCi",
		DeliveryDate:      delivery.Format("2006-01-02"),
		DeliveryTimeStart: delivery,
		Status:            models.OrderValidated,
		UpdatedAt:         t0.Add(-24 * time.Hour),
	}
}

func products(ps ...catalog.Product) map[string]catalog.Product {
	m := map[string]catalog.Product{}
	for _, p := range ps {
		m[p.ID] = p
	}
	return m
}

func TestPlanTwoDeliveriesSameProduct(t *testing.T) {
	orders := []models.Order{
		testOrder("late", "f18-fdg", t0.Add(6*time.Hour), 10),
		testOrder("early", "f18-fdg", t0.Add(2*time.Hour), 10),
	}
	got := Plan(orders, products(fdg), t0.Add(-12*time.Hour), AnchorEarliest)
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	s := got[0]

	latestAllowed := t0.Add(2*time.Hour - fdg.ProductionDuration - fdg.Buffer)
	if s.SuggestedStartTime.After(latestAllowed) {
		t.Fatalf("start %s later than %s", s.SuggestedStartTime, latestAllowed)
	}
	if !s.SuggestedEndTime.Equal(s.SuggestedStartTime.Add(fdg.ProductionDuration)) {
		t.Fatalf("end = %s", s.SuggestedEndTime)
	}
	if !s.Feasible {
		t.Fatalf("expected feasible, reasons %v", s.Reasons)
	}
	if s.OrderCount != 2 || s.Orders[0].OrderID != "early" {
		t.Fatalf("members = %+v", s.Orders)
	}

	early, late := s.Orders[0], s.Orders[1]
	if late.DecayFactor >= early.DecayFactor {
		t.Fatalf("later delivery factor %v should be smaller than %v", late.DecayFactor, early.DecayFactor)
	}
	if !late.ProductionActivity.GreaterThan(early.ProductionActivity) {
		t.Fatalf("later delivery needs more production activity: %s vs %s", late.ProductionActivity, early.ProductionActivity)
	}

	naive := decimal.NewFromInt(20)
	if !s.TotalActivity.GreaterThan(naive) {
		t.Fatalf("total %s must exceed naive sum %s", s.TotalActivity, naive)
	}
	if !s.TotalActivity.Equal(early.ProductionActivity.Add(late.ProductionActivity)) {
		t.Fatal("total is not the sum of member production activities")
	}
}

func TestProductionActivityGrowsWithLeadTime(t *testing.T) {
	delivery := t0.Add(8 * time.Hour)
	requested := decimal.NewFromInt(10)

	prev := decimal.Zero
	for _, lead := range []time.Duration{0, 30 * time.Minute, time.Hour, 3 * time.Hour, 6 * time.Hour} {
		got, _, _ := ProductionActivity(fdg, requested, delivery.Add(-lead), delivery)
		if !got.GreaterThan(prev) {
			t.Fatalf("lead %s: production %s not greater than %s", lead, got, prev)
		}
		prev = got
	}

	oneHalfLife, factor, _ := ProductionActivity(fdg, requested, delivery.Add(-110*time.Minute), delivery)
	if !oneHalfLife.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("after one half-life = %s, want 20 (factor %v)", oneHalfLife, factor)
	}
}

func TestPlanShortHalfLifeOverLongLeadIsFlagged(t *testing.T) {
	rb82 := catalog.Product{
		ID:                    "rb-82",
		HalfLife:              76 * time.Second,
		ProductionDuration:    10 * time.Minute,
		Buffer:                5 * time.Minute,
		DoseProcessingMinutes: 5,
		MaxBatchActivity:      decimal.NewFromInt(1000),
		ActivityUnit:          "mCi",
	}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		testOrder("early", "rb-82", day.Add(30*time.Minute), 10),
		testOrder("late", "rb-82", day.Add(23*time.Hour+30*time.Minute), 10),
	}

	s := Plan(orders, products(rb82), day.Add(-12*time.Hour), AnchorEarliest)[0]
	if s.Feasible || !hasReason(s, ReasonActivityCeiling) {
		t.Fatalf("expected ACTIVITY_CEILING, got feasible=%v reasons=%v", s.Feasible, s.Reasons)
	}
	early, late := s.Orders[0], s.Orders[1]
	if early.DecayUnbounded || !early.ProductionActivity.IsPositive() {
		t.Fatalf("early member should be computable: %+v", early)
	}
	if !late.DecayUnbounded || !late.ProductionActivity.IsZero() {
		t.Fatalf("late member should be marked unbounded: %+v", late)
	}

	if _, _, ok := ProductionActivity(rb82, decimal.NewFromInt(10), day, day.Add(23*time.Hour)); ok {
		t.Fatal("23h of Rb-82 decay should not be compensable")
	}
}

func TestPlanLatestAnchorFlagsEarlyDeadlines(t *testing.T) {
	orders := []models.Order{
		testOrder("early", "f18-fdg", t0.Add(2*time.Hour), 10),
		testOrder("late", "f18-fdg", t0.Add(6*time.Hour), 10),
	}
	s := Plan(orders, products(fdg), t0.Add(-12*time.Hour), AnchorLatest)[0]

	want := t0.Add(6*time.Hour - fdg.ProductionDuration - fdg.Buffer)
	if !s.SuggestedStartTime.Equal(want) {
		t.Fatalf("start = %s, want %s", s.SuggestedStartTime, want)
	}
	if s.Feasible || !hasReason(s, ReasonDeadlineMissed) {
		t.Fatalf("expected DEADLINE_MISSED, got %v", s.Reasons)
	}
	if !s.Orders[0].DeadlineMissed || s.Orders[1].DeadlineMissed {
		t.Fatalf("deadline flags = %v/%v", s.Orders[0].DeadlineMissed, s.Orders[1].DeadlineMissed)
	}
}

func TestPlanFlagsInfeasibleGroups(t *testing.T) {
	small := fdg
	small.ID = "small"
	small.MaxBatchActivity = decimal.NewFromInt(15)

	tests := []struct {
		name   string
		orders []models.Order
		now    time.Time
		want   Reason
	}{
		{
			name:   "start in past",
			orders: []models.Order{testOrder("a", "f18-fdg", t0.Add(2*time.Hour), 10)},
			now:    t0.Add(time.Hour),
			want:   ReasonStartInPast,
		},
		{
			name:   "activity ceiling",
			orders: []models.Order{testOrder("a", "small", t0.Add(2*time.Hour), 10), testOrder("b", "small", t0.Add(3*time.Hour), 10)},
			now:    t0.Add(-12 * time.Hour),
			want:   ReasonActivityCeiling,
		},
		{
			name:   "unknown product",
			orders: []models.Order{testOrder("a", "tc99m", t0.Add(2*time.Hour), 10)},
			now:    t0.Add(-12 * time.Hour),
			want:   ReasonUnknownProduct,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.orders, products(fdg, small), tt.now, AnchorEarliest)
			if len(got) != 1 {
				t.Fatalf("suggestions = %d", len(got))
			}
			if got[0].Feasible || !hasReason(got[0], tt.want) {
				t.Fatalf("reasons = %v, want %s", got[0].Reasons, tt.want)
			}
			if len(got[0].Orders) != len(tt.orders) {
				t.Fatal("infeasible group dropped its orders")
			}
		})
	}
}

func TestPlanConvertsUnits(t *testing.T) {
	o := testOrder("a", "f18-fdg", t0.Add(2*time.Hour), 370)
	o.ActivityUnit = "MBq"
	s := Plan([]models.Order{o}, products(fdg), t0.Add(-12*time.Hour), AnchorEarliest)[0]

	// 370 MBq = 10 mCi, decayed over production + buffer = 90 minutes.
	want, _, _ := ProductionActivity(fdg, decimal.NewFromInt(10), s.SuggestedStartTime, o.DeliveryTimeStart)
	if !s.TotalActivity.Equal(want) || s.ActivityUnit != "mCi" {
		t.Fatalf("total = %s %s, want %s mCi", s.TotalActivity, s.ActivityUnit, want)
	}
}

func TestPlanSeparatesProductsAndSorts(t *testing.T) {
	psma := fdg
	psma.ID = "f18-psma"

	orders := []models.Order{
		testOrder("p1", "f18-psma", t0.Add(4*time.Hour), 5),
		testOrder("f1", "f18-fdg", t0.Add(4*time.Hour), 5),
		testOrder("f2", "f18-fdg", t0.Add(5*time.Hour), 5),
		testOrder("x1", "f18-fdg-late", t0.Add(9*time.Hour), 5),
	}
	late := fdg
	late.ID = "f18-fdg-late"

	got := Plan(orders, products(fdg, psma, late), t0.Add(-12*time.Hour), AnchorEarliest)
	if len(got) != 3 {
		t.Fatalf("suggestions = %d, want 3", len(got))
	}
	// Same start: the bigger batch wins.
	if got[0].ProductID != "f18-fdg" || got[1].ProductID != "f18-psma" || got[2].ProductID != "f18-fdg-late" {
		t.Fatalf("order = %s, %s, %s", got[0].ProductID, got[1].ProductID, got[2].ProductID)
	}
	for _, s := range got {
		for _, m := range s.Orders {
			if m.OrderID[0] == 'p' && s.ProductID != "f18-psma" {
				t.Fatal("orders of different products were combined")
			}
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := testOrder("a", "f18-fdg", t0, 10)
	b := testOrder("b", "f18-fdg", t0, 10)

	fp := Fingerprint("f18-fdg", []models.Order{a, b})
	if fp != Fingerprint("f18-fdg", []models.Order{b, a}) {
		t.Fatal("fingerprint depends on input order")
	}

	b.UpdatedAt = b.UpdatedAt.Add(time.Second)
	if fp == Fingerprint("f18-fdg", []models.Order{a, b}) {
		t.Fatal("fingerprint ignores order updates")
	}
	if fp == Fingerprint("f18-fdg", []models.Order{a}) {
		t.Fatal("fingerprint ignores membership")
	}
}

func hasReason(s Suggestion, r Reason) bool {
	for _, got := range s.Reasons {
		if got == r {
			return true
		}
	}
	return false
}
