package catalog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleCatalog = `
products:
  - id: f18-fdg
    name: "[18F]FDG"
    half_life_minutes: 109.77
    production_minutes: 90
    dose_processing_minutes: 15
    max_batch_activity: "3000"
    activity_unit: mCi
  - id: ga68-psma
    name: "[68Ga]PSMA-11"
    half_life_minutes: 67.71
    production_minutes: 45
    buffer_minutes: 30
    dose_processing_minutes: 20
    max_batch_activity: "50"
    activity_unit: mci
`

func TestParseCatalog(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog), time.Hour)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fdg, err := cat.Product(context.Background(), "f18-fdg")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if fdg.Buffer != time.Hour {
		t.Fatalf("default buffer = %s", fdg.Buffer)
	}
	if fdg.ProductionMinutes() != 90 || fdg.EstimatedMinutes(4) != 60 {
		t.Fatalf("minutes: production=%d estimated=%d", fdg.ProductionMinutes(), fdg.EstimatedMinutes(4))
	}
	if !fdg.MaxBatchActivity.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("ceiling = %s", fdg.MaxBatchActivity)
	}

	ga, _ := cat.Product(context.Background(), "ga68-psma")
	if ga.Buffer != 30*time.Minute || ga.ActivityUnit != "mCi" {
		t.Fatalf("ga68: buffer=%s unit=%s", ga.Buffer, ga.ActivityUnit)
	}

	all, _ := cat.Products(context.Background())
	if len(all) != 2 || all[0].ID != "f18-fdg" {
		t.Fatalf("Products = %+v", all)
	}

	if _, err := cat.Product(context.Background(), "tc99m"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("unknown product: %v", err)
	}
}

func TestParseRejectsInvalidProducts(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero half-life", "products: [{id: a, half_life_minutes: 0, production_minutes: 10, dose_processing_minutes: 1, max_batch_activity: '1', activity_unit: mCi}]"},
		{"bad unit", "products: [{id: a, half_life_minutes: 10, production_minutes: 10, dose_processing_minutes: 1, max_batch_activity: '1', activity_unit: rem}]"},
		{"bad ceiling", "products: [{id: a, half_life_minutes: 10, production_minutes: 10, dose_processing_minutes: 1, max_batch_activity: lots, activity_unit: mCi}]"},
		{"duplicate", "products: [{id: a, half_life_minutes: 10, production_minutes: 10, dose_processing_minutes: 1, max_batch_activity: '1', activity_unit: mCi}, {id: a, half_life_minutes: 10, production_minutes: 10, dose_processing_minutes: 1, max_batch_activity: '1', activity_unit: mCi}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml), 0); !errors.Is(err, ErrInvalidProduct) {
				t.Fatalf("got %v, want ErrInvalidProduct", err)
			}
		})
	}
}

func TestDecayFactor(t *testing.T) {
	p := Product{HalfLife: 110 * time.Minute}
	if got := p.DecayFactor(110 * time.Minute); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("factor after one half-life = %v", got)
	}
	if got := p.DecayFactor(0); got != 1 {
		t.Fatalf("factor at zero = %v", got)
	}
	if p.DecayFactor(2*time.Hour) >= p.DecayFactor(time.Hour) {
		t.Fatal("decay factor must shrink with elapsed time")
	}
}

func TestConvertActivity(t *testing.T) {
	tests := []struct {
		v        string
		from, to string
		want     string
	}{
		{"10", "mCi", "MBq", "370"},
		{"370", "MBq", "mCi", "10"},
		{"1", "Ci", "GBq", "37"},
		{"2.5", "mci", "mCi", "2.5"},
	}
	for _, tt := range tests {
		got, err := ConvertActivity(decimal.RequireFromString(tt.v), tt.from, tt.to)
		if err != nil {
			t.Fatalf("ConvertActivity(%s %s->%s): %v", tt.v, tt.from, tt.to, err)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("ConvertActivity(%s %s->%s) = %s, want %s", tt.v, tt.from, tt.to, got, tt.want)
		}
	}
	if _, err := ConvertActivity(decimal.NewFromInt(1), "Sv", "mCi"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("unknown unit: %v", err)
	}
}
