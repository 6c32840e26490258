package windowgen

import (
	"errors"
	"testing"
	"time"
)

func mustTOD(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func TestGenerateOneDraftPerDay(t *testing.T) {
	riyadh, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	g := New(riyadh, []time.Weekday{time.Friday, time.Saturday})

	drafts, err := g.Generate(Template{
		StartDate:       "2026-03-01", // Sunday
		EndDate:         "2026-03-07", // Saturday
		DailyStart:      mustTOD(t, "06:00"),
		DailyEnd:        mustTOD(t, "14:00"),
		CapacityMinutes: 480,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(drafts) != 7 {
		t.Fatalf("drafts = %d, want 7", len(drafts))
	}

	first := drafts[0]
	if first.Date != "2026-03-01" {
		t.Fatalf("first date = %s", first.Date)
	}
	wantStart := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if !first.StartTime.Equal(wantStart) {
		t.Fatalf("first start = %s, want %s", first.StartTime.UTC(), wantStart)
	}
	if first.EndTime.Sub(first.StartTime) != 8*time.Hour {
		t.Fatalf("window length = %s", first.EndTime.Sub(first.StartTime))
	}
}

func TestGenerateExcludesConfiguredWeekend(t *testing.T) {
	tests := []struct {
		name    string
		weekend []time.Weekday
		want    []string
	}{
		{
			name:    "friday saturday",
			weekend: []time.Weekday{time.Friday, time.Saturday},
			want:    []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05"},
		},
		{
			name:    "saturday sunday",
			weekend: []time.Weekday{time.Saturday, time.Sunday},
			want:    []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(time.UTC, tt.weekend)
			drafts, err := g.Generate(Template{
				StartDate:       "2026-03-01",
				EndDate:         "2026-03-07",
				DailyStart:      mustTOD(t, "08:00"),
				DailyEnd:        mustTOD(t, "12:00"),
				CapacityMinutes: 240,
				ExcludeWeekends: true,
			})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(drafts) != len(tt.want) {
				t.Fatalf("got %d drafts, want %d", len(drafts), len(tt.want))
			}
			for i, d := range drafts {
				if d.Date != tt.want[i] {
					t.Fatalf("draft %d date = %s, want %s", i, d.Date, tt.want[i])
				}
			}
		})
	}
}

func TestGenerateRejectsBadTemplates(t *testing.T) {
	g := New(time.UTC, nil)
	base := Template{
		StartDate:       "2026-03-01",
		EndDate:         "2026-03-02",
		DailyStart:      TimeOfDay{Hour: 8},
		DailyEnd:        TimeOfDay{Hour: 12},
		CapacityMinutes: 60,
	}
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"bad start date", func(tp *Template) { tp.StartDate = "03/01/2026" }},
		{"end before start", func(tp *Template) { tp.EndDate = "2026-02-01" }},
		{"range too long", func(tp *Template) { tp.EndDate = "2027-06-01" }},
		{"end before daily start", func(tp *Template) { tp.DailyEnd = TimeOfDay{Hour: 7} }},
		{"zero capacity", func(tp *Template) { tp.CapacityMinutes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := base
			tt.mutate(&tpl)
			if _, err := g.Generate(tpl); !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("got %v, want ErrInvalidTemplate", err)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
	tod := mustTOD(t, "07:30")
	if tod.String() != "07:30" {
		t.Fatalf("String() = %s", tod)
	}
}
