package clock

import (
	"testing"
	"time"
)

func TestFixedClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	c.Advance(90 * time.Minute)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("Now() = %v", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatal("Set did not reset the clock")
	}
}

func TestDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	// 22:30 UTC is already the next day at UTC+3.
	instant := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	if got := Date(instant, loc); got != "2026-03-02" {
		t.Fatalf("Date() = %s, want 2026-03-02", got)
	}
	if got := Date(instant, nil); got != "2026-03-01" {
		t.Fatalf("Date(nil loc) = %s, want 2026-03-01", got)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	d, err := ParseDate("2026-03-02", loc)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Hour() != 0 || d.Location() != loc {
		t.Fatalf("unexpected midnight %v", d)
	}
	if _, err := ParseDate("02/03/2026", loc); err == nil {
		t.Fatal("expected parse error")
	}
}
