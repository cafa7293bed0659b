package chore

import (
	"math"
	"testing"
	"time"

	"github.com/dukerupert/mindthecat/internal/model"
)

func TestProgressAbsentWithoutData(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := ComputeProgress(model.Chore{ID: "a", LastDone: &now}, now); ok {
		t.Error("expected no progress without interval")
	}
	if _, ok := ComputeProgress(recurring(2, model.UnitDays, nil), now); ok {
		t.Error("expected no progress for never-done chore")
	}
}

func TestProgressJustCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, ok := ComputeProgress(recurring(2, model.UnitDays, &now), now)
	if !ok {
		t.Fatal("expected progress")
	}
	if p.Percent != 100 {
		t.Errorf("percent = %v, want 100", p.Percent)
	}
	if p.Status != StatusGood {
		t.Errorf("status = %q, want %q", p.Status, StatusGood)
	}
	if p.TimeText != "2 days remaining" {
		t.Errorf("time text = %q, want %q", p.TimeText, "2 days remaining")
	}
}

func TestProgressEightHoursOneDone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)
	p, ok := ComputeProgress(recurring(8, model.UnitHours, &last), now)
	if !ok {
		t.Fatal("expected progress")
	}
	if p.Percent != 87.5 {
		t.Errorf("percent = %v, want 87.5", p.Percent)
	}
	if p.Status != StatusGood {
		t.Errorf("status = %q, want %q", p.Status, StatusGood)
	}
	if p.TimeText != "7 hours remaining" {
		t.Errorf("time text = %q, want %q", p.TimeText, "7 hours remaining")
	}
}

func TestProgressOverdueByDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-3 * 24 * time.Hour)
	c := recurring(2, model.UnitDays, &last)

	if !IsOverdue(c, now) {
		t.Error("expected overdue")
	}
	p, ok := ComputeProgress(c, now)
	if !ok {
		t.Fatal("expected progress")
	}
	if p.Status != StatusUrgent {
		t.Errorf("status = %q, want %q", p.Status, StatusUrgent)
	}
	if p.TimeText != "Overdue by 1 day" {
		t.Errorf("time text = %q, want %q", p.TimeText, "Overdue by 1 day")
	}
	if p.Percent != 0 {
		t.Errorf("percent = %v, want 0", p.Percent)
	}
	if !p.Overdue() {
		t.Error("expected Overdue() to be true")
	}
}

func TestStatusThresholds(t *testing.T) {
	// A 100 minute interval makes minutes map 1:1 to percent.
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := recurring(100, model.UnitMinutes, &last)

	tests := []struct {
		elapsed time.Duration
		percent float64
		want    Status
	}{
		{0, 100, StatusGood},
		{50 * time.Minute, 50, StatusGood},
		{50*time.Minute + 600*time.Millisecond, 49.99, StatusWarning},
		{75 * time.Minute, 25, StatusWarning},
		{75*time.Minute + 600*time.Millisecond, 24.99, StatusUrgent},
		{100 * time.Minute, 0, StatusUrgent},
		{150 * time.Minute, 0, StatusUrgent},
	}
	for _, tt := range tests {
		p, ok := ComputeProgress(c, last.Add(tt.elapsed))
		if !ok {
			t.Fatalf("elapsed %v: expected progress", tt.elapsed)
		}
		if math.Abs(p.Percent-tt.percent) > 1e-9 {
			t.Errorf("elapsed %v: percent = %v, want %v", tt.elapsed, p.Percent, tt.percent)
		}
		if p.Status != tt.want {
			t.Errorf("elapsed %v: status = %q, want %q", tt.elapsed, p.Status, tt.want)
		}
	}
}

func TestProgressMonotonic(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := recurring(3, model.UnitDays, &last)

	prev := math.Inf(1)
	reachedZero := false
	for now := last.Add(-time.Hour); now.Before(last.Add(5 * 24 * time.Hour)); now = now.Add(37 * time.Minute) {
		p, _ := ComputeProgress(c, now)
		if p.Percent > prev {
			t.Fatalf("percent increased at %v: %v > %v", now, p.Percent, prev)
		}
		if reachedZero && p.Percent != 0 {
			t.Fatalf("percent left zero at %v: %v", now, p.Percent)
		}
		if p.Percent == 0 {
			reachedZero = true
		}
		prev = p.Percent
	}
	if !reachedZero {
		t.Error("expected percent to reach zero")
	}
}

func TestTimeText(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      string
	}{
		{49 * time.Hour, "2 days remaining"},
		{25 * time.Hour, "1 day remaining"},
		{23*time.Hour + 59*time.Minute, "23 hours remaining"},
		{time.Hour, "1 hour remaining"},
		{59 * time.Minute, "Less than 1 hour remaining"},
		{0, "Overdue by less than 1 hour"},
		{-90 * time.Minute, "Overdue by 1 hour"},
		{-5 * time.Hour, "Overdue by 5 hours"},
		{-50 * time.Hour, "Overdue by 2 days"},
	}
	for _, tt := range tests {
		if got := timeText(tt.remaining); got != tt.want {
			t.Errorf("timeText(%v) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func TestZeroIntervalProgress(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := recurring(1, model.IntervalUnit("weeks"), &last)

	p, ok := ComputeProgress(c, last.Add(time.Minute))
	if !ok {
		t.Fatal("expected progress for chore with unknown unit")
	}
	if p.Percent != 0 || p.Status != StatusUrgent {
		t.Errorf("progress = %+v, want 0%% urgent", p)
	}
	if math.IsNaN(p.Percent) {
		t.Error("percent is NaN")
	}
}
