package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestComputeNextRunStrictlyAfter(t *testing.T) {
	now := date(2025, time.March, 10)
	freqs := []Frequency{FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly, FreqQuarterly, FreqYearly}
	for _, f := range freqs {
		t.Run(string(f), func(t *testing.T) {
			next := ComputeNextRun(&Template{Frequency: f}, now)
			if !next.After(now) {
				t.Errorf("next run %v not after %v", next, now)
			}
		})
	}
}

func TestComputeNextRunWeekly(t *testing.T) {
	// Tuesday with a Mon/Wed/Fri set lands on Wednesday.
	tue := date(2025, time.March, 11)
	tmpl := &Template{Frequency: FreqWeekly, Weekdays: []int{1, 3, 5}}

	next := ComputeNextRun(tmpl, tue)
	if next.Weekday() != time.Wednesday {
		t.Errorf("expected Wednesday, got %s", next.Weekday())
	}
	if !next.Equal(date(2025, time.March, 12)) {
		t.Errorf("expected 2025-03-12, got %v", next)
	}

	// Same weekday in the set still advances a full week, never today.
	mon := date(2025, time.March, 10)
	next = ComputeNextRun(&Template{Frequency: FreqWeekly, Weekdays: []int{1}}, mon)
	if !next.Equal(date(2025, time.March, 17)) {
		t.Errorf("expected next Monday 2025-03-17, got %v", next)
	}

	// Empty set degenerates to daily.
	next = ComputeNextRun(&Template{Frequency: FreqWeekly}, tue)
	if !next.Equal(date(2025, time.March, 12)) {
		t.Errorf("expected tomorrow, got %v", next)
	}
}

func TestComputeNextRunBiweekly(t *testing.T) {
	now := date(2025, time.March, 10)
	next := ComputeNextRun(&Template{Frequency: FreqBiweekly}, now)
	if !next.Equal(date(2025, time.March, 25)) {
		t.Errorf("expected flat 15-day offset, got %v", next)
	}
}

func TestComputeNextRunMonthlyClamps(t *testing.T) {
	// Jan 31 + 1 month must stay in February, not normalize into March.
	jan31 := date(2025, time.January, 31)
	next := ComputeNextRun(&Template{Frequency: FreqMonthly}, jan31)
	if next.Month() != time.February || next.Day() != 28 {
		t.Errorf("expected Feb 28, got %v", next)
	}

	// DayOfMonth pins the target day.
	next = ComputeNextRun(&Template{Frequency: FreqMonthly, DayOfMonth: 15}, jan31)
	if next.Month() != time.February || next.Day() != 15 {
		t.Errorf("expected Feb 15, got %v", next)
	}

	// DayOfMonth 31 clamps in short months.
	apr30 := date(2025, time.April, 30)
	next = ComputeNextRun(&Template{Frequency: FreqMonthly, DayOfMonth: 31}, apr30)
	if next.Month() != time.May || next.Day() != 31 {
		t.Errorf("expected May 31, got %v", next)
	}
}

func TestComputeNextRunQuarterlyYearWrap(t *testing.T) {
	nov := date(2025, time.November, 15)
	next := ComputeNextRun(&Template{Frequency: FreqQuarterly}, nov)
	if next.Year() != 2026 || next.Month() != time.February {
		t.Errorf("expected Feb 2026, got %v", next)
	}
}

func TestComputeNextRunOnce(t *testing.T) {
	now := date(2025, time.March, 10)

	future := date(2025, time.April, 1)
	next := ComputeNextRun(&Template{Frequency: FreqOnce, StartDate: future}, now)
	if !next.Equal(future) {
		t.Errorf("expected start date, got %v", next)
	}

	past := date(2025, time.February, 1)
	next = ComputeNextRun(&Template{Frequency: FreqOnce, StartDate: past}, now)
	if !next.IsZero() {
		t.Errorf("expected zero time for spent one-shot, got %v", next)
	}
}

func TestIsoWeekday(t *testing.T) {
	// 2025-03-10 is a Monday, 2025-03-16 a Sunday.
	if got := isoWeekday(date(2025, time.March, 10)); got != 1 {
		t.Errorf("expected Monday=1, got %d", got)
	}
	if got := isoWeekday(date(2025, time.March, 16)); got != 7 {
		t.Errorf("expected Sunday=7, got %d", got)
	}
}
