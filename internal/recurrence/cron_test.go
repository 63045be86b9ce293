package recurrence

import (
	"testing"
	"time"
)

func TestParseCron_Valid(t *testing.T) {
	expr, err := ParseCron("0 * * * *")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}
	if expr.String() != "0 * * * *" {
		t.Fatalf("expected raw %q, got %q", "0 * * * *", expr.String())
	}
}

func TestParseCron_Invalid(t *testing.T) {
	_, err := ParseCron("not a cron")
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestCronExpr_Next(t *testing.T) {
	expr, err := ParseCron("0 9 * * *") // every day at 09:00
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}

	base := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	next := expr.Next(base)

	expected := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Fatalf("expected next %v, got %v", expected, next)
	}
}

func TestCronExpr_Matches(t *testing.T) {
	expr, err := ParseCron("0 * * * *") // hourly on the hour
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}

	match := time.Date(2025, 3, 10, 15, 0, 30, 0, time.UTC)
	if !expr.Matches(match) {
		t.Fatal("expected Matches to return true on the hour")
	}

	noMatch := time.Date(2025, 3, 10, 15, 1, 0, 0, time.UTC)
	if expr.Matches(noMatch) {
		t.Fatal("expected Matches to return false at :01")
	}
}

func TestCronExpr_EveryFifteenMinutes(t *testing.T) {
	expr, err := ParseCron("*/15 * * * *")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}

	at0 := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	at15 := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	at7 := time.Date(2025, 3, 10, 10, 7, 0, 0, time.UTC)

	if !expr.Matches(at0) {
		t.Fatal("expected match at :00")
	}
	if !expr.Matches(at15) {
		t.Fatal("expected match at :15")
	}
	if expr.Matches(at7) {
		t.Fatal("expected no match at :07")
	}
}
