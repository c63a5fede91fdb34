package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixSecondsAndMillis(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	if !ok || got.Unix() != ts.Unix() {
		t.Fatalf("seconds: got %v ok=%v", got, ok)
	}
	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	if !ok || got.Unix() != ts.Unix() {
		t.Fatalf("millis: got %v ok=%v", got, ok)
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "0", "-5"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("ParseTime(%q) should fail", s)
		}
	}
}

func TestMonthsBefore(t *testing.T) {
	ts := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	got := MonthsBefore(ts, 3)
	if want := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("MonthsBefore = %v, want %v", got, want)
	}
}
