package proactive

import (
	"testing"
	"time"
)

func at(hh, mm int) time.Time {
	return time.Date(2024, 5, 10, hh, mm, 0, 0, time.Local)
}

func TestQuietHours_Contains(t *testing.T) {
	overnight := QuietHours{Start: "22:00", End: "08:00"}
	midday := QuietHours{Start: "12:00", End: "14:00"}

	tests := []struct {
		name string
		q    QuietHours
		t    time.Time
		want bool
	}{
		{"overnight late evening", overnight, at(23, 30), true},
		{"overnight small hours", overnight, at(3, 0), true},
		{"overnight noon", overnight, at(12, 0), false},
		{"overnight start inclusive", overnight, at(22, 0), true},
		{"overnight end inclusive", overnight, at(8, 0), true},
		{"overnight just after end", overnight, at(8, 1), false},
		{"overnight just before start", overnight, at(21, 59), false},
		{"same day inside", midday, at(13, 0), true},
		{"same day bounds", midday, at(14, 0), true},
		{"same day outside", midday, at(15, 0), false},
		{"malformed start", QuietHours{Start: "late", End: "08:00"}, at(3, 0), false},
		{"out of range", QuietHours{Start: "25:00", End: "08:00"}, at(3, 0), false},
		{"empty", QuietHours{}, at(0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestFrequency_Interval(t *testing.T) {
	tests := []struct {
		f    Frequency
		want time.Duration
	}{
		{FrequencyHourly, time.Hour},
		{FrequencyFewHours, 3 * time.Hour},
		{FrequencyDaily, 24 * time.Hour},
		{FrequencyWeekly, 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, ok := tt.f.Interval()
		if !ok || got != tt.want {
			t.Errorf("%s: got %s, %v", tt.f, got, ok)
		}
	}
	if _, ok := Frequency("monthly").Interval(); ok {
		t.Error("unknown frequency should not have an interval")
	}
}

func TestParseFrequency(t *testing.T) {
	if f, err := ParseFrequency(" Daily "); err != nil || f != FrequencyDaily {
		t.Errorf("got %q, %v", f, err)
	}
	if _, err := ParseFrequency("sometimes"); err == nil {
		t.Error("expected error")
	}
}

func TestValidClock(t *testing.T) {
	for s, want := range map[string]bool{
		"00:00": true, "23:59": true, "8:05": true,
		"24:00": false, "12:60": false, "noon": false, "": false,
	} {
		if got := ValidClock(s); got != want {
			t.Errorf("ValidClock(%q) = %v", s, got)
		}
	}
}

func TestTemplates(t *testing.T) {
	if len(Templates("sam")) == 0 || len(Templates("corporate")) == 0 {
		t.Fatal("built-in pools missing")
	}
	if Templates("custom_123")[0] != poolGeneral[0] {
		t.Error("unknown personas should use the general pool")
	}
	if Templates("sam")[0] == Templates("corporate")[0] {
		t.Error("sam and corporate should have distinct pools")
	}
}
