package proactive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is how often proactive messages may be sent.
type Frequency string

const (
	FrequencyHourly   Frequency = "hourly"
	FrequencyFewHours Frequency = "few_hours"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

var frequencies = []struct {
	f        Frequency
	label    string
	interval time.Duration
}{
	{FrequencyHourly, "Every hour", time.Hour},
	{FrequencyFewHours, "Every few hours", 3 * time.Hour},
	{FrequencyDaily, "Once daily", 24 * time.Hour},
	{FrequencyWeekly, "Weekly", 7 * 24 * time.Hour},
}

// Frequencies lists the tiers from most to least frequent.
func Frequencies() []Frequency {
	out := make([]Frequency, len(frequencies))
	for i, f := range frequencies {
		out[i] = f.f
	}
	return out
}

// Interval returns the minimum gap between two sends. Unknown tiers
// report false.
func (f Frequency) Interval() (time.Duration, bool) {
	for _, v := range frequencies {
		if v.f == f {
			return v.interval, true
		}
	}
	return 0, false
}

func (f Frequency) Label() string {
	for _, v := range frequencies {
		if v.f == f {
			return v.label
		}
	}
	return string(f)
}

func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := f.Interval(); !ok {
		return "", fmt.Errorf("proactive: unknown frequency %q (valid: hourly, few_hours, daily, weekly)", s)
	}
	return f, nil
}

// QuietHours is a local time-of-day window, "HH:MM" at both ends, which
// may wrap midnight.
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether t falls inside the window. Both ends are
// inclusive. A window with a malformed end is never quiet.
func (q QuietHours) Contains(t time.Time) bool {
	start, ok1 := minuteOfDay(q.Start)
	end, ok2 := minuteOfDay(q.End)
	if !ok1 || !ok2 {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now <= end
	}
	return now >= start || now <= end
}

// ValidClock reports whether s is a well-formed "HH:MM" time.
func ValidClock(s string) bool {
	_, ok := minuteOfDay(s)
	return ok
}

func minuteOfDay(s string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
