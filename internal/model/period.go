package model

import (
	"fmt"
	"time"
)

// periodLayout is the time layout of a period key.
const periodLayout = "2006-01"

// PeriodKey returns the period key for the calendar month containing t,
// evaluated in t's location.
func PeriodKey(t time.Time) string {
	return t.Format(periodLayout)
}

// ParsePeriodKey validates a period key and returns the first instant of
// the month in UTC.
func ParsePeriodKey(key string) (time.Time, error) {
	t, err := time.Parse(periodLayout, key)
	if err != nil || t.Format(periodLayout) != key {
		return time.Time{}, fmt.Errorf("invalid period key %q: want YYYY-MM", key)
	}
	return t, nil
}

// PreviousPeriod returns the period key of the month before key.
func PreviousPeriod(key string) (string, error) {
	t, err := ParsePeriodKey(key)
	if err != nil {
		return "", err
	}
	return PeriodKey(t.AddDate(0, -1, 0)), nil
}
