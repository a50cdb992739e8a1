// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// BeginningOfMonth truncates t to the first instant of its calendar month.
func BeginningOfMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from start to end. Negative when end is before start.
func DaysBetween(start, end time.Time) int {
	start = BeginningOfDay(start.UTC())
	end = BeginningOfDay(end.UTC())
	return int(end.Sub(start).Hours() / 24)
}

// ParseDate accepts a plain ISO date or a full RFC3339 timestamp and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
