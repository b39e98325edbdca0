package utils

import (
	"errors"
	"regexp"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDate = errors.New("Formato inválido, use YYYY-MM-DD")
	dateRe         = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Today returns the local calendar date.
func Today() string {
	return time.Now().Format(DateLayout)
}

// ResolveDate validates a YYYY-MM-DD query value. Empty means today.
func ResolveDate(raw string) (string, error) {
	if raw == "" {
		return Today(), nil
	}
	if !dateRe.MatchString(raw) {
		return "", ErrInvalidDate
	}
	if _, err := time.ParseInLocation(DateLayout, raw, time.Local); err != nil {
		return "", ErrInvalidDate
	}
	return raw, nil
}

// MonthBounds returns the first and last day of the month containing date.
func MonthBounds(date string) (string, string, string, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return "", "", "", ErrInvalidDate
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout), first.Format("2006-01"), nil
}
