// Package window restricts ingested rows to a trailing time window for non-administrative callers.
package window

import (
	"errors"
	"time"
)

// DefaultDays is the window applied when none is configured.
const DefaultDays = 7

var ErrNoRowsInWindow = errors.New("no rows within window")

// Filter keeps the items dated on or after the start of the day `days` days before now. Items without a
// date are dropped.
// An empty result yields ErrNoRowsInWindow.
func Filter[T any](items []T, dateOf func(T) (time.Time, bool), now time.Time, days int) ([]T, error) {
	if days <= 0 {
		days = DefaultDays
	}
	start := now.AddDate(0, 0, -days)
	cutoff := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	kept := make([]T, 0, len(items))
	for _, item := range items {
		d, ok := dateOf(item)
		if !ok || d.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}

	if len(kept) == 0 {
		return nil, ErrNoRowsInWindow
	}
	return kept, nil
}

// FirstDate returns the first available date among candidate extractors.
func FirstDate[T any](extractors ...func(T) (time.Time, bool)) func(T) (time.Time, bool) {
	return func(item T) (time.Time, bool) {
		for _, ex := range extractors {
			if d, ok := ex(item); ok {
				return d, true
			}
		}
		return time.Time{}, false
	}
}

// Pointer adapts an optional date field to a date extractor.
func Pointer[T any](field func(T) *time.Time) func(T) (time.Time, bool) {
	return func(item T) (time.Time, bool) {
		p := field(item)
		if p == nil {
			return time.Time{}, false
		}
		return *p, true
	}
}
