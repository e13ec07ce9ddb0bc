package services

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Date presets of the results filter bar
const (
	PresetWeek    = "7d"
	PresetMonth   = "30d"
	PresetQuarter = "3m"
	PresetYear    = "year"
	PresetAll     = "all"
)

// PresetRange returns the window for preset ending at now. PresetAll and an
// empty preset are unbounded.
func PresetRange(preset string, now time.Time) (from, to *time.Time, err error) {
	var start time.Time
	switch preset {
	case "", PresetAll:
		return nil, nil, nil
	case PresetWeek:
		start = now.AddDate(0, 0, -7)
	case PresetMonth:
		start = now.AddDate(0, 0, -30)
	case PresetQuarter:
		start = now.AddDate(0, -3, 0)
	case PresetYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return nil, nil, BadRequest("Période inconnue")
	}
	end := now
	return &start, &end, nil
}

// ParseDateRange reads optional startDate/endDate query values: plain dates
// or any timestamp dateparse understands. A plain end date covers its whole day.
func ParseDateRange(start, end string, loc *time.Location) (from, to *time.Time, err error) {
	if s := strings.TrimSpace(start); s != "" {
		t, _, err := parseDate(s, loc)
		if err != nil {
			return nil, nil, BadRequest("Date de début invalide")
		}
		from = &t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, dateOnly, err := parseDate(s, loc)
		if err != nil {
			return nil, nil, BadRequest("Date de fin invalide")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, BadRequest("La date de début doit précéder la date de fin")
	}
	return from, to, nil
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true, nil
	}
	t, err := dateparse.ParseIn(s, loc)
	return t, false, err
}
