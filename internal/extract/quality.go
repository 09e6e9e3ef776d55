package extract

import (
	"strings"
	"time"
)

// Conventional publication hour assumed for date-only values.
const dateOnlyHourUTC = 12

// parseDate interprets an extracted date string: RFC3339 first, then
// date-only with a conventional daytime hour in UTC, otherwise nil.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := t.UTC()
		return &utc
	}

	if t, err := time.Parse("2006-01-02", raw); err == nil {
		at := time.Date(t.Year(), t.Month(), t.Day(), dateOnlyHourUTC, 0, 0, 0, time.UTC)
		return &at
	}

	return nil
}

// scoreQuality rates an article on structural completeness. The score
// starts at 0.5 and is clamped to [0,1].
func scoreQuality(title, text, author, description string, published *time.Time) float64 {
	score := 0.5

	if author != "" {
		score += 0.15
	}
	if published != nil {
		score += 0.15
	}
	if description != "" {
		score += 0.10
	}

	length := len(text)
	switch {
	case length >= 1000 && length <= 8000:
		score += 0.20
	case length >= 500 && length <= 15000:
		score += 0.10
	case length < minTextLength:
		score -= 0.20
	}

	if titleLen := len(title); titleLen >= 20 && titleLen <= 150 {
		score += 0.10
	}

	if strings.Count(text, "\n") >= 4 {
		score += 0.05
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
