package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultFeedOffset is the UTC offset SIPSA uses for capture timestamps
// (Colombia, no daylight saving).
const DefaultFeedOffset = "-05:00"

// captureLayouts are tried in order after fractional seconds and the feed
// offset suffix have been stripped.
var captureLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// fractionalRe matches the fractional part of a seconds field, e.g. ".000"
// in "00:00:00.000-05:00".
var fractionalRe = regexp.MustCompile(`(:\d{2})\.\d+`)

// TimeParser reads SIPSA capture timestamps. Naive timestamps are
// interpreted in the feed's fixed offset.
type TimeParser struct {
	suffix string
	loc    *time.Location
}

// DefaultTimeParser returns a parser for the standard SIPSA offset.
func DefaultTimeParser() TimeParser {
	p, _ := NewTimeParser(DefaultFeedOffset)
	return p
}

// NewTimeParser creates a parser for a feed offset of the form "±HH:MM".
func NewTimeParser(offset string) (TimeParser, error) {
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return TimeParser{}, fmt.Errorf("parse feed offset %q: %w", offset, err)
	}
	_, secs := t.Zone()
	return TimeParser{
		suffix: offset,
		loc:    time.FixedZone("UTC"+offset, secs),
	}, nil
}

// Location returns the zone naive timestamps are read in.
func (p TimeParser) Location() *time.Location {
	return p.loc
}

// Parse returns the capture time and whether any layout matched.
func (p TimeParser) Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = fractionalRe.ReplaceAllString(s, "$1")
	s = strings.TrimSuffix(s, p.suffix)

	for _, layout := range captureLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
