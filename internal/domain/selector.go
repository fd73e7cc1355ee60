package domain

import "time"

// DefaultWindowDays is the retention window used by the price map.
const DefaultWindowDays = 90

// SelectionKey identifies one output slot: a product in a city.
type SelectionKey struct {
	City        string
	ProductCode int64
}

// Selected is an observation that survived selection, annotated with its
// canonical city and parsed capture time.
type Selected struct {
	Observation
	City       string
	CapturedAt time.Time
	// DateSubstituted is set when the raw timestamp could not be parsed and
	// the run's "now" was used instead.
	DateSubstituted bool
}

// Key returns the record's selection key.
func (s Selected) Key() SelectionKey {
	return SelectionKey{City: s.City, ProductCode: s.ProductCode}
}

// SelectionStats counts what happened to the input during selection.
type SelectionStats struct {
	Read        int
	InWindow    int
	OutOfWindow int
	Unparseable int // records whose capture time was substituted with now
	Unkeyed     int // in-window records missing a city or product code
}

// Selection is the result of one Select pass.
type Selection struct {
	Records    []Selected
	Stats      SelectionStats
	Now        time.Time
	Cutoff     time.Time
	WindowDays int
}

// Selector keeps the most recent observation per SelectionKey inside a
// trailing window.
type Selector struct {
	WindowDays int
	Parser     TimeParser
}

// Select runs a Selector with the default time parser.
func Select(observations []Observation, windowDays int, now time.Time) Selection {
	return Selector{WindowDays: windowDays, Parser: DefaultTimeParser()}.Select(observations, now)
}

// Select filters observations to [now - WindowDays, ∞) and reduces each
// SelectionKey to its latest capture. Exact ties keep the record seen first.
// Records come back grouped by city in first-seen order, and within a city
// by product in first-seen order.
func (s Selector) Select(observations []Observation, now time.Time) Selection {
	parser := s.Parser
	if parser.loc == nil {
		parser = DefaultTimeParser()
	}

	sel := Selection{
		Now:        now,
		Cutoff:     now.AddDate(0, 0, -s.WindowDays),
		WindowDays: s.WindowDays,
	}
	sel.Stats.Read = len(observations)

	var (
		records   []Selected
		index     = make(map[SelectionKey]int)
		cityOrder []string
		cityKeys  = make(map[string][]int)
	)

	for _, obs := range observations {
		capturedAt, ok := parser.Parse(obs.CapturedAt)
		if !ok {
			capturedAt = now
			sel.Stats.Unparseable++
		}
		if capturedAt.Before(sel.Cutoff) {
			sel.Stats.OutOfWindow++
			continue
		}
		sel.Stats.InWindow++

		rec := Selected{
			Observation:     obs,
			City:            NormalizeCity(obs.RawCity),
			CapturedAt:      capturedAt,
			DateSubstituted: !ok,
		}
		if rec.City == "" || rec.ProductCode == 0 {
			sel.Stats.Unkeyed++
			continue
		}

		key := rec.Key()
		if i, seen := index[key]; seen {
			if rec.CapturedAt.After(records[i].CapturedAt) {
				records[i] = rec
			}
			continue
		}

		index[key] = len(records)
		if _, seen := cityKeys[rec.City]; !seen {
			cityOrder = append(cityOrder, rec.City)
		}
		cityKeys[rec.City] = append(cityKeys[rec.City], len(records))
		records = append(records, rec)
	}

	sel.Records = make([]Selected, 0, len(records))
	for _, city := range cityOrder {
		for _, i := range cityKeys[city] {
			sel.Records = append(sel.Records, records[i])
		}
	}
	return sel
}
