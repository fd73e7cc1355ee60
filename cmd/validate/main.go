// Command validate checks a generated price map summary for internal
// consistency: metadata counts, one entry per product per city, catalog
// coverage, coordinate bounds, and the retention window. With -input it
// also rebuilds the summary from the snapshot at the recorded generation
// time and diffs the result.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -summary public/data/dane_sipsa_data.json \
//	  -input data/promediosSipsaCiudad.json \
//	  -show POPAYÁN,MONTERÍA
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	"github.com/couchcryptid/sipsa-price-map/internal/snapshot"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// Rough bounding box of Colombia including San Andrés.
const (
	minLat = -4.3
	maxLat = 13.6
	minLng = -82.0
	maxLng = -66.8
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	summaryPath := flag.String("summary", "public/data/dane_sipsa_data.json", "path to the generated summary")
	inputPath := flag.String("input", "", "optional snapshot to rebuild the summary from")
	windowDays := flag.Int("window-days", 0, "window used for the rebuild (default: the summary's window_days)")
	offset := flag.String("tz-offset", domain.DefaultFeedOffset, "feed timestamp offset")
	show := flag.String("show", "", "comma-separated cities whose coordinates and first products to print")
	flag.Parse()

	os.Exit(run(os.Stdout, *summaryPath, *inputPath, *windowDays, *offset, *show))
}

func run(out io.Writer, summaryPath, inputPath string, windowDays int, offset, show string) int {
	summary, err := snapshot.ReadSummary(summaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	parser, err := domain.NewTimeParser(offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== SIPSA Price Map Validation ===")
	fmt.Fprintln(out)

	phases := []*phase{
		validateCounts(summary),
		validateUniqueness(summary),
		validateCatalog(summary),
		validateCoordinates(summary),
		validateWindow(summary, parser),
	}
	if inputPath != "" {
		if windowDays <= 0 {
			windowDays = summary.Metadata.WindowDays
		}
		phases = append(phases, validateRebuild(summary, inputPath, domain.Selector{WindowDays: windowDays, Parser: parser}))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Summary: %d cities, %d products, %d price entries\n",
		len(summary.Cities), len(summary.Products), countEntries(summary))

	if show != "" {
		showCities(out, summary, strings.Split(show, ","))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func countEntries(s domain.Summary) int {
	n := 0
	for _, g := range s.Cities {
		n += len(g.Products)
	}
	return n
}

func validateCounts(s domain.Summary) *phase {
	p := &phase{name: "Metadata counts"}
	md := s.Metadata
	if md.TotalCities != len(s.Cities) {
		p.errorf("total_cities=%d, cities has %d entries", md.TotalCities, len(s.Cities))
	}
	if md.TotalProducts != len(s.Products) {
		p.errorf("total_products=%d, products has %d entries", md.TotalProducts, len(s.Products))
	}
	if n := countEntries(s); md.RecordsRetained != n {
		p.errorf("records_retained=%d, cities hold %d product entries", md.RecordsRetained, n)
	}
	if md.RecordsRetained > md.RecordsInWindow {
		p.errorf("records_retained=%d exceeds records_in_window=%d", md.RecordsRetained, md.RecordsInWindow)
	}
	if md.CoordinateMisses > len(s.Cities) {
		p.errorf("coordinate_misses=%d exceeds city count %d", md.CoordinateMisses, len(s.Cities))
	}
	if md.Source != domain.SourceTag {
		p.errorf("source=%q, want %q", md.Source, domain.SourceTag)
	}
	return p
}

func validateUniqueness(s domain.Summary) *phase {
	p := &phase{name: "One entry per product per city"}
	cities := make(map[string]bool, len(s.Cities))
	for _, g := range s.Cities {
		if g.City == "" {
			p.errorf("city group with empty name")
		}
		if cities[g.City] {
			p.errorf("city %s appears more than once", g.City)
		}
		cities[g.City] = true

		codes := make(map[int64]bool, len(g.Products))
		for _, prod := range g.Products {
			if codes[prod.Code] {
				p.errorf("%s: product %d appears more than once", g.City, prod.Code)
			}
			codes[prod.Code] = true
		}
	}
	return p
}

func validateCatalog(s domain.Summary) *phase {
	p := &phase{name: "Catalog coverage"}
	catalog := make(map[string]bool, len(s.Products))
	for _, c := range s.Products {
		if catalog[c.ID] {
			p.errorf("catalog id %s appears more than once", c.ID)
		}
		catalog[c.ID] = true
		if c.Category != domain.ProductCategory || c.Unit != domain.ProductUnit {
			p.errorf("catalog id %s: category=%q unit=%q", c.ID, c.Category, c.Unit)
		}
	}

	used := make(map[string]bool, len(catalog))
	for _, g := range s.Cities {
		for _, prod := range g.Products {
			id := strconv.FormatInt(prod.Code, 10)
			used[id] = true
			if !catalog[id] {
				p.errorf("%s: product %s missing from catalog", g.City, id)
			}
		}
	}
	for id := range catalog {
		if !used[id] {
			p.errorf("catalog id %s not offered in any city", id)
		}
	}
	return p
}

func validateCoordinates(s domain.Summary) *phase {
	p := &phase{name: "Coordinates within Colombia"}
	for _, g := range s.Cities {
		if g.IsZero() {
			p.errorf("%s: missing coordinate", g.City)
			continue
		}
		if g.Lat < minLat || g.Lat > maxLat || g.Lng < minLng || g.Lng > maxLng {
			p.errorf("%s: (%.4f, %.4f) outside bounds", g.City, g.Lat, g.Lng)
		}
	}
	return p
}

func validateWindow(s domain.Summary, parser domain.TimeParser) *phase {
	p := &phase{name: "Captures inside retention window"}
	cutoff := s.Metadata.Cutoff
	for _, g := range s.Cities {
		for _, prod := range g.Products {
			t, ok := parser.Parse(prod.CapturedAt)
			if !ok {
				// Unparseable captures are kept with the run time and are
				// never filtered.
				continue
			}
			if t.Before(cutoff) {
				p.errorf("%s: product %d captured %s before cutoff %s", g.City, prod.Code, prod.CapturedAt, cutoff)
			}
		}
	}
	return p
}

// validateRebuild reruns the pipeline against the snapshot with the clock
// frozen at the summary's generation time.
func validateRebuild(s domain.Summary, inputPath string, sel domain.Selector) *phase {
	p := &phase{name: "Rebuild from snapshot matches"}

	domain.SetClock(clockwork.NewFakeClockAt(s.Metadata.GeneratedAt))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pl := pipeline.New(snapshot.Source{Path: inputPath}, sel, domain.NewResolver(nil, nil, logger), nil, logger, observability.NewMetricsForTesting())

	rebuilt, err := pl.Run(context.Background())
	if err != nil {
		p.errorf("rebuild failed: %v", err)
		return p
	}

	// Geocoded coordinates depend on an external service; compare names only.
	names := func(gs []domain.CityGroup) []string {
		out := make([]string, len(gs))
		for i, g := range gs {
			out[i] = g.City
		}
		return out
	}
	if diff := cmp.Diff(names(s.Cities), names(rebuilt.Cities)); diff != "" {
		p.errorf("city list differs (-summary +rebuilt):\n%s", diff)
	}
	if diff := cmp.Diff(s.Products, rebuilt.Products); diff != "" {
		p.errorf("catalog differs (-summary +rebuilt):\n%s", diff)
	}

	rebuiltByCity := make(map[string]domain.CityGroup, len(rebuilt.Cities))
	for _, g := range rebuilt.Cities {
		rebuiltByCity[g.City] = g
	}
	for _, g := range s.Cities {
		r, ok := rebuiltByCity[g.City]
		if !ok {
			continue
		}
		if diff := cmp.Diff(g.Products, r.Products); diff != "" {
			p.errorf("%s products differ (-summary +rebuilt):\n%s", g.City, diff)
		}
	}
	return p
}

func showCities(out io.Writer, s domain.Summary, names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[domain.NormalizeCity(n)] = true
	}
	fmt.Fprintln(out)
	for _, g := range s.Cities {
		if !want[g.City] {
			continue
		}
		fmt.Fprintf(out, "%s: lat=%v, lng=%v, %d products\n", g.City, g.Lat, g.Lng, len(g.Products))
		for i, prod := range g.Products[:min(3, len(g.Products))] {
			fmt.Fprintf(out, "  %d. %s (ID: %d)\n", i+1, prod.Name, prod.Code)
		}
	}
}
