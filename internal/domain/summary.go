package domain

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"
)

const (
	ProductCategory   = "Mayorista"
	ProductUnit       = "kg"
	SourceTag         = "DANE SIPSA"
	SelectionStrategy = "latest capture per city/product within the retention window"
)

// ProductEntry is one product price in a city.
type ProductEntry struct {
	Code       int64   `json:"code"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	CapturedAt string  `json:"captured_at"`
	Unit       string  `json:"unit"`
}

// CityGroup holds every selected product price for one canonical city.
type CityGroup struct {
	City string `json:"city"`
	Coordinate
	Products []ProductEntry `json:"products"`
}

// CatalogEntry is one distinct product across all cities.
type CatalogEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

// Metadata describes how a Summary was produced.
type Metadata struct {
	GeneratedAt        time.Time `json:"generated_at"`
	Cutoff             time.Time `json:"cutoff"`
	WindowDays         int       `json:"window_days"`
	Strategy           string    `json:"strategy"`
	TotalCities        int       `json:"total_cities"`
	TotalProducts      int       `json:"total_products"`
	RecordsRetained    int       `json:"records_retained"`
	RecordsInWindow    int       `json:"records_in_window"`
	RecordsOutOfWindow int       `json:"records_out_of_window"`
	UnparseableDates   int       `json:"unparseable_dates"`
	CoordinateMisses   int       `json:"coordinate_misses"`
	Source             string    `json:"source"`
}

// Summary is the document consumed by the price map front end.
type Summary struct {
	Cities   []CityGroup    `json:"cities"`
	Products []CatalogEntry `json:"products"`
	Metadata Metadata       `json:"metadata"`
}

// CoordinateResolver maps a canonical city to a coordinate and never fails.
type CoordinateResolver interface {
	Resolve(ctx context.Context, city string) (Coordinate, Resolution)
}

// Builder accumulates selected records into city groups and a product
// catalog. A Builder serves a single run.
type Builder struct {
	resolver CoordinateResolver
	logger   *slog.Logger

	cities   []CityGroup
	byCity   map[string]int
	products []CatalogEntry
	byCode   map[int64]struct{}

	retained int
	misses   map[string]Resolution
}

// NewBuilder creates an empty Builder.
func NewBuilder(resolver CoordinateResolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		resolver: resolver,
		logger:   logger,
		byCity:   make(map[string]int),
		byCode:   make(map[int64]struct{}),
		misses:   make(map[string]Resolution),
	}
}

// Add appends one selected record. Records whose city normalizes to ""
// are skipped.
func (b *Builder) Add(ctx context.Context, rec Selected) {
	city := NormalizeCity(rec.RawCity)
	if city == "" {
		b.logger.Debug("skipping record without city", "product_code", rec.ProductCode)
		return
	}

	i, ok := b.byCity[city]
	if !ok {
		coord, res := b.resolver.Resolve(ctx, city)
		if res.Miss() {
			b.misses[city] = res
		}
		i = len(b.cities)
		b.byCity[city] = i
		b.cities = append(b.cities, CityGroup{City: city, Coordinate: coord, Products: []ProductEntry{}})
	}

	b.cities[i].Products = append(b.cities[i].Products, ProductEntry{
		Code:       rec.ProductCode,
		Name:       rec.ProductName,
		Price:      rec.AveragePrice,
		CapturedAt: rec.Observation.CapturedAt,
		Unit:       ProductUnit,
	})
	b.retained++

	if _, seen := b.byCode[rec.ProductCode]; !seen {
		b.byCode[rec.ProductCode] = struct{}{}
		b.products = append(b.products, CatalogEntry{
			ID:       strconv.FormatInt(rec.ProductCode, 10),
			Name:     rec.ProductName,
			Category: ProductCategory,
			Unit:     ProductUnit,
		})
	}
}

// Misses returns the cities that were not found in the coordinate table
// and how each was resolved.
func (b *Builder) Misses() map[string]Resolution {
	out := make(map[string]Resolution, len(b.misses))
	for city, res := range b.misses {
		out[city] = res
	}
	return out
}

// Build assembles the Summary. The returned value shares no memory with
// the Builder.
func (b *Builder) Build(sel Selection) Summary {
	cities := make([]CityGroup, len(b.cities))
	for i, g := range b.cities {
		g.Products = slices.Clone(g.Products)
		cities[i] = g
	}

	products := make([]CatalogEntry, len(b.products))
	copy(products, b.products)

	return Summary{
		Cities:   cities,
		Products: products,
		Metadata: Metadata{
			GeneratedAt:        sel.Now,
			Cutoff:             sel.Cutoff,
			WindowDays:         sel.WindowDays,
			Strategy:           SelectionStrategy,
			TotalCities:        len(cities),
			TotalProducts:      len(b.products),
			RecordsRetained:    b.retained,
			RecordsInWindow:    sel.Stats.InWindow,
			RecordsOutOfWindow: sel.Stats.OutOfWindow,
			UnparseableDates:   sel.Stats.Unparseable,
			CoordinateMisses:   len(b.misses),
			Source:             SourceTag,
		},
	}
}

// BuildSummary groups a Selection into a Summary in selection order.
func BuildSummary(ctx context.Context, sel Selection, resolver CoordinateResolver, logger *slog.Logger) Summary {
	b := NewBuilder(resolver, logger)
	for _, rec := range sel.Records {
		b.Add(ctx, rec)
	}
	return b.Build(sel)
}

// PricePoint is a flattened city/product price used by query endpoints.
type PricePoint struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	City        string  `json:"city"`
	Market      string  `json:"market"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Date        string  `json:"date"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// PricePoints flattens the summary. An empty productID returns every
// price; otherwise only that product's prices are returned.
func (s Summary) PricePoints(productID string) []PricePoint {
	points := []PricePoint{}
	for _, city := range s.Cities {
		for _, p := range city.Products {
			id := strconv.FormatInt(p.Code, 10)
			if productID != "" && id != productID {
				continue
			}
			points = append(points, PricePoint{
				ProductID:   id,
				ProductName: p.Name,
				City:        city.City,
				Market:      ProductCategory,
				Price:       p.Price,
				Unit:        p.Unit,
				Date:        p.CapturedAt,
				Lat:         city.Lat,
				Lng:         city.Lng,
			})
		}
	}
	return points
}
