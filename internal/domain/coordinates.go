package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultCity is the capital; its coordinate is used when a city cannot be located.
const DefaultCity = "BOGOTÁ"

// GeocodeCountry is appended to forward geocoding queries.
const GeocodeCountry = "Colombia"

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// IsZero reports whether the coordinate is unset.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Resolution describes how a city's coordinate was obtained.
type Resolution string

const (
	ResolvedTable    Resolution = "table"
	ResolvedGeocoded Resolution = "geocoded"
	ResolvedDefault  Resolution = "default"
)

// Miss reports whether the city was absent from the coordinate table.
func (r Resolution) Miss() bool {
	return r != ResolvedTable
}

// defaultCities holds departmental capitals and other SIPSA market cities.
var defaultCities = map[string]Coordinate{
	"BOGOTÁ":                {Lat: 4.7110, Lng: -74.0721},
	"MEDELLÍN":              {Lat: 6.2442, Lng: -75.5812},
	"CALI":                  {Lat: 3.4516, Lng: -76.5320},
	"BARRANQUILLA":          {Lat: 10.9685, Lng: -74.7813},
	"CARTAGENA":             {Lat: 10.3910, Lng: -75.4794},
	"CÚCUTA":                {Lat: 7.8939, Lng: -72.5078},
	"BUCARAMANGA":           {Lat: 7.1193, Lng: -73.1227},
	"PEREIRA":               {Lat: 4.8087, Lng: -75.6906},
	"SANTA MARTA":           {Lat: 11.2408, Lng: -74.2120},
	"IBAGUÉ":                {Lat: 4.4389, Lng: -75.2322},
	"PASTO":                 {Lat: 1.2136, Lng: -77.2811},
	"MANIZALES":             {Lat: 5.0703, Lng: -75.5138},
	"NEIVA":                 {Lat: 2.9273, Lng: -75.2819},
	"VILLAVICENCIO":         {Lat: 4.1420, Lng: -73.6266},
	"ARMENIA":               {Lat: 4.5339, Lng: -75.6811},
	"VALLEDUPAR":            {Lat: 10.4631, Lng: -73.2532},
	"MONTERÍA":              {Lat: 8.7479, Lng: -75.8814},
	"SINCELEJO":             {Lat: 9.3047, Lng: -75.3978},
	"FLORENCIA":             {Lat: 1.6144, Lng: -75.6062},
	"POPAYÁN":               {Lat: 2.4448, Lng: -76.6147},
	"TUNJA":                 {Lat: 5.5353, Lng: -73.3678},
	"QUIBDÓ":                {Lat: 5.6947, Lng: -76.6582},
	"ARAUCA":                {Lat: 7.0906, Lng: -70.7574},
	"YOPAL":                 {Lat: 5.3478, Lng: -72.3959},
	"RIOHACHA":              {Lat: 11.5444, Lng: -72.9072},
	"INÍRIDA":               {Lat: 3.8653, Lng: -67.9239},
	"SAN JOSÉ DEL GUAVIARE": {Lat: 2.5649, Lng: -72.6459},
	"MITÚ":                  {Lat: 1.2518, Lng: -70.2340},
	"PUERTO CARREÑO":        {Lat: 6.1889, Lng: -67.4862},
	"LETICIA":               {Lat: -4.2151, Lng: -69.9406},
	"SAN ANDRÉS":            {Lat: 12.5848, Lng: -81.7006},
}

// defaultAliases maps alternate official names to their table entry.
var defaultAliases = map[string]string{
	"SAN JOSÉ DE CÚCUTA":  "CÚCUTA",
	"CARTAGENA DE INDIAS": "CARTAGENA",
}

// CoordinateTable maps canonical city names, and aliases of them, to coordinates.
type CoordinateTable struct {
	cities  map[string]Coordinate
	aliases map[string]string
}

// NewCoordinateTable returns a table seeded with the built-in cities and aliases.
func NewCoordinateTable() *CoordinateTable {
	t := &CoordinateTable{
		cities:  make(map[string]Coordinate, len(defaultCities)),
		aliases: make(map[string]string, len(defaultAliases)),
	}
	for city, c := range defaultCities {
		t.cities[city] = c
	}
	for alias, city := range defaultAliases {
		t.aliases[alias] = city
	}
	return t
}

// Set adds or replaces a city. The name is normalized first.
func (t *CoordinateTable) Set(city string, c Coordinate) {
	t.cities[NormalizeCity(city)] = c
}

// SetAlias maps alias to an existing table city.
func (t *CoordinateTable) SetAlias(alias, city string) error {
	target := NormalizeCity(city)
	if _, ok := t.cities[target]; !ok {
		return fmt.Errorf("alias %q: unknown city %q", alias, city)
	}
	t.aliases[NormalizeCity(alias)] = target
	return nil
}

// Lookup returns the coordinate for a canonical city or one of its aliases.
func (t *CoordinateTable) Lookup(city string) (Coordinate, bool) {
	if c, ok := t.cities[city]; ok {
		return c, true
	}
	if target, ok := t.aliases[city]; ok {
		c, ok := t.cities[target]
		return c, ok
	}
	return Coordinate{}, false
}

// Default returns the fallback coordinate.
func (t *CoordinateTable) Default() Coordinate {
	return t.cities[DefaultCity]
}

// Len returns the number of cities, not counting aliases.
func (t *CoordinateTable) Len() int {
	return len(t.cities)
}

// Resolver resolves canonical cities through the table, an optional
// geocoder for table misses, and finally the default city.
type Resolver struct {
	table    *CoordinateTable
	geocoder Geocoder
	logger   *slog.Logger
}

// NewResolver creates a Resolver. Pass a nil geocoder to disable geocoding.
func NewResolver(table *CoordinateTable, geocoder Geocoder, logger *slog.Logger) *Resolver {
	if table == nil {
		table = NewCoordinateTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{table: table, geocoder: geocoder, logger: logger}
}

// Resolve never fails; a miss falls back to the default city's coordinate.
func (r *Resolver) Resolve(ctx context.Context, city string) (Coordinate, Resolution) {
	if c, ok := r.table.Lookup(city); ok {
		return c, ResolvedTable
	}

	if r.geocoder != nil {
		result, err := r.geocoder.ForwardGeocode(ctx, city, GeocodeCountry)
		switch {
		case err != nil:
			r.logger.Warn("forward geocoding failed", "city", city, "error", err)
		case result.Lat != 0 || result.Lon != 0:
			r.logger.Info("city geocoded",
				"city", city,
				"lat", result.Lat,
				"lng", result.Lon,
				"place", result.FormattedAddress,
				"place_name", result.PlaceName,
				"relevance", result.Confidence,
			)
			return Coordinate{Lat: result.Lat, Lng: result.Lon}, ResolvedGeocoded
		}
	}

	r.logger.Warn("coordinates not found, using default city", "city", city, "default", DefaultCity)
	return r.table.Default(), ResolvedDefault
}
