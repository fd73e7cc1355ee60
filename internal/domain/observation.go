package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Observation is one row of the SIPSA city-average feed, resolved from the
// producer's field naming into typed values.
type Observation struct {
	ProductCode  int64
	ProductName  string
	AveragePrice float64
	CapturedAt   string // raw capture timestamp as emitted by the producer
	RawCity      string // city name before normalization, e.g. "MEDELLÍN, ANTIOQUIA"
}

// FieldAliases lists, per logical field, the keys producers use for it in
// preference order.
var FieldAliases = struct {
	CapturedAt   []string
	City         []string
	ProductCode  []string
	ProductName  []string
	AveragePrice []string
}{
	CapturedAt:   []string{"FechaCaptura", "fechaCaptura"},
	City:         []string{"NombreCiudad", "ciudad"},
	ProductCode:  []string{"CodigoProducto", "codProducto"},
	ProductName:  []string{"NombreProducto", "producto"},
	AveragePrice: []string{"PrecioPromedio", "precioPromedio"},
}

// ParseObservation resolves a raw feed object into an Observation. Lookups
// are best effort: a missing or mistyped field yields its zero value.
func ParseObservation(fields map[string]json.RawMessage) Observation {
	return Observation{
		ProductCode:  parseCode(lookupField(fields, FieldAliases.ProductCode)),
		ProductName:  parseText(lookupField(fields, FieldAliases.ProductName)),
		AveragePrice: parseNumber(lookupField(fields, FieldAliases.AveragePrice)),
		CapturedAt:   parseText(lookupField(fields, FieldAliases.CapturedAt)),
		RawCity:      parseText(lookupField(fields, FieldAliases.City)),
	}
}

// lookupField returns the value of the first alias present in fields.
// A key holding JSON null counts as absent.
func lookupField(fields map[string]json.RawMessage, aliases []string) json.RawMessage {
	for _, key := range aliases {
		v, ok := fields[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		return v
	}
	return nil
}

// parseText reads a JSON string. Numbers and booleans are kept in their
// literal form; objects and arrays yield "".
func parseText(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return string(v)
	}
}

// parseNumber reads a JSON number or a numeric string, returning 0 on failure.
func parseNumber(v json.RawMessage) float64 {
	s := strings.TrimSpace(parseText(v))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseCode reads an integer-like product code. Fractional codes are not
// integer-like and yield 0, which marks the record as unkeyed.
func parseCode(v json.RawMessage) int64 {
	s := strings.TrimSpace(parseText(v))
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f := parseNumber(v)
	if f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}
