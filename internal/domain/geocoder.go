package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0 to 1
}

// Geocoder resolves place names the static coordinate table does not know.
type Geocoder interface {
	// ForwardGeocode converts a city name and country to coordinates.
	ForwardGeocode(ctx context.Context, name, country string) (GeocodingResult, error)
}
