package http

import (
	"net/http"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type pricesQuery struct {
	Product string `validate:"omitempty,number,max=18"`
}

type cityResponse struct {
	City     string  `json:"city"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Products int     `json:"products"`
}

// latest writes a 503 and returns false when no summary has been built yet.
func (s *Server) latest(w http.ResponseWriter) (domain.Summary, bool) {
	summary, err := s.summaries.Latest()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return domain.Summary{}, false
	}
	return summary, true
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	summary, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary.Products)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	q := pricesQuery{Product: r.URL.Query().Get("product")}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "product must be a numeric product code")
		return
	}

	summary, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary.PricePoints(q.Product))
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	summary, ok := s.latest(w)
	if !ok {
		return
	}
	cities := make([]cityResponse, len(summary.Cities))
	for i, g := range summary.Cities {
		cities[i] = cityResponse{City: g.City, Lat: g.Lat, Lng: g.Lng, Products: len(g.Products)}
	}
	writeJSON(w, http.StatusOK, cities)
}
