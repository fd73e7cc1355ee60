package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
)

// sampleProducts is how many catalog entries are logged after each run.
const sampleProducts = 15

// transform selects the latest in-window observations and groups them into
// a summary, recording diagnostics along the way.
func (p *Pipeline) transform(ctx context.Context, observations []domain.Observation, now time.Time) domain.Summary {
	sel := p.selector.Select(observations, now)
	p.recordSelection(sel)

	b := domain.NewBuilder(p.resolver, p.logger)
	for _, rec := range sel.Records {
		b.Add(ctx, rec)
	}
	summary := b.Build(sel)

	for city, res := range b.Misses() {
		p.metrics.CoordinateMisses.WithLabelValues(string(res)).Inc()
		p.logger.Debug("coordinate miss", "city", city, "resolution", string(res))
	}
	p.recordSummary(summary)
	return summary
}

func (p *Pipeline) recordSelection(sel domain.Selection) {
	p.metrics.RecordsRead.Add(float64(sel.Stats.Read))
	p.metrics.RecordsOutOfWindow.Add(float64(sel.Stats.OutOfWindow))
	p.metrics.UnparseableDates.Add(float64(sel.Stats.Unparseable))
	p.metrics.UnkeyedRecords.Add(float64(sel.Stats.Unkeyed))

	p.logger.Info("records selected",
		"read", sel.Stats.Read,
		"in_window", sel.Stats.InWindow,
		"out_of_window", sel.Stats.OutOfWindow,
		"unparseable_dates", sel.Stats.Unparseable,
		"unkeyed", sel.Stats.Unkeyed,
		"retained", len(sel.Records),
		"cutoff", sel.Cutoff.Format(time.RFC3339),
		"window_days", sel.WindowDays,
	)
}

func (p *Pipeline) recordSummary(summary domain.Summary) {
	p.metrics.RecordsRetained.Set(float64(summary.Metadata.RecordsRetained))
	p.metrics.CitiesPublished.Set(float64(summary.Metadata.TotalCities))
	p.metrics.ProductsPublished.Set(float64(summary.Metadata.TotalProducts))

	for _, city := range summary.Cities {
		p.logger.Debug("city products", "city", city.City, "products", len(city.Products))
	}

	n := min(sampleProducts, len(summary.Products))
	sample := make([]string, n)
	for i, prod := range summary.Products[:n] {
		sample[i] = prod.Name
	}
	p.logger.Info("summary built",
		"cities", summary.Metadata.TotalCities,
		"products", summary.Metadata.TotalProducts,
		"coordinate_misses", summary.Metadata.CoordinateMisses,
		"product_sample", sample,
	)
}
