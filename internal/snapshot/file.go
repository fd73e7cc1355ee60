package snapshot

import (
	"context"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
)

// Source reads observations from a snapshot file. It implements pipeline.Extractor.
type Source struct {
	Path string
}

func (s Source) Extract(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.Path)
}

// Sink writes summaries to a file. It implements pipeline.Loader.
type Sink struct {
	Path string
}

func (s Sink) Load(ctx context.Context, summary domain.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFile(s.Path, summary)
}
