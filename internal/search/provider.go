// Package search turns free-text queries into transient placemarks.
package search

import (
	"context"

	"github.com/bwise1/lookaround/internal/model"
)

// Result is one place returned by a provider.
type Result = model.Place

// Provider runs a place search, biased to a region when bias is non-nil.
type Provider interface {
	Search(ctx context.Context, query string, bias *model.Region) ([]Result, error)
}

// ReverseGeocoder resolves a coordinate to the closest known place. A nil result with no
// error means nothing was found.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coord model.Coordinate) (*Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, query string, bias *model.Region) ([]Result, error)

func (f ProviderFunc) Search(ctx context.Context, query string, bias *model.Region) ([]Result, error) {
	return f(ctx, query, bias)
}
