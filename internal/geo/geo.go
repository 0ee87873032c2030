package geo

import (
	"context"
	"errors"

	"github.com/vbonduro/donormap/internal/domain"
)

// ErrPositionUnavailable is wrapped by every provider failure: denied,
// unknown, or not determined within the provider's bound.
var ErrPositionUnavailable = errors.New("position unavailable")

// DefaultCenter is where the map starts before any lookup succeeds.
var DefaultCenter = domain.Position{Latitude: 20.5937, Longitude: 78.9629}

// Provider answers a single-shot "where is the caller" lookup.
type Provider interface {
	CurrentPosition(ctx context.Context) (domain.Position, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (domain.Position, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (domain.Position, error) {
	return f(ctx)
}

// Static always reports the same position.
func Static(p domain.Position) Provider {
	return ProviderFunc(func(context.Context) (domain.Position, error) {
		return p, nil
	})
}

// Unavailable always fails.
func Unavailable() Provider {
	return ProviderFunc(func(context.Context) (domain.Position, error) {
		return domain.Position{}, ErrPositionUnavailable
	})
}

// Hint reports coordinates the browser resolved itself. It fails when the
// browser sent none or sent coordinates outside the valid ranges.
func Hint(p domain.Position, ok bool) Provider {
	return ProviderFunc(func(context.Context) (domain.Position, error) {
		if !ok || !p.Valid() {
			return domain.Position{}, ErrPositionUnavailable
		}
		return p, nil
	})
}

// First tries each provider in order and returns the first success. Nil
// providers are skipped.
func First(providers ...Provider) Provider {
	return ProviderFunc(func(ctx context.Context) (domain.Position, error) {
		errs := []error{ErrPositionUnavailable}
		for _, p := range providers {
			if p == nil {
				continue
			}
			pos, err := p.CurrentPosition(ctx)
			if err == nil {
				return pos, nil
			}
			errs = append(errs, err)
		}
		return domain.Position{}, errors.Join(errs...)
	})
}
