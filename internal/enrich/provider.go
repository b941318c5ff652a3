package enrich

import (
	"context"
	"errors"
	"fmt"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
)

// ErrNoMatch is returned by a Provider that answered but had nothing for the query.
var ErrNoMatch = errors.New("no match")

// Provider is an external nutrition source.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, query, locale string) (*models.EnrichedFood, error)
}

// Chain tries providers in order and returns the first result with macros.
type Chain []Provider

func (c Chain) Name() string { return "chain" }

func (c Chain) Lookup(ctx context.Context, query, locale string) (*models.EnrichedFood, error) {
	if len(c) == 0 {
		return nil, ErrNoMatch
	}
	var errs []error
	for _, p := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		food, err := p.Lookup(ctx, query, locale)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if food == nil || !food.Per100g.HasMacros() {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrNoMatch))
			continue
		}
		return food, nil
	}
	return nil, errors.Join(errs...)
}

// ProvidersFromConfig builds the provider chain: Edamam when credentials are
// set, then the completion gateway when it has a URL.
func ProvidersFromConfig(cfg config.Config) Chain {
	var chain Chain
	if cfg.Edamam.AppID != "" && cfg.Edamam.AppKey != "" {
		chain = append(chain, NewEdamamProvider(cfg.Edamam, cfg.Enrichment))
	}
	if cfg.Gateway.URL != "" {
		chain = append(chain, NewGatewayProvider(cfg.Gateway, cfg.Enrichment))
	}
	return chain
}
