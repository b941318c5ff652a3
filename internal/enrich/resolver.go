// Package enrich resolves a food query to a per-100 g nutrient profile from
// curated tables, external providers, or whole-food estimates.
package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
	"mcp-food-score/internal/nutrients"
)

// ErrUnresolved means no source could produce nutrition for the request.
var ErrUnresolved = errors.New("enrich: unresolved")

const (
	genericConfidence   = 0.8
	estimatedConfidence = 0.7
	defaultEstimateG    = 100
)

// Vault receives write-through copies of paid provider results.
type Vault interface {
	PutVaultItem(ctx context.Context, item models.VaultItem) error
}

// Request is one enrichment lookup.
type Request struct {
	Query     string                   `json:"query"`
	Locale    string                   `json:"locale,omitempty"`
	Candidate *models.GenericCandidate `json:"candidate,omitempty"`
	Source    models.Source            `json:"source,omitempty"`
	// EstimatedGrams sizes the per-serving estimate for photo items. Default 100.
	EstimatedGrams float64 `json:"estimated_grams,omitempty"`
}

// Resolver runs the enrichment fallback chain.
type Resolver struct {
	logger   *zap.Logger
	provider Provider
	vault    Vault

	region  string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	writeSem *semaphore.Weighted
	wg       sync.WaitGroup
}

type Option func(*Resolver)

// WithWriteThrough bounds vault writes: at most concurrency in flight, each
// limited to timeout. Writes beyond the bound are dropped.
func WithWriteThrough(concurrency int, timeout time.Duration) Option {
	return func(r *Resolver) {
		if concurrency > 0 {
			r.writeSem = semaphore.NewWeighted(int64(concurrency))
		}
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func WithVaultTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRegion(region string) Option {
	return func(r *Resolver) { r.region = region }
}

func withClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a Resolver. provider and vault may be nil.
func NewResolver(logger *zap.Logger, provider Provider, vault Vault, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		logger:   logger,
		provider: provider,
		vault:    vault,
		region:   "US",
		ttl:      30 * 24 * time.Hour,
		timeout:  10 * time.Second,
		now:      time.Now,
		writeSem: semaphore.NewWeighted(8),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enrich resolves req in order: generic candidate, external provider (when
// flags allow), whole-food estimate for photo items. It returns ErrUnresolved
// when nothing matched; provider failures are logged and never returned.
func (r *Resolver) Enrich(ctx context.Context, req Request, flags config.Flags) (*models.EnrichedFood, error) {
	query := strings.TrimSpace(req.Query)

	if food, ok := r.fromGeneric(req.Candidate); ok {
		r.logger.Debug("enrich.generic_hit",
			zap.String("slug", req.Candidate.Slug),
			zap.String("canonical_key", string(req.Candidate.CanonicalKey)))
		return food, nil
	}

	if flags.ExternalEnrichment && r.provider != nil && query != "" {
		food, err := r.provider.Lookup(ctx, query, req.Locale)
		switch {
		case err == nil:
			r.logger.Info("enrich.provider_hit",
				zap.String("query", query),
				zap.String("source", string(food.Source)),
				zap.Float64("confidence", food.Confidence))
			if flags.WriteThrough && food.Source.Paid() {
				r.writeThrough(ctx, food)
			}
			return food, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			r.logger.Warn("enrich.provider_error", zap.String("query", query), zap.Error(err))
		}
	}

	if req.Source == models.SourcePhotoItem {
		if food, ok := estimate(query, req.EstimatedGrams); ok {
			r.logger.Debug("enrich.estimated", zap.String("query", query), zap.String("match", food.SourceID))
			return food, nil
		}
	}

	return nil, ErrUnresolved
}

func (r *Resolver) fromGeneric(c *models.GenericCandidate) (*models.EnrichedFood, bool) {
	if c == nil || !c.IsGeneric {
		return nil, false
	}
	name, per100g, key, ok := GenericFood(c.Slug)
	if !ok {
		return nil, false
	}
	if c.Name != "" {
		name = c.Name
	}
	if c.CanonicalKey != "" {
		key = c.CanonicalKey
	}
	if key == "" {
		key, _ = CanonicalKeyFor(name)
	}

	food := &models.EnrichedFood{
		Name:       name,
		Aliases:    append([]string(nil), genericFoods[normalizeSlug(c.Slug)].Aliases...),
		Per100g:    per100g,
		Source:     models.EnrichGeneric,
		SourceID:   normalizeSlug(c.Slug),
		Confidence: genericConfidence,
	}
	if _, ingredients, ok := CanonicalPerGram(key); ok {
		food.Ingredients = ingredients
	}
	return food, true
}

func estimate(name string, grams float64) (*models.EnrichedFood, bool) {
	match, per100g, ok := MatchWholeFood(name)
	if !ok {
		return nil, false
	}
	if grams <= 0 {
		grams = defaultEstimateG
	}
	serving := nutrients.ForPortion(nutrients.ToPerGram(per100g), grams)
	return &models.EnrichedFood{
		Name:       name,
		Per100g:    per100g,
		PerServing: &serving,
		Source:     models.EnrichEstimated,
		SourceID:   match,
		Confidence: estimatedConfidence,
	}, true
}

// FillMissing gives a detected item without macros the whole-food estimate
// for its name. It reports whether the item was changed.
func (r *Resolver) FillMissing(item *models.DetectedItem) bool {
	if item == nil || item.Per100g.HasMacros() {
		return false
	}
	match, per100g, ok := MatchWholeFood(item.Name)
	if !ok {
		return false
	}
	item.Per100g = per100g
	item.Estimated = true
	r.logger.Debug("enrich.fill_missing", zap.String("name", item.Name), zap.String("match", match))
	return true
}

// writeThrough copies food into the vault in the background. The caller's
// result never depends on it.
func (r *Resolver) writeThrough(ctx context.Context, food *models.EnrichedFood) {
	if r.vault == nil {
		return
	}
	if !r.writeSem.TryAcquire(1) {
		r.logger.Warn("vault.write_through_dropped", zap.String("name", food.Name))
		return
	}

	now := r.now().UTC()
	item := models.VaultItem{
		Provider:    food.Source,
		ProviderRef: food.SourceID,
		Name:        food.Name,
		Per100g:     food.Per100g,
		Ingredients: append([]string(nil), food.Ingredients...),
		Confidence:  food.Confidence,
		Region:      r.region,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
	}
	if item.ProviderRef == "" {
		item.ProviderRef = strings.ToLower(strings.TrimSpace(food.Name))
	}
	item.CanonicalKey, _ = CanonicalKeyFor(food.Name)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.writeSem.Release(1)

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := r.vault.PutVaultItem(wctx, item); err != nil {
			r.logger.Warn("vault.write_through_failed",
				zap.String("provider", string(item.Provider)),
				zap.String("provider_ref", item.ProviderRef),
				zap.Error(err))
			return
		}
		r.logger.Debug("vault.write_through_ok",
			zap.String("provider", string(item.Provider)),
			zap.String("provider_ref", item.ProviderRef))
	}()
}

// Wait blocks until in-flight vault writes finish.
func (r *Resolver) Wait() {
	r.wg.Wait()
}
