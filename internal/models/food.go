package models

import (
	"time"
)

// Basis tags what quantity of food a NutrientProfile describes.
type Basis string

const (
	BasisPer100g    Basis = "per100g"
	BasisPerServing Basis = "perServing"
	BasisPerGram    Basis = "perGram"
)

// NutrientProfile holds nutrient amounts on the basis named by Basis.
// A zero field means "unknown or none"; scoring treats both the same.
type NutrientProfile struct {
	Calories      float64 `json:"calories"`
	ProteinG      float64 `json:"protein_g"`
	CarbsG        float64 `json:"carbs_g"`
	FatG          float64 `json:"fat_g"`
	FiberG        float64 `json:"fiber_g"`
	SugarG        float64 `json:"sugar_g"`
	SodiumMg      float64 `json:"sodium_mg"`
	SaturatedFatG float64 `json:"saturated_fat_g"`

	Basis        Basis   `json:"basis,omitempty"`
	ServingGrams float64 `json:"serving_grams,omitempty"`
}

// Scale returns a copy with every nutrient multiplied by factor. Basis
// metadata is left for the caller to set.
func (p NutrientProfile) Scale(factor float64) NutrientProfile {
	return NutrientProfile{
		Calories:      p.Calories * factor,
		ProteinG:      p.ProteinG * factor,
		CarbsG:        p.CarbsG * factor,
		FatG:          p.FatG * factor,
		FiberG:        p.FiberG * factor,
		SugarG:        p.SugarG * factor,
		SodiumMg:      p.SodiumMg * factor,
		SaturatedFatG: p.SaturatedFatG * factor,
		Basis:         p.Basis,
		ServingGrams:  p.ServingGrams,
	}
}

// HasMacros reports whether any of calories, protein, carbs or fat is set.
func (p NutrientProfile) HasMacros() bool {
	return p.Calories > 0 || p.ProteinG > 0 || p.CarbsG > 0 || p.FatG > 0
}

// Source is the capture path that produced a food item.
type Source string

const (
	SourceBarcode   Source = "barcode"
	SourceDB        Source = "db"
	SourcePhotoItem Source = "photo_item"
	SourceManual    Source = "manual"
	SourceVoice     Source = "voice"
)

// FoodClassificationInput is the identification record the classifier works from.
type FoodClassificationInput struct {
	Source      Source   `json:"source"`
	GenericSlug string   `json:"generic_slug,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	UPC         string   `json:"upc,omitempty"`
	Ingredients string   `json:"ingredients,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Name        string   `json:"name"`
}

// FoodKind is derived from a FoodClassificationInput and never stored.
type FoodKind string

const (
	KindWholeFood FoodKind = "whole_food"
	KindPackaged  FoodKind = "packaged"
	KindAmbiguous FoodKind = "ambiguous"
)

// ScoreContext is everything a single scoring request needs.
type ScoreContext struct {
	Input     FoodClassificationInput `json:"input"`
	Nutrients NutrientProfile         `json:"nutrients"`
}

// CanonicalKey identifies a static per-gram nutrient table entry, e.g. generic_hot_dog.
type CanonicalKey string

// EnrichSource names where an EnrichedFood's numbers came from.
type EnrichSource string

const (
	EnrichFDC         EnrichSource = "FDC"
	EnrichEdamam      EnrichSource = "EDAMAM"
	EnrichNutritionix EnrichSource = "NUTRITIONIX"
	EnrichCurated     EnrichSource = "CURATED"
	EnrichEstimated   EnrichSource = "ESTIMATED"
	EnrichGeneric     EnrichSource = "GENERIC"
)

// Paid reports whether results from this source are worth writing through
// to the shared nutrition vault.
func (s EnrichSource) Paid() bool {
	switch s {
	case EnrichFDC, EnrichEdamam, EnrichNutritionix:
		return true
	}
	return false
}

// EnrichedFood is the resolved nutrition for one queried food.
type EnrichedFood struct {
	Name        string           `json:"name"`
	Aliases     []string         `json:"aliases,omitempty"`
	Locale      string           `json:"locale,omitempty"`
	Ingredients []string         `json:"ingredients,omitempty"`
	Per100g     NutrientProfile  `json:"per100g"`
	PerServing  *NutrientProfile `json:"perServing,omitempty"`
	Source      EnrichSource     `json:"source"`
	SourceID    string           `json:"source_id,omitempty"`
	Confidence  float64          `json:"confidence"`
}

// GenericCandidate is a match against the curated generic-foods table.
type GenericCandidate struct {
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	IsGeneric    bool         `json:"is_generic"`
	CanonicalKey CanonicalKey `json:"canonical_key,omitempty"`
}

// DetectedItem is one food reported by a vision meal detector.
type DetectedItem struct {
	Name       string          `json:"name"`
	Grams      float64         `json:"grams"`
	Confidence float64         `json:"confidence"`
	Per100g    NutrientProfile `json:"per100g"`
	Estimated  bool            `json:"estimated,omitempty"`
}

// FlagLevel grades a HealthFlag.
type FlagLevel string

const (
	FlagDanger  FlagLevel = "danger"
	FlagWarning FlagLevel = "warning"
	FlagInfo    FlagLevel = "info"
	FlagOK      FlagLevel = "ok"
)

// HealthFlag is a display warning derived from ingredients or nutrients,
// such as high sodium or an additive of concern.
type HealthFlag struct {
	ID      string    `json:"id"`
	Level   FlagLevel `json:"level"`
	Label   string    `json:"label"`
	Details string    `json:"details,omitempty"`
}

// FoodLogEntry is a logged portion of food, as persisted by the backend store.
type FoodLogEntry struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Source      Source           `json:"source"`
	Grams       float64          `json:"grams"`
	Nutrients   NutrientProfile  `json:"nutrients"`
	PerGram     *NutrientProfile `json:"per_gram,omitempty"`
	Kind        FoodKind         `json:"kind"`
	HealthScore float64          `json:"health_score"`
	LoggedAt    time.Time        `json:"logged_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// VaultItem is a cached provider result keyed by provider and provider reference.
type VaultItem struct {
	Provider     EnrichSource    `json:"provider"`
	ProviderRef  string          `json:"provider_ref"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand,omitempty"`
	CanonicalKey CanonicalKey    `json:"canonical_key,omitempty"`
	Per100g      NutrientProfile `json:"per100g"`
	Ingredients  []string        `json:"ingredients,omitempty"`
	Confidence   float64         `json:"confidence"`
	Region       string          `json:"region"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Score        float64         `json:"score,omitempty"`
}
