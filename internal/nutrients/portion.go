package nutrients

import (
	"math"

	"mcp-food-score/internal/models"
)

const (
	kJPerKcal = 4.184
	// salt is about 39.3% sodium by mass
	saltToSodiumMgPerG = 393

	energyTolerance = 0.08
)

// ForPortion scales a per-gram profile to grams of food. Calories are rounded
// to a whole number, everything else to one decimal.
func ForPortion(perGram models.NutrientProfile, grams float64) models.NutrientProfile {
	if grams <= 0 || math.IsNaN(grams) || math.IsInf(grams, 0) {
		return models.NutrientProfile{Basis: models.BasisPerServing}
	}
	p := perGram.Scale(grams)
	return models.NutrientProfile{
		Calories:      math.Round(p.Calories),
		ProteinG:      round1(p.ProteinG),
		CarbsG:        round1(p.CarbsG),
		FatG:          round1(p.FatG),
		FiberG:        round1(p.FiberG),
		SugarG:        round1(p.SugarG),
		SodiumMg:      round1(p.SodiumMg),
		SaturatedFatG: round1(p.SaturatedFatG),
		Basis:         models.BasisPerServing,
		ServingGrams:  grams,
	}
}

// ToPerGram converts a tagged profile to the per-gram basis. A per-serving
// profile without a serving weight, and an untagged profile, are read as per 100 g.
func ToPerGram(p models.NutrientProfile) models.NutrientProfile {
	var div float64
	switch p.Basis {
	case models.BasisPerGram:
		div = 1
	case models.BasisPerServing:
		div = p.ServingGrams
		if div <= 0 {
			div = 100
		}
	default:
		div = 100
	}
	out := p.Scale(1 / div)
	out.Basis = models.BasisPerGram
	out.ServingGrams = 0
	return out
}

// FromPer100g tags an untagged per-100g profile.
func FromPer100g(p models.NutrientProfile) models.NutrientProfile {
	p.Basis = models.BasisPer100g
	p.ServingGrams = 0
	return p
}

// AtwaterCalories estimates energy from macros with the 4/4/9 factors.
func AtwaterCalories(proteinG, carbsG, fatG float64) float64 {
	return 4*proteinG + 4*carbsG + 9*fatG
}

// ReconcileEnergy replaces calories that disagree with the macros by more
// than 8% with the Atwater estimate, rounded to whole kcal, so p should be
// per 100 g or per serving. It reports whether it changed anything.
func ReconcileEnergy(p models.NutrientProfile) (models.NutrientProfile, bool) {
	calc := AtwaterCalories(p.ProteinG, p.CarbsG, p.FatG)
	if calc <= 0 {
		return p, false
	}
	if math.Abs(p.Calories-calc)/calc <= energyTolerance {
		return p, false
	}
	p.Calories = math.Round(calc)
	return p, true
}

// KJToKcal converts kilojoules to kilocalories.
func KJToKcal(kj float64) float64 { return kj / kJPerKcal }

// SaltToSodiumMg converts grams of salt to milligrams of sodium.
func SaltToSodiumMg(saltG float64) float64 { return saltG * saltToSodiumMgPerG }

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
