package scoring

import (
	"math"
	"strings"

	"mcp-food-score/internal/models"
)

// Legacy weights, tuned so a granola serving lands near 8 and sour candy near 5.
const (
	legacySugarPenalty      = 0.30
	legacySatFatPenalty     = 0.15
	legacySodiumPenalty     = 0.10
	legacyEnergyPenalty     = 0.10
	legacyUltraPenalty      = 0.10
	legacyFiberBonus        = 0.10
	legacyProteinBonus      = 0.10
	legacyIngredientQuality = 0.05
)

var ultraProcessedKeywords = []string{
	"soda", "candy", "chips", "crackers", "cookies", "instant", "frozen meal", "packaged snack",
}

// Legacy is the flat rule-based scorer that predates the dual curves. It
// ignores classification and returns a value on a 1–10 scale with one decimal.
func Legacy(sc models.ScoreContext) float64 {
	return legacyTen(legacyHundred(sc))
}

func legacyHundred(sc models.ScoreContext) float64 {
	n := sanitize(sc.Nutrients)
	in := sc.Input

	energyDensity := n.Calories / 100
	sodiumG := n.SodiumMg / 1000

	score := 100.0
	score -= legacySugarPenalty * n.SugarG * 8
	score -= legacySatFatPenalty * n.SaturatedFatG * 10
	score -= legacySodiumPenalty * sodiumG * 10
	score -= legacyEnergyPenalty * energyDensity * 8
	if isUltraProcessed(in) {
		score -= legacyUltraPenalty * 15
	}
	if hasArtificialAdditives(in.Ingredients) {
		score -= legacyIngredientQuality * 10
	}

	score += legacyFiberBonus * math.Min(n.FiberG, 8) * 2
	score += legacyProteinBonus * math.Min(n.ProteinG, 20) * 1.5
	score += categoryAdjustment(in, n)

	return math.Max(0, math.Min(100, math.Round(score)))
}

func legacyTen(score100 float64) float64 {
	v := math.Round(score100) / 10
	return math.Max(1, math.Min(10, v))
}

func isUltraProcessed(in models.FoodClassificationInput) bool {
	name := strings.ToLower(in.Name)
	cats := strings.ToLower(strings.Join(in.Categories, " "))
	for _, k := range ultraProcessedKeywords {
		if strings.Contains(name, k) || strings.Contains(cats, k) {
			return true
		}
	}
	return false
}

func hasArtificialAdditives(ingredients string) bool {
	if ingredients == "" {
		return false
	}
	lower := strings.ToLower(ingredients)
	return artificialColorRe.MatchString(lower) ||
		preservativeRe.MatchString(lower) ||
		strings.Contains(lower, "high fructose corn syrup")
}

func categoryAdjustment(in models.FoodClassificationInput, n models.NutrientProfile) float64 {
	cats := strings.ToLower(strings.Join(in.Categories, " "))
	name := strings.ToLower(in.Name)

	switch {
	case strings.Contains(cats, "cereal") || strings.Contains(cats, "breakfast"):
		if n.FiberG >= 3 && n.ProteinG >= 4 {
			return 3
		}
	case strings.Contains(cats, "candy") || strings.Contains(name, "gum") || strings.Contains(name, "candy"):
		return -5
	case strings.Contains(cats, "fruit") || strings.Contains(cats, "vegetable"):
		return 2
	}
	return 0
}

// Stars converts a 0–100 score to a 0–5 rating in half-star steps.
func Stars(score100 int) float64 {
	stars := float64(score100) / 100 * 5
	return math.Round(stars*2) / 2
}
