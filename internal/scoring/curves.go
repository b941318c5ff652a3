// Package scoring turns a classified food and its nutrients into a health score.
//
// Two curves exist. Whole foods start high and only lose points in rare edge
// cases; packaged foods start at 60 and must earn a good score. Packaged
// penalties and bonuses grow continuously past their thresholds so a gram
// either side of a threshold never moves the score by more than a point or two.
package scoring

import (
	"math"

	"mcp-food-score/internal/models"
)

const (
	wholeBase = 90
	wholeMin  = 70
	wholeMax  = 100

	packagedBase = 60
	packagedMin  = 5
	packagedMax  = 98
)

// WholeFood scores p on the whole-food curve. The result is in [70,100].
func WholeFood(p models.NutrientProfile) int {
	n := sanitize(p)
	score := float64(wholeBase)

	if n.FiberG >= 3 {
		score += 3
	}
	if n.ProteinG >= 10 {
		score += 2
	}
	if n.SugarG <= 8 {
		score += 2
	}

	if n.SugarG > 15 {
		score -= 4
	}
	if n.SodiumMg > 400 {
		score -= 5
	}
	if n.SaturatedFatG > 5 {
		score -= 5
	}

	return clampRound(score, wholeMin, wholeMax)
}

// Packaged scores p on the packaged-food curve. The result is in [5,98].
func Packaged(p models.NutrientProfile) int {
	n := sanitize(p)
	score := float64(packagedBase)

	score -= math.Min(math.Max(0, n.SugarG-10)*0.8, 15)
	score -= math.Min(math.Max(0, n.SodiumMg-600)/100, 15)
	score -= math.Min(math.Max(0, n.SaturatedFatG-5)*1.2, 10)

	if n.FiberG >= 3 {
		score += math.Min(n.FiberG*1.5, 8)
	}
	if n.ProteinG >= 10 {
		score += math.Min((n.ProteinG-10)*0.6, 8)
	}

	if n.SodiumMg > 1000 {
		score -= 5
	}
	if n.SugarG > 20 {
		score -= 5
	}

	return clampRound(score, packagedMin, packagedMax)
}

// sanitize zeroes negative, NaN and infinite fields.
func sanitize(p models.NutrientProfile) models.NutrientProfile {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	p.Calories = fix(p.Calories)
	p.ProteinG = fix(p.ProteinG)
	p.CarbsG = fix(p.CarbsG)
	p.FatG = fix(p.FatG)
	p.FiberG = fix(p.FiberG)
	p.SugarG = fix(p.SugarG)
	p.SodiumMg = fix(p.SodiumMg)
	p.SaturatedFatG = fix(p.SaturatedFatG)
	return p
}

func clampRound(v float64, lo, hi int) int {
	r := int(math.Round(v))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}
