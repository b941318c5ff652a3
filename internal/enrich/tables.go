package enrich

import (
	"sort"
	"strings"

	"mcp-food-score/internal/models"
)

// canonicalEntry is a per-gram reference record for a common prepared food.
type canonicalEntry struct {
	PerGram     models.NutrientProfile
	Ingredients []string
}

func perGram(kcal, protein, carbs, fat, fiber, sugar, sodium, satFat float64) models.NutrientProfile {
	return models.NutrientProfile{
		Calories: kcal, ProteinG: protein, CarbsG: carbs, FatG: fat,
		FiberG: fiber, SugarG: sugar, SodiumMg: sodium, SaturatedFatG: satFat,
		Basis: models.BasisPerGram,
	}
}

func per100(kcal, protein, carbs, fat, fiber, sugar, sodium, satFat float64) models.NutrientProfile {
	return models.NutrientProfile{
		Calories: kcal, ProteinG: protein, CarbsG: carbs, FatG: fat,
		FiberG: fiber, SugarG: sugar, SodiumMg: sodium, SaturatedFatG: satFat,
		Basis: models.BasisPer100g,
	}
}

var canonicalTable = map[models.CanonicalKey]canonicalEntry{
	"generic_hot_dog": {
		PerGram:     perGram(2.9, 0.10, 0.02, 0.26, 0, 0.01, 9.8, 0.10),
		Ingredients: []string{"pork", "beef", "water", "salt", "corn syrup", "spices", "sodium nitrite"},
	},
	"generic_pizza_slice": {
		PerGram:     perGram(2.66, 0.11, 0.33, 0.10, 0.023, 0.036, 5.98, 0.045),
		Ingredients: []string{"wheat flour", "tomato sauce", "mozzarella cheese", "olive oil", "yeast", "salt"},
	},
	"generic_teriyaki_chicken_bowl": {
		PerGram:     perGram(1.63, 0.12, 0.21, 0.04, 0.01, 0.06, 4.1, 0.01),
		Ingredients: []string{"chicken", "white rice", "soy sauce", "sugar", "ginger", "garlic"},
	},
	"generic_california_roll": {
		PerGram:     perGram(1.29, 0.04, 0.18, 0.06, 0.012, 0.03, 4.3, 0.01),
		Ingredients: []string{"sushi rice", "imitation crab", "avocado", "cucumber", "nori", "rice vinegar"},
	},
	"generic_white_rice_cooked": {
		PerGram:     perGram(1.30, 0.027, 0.28, 0.003, 0.004, 0.001, 0.01, 0.001),
		Ingredients: []string{"white rice", "water"},
	},
	"generic_egg_large": {
		PerGram:     perGram(1.55, 0.13, 0.011, 0.11, 0, 0.011, 1.24, 0.033),
		Ingredients: []string{"egg"},
	},
	"generic_oatmeal_dry": {
		PerGram:     perGram(3.79, 0.13, 0.68, 0.065, 0.10, 0.01, 0.06, 0.011),
		Ingredients: []string{"rolled oats"},
	},
}

// coreNouns maps a single-token core noun to its canonical key.
var coreNouns = map[string]models.CanonicalKey{
	"hot_dog":         "generic_hot_dog",
	"hotdog":          "generic_hot_dog",
	"frank":           "generic_hot_dog",
	"pizza":           "generic_pizza_slice",
	"teriyaki":        "generic_teriyaki_chicken_bowl",
	"california_roll": "generic_california_roll",
	"rice":            "generic_white_rice_cooked",
	"egg":             "generic_egg_large",
	"eggs":            "generic_egg_large",
	"oatmeal":         "generic_oatmeal_dry",
	"oats":            "generic_oatmeal_dry",
}

// CanonicalKeyFor derives a canonical key from a food title by its core noun.
// Two-word nouns ("hot dog", "california roll") are checked before single tokens.
func CanonicalKeyFor(title string) (models.CanonicalKey, bool) {
	tokens := strings.Fields(strings.ToLower(title))
	for i := 0; i+1 < len(tokens); i++ {
		if key, ok := coreNouns[tokens[i]+"_"+tokens[i+1]]; ok {
			return key, true
		}
	}
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,;:!?()")
		if key, ok := coreNouns[tok]; ok {
			return key, true
		}
	}
	return "", false
}

// CanonicalPerGram returns the per-gram profile and ingredients for key.
func CanonicalPerGram(key models.CanonicalKey) (models.NutrientProfile, []string, bool) {
	e, ok := canonicalTable[key]
	if !ok {
		return models.NutrientProfile{}, nil, false
	}
	return e.PerGram, append([]string(nil), e.Ingredients...), true
}

// genericFood is a curated generic-foods table row.
type genericFood struct {
	Name         string
	Aliases      []string
	Per100g      models.NutrientProfile
	CanonicalKey models.CanonicalKey
}

var genericFoods = map[string]genericFood{
	"hot_dog": {
		Name: "Hot dog", Aliases: []string{"frank", "frankfurter"},
		Per100g:      per100(290, 10, 2, 26, 0, 1, 980, 10),
		CanonicalKey: "generic_hot_dog",
	},
	"pizza_slice": {
		Name: "Pizza slice", Aliases: []string{"pizza", "cheese pizza"},
		Per100g:      per100(266, 11, 33, 10, 2.3, 3.6, 598, 4.5),
		CanonicalKey: "generic_pizza_slice",
	},
	"teriyaki_chicken_bowl": {
		Name: "Teriyaki chicken bowl", Aliases: []string{"teriyaki bowl"},
		Per100g:      per100(163, 12, 21, 4, 1, 6, 410, 1),
		CanonicalKey: "generic_teriyaki_chicken_bowl",
	},
	"california_roll": {
		Name: "California roll", Aliases: []string{"sushi roll"},
		Per100g:      per100(129, 4, 18, 6, 1.2, 3, 430, 1),
		CanonicalKey: "generic_california_roll",
	},
	"white_rice_cooked": {
		Name: "White rice, cooked", Aliases: []string{"rice", "steamed rice"},
		Per100g:      per100(130, 2.7, 28, 0.3, 0.4, 0.1, 1, 0.1),
		CanonicalKey: "generic_white_rice_cooked",
	},
	"egg_large": {
		Name: "Egg, large", Aliases: []string{"egg", "boiled egg"},
		Per100g:      per100(155, 13, 1.1, 11, 0, 1.1, 124, 3.3),
		CanonicalKey: "generic_egg_large",
	},
	"oatmeal": {
		Name: "Oatmeal, cooked", Aliases: []string{"porridge"},
		Per100g:      per100(68, 2.4, 12, 1.4, 1.7, 0.5, 4, 0.3),
		CanonicalKey: "generic_oatmeal_dry",
	},
	"caesar_salad": {
		Name: "Caesar salad", Aliases: []string{"chicken caesar"},
		Per100g: per100(190, 5, 8, 16, 1.5, 1.8, 420, 3.2),
	},
	"cheeseburger": {
		Name: "Cheeseburger", Aliases: []string{"burger"},
		Per100g: per100(263, 13, 24, 13, 1.3, 5.5, 560, 5.6),
	},
}

// GenericFood looks up a curated generic food by slug.
func GenericFood(slug string) (name string, p models.NutrientProfile, key models.CanonicalKey, ok bool) {
	g, ok := genericFoods[normalizeSlug(slug)]
	if !ok {
		return "", models.NutrientProfile{}, "", false
	}
	return g.Name, g.Per100g, g.CanonicalKey, true
}

func normalizeSlug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// wholeFoods is the per-100 g fallback for photo-detected items.
var wholeFoods = map[string]models.NutrientProfile{
	"apple":        per100(52, 0.3, 14, 0.2, 2.4, 10, 1, 0),
	"asparagus":    per100(20, 2.2, 3.9, 0.1, 2.1, 1.9, 2, 0),
	"avocado":      per100(160, 2, 9, 15, 7, 0.7, 7, 2.1),
	"banana":       per100(89, 1.1, 23, 0.3, 2.6, 12, 1, 0.1),
	"blueberries":  per100(57, 0.7, 14, 0.3, 2.4, 10, 1, 0),
	"broccoli":     per100(34, 2.8, 7, 0.4, 2.6, 1.7, 33, 0),
	"brown rice":   per100(112, 2.3, 24, 0.8, 1.8, 0.4, 5, 0.2),
	"carrot":       per100(41, 0.9, 10, 0.2, 2.8, 4.7, 69, 0),
	"chicken":      per100(165, 31, 0, 3.6, 0, 0, 74, 1),
	"cucumber":     per100(15, 0.7, 3.6, 0.1, 0.5, 1.7, 2, 0),
	"egg":          per100(155, 13, 1.1, 11, 0, 1.1, 124, 3.3),
	"grapes":       per100(69, 0.7, 18, 0.2, 0.9, 15, 2, 0.1),
	"lettuce":      per100(15, 1.4, 2.9, 0.2, 1.3, 0.8, 28, 0),
	"orange":       per100(47, 0.9, 12, 0.1, 2.4, 9, 0, 0),
	"potato":       per100(77, 2, 17, 0.1, 2.2, 0.8, 6, 0),
	"rice":         per100(130, 2.7, 28, 0.3, 0.4, 0.1, 1, 0.1),
	"salmon":       per100(208, 22, 0, 13, 0, 0, 59, 3.1),
	"spinach":      per100(23, 2.9, 3.6, 0.4, 2.2, 0.4, 79, 0.1),
	"strawberries": per100(32, 0.7, 7.7, 0.3, 2, 4.9, 1, 0),
	"sweet potato": per100(86, 1.6, 20, 0.1, 3, 4.2, 55, 0),
	"tomato":       per100(18, 0.9, 3.9, 0.2, 1.2, 2.6, 5, 0),
}

// wholeFoodKeys is sorted longest first so "sweet potato" wins over "potato".
var wholeFoodKeys = func() []string {
	keys := make([]string, 0, len(wholeFoods))
	for k := range wholeFoods {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// MatchWholeFood finds the per-100 g record for name by exact match, then
// prefix, then substring, case-insensitively.
func MatchWholeFood(name string) (string, models.NutrientProfile, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", models.NutrientProfile{}, false
	}
	if p, ok := wholeFoods[n]; ok {
		return n, p, true
	}
	for _, k := range wholeFoodKeys {
		if strings.HasPrefix(n, k) {
			return k, wholeFoods[k], true
		}
	}
	for _, k := range wholeFoodKeys {
		if strings.Contains(n, k) {
			return k, wholeFoods[k], true
		}
	}
	return "", models.NutrientProfile{}, false
}
