// Package nutrients resolves heterogeneous nutrition payloads into a
// per-gram NutrientProfile and scales per-gram values back to portions.
//
// Providers disagree on field names (carbs, carbs_g, carbohydrates_total_g,
// carbohydrates_100g, ...) and on the quantity they describe. Normalize
// consults a fixed alias table in priority order; no reflection is involved.
package nutrients

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mcp-food-score/internal/models"
)

// Shape is the layout a payload's nutrient values were read from.
type Shape string

const (
	ShapePer100g    Shape = "per100g"
	ShapePerServing Shape = "perServing"
	// ShapeRaw is a flat payload taken to be per-100g equivalent.
	ShapeRaw Shape = "raw"
)

// Result is a normalized payload.
type Result struct {
	PerGram models.NutrientProfile `json:"per_gram"`
	Shape   Shape                  `json:"shape"`
	Divisor float64                `json:"divisor"`
	// CaloriesDerived is set when calories were computed from macros.
	CaloriesDerived bool `json:"calories_derived,omitempty"`
}

// alias is one accepted field name and the conversion from its unit to the
// canonical one (kcal, g, or mg for sodium). A nil conv keeps the value.
type alias struct {
	key  string
	conv func(float64) float64
}

type nutrientAliases struct {
	name    string
	aliases []alias
	set     func(*models.NutrientProfile, float64)
}

func a(key string) alias { return alias{key: key} }

func (al alias) value(v float64) float64 {
	if al.conv == nil {
		return v
	}
	return al.conv(v)
}

func gramsToMg(g float64) float64 { return g * 1000 }

// aliasTable is consulted in order; within a nutrient the first alias that
// holds a usable number wins.
var aliasTable = []nutrientAliases{
	{
		name: "calories",
		aliases: []alias{
			a("calories"), a("kcal"), a("energy_kcal"), a("calories_kcal"), a("energy-kcal"),
			a("energy-kcal_100g"), a("energy-kcal_serving"),
			{key: "energy_kj", conv: KJToKcal}, {key: "energy-kj_100g", conv: KJToKcal},
			{key: "energy-kj_serving", conv: KJToKcal},
		},
		set: func(p *models.NutrientProfile, v float64) { p.Calories = v },
	},
	{
		name: "protein",
		aliases: []alias{
			a("protein"), a("protein_g"), a("proteins"), a("proteins_100g"), a("proteins_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.ProteinG = v },
	},
	{
		name: "carbs",
		aliases: []alias{
			a("carbs"), a("carbs_g"), a("carbohydrates"), a("carbohydrates_total_g"),
			a("total_carbs"), a("carbohydrates_100g"), a("carbohydrates_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.CarbsG = v },
	},
	{
		name: "fat",
		aliases: []alias{
			a("fat"), a("fat_g"), a("fat_total_g"), a("total_fat"), a("fat_100g"), a("fat_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.FatG = v },
	},
	{
		name: "sugar",
		aliases: []alias{
			a("sugar"), a("sugar_g"), a("sugars"), a("sugars_g"), a("sugars_100g"), a("sugars_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.SugarG = v },
	},
	{
		name: "fiber",
		aliases: []alias{
			a("fiber"), a("fiber_g"), a("fibre"), a("fibre_g"), a("dietary_fiber"),
			a("fiber_100g"), a("fiber_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.FiberG = v },
	},
	{
		name: "sodium",
		aliases: []alias{
			a("sodium_mg"),
			// Open Food Facts reports sodium and salt in grams.
			{key: "sodium_100g", conv: gramsToMg}, {key: "sodium_serving", conv: gramsToMg},
			{key: "salt_100g", conv: SaltToSodiumMg}, {key: "salt_serving", conv: SaltToSodiumMg},
			a("sodium"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.SodiumMg = v },
	},
	{
		name: "saturated_fat",
		aliases: []alias{
			a("saturated_fat"), a("saturated_fat_g"), a("fat_saturated_g"), a("sat_fat"),
			a("saturated-fat_100g"), a("saturated-fat_serving"),
		},
		set: func(p *models.NutrientProfile, v float64) { p.SaturatedFatG = v },
	},
}

var containerPaths = []string{"analysis.nutrition", "nutrition", "nutritionData", "meta.nutrition"}

// Normalize resolves payload to a per-gram profile. It never fails: a
// payload that is empty, not JSON, or carries no known fields yields an
// all-zero profile.
func Normalize(payload []byte) Result {
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return Result{PerGram: models.NutrientProfile{Basis: models.BasisPerGram}, Shape: ShapeRaw, Divisor: 100}
	}

	container := root
	for _, path := range containerPaths {
		if r := root.Get(path); r.IsObject() {
			container = r
			break
		}
	}

	src, shape, div := selectBasis(root, container)

	table := aliasTable
	switch {
	case hasKeySuffix(src, "_100g"):
		// Open Food Facts nutriments: only suffixed keys carry units we know
		table, shape, div = scopedTable("_100g"), ShapePer100g, 100
	case shape == ShapePerServing && hasKeySuffix(src, "_serving"):
		table = scopedTable("_serving")
	case strings.EqualFold(firstString(src.Get("sodium_unit"), src.Get("nutrients.sodium_unit")), "g"):
		table = sodiumInGrams(table)
	}

	out, found := resolveTable(src, table, div)

	res := Result{Shape: shape, Divisor: div}
	if shape == ShapeRaw && !found["calories"] {
		out.Calories = AtwaterCalories(out.ProteinG, out.CarbsG, out.FatG)
		res.CaloriesDerived = out.Calories > 0
	}
	out.Basis = models.BasisPerGram
	res.PerGram = out
	return res
}

// selectBasis prefers a per-100g object, then a per-serving object with a
// known serving weight, then the container itself.
func selectBasis(root, container gjson.Result) (gjson.Result, Shape, float64) {
	if r := firstObject(container.Get("per100g"), container.Get("per_100g"), root.Get("meta.per100g")); r.Exists() {
		return r, ShapePer100g, 100
	}

	serving := firstObject(container.Get("perServing"), container.Get("per_serving"), root.Get("meta.perPortion"))
	if serving.Exists() {
		grams := firstPositive(
			root.Get("analysis.servingGrams"),
			root.Get("meta.servingGrams"),
			container.Get("servingGrams"),
			container.Get("serving_grams"),
			serving.Get("serving_grams"),
			serving.Get("servingGrams"),
		)
		if grams > 0 {
			return serving, ShapePerServing, grams
		}
	}

	return container, ShapeRaw, 100
}

// resolveTable applies table to obj, dividing every value by div, and
// reports which nutrients were found.
func resolveTable(obj gjson.Result, table []nutrientAliases, div float64) (models.NutrientProfile, map[string]bool) {
	var out models.NutrientProfile
	found := make(map[string]bool, len(table))
	for _, n := range table {
		if v, ok := resolve(obj, n.aliases); ok {
			n.set(&out, v/div)
			found[n.name] = true
		}
	}
	return out, found
}

// scopedTable keeps only the aliases ending in suffix, so Open Food Facts
// per 100 g and per serving values never mix and bare keys (in grams there)
// are not misread.
func scopedTable(suffix string) []nutrientAliases {
	out := make([]nutrientAliases, 0, len(aliasTable))
	for _, n := range aliasTable {
		var scoped []alias
		for _, al := range n.aliases {
			if strings.HasSuffix(al.key, suffix) {
				scoped = append(scoped, al)
			}
		}
		out = append(out, nutrientAliases{name: n.name, aliases: scoped, set: n.set})
	}
	return out
}

// sodiumInGrams reads the bare sodium key as grams.
func sodiumInGrams(table []nutrientAliases) []nutrientAliases {
	out := make([]nutrientAliases, len(table))
	copy(out, table)
	for i, n := range out {
		if n.name != "sodium" {
			continue
		}
		aliases := make([]alias, len(n.aliases))
		copy(aliases, n.aliases)
		for j := range aliases {
			if aliases[j].key == "sodium" {
				aliases[j].conv = gramsToMg
			}
		}
		out[i].aliases = aliases
	}
	return out
}

func hasKeySuffix(obj gjson.Result, suffix string) bool {
	found := false
	for _, scope := range []gjson.Result{obj, obj.Get("nutrients")} {
		scope.ForEach(func(key, _ gjson.Result) bool {
			found = strings.HasSuffix(key.Str, suffix)
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// resolve tries each alias against obj and then obj.nutrients.
func resolve(obj gjson.Result, aliases []alias) (float64, bool) {
	nested := obj.Get("nutrients")
	for _, al := range aliases {
		for _, scope := range []gjson.Result{obj, nested} {
			if !scope.IsObject() {
				continue
			}
			if v, ok := number(scope.Get(al.key)); ok {
				return al.value(v), true
			}
		}
	}
	return 0, false
}

func firstObject(candidates ...gjson.Result) gjson.Result {
	for _, c := range candidates {
		if c.IsObject() {
			return c
		}
	}
	return gjson.Result{}
}

func firstPositive(candidates ...gjson.Result) float64 {
	for _, c := range candidates {
		if v, ok := number(c); ok && v > 0 {
			return v
		}
	}
	return 0
}

// number reads a JSON number or a numeric string such as "12.5 g". Negative
// and non-finite values are rejected.
func number(r gjson.Result) (float64, bool) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		s = strings.TrimRightFunc(s, func(c rune) bool {
			return c == ' ' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		})
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
