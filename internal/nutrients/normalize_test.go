package nutrients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-score/internal/models"
)

func TestNormalizePer100gRoundTrip(t *testing.T) {
	res := Normalize([]byte(`{"per100g":{"calories":250,"protein":10,"carbs_g":30,"fat":10,"fiber":3,"sugars":12,"sodium":480,"saturated_fat":4}}`))
	assert.Equal(t, ShapePer100g, res.Shape)
	assert.Equal(t, 100.0, res.Divisor)
	assert.Equal(t, models.BasisPerGram, res.PerGram.Basis)

	back := ForPortion(res.PerGram, 100)
	assert.Equal(t, 250.0, back.Calories)
	assert.Equal(t, 10.0, back.ProteinG)
	assert.Equal(t, 30.0, back.CarbsG)
	assert.Equal(t, 10.0, back.FatG)
	assert.Equal(t, 3.0, back.FiberG)
	assert.Equal(t, 12.0, back.SugarG)
	assert.Equal(t, 480.0, back.SodiumMg)
	assert.Equal(t, 4.0, back.SaturatedFatG)
	assert.Equal(t, models.BasisPerServing, back.Basis)
	assert.Equal(t, 100.0, back.ServingGrams)
}

func TestNormalizeAliasesAgree(t *testing.T) {
	pairs := [][2]string{
		{`{"carbohydrates_total_g":30}`, `{"carbs_g":30}`},
		{`{"fibre":4}`, `{"fiber_g":4}`},
		{`{"nutrients":{"proteins":7}}`, `{"protein":7}`},
		{`{"sat_fat":2}`, `{"saturated_fat_g":2}`},
	}
	for _, p := range pairs {
		assert.Equal(t, Normalize([]byte(p[1])).PerGram, Normalize([]byte(p[0])).PerGram, p[0])
	}
}

func TestNormalizeFirstAliasWins(t *testing.T) {
	res := Normalize([]byte(`{"calories":120,"energy_kj":9999}`))
	assert.InDelta(t, 1.2, res.PerGram.Calories, 1e-9)
}

func TestNormalizePerServing(t *testing.T) {
	payload := `{"analysis":{"servingGrams":50},"nutrition":{"perServing":{"calories":200,"protein":8}}}`
	res := Normalize([]byte(payload))
	assert.Equal(t, ShapePerServing, res.Shape)
	assert.Equal(t, 50.0, res.Divisor)
	assert.InDelta(t, 4.0, res.PerGram.Calories, 1e-9)
	assert.InDelta(t, 0.16, res.PerGram.ProteinG, 1e-9)
}

func TestNormalizePerServingWithoutWeightFallsBackToRaw(t *testing.T) {
	res := Normalize([]byte(`{"perServing":{"calories":200},"protein":5}`))
	assert.Equal(t, ShapeRaw, res.Shape)
	assert.Equal(t, 100.0, res.Divisor)
	assert.InDelta(t, 0.05, res.PerGram.ProteinG, 1e-9)
}

func TestNormalizeRawDerivesCalories(t *testing.T) {
	res := Normalize([]byte(`{"protein":10,"carbs":20,"fat":5}`))
	assert.Equal(t, ShapeRaw, res.Shape)
	assert.True(t, res.CaloriesDerived)
	assert.InDelta(t, 1.65, res.PerGram.Calories, 1e-9)
}

func TestNormalizeEmptyOrInvalid(t *testing.T) {
	for _, in := range []string{"", "not json", "[]", "42", `{}`, `{"unrelated":"x"}`} {
		res := Normalize([]byte(in))
		assert.Equal(t, models.NutrientProfile{Basis: models.BasisPerGram}, res.PerGram, "payload %q", in)
		assert.False(t, res.CaloriesDerived)
	}
}

func TestNormalizeValueParsing(t *testing.T) {
	res := Normalize([]byte(`{"protein":"12.5 g","fat":-3,"sugar":"lots","sodium_mg":"200mg"}`))
	assert.InDelta(t, 0.125, res.PerGram.ProteinG, 1e-9)
	assert.Zero(t, res.PerGram.FatG)
	assert.Zero(t, res.PerGram.SugarG)
	assert.InDelta(t, 2.0, res.PerGram.SodiumMg, 1e-9)
}

func TestNormalizeOFFUnits(t *testing.T) {
	res := Normalize([]byte(`{"sodium_100g":0.4}`))
	assert.InDelta(t, 4.0, res.PerGram.SodiumMg, 1e-9)

	res = Normalize([]byte(`{"salt_100g":1}`))
	assert.InDelta(t, 3.93, res.PerGram.SodiumMg, 1e-9)

	res = Normalize([]byte(`{"energy-kj_100g":418.4}`))
	assert.InDelta(t, 1.0, res.PerGram.Calories, 1e-9)
}

func TestNormalizeFullOFFNutriments(t *testing.T) {
	// bare keys are grams in Open Food Facts and must not be read as mg
	res := Normalize([]byte(`{
		"energy-kcal": 389, "energy-kcal_100g": 389, "energy-kj_100g": 1628,
		"proteins": 13, "proteins_100g": 13,
		"carbohydrates": 67, "carbohydrates_100g": 67,
		"fat": 7, "fat_100g": 7,
		"sugars": 1, "sugars_100g": 1,
		"fiber": 10, "fiber_100g": 10,
		"sodium": 0.4, "sodium_100g": 0.4, "sodium_unit": "g",
		"salt": 1, "salt_100g": 1
	}`))
	assert.Equal(t, ShapePer100g, res.Shape)
	assert.Equal(t, 100.0, res.Divisor)
	assert.InDelta(t, 4.0, res.PerGram.SodiumMg, 1e-9)
	assert.InDelta(t, 3.89, res.PerGram.Calories, 1e-9)
	assert.InDelta(t, 0.13, res.PerGram.ProteinG, 1e-9)
	assert.InDelta(t, 0.1, res.PerGram.FiberG, 1e-9)
	assert.InDelta(t, 400.0, ForPortion(res.PerGram, 100).SodiumMg, 1e-9)
}

func TestNormalizeSodiumUnitGrams(t *testing.T) {
	res := Normalize([]byte(`{"sodium":0.4,"sodium_unit":"g"}`))
	assert.InDelta(t, 4.0, res.PerGram.SodiumMg, 1e-9)

	res = Normalize([]byte(`{"sodium":400}`))
	assert.InDelta(t, 4.0, res.PerGram.SodiumMg, 1e-9)
}

func TestUnitConversions(t *testing.T) {
	assert.InDelta(t, 100.0, KJToKcal(418.4), 1e-9)
	assert.InDelta(t, 393.0, SaltToSodiumMg(1), 1e-9)
	assert.InDelta(t, 98.25, SaltToSodiumMg(0.25), 1e-9)
}

func TestToPerGram(t *testing.T) {
	per100 := models.NutrientProfile{Calories: 200, SugarG: 10, Basis: models.BasisPer100g}
	assert.InDelta(t, 2.0, ToPerGram(per100).Calories, 1e-9)

	serving := models.NutrientProfile{Calories: 120, Basis: models.BasisPerServing, ServingGrams: 30}
	got := ToPerGram(serving)
	assert.InDelta(t, 4.0, got.Calories, 1e-9)
	assert.Equal(t, models.BasisPerGram, got.Basis)
	assert.Zero(t, got.ServingGrams)

	already := models.NutrientProfile{Calories: 3, Basis: models.BasisPerGram}
	assert.Equal(t, already, ToPerGram(already))
}

func TestForPortionRejectsBadGrams(t *testing.T) {
	pg := models.NutrientProfile{Calories: 2, Basis: models.BasisPerGram}
	assert.Zero(t, ForPortion(pg, 0).Calories)
	assert.Zero(t, ForPortion(pg, -5).Calories)
	assert.Equal(t, 300.0, ForPortion(pg, 150).Calories)
}

func TestReconcileEnergy(t *testing.T) {
	p := models.NutrientProfile{Calories: 100, ProteinG: 10, CarbsG: 10, FatG: 10}
	fixed, changed := ReconcileEnergy(p)
	require.True(t, changed)
	assert.Equal(t, 170.0, fixed.Calories)

	ok := models.NutrientProfile{Calories: 165, ProteinG: 10, CarbsG: 10, FatG: 10}
	same, changed := ReconcileEnergy(ok)
	assert.False(t, changed)
	assert.Equal(t, ok, same)

	_, changed = ReconcileEnergy(models.NutrientProfile{Calories: 50})
	assert.False(t, changed)
}

func TestParseOFFProduct(t *testing.T) {
	payload := `{
		"status": 1,
		"product": {
			"code": "0123456789012",
			"product_name": "Choco Bar",
			"brands": "Acme, Other Co",
			"ingredients_text_en": "sugar, cocoa (12%); milk",
			"additives_tags": ["en:e322"],
			"allergens_tags": ["en:milk"],
			"categories_tags": ["en:snacks", "fr:chocolats"],
			"serving_size": "40 g",
			"nutriments": {
				"energy-kcal_100g": 520.4,
				"proteins_100g": 6,
				"carbohydrates_100g": 60,
				"fat_100g": 28,
				"sugars_100g": 50,
				"salt_100g": 0.25,
				"saturated-fat_100g": 16
			}
		}
	}`
	p := ParseOFFProduct([]byte(payload), "ignored")

	assert.Equal(t, "0123456789012", p.Barcode)
	assert.Equal(t, "Choco Bar", p.Name)
	assert.Equal(t, "Acme", p.Brand)
	assert.Equal(t, []string{"sugar", "cocoa", "12%", "milk"}, p.Ingredients)
	assert.Equal(t, []string{"e322"}, p.Additives)
	assert.Equal(t, []string{"milk"}, p.Allergens)
	assert.Equal(t, []string{"snacks", "chocolats"}, p.Categories)

	assert.Equal(t, models.BasisPer100g, p.Per100g.Basis)
	assert.Equal(t, 520.0, p.Per100g.Calories)
	assert.InDelta(t, 98.25, p.Per100g.SodiumMg, 1e-9)
	assert.Equal(t, 16.0, p.Per100g.SaturatedFatG)

	require.NotNil(t, p.PerServing)
	assert.Equal(t, "40 g", p.ServingSize)
	assert.Equal(t, 40.0, p.PerServing.ServingGrams)
	assert.InDelta(t, 20.0, p.PerServing.SugarG, 1e-9)

	in := p.ClassificationInput()
	assert.Equal(t, models.SourceBarcode, in.Source)
	assert.Equal(t, "0123456789012", in.UPC)
	assert.Equal(t, "sugar, cocoa (12%); milk", in.Ingredients)
}

func TestParseOFFProductSparse(t *testing.T) {
	p := ParseOFFProduct([]byte(`{"product":{"ingredients":[{"text":"Oats"},{"id":"en:salt"}]}}`), "999")
	assert.Equal(t, "999", p.Barcode)
	assert.Equal(t, "Unknown product", p.Name)
	assert.Equal(t, []string{"Oats", "en:salt"}, p.Ingredients)
	assert.Nil(t, p.PerServing)
	assert.Equal(t, models.NutrientProfile{Basis: models.BasisPer100g}, p.Per100g)
}

func TestSplitIngredients(t *testing.T) {
	assert.Nil(t, SplitIngredients("   "))
	assert.Equal(t, []string{"water", "salt", "spices"}, SplitIngredients("water; salt • spices"))
}
