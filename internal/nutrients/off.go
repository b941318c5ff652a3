package nutrients

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mcp-food-score/internal/models"
)

// Product is an Open Food Facts product reduced to what scoring needs.
type Product struct {
	Barcode         string                  `json:"barcode"`
	Name            string                  `json:"name"`
	Brand           string                  `json:"brand,omitempty"`
	ImageURL        string                  `json:"image_url,omitempty"`
	Per100g         models.NutrientProfile  `json:"per100g"`
	PerServing      *models.NutrientProfile `json:"per_serving,omitempty"`
	ServingSize     string                  `json:"serving_size,omitempty"`
	Ingredients     []string                `json:"ingredients"`
	IngredientsText string                  `json:"ingredients_text,omitempty"`
	Additives       []string                `json:"additives,omitempty"`
	Allergens       []string                `json:"allergens,omitempty"`
	Categories      []string                `json:"categories,omitempty"`
}

var (
	servingSizeRe   = regexp.MustCompile(`([\d.]+)\s*([a-zA-Z]+)?`)
	langPrefixRe    = regexp.MustCompile(`^[a-z]{2}:`)
	ingredientSepRe = regexp.MustCompile(`[,;•·()]`)
)

// ParseOFFProduct reads an Open Food Facts API response (or the bare product
// object inside one). fallbackBarcode is used when the product has no code.
func ParseOFFProduct(payload []byte, fallbackBarcode string) Product {
	root := gjson.ParseBytes(payload)
	product := root
	if p := root.Get("product"); p.IsObject() {
		product = p
	}

	ingredientsText := firstString(
		product.Get("ingredients_text_en"),
		product.Get("ingredients_text"),
		product.Get("ingredients_text_es"),
		product.Get("ingredients_text_fr"),
	)

	var ingredients []string
	if arr := product.Get("ingredients"); arr.IsArray() {
		for _, ing := range arr.Array() {
			if s := firstString(ing.Get("text"), ing.Get("id")); s != "" {
				ingredients = append(ingredients, s)
			} else if ing.Type == gjson.String && ing.Str != "" {
				ingredients = append(ingredients, ing.Str)
			}
		}
	} else {
		ingredients = SplitIngredients(ingredientsText)
	}

	tags := product.Get("additives_tags")
	if !tags.IsArray() {
		tags = product.Get("additives_original_tags")
	}

	nutriments := product.Get("nutriments")
	per100, _ := resolveProfile(nutriments, "_100g")
	per100.Basis = models.BasisPer100g

	p := Product{
		Barcode:         firstString(product.Get("code")),
		Name:            firstString(product.Get("product_name"), product.Get("generic_name")),
		ImageURL:        firstString(product.Get("image_front_small_url"), product.Get("image_url")),
		Per100g:         per100,
		Ingredients:     ingredients,
		IngredientsText: ingredientsText,
		Additives:       stripTags(tags),
		Allergens:       stripTags(product.Get("allergens_tags")),
		Categories:      stripTags(product.Get("categories_tags")),
	}
	if p.Barcode == "" {
		p.Barcode = fallbackBarcode
	}
	if p.Name == "" {
		p.Name = "Unknown product"
	}
	if brands := product.Get("brands").String(); brands != "" {
		p.Brand = strings.TrimSpace(strings.Split(brands, ",")[0])
	}

	if m := servingSizeRe.FindStringSubmatch(strings.TrimSpace(product.Get("serving_size").String())); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err == nil && amount > 0 {
			unit := strings.ToLower(m[2])
			if unit == "" {
				unit = "g"
			}
			p.ServingSize = strconv.FormatFloat(amount, 'f', -1, 64) + " " + unit
			if perServing, ok := resolveProfile(nutriments, "_serving"); ok {
				perServing.Basis = models.BasisPerServing
				if unit == "g" || unit == "ml" {
					perServing.ServingGrams = amount
				}
				p.PerServing = &perServing
			} else if unit == "g" {
				derived := per100.Scale(amount / 100)
				derived.Basis = models.BasisPerServing
				derived.ServingGrams = amount
				p.PerServing = &derived
			}
		}
	}

	return p
}

// ClassificationInput builds the classifier record for a scanned product.
func (p Product) ClassificationInput() models.FoodClassificationInput {
	return models.FoodClassificationInput{
		Source:      models.SourceBarcode,
		Brand:       p.Brand,
		UPC:         p.Barcode,
		Ingredients: p.IngredientsText,
		Categories:  p.Categories,
		Name:        p.Name,
	}
}

// SplitIngredients splits a free-text ingredient list on separators and
// parentheses, dropping empty parts.
func SplitIngredients(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, part := range ingredientSepRe.Split(text, -1) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveProfile picks OFF nutriment keys with the given suffix only, so per
// 100 g and per serving values never mix.
func resolveProfile(nutriments gjson.Result, suffix string) (models.NutrientProfile, bool) {
	out, found := resolveTable(nutriments, scopedTable(suffix), 1)
	out.Calories = math.Round(out.Calories)
	return out, len(found) > 0
}

func stripTags(arr gjson.Result) []string {
	if !arr.IsArray() {
		return nil
	}
	var out []string
	for _, t := range arr.Array() {
		s := strings.ToLower(langPrefixRe.ReplaceAllString(t.String(), ""))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstString(candidates ...gjson.Result) string {
	for _, c := range candidates {
		if c.Type == gjson.String && strings.TrimSpace(c.Str) != "" {
			return strings.TrimSpace(c.Str)
		}
	}
	return ""
}
