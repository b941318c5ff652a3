// Package classify labels foods as whole, packaged or ambiguous from their
// identification record alone. Nutrient values play no part.
package classify

import (
	"strings"

	"mcp-food-score/internal/models"
)

// processedSlugParts mark a generic slug as a manufactured product.
var processedSlugParts = []string{
	"granola", "bread", "cheese", "bar", "cereal", "cracker", "chip", "cookie",
	"cake", "muffin", "bagel", "pasta", "noodle", "sausage", "bacon", "hot_dog",
	"ham", "salami", "jerky", "yogurt", "soda", "candy", "chocolate", "sauce",
	"dressing", "pizza", "tortilla", "waffle", "pancake", "nugget",
}

// wholeFoodHints are raw produce, protein, nut and grain names, singular.
// They match whole words or phrases, plurals included.
var wholeFoodHints = []string{
	"apple", "banana", "orange", "pear", "peach", "plum", "grape", "berry",
	"strawberry", "blueberry", "raspberry", "blackberry", "mango", "pineapple", "melon", "kiwi",
	"lemon", "lime", "cherry", "avocado", "tomato",
	"asparagus", "broccoli", "cauliflower", "spinach", "kale", "lettuce", "cabbage",
	"carrot", "celery", "cucumber", "zucchini", "pepper", "onion", "garlic",
	"mushroom", "potato", "sweet potato", "squash", "pumpkin", "beet", "pea",
	"egg", "chicken breast", "turkey breast", "salmon", "tuna", "cod", "shrimp",
	"beef", "steak", "pork loin", "tofu",
	"almond", "walnut", "cashew", "pecan", "pistachio", "peanut", "seed",
	"oat", "rice", "quinoa", "barley", "lentil", "bean", "chickpea",
}

// processedNameModifiers veto a whole-food hint: "apple pie" is not an apple.
var processedNameModifiers = []string{
	"pie", "juice", "chips", "crisps", "cake", "cookie", "candy", "bar", "sauce",
	"jam", "jelly", "fried", "breaded", "nugget", "smoothie", "soda", "sweetened",
	"frosted", "pudding", "butter", "cheese", "bread", "cereal", "granola", "jerky",
	"cracker", "crackers", "muffin", "pastry", "treat", "treats", "latte",
}

var packagedCategoryParts = []string{"packaged", "processed", "snack", "beverage"}

// Classify returns the FoodKind for in. It is total and deterministic; the
// first matching rule wins.
func Classify(in models.FoodClassificationInput) models.FoodKind {
	if strings.TrimSpace(in.UPC) != "" || strings.TrimSpace(in.Ingredients) != "" {
		return models.KindPackaged
	}

	if slug := strings.ToLower(strings.TrimSpace(in.GenericSlug)); slug != "" {
		if containsAny(slug, processedSlugParts) {
			return models.KindPackaged
		}
		return models.KindWholeFood
	}

	name := strings.ToLower(strings.TrimSpace(in.Name))
	if name != "" && !hasWord(name, processedNameModifiers) && hasHint(name, wholeFoodHints) {
		return models.KindWholeFood
	}

	for _, c := range in.Categories {
		if containsAny(strings.ToLower(c), packagedCategoryParts) {
			return models.KindPackaged
		}
	}

	return models.KindAmbiguous
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// hasWord matches whole words so that "barley" does not trip "bar".
func hasWord(s string, vocab []string) bool {
	for _, f := range words(s) {
		for _, w := range vocab {
			if f == w {
				return true
			}
		}
	}
	return false
}

// hasHint reports whether any hint phrase appears in s as consecutive whole
// words. The last word of a hint also matches its plural, so "oat" finds
// "oats" but not "goat", and "pepper" never matches "pepperoni".
func hasHint(s string, hints []string) bool {
	tokens := words(s)
	for _, h := range hints {
		hw := strings.Fields(h)
		for i := 0; i+len(hw) <= len(tokens); i++ {
			if phraseAt(tokens[i:], hw) {
				return true
			}
		}
	}
	return false
}

func phraseAt(tokens, phrase []string) bool {
	last := len(phrase) - 1
	for j, w := range phrase[:last] {
		if tokens[j] != w {
			return false
		}
	}
	return isPluralOf(tokens[last], phrase[last])
}

// isPluralOf accepts word itself and its regular English plurals.
func isPluralOf(token, word string) bool {
	switch token {
	case word, word + "s", word + "es":
		return true
	}
	return strings.HasSuffix(word, "y") && token == strings.TrimSuffix(word, "y")+"ies"
}
