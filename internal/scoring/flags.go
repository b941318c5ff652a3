package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"mcp-food-score/internal/models"
)

var (
	artificialColorRe = regexp.MustCompile(`(red\s?40|allura\s?red|yellow\s?5|tartrazine|yellow\s?6|sunset\s?yellow|blue\s?1|blue\s?2|green\s?3)`)
	preservativeRe    = regexp.MustCompile(`\b(bha|bht|tbhq|sodium\s+benzoate|potassium\s+sorbate)\b`)
	sweetenerRe       = regexp.MustCompile(`(aspartame|acesulfame\s*k|sucralose|saccharin)`)
)

// Flags lists the ingredient and nutrient warnings shown next to a score.
// Nutrients are read per serving.
func Flags(ingredients string, n models.NutrientProfile) []models.HealthFlag {
	n = sanitize(n)
	lower := strings.ToLower(ingredients)
	var flags []models.HealthFlag

	if n.SugarG >= 18 {
		level := models.FlagWarning
		if n.SugarG >= 25 {
			level = models.FlagDanger
		}
		flags = append(flags, models.HealthFlag{
			ID:      "high_sugar",
			Level:   level,
			Label:   "High Sugar",
			Details: fmt.Sprintf("%gg sugar per serving", n.SugarG),
		})
	}

	if artificialColorRe.MatchString(lower) {
		flags = append(flags, models.HealthFlag{
			ID:      "artificial_colors",
			Level:   models.FlagWarning,
			Label:   "Artificial Colors",
			Details: "Contains Red 40, Yellow 5/6, Blue 1, or other artificial colors",
		})
	}

	if preservativeRe.MatchString(lower) {
		flags = append(flags, models.HealthFlag{
			ID:      "preservatives",
			Level:   models.FlagWarning,
			Label:   "Preservatives of Concern",
			Details: "Contains BHA, BHT, TBHQ, or other concerning preservatives",
		})
	}

	if sweetenerRe.MatchString(lower) {
		flags = append(flags, models.HealthFlag{
			ID:      "artificial_sweeteners",
			Level:   models.FlagWarning,
			Label:   "Artificial Sweeteners",
			Details: "Contains aspartame, sucralose, or other artificial sweeteners",
		})
	}

	if n.SodiumMg > 800 {
		level := models.FlagWarning
		if n.SodiumMg > 1200 {
			level = models.FlagDanger
		}
		flags = append(flags, models.HealthFlag{
			ID:      "high_sodium",
			Level:   level,
			Label:   "High Sodium",
			Details: fmt.Sprintf("%gmg sodium per serving", n.SodiumMg),
		})
	}

	if strings.Contains(lower, "whole grain") && n.SugarG < 10 {
		flags = append(flags, models.HealthFlag{
			ID:      "whole_grains",
			Level:   models.FlagOK,
			Label:   "Whole Grains",
			Details: "Contains whole grain ingredients",
		})
	}

	if n.SodiumMg > 0 && n.SodiumMg < 140 {
		flags = append(flags, models.HealthFlag{
			ID:      "low_sodium",
			Level:   models.FlagOK,
			Label:   "Low Sodium",
			Details: "Low in sodium",
		})
	}

	return flags
}
