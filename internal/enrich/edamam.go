package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
	"mcp-food-score/internal/nutrients"
)

const edamamConfidence = 0.78

// EdamamProvider resolves foods through the Edamam food-database parser.
type EdamamProvider struct {
	appID, appKey string
	baseURL       string
	client        *http.Client
	throttle      *throttle
}

func NewEdamamProvider(cfg config.EdamamConfig, lim config.EnrichmentConfig) *EdamamProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.edamam.com"
	}
	return &EdamamProvider{
		appID:    cfg.AppID,
		appKey:   cfg.AppKey,
		baseURL:  strings.TrimRight(base, "/"),
		client:   &http.Client{Timeout: timeout},
		throttle: newThrottle(lim.RatePerSecond, lim.Burst, lim.MaxConcurrent),
	}
}

func (e *EdamamProvider) Name() string { return "edamam" }

type edamamFood struct {
	FoodID            string             `json:"foodId"`
	Label             string             `json:"label"`
	KnownAs           string             `json:"knownAs"`
	Category          string             `json:"category"`
	FoodContentsLabel string             `json:"foodContentsLabel"`
	Nutrients         map[string]float64 `json:"nutrients"`
}

type edamamParserResponse struct {
	Parsed []struct {
		Food edamamFood `json:"food"`
	} `json:"parsed"`
	Hints []struct {
		Food edamamFood `json:"food"`
	} `json:"hints"`
}

func (e *EdamamProvider) Lookup(ctx context.Context, query, locale string) (*models.EnrichedFood, error) {
	release, err := e.throttle.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	q := url.Values{}
	q.Set("ingr", query)
	q.Set("app_id", e.appID)
	q.Set("app_key", e.appKey)
	u := e.baseURL + "/api/food-database/v2/parser?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Edamam request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Edamam parser: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Edamam parser response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edamam parser API error %d: %s", resp.StatusCode, string(body))
	}

	var pr edamamParserResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse Edamam parser JSON: %w", err)
	}

	var food *edamamFood
	switch {
	case len(pr.Parsed) > 0:
		food = &pr.Parsed[0].Food
	case len(pr.Hints) > 0:
		food = &pr.Hints[0].Food
	default:
		return nil, ErrNoMatch
	}

	out := &models.EnrichedFood{
		Name:        food.Label,
		Locale:      locale,
		Ingredients: splitContents(food.FoodContentsLabel),
		Per100g:     edamamProfile(food.Nutrients),
		Source:      models.EnrichEdamam,
		SourceID:    food.FoodID,
		Confidence:  edamamConfidence,
	}
	if food.KnownAs != "" && !strings.EqualFold(food.KnownAs, food.Label) {
		out.Aliases = []string{food.KnownAs}
	}
	return out, nil
}

// edamamProfile maps Edamam nutrient codes, which are per 100 g.
func edamamProfile(n map[string]float64) models.NutrientProfile {
	return models.NutrientProfile{
		Calories:      n["ENERC_KCAL"],
		ProteinG:      n["PROCNT"],
		CarbsG:        n["CHOCDF"],
		FatG:          n["FAT"],
		FiberG:        n["FIBTG"],
		SugarG:        n["SUGAR"],
		SodiumMg:      n["NA"],
		SaturatedFatG: n["FASAT"],
		Basis:         models.BasisPer100g,
	}
}

// splitContents splits Edamam's semicolon separated foodContentsLabel.
func splitContents(label string) []string {
	if !strings.Contains(label, ";") {
		return nutrients.SplitIngredients(label)
	}
	var out []string
	for _, part := range strings.Split(label, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
