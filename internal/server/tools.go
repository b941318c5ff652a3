package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-food-score/internal/classify"
	"mcp-food-score/internal/config"
	"mcp-food-score/internal/enrich"
	"mcp-food-score/internal/models"
	"mcp-food-score/internal/nutrients"
	"mcp-food-score/internal/scoring"
	"mcp-food-score/internal/storage"
)

var errInvalidParams = errors.New("invalid parameters")

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest, flags config.Flags) (*protocol.CallToolResult, error)

type ClassifyFoodParams struct {
	models.FoodClassificationInput
}

// NutritionParams carries nutrients either as a profile or as a raw payload
// in any shape the normalizer understands.
type NutritionParams struct {
	Nutrients    *models.NutrientProfile `json:"nutrients,omitempty" description:"Nutrients for the portion (per serving unless basis says otherwise)"`
	RawNutrients json.RawMessage         `json:"raw_nutrients,omitempty" description:"Nutrition payload in any supported shape, normalized per gram"`
	Grams        float64                 `json:"grams,omitempty" description:"Portion weight in grams (defaults to 100)"`
}

type ScoreFoodParams struct {
	Input models.FoodClassificationInput `json:"input" description:"Food identification record"`
	NutritionParams
}

type NormalizeNutrientsParams struct {
	Payload json.RawMessage `json:"payload" description:"Nutrition payload to normalize"`
	Grams   float64         `json:"grams,omitempty" description:"Also scale the result to this portion"`
}

type EnrichFoodParams struct {
	enrich.Request
	DetectedItems []models.DetectedItem `json:"detected_items,omitempty" description:"Photo items; those without macros get a whole-food estimate"`
}

type LogFoodParams struct {
	models.FoodClassificationInput
	NutritionParams
	LoggedAt string `json:"logged_at,omitempty" description:"ISO timestamp of when the food was eaten (defaults to now)"`
}

type GetFoodLogsParams struct {
	StartDate string `json:"start_date,omitempty" description:"Start date for log query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date for log query (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of entries to return"`
}

type GetFoodLogParams struct {
	ID string `json:"id" description:"Food log entry ID"`
}

type GetVaultItemParams struct {
	Provider    string `json:"provider" description:"Provider that supplied the item (FDC, EDAMAM, NUTRITIONIX)"`
	ProviderRef string `json:"provider_ref" description:"Provider's own identifier for the item"`
}

type SearchVaultParams struct {
	Query  string `json:"query" description:"Name or brand prefix, at least 3 characters"`
	Region string `json:"region,omitempty" description:"Region code (defaults to the server region)"`
	Limit  int    `json:"limit,omitempty" description:"Maximum number of items (at most 8)"`
}

type ScoreBarcodeProductParams struct {
	Barcode string          `json:"barcode,omitempty" description:"Barcode used when the payload has none"`
	Product json.RawMessage `json:"product" description:"Open Food Facts product payload"`
}

func (s *FoodScoreServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"classify_food":         s.handleClassifyFood,
		"score_food":            s.handleScoreFood,
		"normalize_nutrients":   s.handleNormalizeNutrients,
		"enrich_food":           s.handleEnrichFood,
		"log_food":              s.handleLogFood,
		"get_food_log":          s.handleGetFoodLog,
		"get_food_logs":         s.handleGetFoodLogs,
		"get_vault_item":        s.handleGetVaultItem,
		"search_vault":          s.handleSearchVault,
		"score_barcode_product": s.handleScoreBarcodeProduct,
	}
}

func toolNames() []string {
	var s FoodScoreServer
	names := make([]string, 0, 10)
	for name := range s.tools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", errInvalidParams, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	return nil
}

// portion resolves the nutrients of a tool call to the eaten portion and,
// when derivable, the per-gram basis.
func (p NutritionParams) portion() (models.NutrientProfile, *models.NutrientProfile, error) {
	grams := p.Grams
	if grams <= 0 {
		grams = 100
	}
	switch {
	case len(p.RawNutrients) > 0:
		perGram := nutrients.Normalize(p.RawNutrients).PerGram
		return nutrients.ForPortion(perGram, grams), &perGram, nil
	case p.Nutrients != nil:
		n := *p.Nutrients
		if n.Basis == "" {
			n.Basis = models.BasisPerServing
		}
		if n.Basis == models.BasisPerServing && n.ServingGrams <= 0 {
			n.ServingGrams = grams
		}
		perGram := nutrients.ToPerGram(n)
		if n.Basis != models.BasisPerServing {
			n = nutrients.ForPortion(perGram, grams)
		}
		return n, &perGram, nil
	default:
		return models.NutrientProfile{}, nil, fmt.Errorf("%w: nutrients or raw_nutrients is required", errInvalidParams)
	}
}

func (s *FoodScoreServer) handleClassifyFood(_ context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params ClassifyFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	kind := classify.Classify(params.FoodClassificationInput)
	return s.createJSONResponse(map[string]interface{}{
		"kind":             kind,
		"whole_food_curve": s.scorer.UseWholeFoodCurve(kind, params.FoodClassificationInput),
	})
}

func (s *FoodScoreServer) handleScoreFood(_ context.Context, req *protocol.CallToolRequest, flags config.Flags) (*protocol.CallToolResult, error) {
	var params ScoreFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	portion, _, err := params.portion()
	if err != nil {
		return nil, err
	}

	result := s.scorer.Evaluate(models.ScoreContext{Input: params.Input, Nutrients: portion}, flags)
	return s.createJSONResponse(map[string]interface{}{
		"score":     result,
		"nutrients": portion,
	})
}

func (s *FoodScoreServer) handleNormalizeNutrients(_ context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params NormalizeNutrientsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is required", errInvalidParams)
	}

	result := nutrients.Normalize(params.Payload)
	if params.Grams <= 0 {
		return s.createJSONResponse(result)
	}
	return s.createJSONResponse(map[string]interface{}{
		"normalized": result,
		"portion":    nutrients.ForPortion(result.PerGram, params.Grams),
	})
}

func (s *FoodScoreServer) handleEnrichFood(ctx context.Context, req *protocol.CallToolRequest, flags config.Flags) (*protocol.CallToolResult, error) {
	var params EnrichFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	hasQuery := strings.TrimSpace(params.Query) != "" || params.Candidate != nil
	if !hasQuery && len(params.DetectedItems) == 0 {
		return nil, fmt.Errorf("%w: query, candidate or detected_items is required", errInvalidParams)
	}
	if params.Locale == "" {
		params.Locale = s.config.Locale
	}

	resp := map[string]interface{}{}
	if len(params.DetectedItems) > 0 {
		filled := 0
		for i := range params.DetectedItems {
			if s.resolver.FillMissing(&params.DetectedItems[i]) {
				filled++
			}
		}
		resp["detected_items"] = params.DetectedItems
		resp["filled"] = filled
	}
	if !hasQuery {
		return s.createJSONResponse(resp)
	}

	food, err := s.resolver.Enrich(ctx, params.Request, flags)
	if errors.Is(err, enrich.ErrUnresolved) {
		resp["found"] = false
		return s.createJSONResponse(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enrich %q: %w", params.Query, err)
	}

	resp["found"] = true
	resp["food"] = food
	return s.createJSONResponse(resp)
}

func (s *FoodScoreServer) handleLogFood(ctx context.Context, req *protocol.CallToolRequest, flags config.Flags) (*protocol.CallToolResult, error) {
	var params LogFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", errInvalidParams)
	}

	var loggedAt time.Time
	if params.LoggedAt != "" {
		var err error
		loggedAt, err = time.Parse(time.RFC3339, params.LoggedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid logged_at: %v", errInvalidParams, err)
		}
	}

	portion, perGram, err := params.portion()
	if err != nil {
		return nil, err
	}
	grams := portion.ServingGrams

	result := s.scorer.Evaluate(models.ScoreContext{Input: params.FoodClassificationInput, Nutrients: portion}, flags)

	entry := &models.FoodLogEntry{
		Name:        params.Name,
		Source:      params.Source,
		Grams:       grams,
		Nutrients:   portion,
		Kind:        result.Kind,
		HealthScore: result.Score10,
		LoggedAt:    loggedAt,
	}
	if flags.SaveSplit {
		entry.PerGram = perGram
	}

	if err := s.storage.SaveFoodLog(ctx, entry, flags.SaveSplit); err != nil {
		return nil, fmt.Errorf("failed to save food log: %w", err)
	}

	s.logger.Info("food_log.saved",
		zap.String("id", entry.ID),
		zap.String("name", entry.Name),
		zap.Bool("split", flags.SaveSplit),
		zap.Float64("health_score", entry.HealthScore))

	return s.createJSONResponse(map[string]interface{}{
		"entry": entry,
		"score": result,
	})
}

func (s *FoodScoreServer) handleGetFoodLog(ctx context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params GetFoodLogParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", errInvalidParams)
	}

	entry, err := s.storage.GetFoodLog(ctx, params.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return s.createJSONResponse(map[string]interface{}{"found": false})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve food log: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"found": true,
		"entry": entry,
	})
}

func (s *FoodScoreServer) handleGetFoodLogs(ctx context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params GetFoodLogsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Limit <= 0 {
		params.Limit = 20
	}

	logs, err := s.storage.GetFoodLogs(ctx, params.StartDate, params.EndDate, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve food logs: %w", err)
	}
	if logs == nil {
		logs = []*models.FoodLogEntry{}
	}

	return s.createJSONResponse(logs)
}

// handleGetVaultItem looks an item up by its provider reference, expired
// items included.
func (s *FoodScoreServer) handleGetVaultItem(ctx context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params GetVaultItemParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Provider == "" || params.ProviderRef == "" {
		return nil, fmt.Errorf("%w: provider and provider_ref are required", errInvalidParams)
	}

	provider := models.EnrichSource(strings.ToUpper(strings.TrimSpace(params.Provider)))
	item, err := s.storage.GetVaultItem(ctx, provider, params.ProviderRef)
	if errors.Is(err, storage.ErrNotFound) {
		return s.createJSONResponse(map[string]interface{}{"found": false})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve vault item: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"found": true,
		"item":  item,
	})
}

func (s *FoodScoreServer) handleSearchVault(ctx context.Context, req *protocol.CallToolRequest, _ config.Flags) (*protocol.CallToolResult, error) {
	var params SearchVaultParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Region == "" {
		params.Region = s.config.Region
	}

	items, err := s.storage.SearchVault(ctx, params.Query, params.Region, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vault: %w", err)
	}
	if items == nil {
		items = []models.VaultItem{}
	}

	return s.createJSONResponse(items)
}

// handleScoreBarcodeProduct scores a packaged product per 100 g.
func (s *FoodScoreServer) handleScoreBarcodeProduct(_ context.Context, req *protocol.CallToolRequest, flags config.Flags) (*protocol.CallToolResult, error) {
	var params ScoreBarcodeProductParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Product) == 0 {
		return nil, fmt.Errorf("%w: product is required", errInvalidParams)
	}

	product := nutrients.ParseOFFProduct(params.Product, params.Barcode)
	var result scoring.Result
	if product.Per100g.HasMacros() {
		result = s.scorer.Evaluate(models.ScoreContext{
			Input:     product.ClassificationInput(),
			Nutrients: product.Per100g,
		}, flags)
	} else {
		s.logger.Info("barcode.no_nutrition", zap.String("barcode", product.Barcode))
	}

	return s.createJSONResponse(map[string]interface{}{
		"product": product,
		"scored":  product.Per100g.HasMacros(),
		"score":   result,
	})
}
