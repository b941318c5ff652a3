package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
	"mcp-food-score/internal/nutrients"
)

const gatewaySystemPrompt = `You are a nutrition database. Given a food name, return the typical nutrition for 100 g of it.

Respond with valid JSON only, in this exact format:
{
  "name": "canonical food name",
  "aliases": ["other common names"],
  "ingredients": ["main ingredients, most abundant first"],
  "per100g": {
    "calories": [number],
    "protein_g": [number],
    "carbs_g": [number],
    "fat_g": [number],
    "fiber_g": [number],
    "sugar_g": [number],
    "sodium_mg": [number],
    "saturated_fat_g": [number]
  },
  "confidence": [number between 0 and 1]
}

Use 0 for nutrients that are negligible. Never invent brand names.`

// GatewayProvider asks an LLM completion gateway for per-100 g nutrition. The
// gateway speaks JSON-RPC tools/call, the same as any MCP tool server.
type GatewayProvider struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	throttle   *throttle
}

func NewGatewayProvider(gw config.GatewayConfig, lim config.EnrichmentConfig) *GatewayProvider {
	timeout := gw.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GatewayProvider{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimRight(gw.URL, "/") + "/openrouter-gateway",
		apiKey:     gw.APIKey,
		model:      gw.Model,
		throttle:   newThrottle(lim.RatePerSecond, lim.Burst, lim.MaxConcurrent),
	}
}

func (g *GatewayProvider) Name() string { return "gateway" }

func (g *GatewayProvider) Lookup(ctx context.Context, query, locale string) (*models.EnrichedFood, error) {
	release, err := g.throttle.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	userPrompt := fmt.Sprintf("Food: %q\nLocale: %s", query, locale)
	completion := map[string]interface{}{
		"model":         g.model,
		"system_prompt": gatewaySystemPrompt,
		"messages": []map[string]interface{}{
			{"role": "user", "content": userPrompt},
		},
		"max_tokens":  800,
		"temperature": 0.1,
	}

	text, err := g.callGateway(ctx, "create_completion", completion)
	if err != nil {
		return nil, fmt.Errorf("gateway completion: %w", err)
	}
	food, err := parseGatewayFood(text)
	if err != nil {
		return nil, err
	}
	if food.Name == "" {
		food.Name = query
	}
	food.Locale = locale
	return food, nil
}

func (g *GatewayProvider) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() {
		return "", fmt.Errorf("gateway error: %s", msg.String())
	}
	text := gjson.GetBytes(raw, "result.content.0.text")
	if text.Type != gjson.String {
		return "", fmt.Errorf("unexpected response format")
	}
	return text.Str, nil
}

// parseGatewayFood pulls the first JSON object out of a completion. The
// completion is either the object itself or a wrapper with a "content" string.
func parseGatewayFood(text string) (*models.EnrichedFood, error) {
	content := text
	if c := gjson.Get(text, "content"); c.Type == gjson.String {
		content = c.Str
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion: %w", ErrNoMatch)
	}
	obj := content[start : end+1]
	if !gjson.Valid(obj) {
		return nil, fmt.Errorf("malformed JSON in completion: %w", ErrNoMatch)
	}

	res := gjson.Parse(obj)
	per := res.Get("per100g")
	if !per.IsObject() {
		return nil, fmt.Errorf("completion has no per100g: %w", ErrNoMatch)
	}
	norm := nutrients.Normalize([]byte(`{"per100g":` + per.Raw + `}`))
	per100g := nutrients.FromPer100g(nutrients.ForPortion(norm.PerGram, 100))
	per100g, _ = nutrients.ReconcileEnergy(per100g)

	confidence := res.Get("confidence").Float()
	if confidence <= 0 || confidence > 1 {
		confidence = 0.6
	}

	food := &models.EnrichedFood{
		Name:       strings.TrimSpace(res.Get("name").String()),
		Per100g:    per100g,
		Source:     models.EnrichEstimated,
		Confidence: confidence,
	}
	for _, a := range res.Get("aliases").Array() {
		if s := strings.TrimSpace(a.String()); s != "" {
			food.Aliases = append(food.Aliases, s)
		}
	}
	for _, i := range res.Get("ingredients").Array() {
		if s := strings.TrimSpace(i.String()); s != "" {
			food.Ingredients = append(food.Ingredients, s)
		}
	}
	return food, nil
}
