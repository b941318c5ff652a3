package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/models"
)

func TestEdamamLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/food-database/v2/parser", r.URL.Path)
		assert.Equal(t, "greek yogurt", r.URL.Query().Get("ingr"))
		assert.Equal(t, "id", r.URL.Query().Get("app_id"))
		assert.Equal(t, "key", r.URL.Query().Get("app_key"))
		_, _ = io.WriteString(w, `{
			"parsed": [{"food": {
				"foodId": "food_yog",
				"label": "Greek Yogurt",
				"knownAs": "strained yogurt",
				"foodContentsLabel": "milk; cultures",
				"nutrients": {"ENERC_KCAL": 59, "PROCNT": 10.2, "CHOCDF": 3.6, "FAT": 0.4, "SUGAR": 3.2, "NA": 36, "FASAT": 0.1}
			}}],
			"hints": []
		}`)
	}))
	defer srv.Close()

	p := NewEdamamProvider(config.EdamamConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL}, config.EnrichmentConfig{})
	food, err := p.Lookup(context.Background(), "greek yogurt", "en-US")
	require.NoError(t, err)

	assert.Equal(t, "Greek Yogurt", food.Name)
	assert.Equal(t, []string{"strained yogurt"}, food.Aliases)
	assert.Equal(t, []string{"milk", "cultures"}, food.Ingredients)
	assert.Equal(t, models.EnrichEdamam, food.Source)
	assert.Equal(t, "food_yog", food.SourceID)
	assert.Equal(t, 0.78, food.Confidence)
	assert.Equal(t, models.NutrientProfile{
		Calories: 59, ProteinG: 10.2, CarbsG: 3.6, FatG: 0.4, SugarG: 3.2, SodiumMg: 36, SaturatedFatG: 0.1,
		Basis: models.BasisPer100g,
	}, food.Per100g)
}

func TestEdamamHintsAndErrors(t *testing.T) {
	var status int
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()
	p := NewEdamamProvider(config.EdamamConfig{BaseURL: srv.URL}, config.EnrichmentConfig{})

	status, body = http.StatusOK, `{"parsed":[],"hints":[{"food":{"foodId":"f2","label":"Kiwi","nutrients":{"ENERC_KCAL":61}}}]}`
	food, err := p.Lookup(context.Background(), "kiwi", "")
	require.NoError(t, err)
	assert.Equal(t, "f2", food.SourceID)

	status, body = http.StatusOK, `{"parsed":[],"hints":[]}`
	_, err = p.Lookup(context.Background(), "nothing", "")
	assert.ErrorIs(t, err, ErrNoMatch)

	status, body = http.StatusUnauthorized, `bad key`
	_, err = p.Lookup(context.Background(), "kiwi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGatewayLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openrouter-gateway", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var rpc struct {
			Method string `json:"method"`
			Params struct {
				Name      string                 `json:"name"`
				Arguments map[string]interface{} `json:"arguments"`
			} `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rpc))
		assert.Equal(t, "tools/call", rpc.Method)
		assert.Equal(t, "create_completion", rpc.Params.Name)
		assert.Equal(t, "test-model", rpc.Params.Arguments["model"])

		completion := `{"content":"Here you go:\n{\"name\":\"Lentil soup\",\"aliases\":[\"dal\"],\"ingredients\":[\"lentils\",\"onion\"],\"per100g\":{\"calories\":40,\"protein_g\":5,\"carbs_g\":12,\"fat_g\":1,\"fiber_g\":4,\"sodium_mg\":300},\"confidence\":0.65}"}`
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"content": []map[string]string{{"type": "text", "text": completion}},
			},
		})
	}))
	defer srv.Close()

	g := NewGatewayProvider(config.GatewayConfig{URL: srv.URL, APIKey: "secret", Model: "test-model"}, config.EnrichmentConfig{})
	food, err := g.Lookup(context.Background(), "lentil soup", "en-US")
	require.NoError(t, err)

	assert.Equal(t, "Lentil soup", food.Name)
	assert.Equal(t, []string{"dal"}, food.Aliases)
	assert.Equal(t, []string{"lentils", "onion"}, food.Ingredients)
	assert.Equal(t, models.EnrichEstimated, food.Source)
	assert.Equal(t, 0.65, food.Confidence)
	assert.Equal(t, "en-US", food.Locale)
	// 40 kcal disagrees with 4*5 + 4*12 + 9*1 = 77 and is replaced.
	assert.Equal(t, 77.0, food.Per100g.Calories)
	assert.Equal(t, 300.0, food.Per100g.SodiumMg)
	assert.Equal(t, models.BasisPer100g, food.Per100g.Basis)
}

func TestParseGatewayFood(t *testing.T) {
	_, err := parseGatewayFood("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = parseGatewayFood(`{"name":"x"}`)
	assert.ErrorIs(t, err, ErrNoMatch)

	food, err := parseGatewayFood(`{"name":"Plain","per100g":{"calories":100,"protein_g":25},"confidence":7}`)
	require.NoError(t, err)
	assert.Equal(t, 0.6, food.Confidence)
	assert.Equal(t, 100.0, food.Per100g.Calories)
}

func TestGatewayRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"upstream down"}}`)
	}))
	defer srv.Close()

	g := NewGatewayProvider(config.GatewayConfig{URL: srv.URL}, config.EnrichmentConfig{})
	_, err := g.Lookup(context.Background(), "soup", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

type stubProvider struct {
	name string
	food *models.EnrichedFood
	err  error
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Lookup(context.Context, string, string) (*models.EnrichedFood, error) {
	return s.food, s.err
}

func TestChain(t *testing.T) {
	good := &models.EnrichedFood{Name: "ok", Per100g: models.NutrientProfile{Calories: 10}}
	empty := &models.EnrichedFood{Name: "empty"}
	boom := errors.New("boom")

	food, err := Chain{
		stubProvider{name: "a", err: boom},
		stubProvider{name: "b", food: empty},
		stubProvider{name: "c", food: good},
	}.Lookup(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Same(t, good, food)

	_, err = Chain{stubProvider{name: "a", err: boom}, stubProvider{name: "b", food: empty}}.Lookup(context.Background(), "q", "")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Chain{}.Lookup(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestThrottleHonoursContext(t *testing.T) {
	th := newThrottle(0, 0, 1)
	release, err := th.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = th.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release, err = th.acquire(context.Background())
	require.NoError(t, err)
	release()

	var nilThrottle *throttle
	release, err = nilThrottle.acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestProvidersFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Edamam.AppID = ""
	chain := ProvidersFromConfig(cfg)
	require.Len(t, chain, 1)
	assert.Equal(t, "gateway", chain[0].Name())

	cfg.Edamam.AppID, cfg.Edamam.AppKey = "id", "key"
	chain = ProvidersFromConfig(cfg)
	require.Len(t, chain, 2)
	assert.Equal(t, "edamam", chain[0].Name())
}
