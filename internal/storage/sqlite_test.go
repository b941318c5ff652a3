package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-score/internal/models"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "food-score.db"), nil)
	require.NoError(t, err)
	s.now = func() time.Time { return testNow }
	t.Cleanup(func() { s.Close() })
	return s
}

func vaultItem(provider models.EnrichSource, ref, name, brand string, confidence float64, updated time.Time) models.VaultItem {
	return models.VaultItem{
		Provider:    provider,
		ProviderRef: ref,
		Name:        name,
		Brand:       brand,
		Per100g:     models.NutrientProfile{Calories: 100, ProteinG: 5, Basis: models.BasisPer100g},
		Confidence:  confidence,
		Region:      "US",
		UpdatedAt:   updated,
		ExpiresAt:   updated.Add(365 * 24 * time.Hour),
	}
}

func TestVaultUpsertIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	item := vaultItem(models.EnrichEdamam, "food_1", "Greek Yogurt", "", 0.78, testNow)
	item.Ingredients = []string{"milk", "cultures"}
	item.CanonicalKey = "generic_yogurt"

	require.NoError(t, s.PutVaultItem(ctx, item))
	require.NoError(t, s.PutVaultItem(ctx, item))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM nutrition_vault_items`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := s.GetVaultItem(ctx, models.EnrichEdamam, "food_1")
	require.NoError(t, err)
	if diff := cmp.Diff(item, *got); diff != "" {
		t.Errorf("vault item mismatch (-want +got):\n%s", diff)
	}

	item.Name = "Greek Yogurt, plain"
	item.Per100g.Calories = 59
	require.NoError(t, s.PutVaultItem(ctx, item))
	got, err = s.GetVaultItem(ctx, models.EnrichEdamam, "food_1")
	require.NoError(t, err)
	assert.Equal(t, "Greek Yogurt, plain", got.Name)
	assert.Equal(t, 59.0, got.Per100g.Calories)
}

func TestVaultGetMissing(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetVaultItem(context.Background(), models.EnrichFDC, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultPutRequiresKey(t *testing.T) {
	s := newTestStorage(t)
	assert.Error(t, s.PutVaultItem(context.Background(), models.VaultItem{Name: "x"}))
}

func TestSearchVaultRanking(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	stale := testNow.Add(-200 * 24 * time.Hour)

	items := []models.VaultItem{
		vaultItem(models.EnrichEdamam, "a", "Oat milk", "", 0.8, testNow),
		vaultItem(models.EnrichFDC, "b", "Oatmeal cookies", "Oatly", 0.6, stale),
		// matches on brand only
		vaultItem(models.EnrichNutritionix, "c", "Barista blend", "Oatside", 0.9, testNow),
		vaultItem(models.EnrichEdamam, "d", "Cornflakes", "", 0.9, testNow),
	}
	expired := vaultItem(models.EnrichEdamam, "e", "Oat bran", "", 0.9, stale)
	expired.ExpiresAt = testNow.Add(-time.Hour)
	otherRegion := vaultItem(models.EnrichEdamam, "f", "Oat flakes", "", 0.9, testNow)
	otherRegion.Region = "GB"
	items = append(items, expired, otherRegion)
	for _, it := range items {
		require.NoError(t, s.PutVaultItem(ctx, it))
	}

	got, err := s.SearchVault(ctx, "  OAT ", "US", 0)
	require.NoError(t, err)

	var refs []string
	var scores []float64
	for _, it := range got {
		refs = append(refs, it.ProviderRef)
		scores = append(scores, it.Score)
	}
	assert.Equal(t, []string{"b", "a", "c"}, refs)
	assert.InDeltaSlice(t, []float64{5.6, 5.3, 2.4}, scores, 1e-9)

	// Candidates are the 2*limit most recently updated matches, so the
	// stale "b" is outside the window here.
	limited, err := s.SearchVault(ctx, "oat", "US", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].ProviderRef)

	gb, err := s.SearchVault(ctx, "oat", "GB", 5)
	require.NoError(t, err)
	require.Len(t, gb, 1)
	assert.Equal(t, "f", gb[0].ProviderRef)
}

func TestSearchVaultShortQueryAndTelemetry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	got, err := s.SearchVault(ctx, "oa", "US", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.SearchVault(ctx, "100%_", "US", 5)
	require.NoError(t, err)

	var total, hits int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(hit), 0) FROM nutrition_vault_lookups`).Scan(&total, &hits))
	assert.Equal(t, 1, total, "short queries are not recorded")
	assert.Equal(t, 0, hits)
}

func TestSaveFoodLogLegacy(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	entry := &models.FoodLogEntry{
		Name:        "Asparagus",
		Source:      models.SourcePhotoItem,
		Grams:       120,
		Nutrients:   models.NutrientProfile{Calories: 24, ProteinG: 2.6, FiberG: 2.5, SugarG: 2.3, SodiumMg: 2.4},
		Kind:        models.KindWholeFood,
		HealthScore: 9.2,
		LoggedAt:    testNow.Add(-time.Hour),
	}
	require.NoError(t, s.SaveFoodLog(ctx, entry, false))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, testNow, entry.CreatedAt)

	got, err := s.GetFoodLog(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PerGram)
	assert.Equal(t, "Asparagus", got.Name)
	assert.Equal(t, 24.0, got.Nutrients.Calories)
	assert.Equal(t, models.BasisPerServing, got.Nutrients.Basis)
	assert.Equal(t, 120.0, got.Nutrients.ServingGrams)
	assert.True(t, entry.LoggedAt.Equal(got.LoggedAt))

	var perGramRows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM food_log_per_gram`).Scan(&perGramRows))
	assert.Zero(t, perGramRows)
}

func TestSaveFoodLogSplit(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	entry := &models.FoodLogEntry{
		ID:        "log-1",
		Name:      "Granola bar",
		Source:    models.SourceBarcode,
		Grams:     40,
		Nutrients: models.NutrientProfile{Calories: 180, SugarG: 4.8, FiberG: 1.6, SodiumMg: 60},
		Kind:      models.KindPackaged,
	}
	require.NoError(t, s.SaveFoodLog(ctx, entry, true))
	require.NotNil(t, entry.PerGram)

	got, err := s.GetFoodLog(ctx, "log-1")
	require.NoError(t, err)
	require.NotNil(t, got.PerGram)
	assert.Equal(t, models.BasisPerGram, got.PerGram.Basis)
	assert.InDelta(t, 4.5, got.PerGram.Calories, 1e-9)
	assert.InDelta(t, 0.12, got.PerGram.SugarG, 1e-9)
	assert.InDelta(t, 1.5, got.PerGram.SodiumMg, 1e-9)

	explicit := &models.FoodLogEntry{
		Name:    "Mystery",
		PerGram: &models.NutrientProfile{Calories: 2, Basis: models.BasisPerGram},
	}
	require.NoError(t, s.SaveFoodLog(ctx, explicit, true))

	assert.Error(t, s.SaveFoodLog(ctx, &models.FoodLogEntry{Name: "no grams"}, true))
	_, err = s.GetFoodLog(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveFoodLogDuplicateIDRollsBack(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFoodLog(ctx, &models.FoodLogEntry{ID: "dup", Name: "a", Grams: 10}, true))
	assert.Error(t, s.SaveFoodLog(ctx, &models.FoodLogEntry{ID: "dup", Name: "b", Grams: 10}, true))

	logs, err := s.GetFoodLogs(ctx, "", "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "a", logs[0].Name)
}

func TestGetFoodLogsDateFilter(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	days := []time.Time{
		time.Date(2025, 5, 29, 23, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC),
	}
	for i, d := range days {
		require.NoError(t, s.SaveFoodLog(ctx, &models.FoodLogEntry{
			Name: string(rune('a' + i)), Grams: 100, LoggedAt: d,
		}, false))
	}

	all, err := s.GetFoodLogs(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Name, "newest first")

	mid, err := s.GetFoodLogs(ctx, "2025-05-30", "2025-05-30", 10)
	require.NoError(t, err)
	require.Len(t, mid, 1)
	assert.Equal(t, "b", mid[0].Name)

	since, err := s.GetFoodLogs(ctx, "2025-05-30", "", 1)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "c", since[0].Name)
}
