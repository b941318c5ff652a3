package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mcp-food-score/internal/models"
)

const (
	vaultMinPrefix  = 3
	vaultMaxResults = 8
	vaultFreshDays  = 90
)

// PutVaultItem inserts or replaces the item keyed by provider and provider
// reference. Writing the same item twice leaves one row.
func (s *SQLiteStorage) PutVaultItem(ctx context.Context, item models.VaultItem) error {
	if item.Provider == "" || item.ProviderRef == "" {
		return fmt.Errorf("vault item needs provider and provider_ref")
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = s.now()
	}
	if item.ExpiresAt.IsZero() {
		item.ExpiresAt = item.UpdatedAt.Add(30 * 24 * time.Hour)
	}
	ingredients, err := json.Marshal(nonNil(item.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	query := `
        INSERT INTO nutrition_vault_items (
            provider, provider_ref, name, name_lower, brand, brand_lower, canonical_key,
            calories, protein, carbs, fat, fiber, sugar, sodium, saturated_fat,
            ingredients, confidence, region, updated_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (provider, provider_ref) DO UPDATE SET
            name = excluded.name,
            name_lower = excluded.name_lower,
            brand = excluded.brand,
            brand_lower = excluded.brand_lower,
            canonical_key = excluded.canonical_key,
            calories = excluded.calories,
            protein = excluded.protein,
            carbs = excluded.carbs,
            fat = excluded.fat,
            fiber = excluded.fiber,
            sugar = excluded.sugar,
            sodium = excluded.sodium,
            saturated_fat = excluded.saturated_fat,
            ingredients = excluded.ingredients,
            confidence = excluded.confidence,
            region = excluded.region,
            updated_at = excluded.updated_at,
            expires_at = excluded.expires_at
    `
	p := item.Per100g
	_, err = s.db.ExecContext(ctx, query,
		string(item.Provider), item.ProviderRef, item.Name, strings.ToLower(item.Name),
		item.Brand, strings.ToLower(item.Brand), string(item.CanonicalKey),
		p.Calories, p.ProteinG, p.CarbsG, p.FatG, p.FiberG, p.SugarG, p.SodiumMg, p.SaturatedFatG,
		string(ingredients), item.Confidence, item.Region,
		formatTime(item.UpdatedAt), formatTime(item.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to upsert vault item: %w", err)
	}
	return nil
}

const vaultColumns = `
    provider, provider_ref, name, brand, canonical_key,
    calories, protein, carbs, fat, fiber, sugar, sodium, saturated_fat,
    ingredients, confidence, region, updated_at, expires_at
`

// GetVaultItem returns the item for provider and ref, expired or not.
func (s *SQLiteStorage) GetVaultItem(ctx context.Context, provider models.EnrichSource, ref string) (*models.VaultItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM nutrition_vault_items WHERE provider = ? AND provider_ref = ?`,
		string(provider), ref)
	item, err := scanVaultItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SearchVault returns unexpired items in region whose name or brand starts
// with q, best first. Queries shorter than three characters match nothing.
//
// Score is the item confidence plus 4 for a name prefix match, 1 when the
// item has a brand and 0.5 when it was updated in the last 90 days.
func (s *SQLiteStorage) SearchVault(ctx context.Context, q, region string, limit int) ([]models.VaultItem, error) {
	trimmed := strings.TrimSpace(q)
	if len([]rune(trimmed)) < vaultMinPrefix {
		return nil, nil
	}
	if limit <= 0 || limit > vaultMaxResults {
		limit = vaultMaxResults
	}
	if region == "" {
		region = "US"
	}

	lower := strings.ToLower(trimmed)
	pattern := escapeLike(lower) + "%"
	now := s.now()

	rows, err := s.db.QueryContext(ctx, `
        SELECT `+vaultColumns+`
        FROM nutrition_vault_items
        WHERE (name_lower LIKE ? ESCAPE '\' OR brand_lower LIKE ? ESCAPE '\')
          AND region = ?
          AND expires_at > ?
        ORDER BY updated_at DESC
        LIMIT ?
    `, pattern, pattern, region, formatTime(now), limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault: %w", err)
	}
	defer rows.Close()

	var items []models.VaultItem
	for rows.Next() {
		item, err := scanVaultItem(rows)
		if err != nil {
			return nil, err
		}
		item.Score = rankVaultItem(*item, lower, now)
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault rows: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}

	s.recordLookup(ctx, trimmed, region, len(items) > 0)
	return items, nil
}

func rankVaultItem(item models.VaultItem, queryLower string, now time.Time) float64 {
	score := item.Confidence
	if score == 0 {
		score = 0.7
	}
	if strings.HasPrefix(strings.ToLower(item.Name), queryLower) {
		score += 4
	}
	if item.Brand != "" {
		score++
	}
	if now.Sub(item.UpdatedAt) <= vaultFreshDays*24*time.Hour {
		score += 0.5
	}
	return score
}

// recordLookup writes search telemetry. Failures are logged and ignored.
func (s *SQLiteStorage) recordLookup(ctx context.Context, q, region string, hit bool) {
	hitFlag := 0
	if hit {
		hitFlag = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nutrition_vault_lookups (id, q, region, hit, provider, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), q, region, hitFlag, "cache", formatTime(s.now()))
	if err != nil {
		s.logger.Warn("vault.lookup_telemetry_skipped", zap.Error(err))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVaultItem(row rowScanner) (*models.VaultItem, error) {
	var (
		item                 models.VaultItem
		provider, key        string
		ingredients          string
		updatedAt, expiresAt string
	)
	p := &item.Per100g
	err := row.Scan(
		&provider, &item.ProviderRef, &item.Name, &item.Brand, &key,
		&p.Calories, &p.ProteinG, &p.CarbsG, &p.FatG, &p.FiberG, &p.SugarG, &p.SodiumMg, &p.SaturatedFatG,
		&ingredients, &item.Confidence, &item.Region, &updatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan vault item: %w", err)
	}
	item.Provider = models.EnrichSource(provider)
	item.CanonicalKey = models.CanonicalKey(key)
	p.Basis = models.BasisPer100g

	if err := json.Unmarshal([]byte(ingredients), &item.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if len(item.Ingredients) == 0 {
		item.Ingredients = nil
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if item.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
