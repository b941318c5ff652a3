package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mcp-food-score/internal/models"
)

// SaveFoodLog stores entry. The legacy schema keeps only portion nutrients in
// food_logs; with split set the per-gram basis is also written to
// food_log_per_gram. Missing ID and timestamps are filled in on entry.
func (s *SQLiteStorage) SaveFoodLog(ctx context.Context, entry *models.FoodLogEntry, split bool) error {
	if entry == nil {
		return fmt.Errorf("nil food log entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = entry.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	n := entry.Nutrients
	logQuery := `
        INSERT INTO food_logs (
            id, name, source, grams,
            calories, protein, carbs, fat, fiber, sugar, sodium, saturated_fat,
            kind, health_score, logged_at, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, logQuery,
		entry.ID, entry.Name, string(entry.Source), entry.Grams,
		n.Calories, n.ProteinG, n.CarbsG, n.FatG, n.FiberG, n.SugarG, n.SodiumMg, n.SaturatedFatG,
		string(entry.Kind), entry.HealthScore, formatTime(entry.LoggedAt), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert food log: %w", err)
	}

	if split {
		pg := entry.PerGram
		if pg == nil {
			if entry.Grams <= 0 {
				return fmt.Errorf("split save needs grams or a per-gram profile")
			}
			derived := entry.Nutrients.Scale(1 / entry.Grams)
			derived.Basis = models.BasisPerGram
			derived.ServingGrams = 0
			pg = &derived
			entry.PerGram = pg
		}
		perGramQuery := `
            INSERT INTO food_log_per_gram (
                log_id, calories, protein, carbs, fat, fiber, sugar, sodium, saturated_fat
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        `
		_, err = tx.ExecContext(ctx, perGramQuery,
			entry.ID, pg.Calories, pg.ProteinG, pg.CarbsG, pg.FatG, pg.FiberG, pg.SugarG, pg.SodiumMg, pg.SaturatedFatG)
		if err != nil {
			return fmt.Errorf("failed to insert per-gram row: %w", err)
		}
	}

	return tx.Commit()
}

const foodLogSelect = `
    SELECT l.id, l.name, l.source, l.grams,
           l.calories, l.protein, l.carbs, l.fat, l.fiber, l.sugar, l.sodium, l.saturated_fat,
           l.kind, l.health_score, l.logged_at, l.created_at,
           g.calories, g.protein, g.carbs, g.fat, g.fiber, g.sugar, g.sodium, g.saturated_fat
    FROM food_logs l
    LEFT JOIN food_log_per_gram g ON g.log_id = l.id
`

// GetFoodLog returns one entry by ID.
func (s *SQLiteStorage) GetFoodLog(ctx context.Context, id string) (*models.FoodLogEntry, error) {
	row := s.db.QueryRowContext(ctx, foodLogSelect+` WHERE l.id = ?`, id)
	entry, err := scanFoodLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// GetFoodLogs lists entries newest first. startDate and endDate are
// inclusive YYYY-MM-DD bounds on the logged date (UTC); empty means open.
func (s *SQLiteStorage) GetFoodLogs(ctx context.Context, startDate, endDate string, limit int) ([]*models.FoodLogEntry, error) {
	query := foodLogSelect + ` WHERE 1=1`
	args := []interface{}{}

	if startDate != "" {
		query += " AND substr(l.logged_at, 1, 10) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND substr(l.logged_at, 1, 10) <= ?"
		args = append(args, endDate)
	}
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY l.logged_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query food logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.FoodLogEntry
	for rows.Next() {
		entry, err := scanFoodLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate food logs: %w", err)
	}
	return entries, nil
}

func scanFoodLog(row rowScanner) (*models.FoodLogEntry, error) {
	var (
		e                   models.FoodLogEntry
		source, kind        string
		loggedAt, createdAt string
		pg                  [8]sql.NullFloat64
	)
	n := &e.Nutrients
	err := row.Scan(
		&e.ID, &e.Name, &source, &e.Grams,
		&n.Calories, &n.ProteinG, &n.CarbsG, &n.FatG, &n.FiberG, &n.SugarG, &n.SodiumMg, &n.SaturatedFatG,
		&kind, &e.HealthScore, &loggedAt, &createdAt,
		&pg[0], &pg[1], &pg[2], &pg[3], &pg[4], &pg[5], &pg[6], &pg[7])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan food log: %w", err)
	}

	e.Source = models.Source(source)
	e.Kind = models.FoodKind(kind)
	n.Basis = models.BasisPerServing
	n.ServingGrams = e.Grams

	if pg[0].Valid {
		e.PerGram = &models.NutrientProfile{
			Calories:      pg[0].Float64,
			ProteinG:      pg[1].Float64,
			CarbsG:        pg[2].Float64,
			FatG:          pg[3].Float64,
			FiberG:        pg[4].Float64,
			SugarG:        pg[5].Float64,
			SodiumMg:      pg[6].Float64,
			SaturatedFatG: pg[7].Float64,
			Basis:         models.BasisPerGram,
		}
	}

	if e.LoggedAt, err = parseTime(loggedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
