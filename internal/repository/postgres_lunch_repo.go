package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/lunchmate/internal/model"
)

// PostgresLunchRepo はPostgreSQLを使用したランチリポジトリ。
// 同僚とレストランのスナップショットはJSONBで保持し、検索用の列を別に持つ。
type PostgresLunchRepo struct {
	db *sql.DB
}

// NewPostgresLunchRepo はPostgresLunchRepoを生成する。
func NewPostgresLunchRepo(db *sql.DB) *PostgresLunchRepo {
	return &PostgresLunchRepo{db: db}
}

// Upsert はランチを複合キー（同僚・日付）で書き込む。
func (r *PostgresLunchRepo) Upsert(ctx context.Context, lunch *model.Lunch) error {
	workmateJSON, err := json.Marshal(lunch.Workmate)
	if err != nil {
		return fmt.Errorf("failed to marshal workmate snapshot: %w", err)
	}
	restaurantJSON, err := json.Marshal(lunch.Restaurant)
	if err != nil {
		return fmt.Errorf("failed to marshal restaurant snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO lunches (id, workmate_external_id, restaurant_id, restaurant_name, date, workmate, restaurant, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   restaurant_id = EXCLUDED.restaurant_id,
		   restaurant_name = EXCLUDED.restaurant_name,
		   workmate = EXCLUDED.workmate,
		   restaurant = EXCLUDED.restaurant,
		   created_at = EXCLUDED.created_at`,
		lunch.ID, lunch.Workmate.ExternalID, lunch.Restaurant.ID, lunch.Restaurant.Name,
		lunch.Date, workmateJSON, restaurantJSON, lunch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lunch: %w", err)
	}
	return nil
}

// buildLunchWhere はフィルタから等価条件のWHERE句を組み立てる。
func buildLunchWhere(filter LunchFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("date", filter.Date)
	add("workmate_external_id", filter.WorkmateExternalID)
	add("restaurant_name", filter.RestaurantName)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Find は条件に一致するランチを作成順で取得する。
func (r *PostgresLunchRepo) Find(ctx context.Context, filter LunchFilter) ([]*model.Lunch, error) {
	where, args := buildLunchWhere(filter)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, workmate, restaurant, created_at FROM lunches`+where+` ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find lunches: %w", err)
	}
	defer rows.Close()

	var lunches []*model.Lunch
	for rows.Next() {
		var l model.Lunch
		var workmateJSON, restaurantJSON []byte
		if err := rows.Scan(&l.ID, &l.Date, &workmateJSON, &restaurantJSON, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lunch: %w", err)
		}
		if err := json.Unmarshal(workmateJSON, &l.Workmate); err != nil {
			return nil, fmt.Errorf("failed to decode workmate snapshot: %w", err)
		}
		if err := json.Unmarshal(restaurantJSON, &l.Restaurant); err != nil {
			return nil, fmt.Errorf("failed to decode restaurant snapshot: %w", err)
		}
		lunches = append(lunches, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lunches: %w", err)
	}
	return lunches, nil
}

// Count は条件に一致するランチの件数を返す。
func (r *PostgresLunchRepo) Count(ctx context.Context, filter LunchFilter) (int64, error) {
	where, args := buildLunchWhere(filter)
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM lunches`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lunches: %w", err)
	}
	return count, nil
}

// Delete は条件に一致するランチをすべて削除する。
func (r *PostgresLunchRepo) Delete(ctx context.Context, filter LunchFilter) (int64, int64, error) {
	where, args := buildLunchWhere(filter)
	if where == "" {
		return 0, 0, fmt.Errorf("refusing to delete lunches without filter")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var matched int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM lunches`+where, args...).Scan(&matched); err != nil {
		return 0, 0, fmt.Errorf("failed to count lunches: %w", err)
	}
	if matched == 0 {
		return 0, 0, nil
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM lunches`+where, args...)
	if err != nil {
		return matched, 0, fmt.Errorf("failed to delete lunches: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return matched, 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return matched, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return matched, deleted, nil
}

// DeleteBefore は日付キーがbeforeより前のランチを削除する。
func (r *PostgresLunchRepo) DeleteBefore(ctx context.Context, before string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lunches WHERE date < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune lunches: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var (
	_ LunchRepository = (*PostgresLunchRepo)(nil)
	_ LunchPruner     = (*PostgresLunchRepo)(nil)
)
