package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lunchmate/internal/model"
)

// PostgresLikedRestaurantRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresLikedRestaurantRepo struct {
	db *sql.DB
}

// NewPostgresLikedRestaurantRepo はPostgresLikedRestaurantRepoを生成する。
func NewPostgresLikedRestaurantRepo(db *sql.DB) *PostgresLikedRestaurantRepo {
	return &PostgresLikedRestaurantRepo{db: db}
}

// Add はお気に入りを追加する。既に存在する場合は何もしない。
func (r *PostgresLikedRestaurantRepo) Add(ctx context.Context, liked *model.LikedRestaurant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO liked_restaurants (id, workmate_id, name, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workmate_id, name) DO NOTHING`,
		liked.ID, liked.WorkmateID, liked.Name, liked.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert liked restaurant: %w", err)
	}
	return nil
}

// Remove はお気に入りを削除し、削除件数を返す。
func (r *PostgresLikedRestaurantRepo) Remove(ctx context.Context, workmateID, name string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM liked_restaurants WHERE workmate_id = $1 AND name = $2`,
		workmateID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete liked restaurant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Exists はお気に入りの存在を確認する。
func (r *PostgresLikedRestaurantRepo) Exists(ctx context.Context, workmateID, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM liked_restaurants WHERE workmate_id = $1 AND name = $2)`,
		workmateID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check liked restaurant: %w", err)
	}
	return exists, nil
}

// ListNames は同僚のお気に入りレストラン名を取得する。
func (r *PostgresLikedRestaurantRepo) ListNames(ctx context.Context, workmateID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM liked_restaurants WHERE workmate_id = $1 ORDER BY created_at`,
		workmateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked restaurants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan liked restaurant: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// compile-time interface check
var _ LikedRestaurantRepository = (*PostgresLikedRestaurantRepo)(nil)
