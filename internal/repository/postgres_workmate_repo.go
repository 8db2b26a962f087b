package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lunchmate/internal/model"
)

// PostgresWorkmateRepo はPostgreSQLを使用した同僚リポジトリ。
type PostgresWorkmateRepo struct {
	db *sql.DB
}

// NewPostgresWorkmateRepo はPostgresWorkmateRepoを生成する。
func NewPostgresWorkmateRepo(db *sql.DB) *PostgresWorkmateRepo {
	return &PostgresWorkmateRepo{db: db}
}

const workmateColumns = `id, external_id, name, email, avatar_url, notification_enabled, push_endpoint, created_at, updated_at`

func scanWorkmate(row interface{ Scan(...any) error }) (*model.Workmate, error) {
	w := &model.Workmate{}
	err := row.Scan(
		&w.ID, &w.ExternalID, &w.Name, &w.Email, &w.AvatarURL,
		&w.NotificationEnabled, &w.PushEndpoint, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

// FindByExternalID は外部IDで同僚を検索する。見つからない場合はnilを返す。
func (r *PostgresWorkmateRepo) FindByExternalID(ctx context.Context, externalID string) (*model.Workmate, error) {
	w, err := scanWorkmate(r.db.QueryRowContext(ctx,
		`SELECT `+workmateColumns+` FROM workmates WHERE external_id = $1`,
		externalID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find workmate by external ID: %w", err)
	}
	return w, nil
}

// Create は同僚を作成する。
// 同じ外部IDの同時作成は一意制約で1件に絞られ、後発の挿入は無視される。
func (r *PostgresWorkmateRepo) Create(ctx context.Context, w *model.Workmate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workmates (`+workmateColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (external_id) DO NOTHING`,
		w.ID, w.ExternalID, w.Name, w.Email, w.AvatarURL,
		w.NotificationEnabled, w.PushEndpoint, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workmate: %w", err)
	}
	return nil
}

// UpdateNotificationEnabled は通知設定を更新する。
func (r *PostgresWorkmateRepo) UpdateNotificationEnabled(ctx context.Context, externalID string, enabled bool) error {
	return r.updateOne(ctx,
		`UPDATE workmates SET notification_enabled = $2, updated_at = now() WHERE external_id = $1`,
		externalID, enabled,
	)
}

// UpdatePushEndpoint はプッシュ通知の配信先を更新する。
func (r *PostgresWorkmateRepo) UpdatePushEndpoint(ctx context.Context, externalID, endpoint string) error {
	return r.updateOne(ctx,
		`UPDATE workmates SET push_endpoint = $2, updated_at = now() WHERE external_id = $1`,
		externalID, endpoint,
	)
}

func (r *PostgresWorkmateRepo) updateOne(ctx context.Context, query, externalID string, value any) error {
	result, err := r.db.ExecContext(ctx, query, externalID, value)
	if err != nil {
		return fmt.Errorf("failed to update workmate: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("workmate not found: %s: %w", externalID, model.ErrEmptyResult)
	}
	return nil
}

// List は全同僚を名前順で取得する。
func (r *PostgresWorkmateRepo) List(ctx context.Context) ([]*model.Workmate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workmateColumns+` FROM workmates ORDER BY name, external_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workmates: %w", err)
	}
	defer rows.Close()

	var workmates []*model.Workmate
	for rows.Next() {
		w, err := scanWorkmate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workmate: %w", err)
		}
		workmates = append(workmates, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workmates: %w", err)
	}
	return workmates, nil
}

// Count は同僚の件数を返す。
func (r *PostgresWorkmateRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM workmates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count workmates: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ WorkmateRepository = (*PostgresWorkmateRepo)(nil)
