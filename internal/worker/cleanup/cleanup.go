// Package cleanup は過去のランチデータの自動削除ジョブを提供する。
// ランチは当日分しか参照されないため、保持期間（デフォルト30日）を超えた日付のランチを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/repository"
)

// CleanupJob は保持期間を超過したランチの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	pruner        repository.LunchPruner
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // ランチの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner repository.LunchPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner:        pruner,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Cutoff は削除境界の日付キーを返す。この日付より前のランチが削除対象。
func (j *CleanupJob) Cutoff() string {
	return ledger.DayKeyOf(j.now().AddDate(0, 0, -j.RetentionDays))
}

// Run は保持期間を超過したランチを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.Cutoff()

	deletedCount, err := j.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("ランチクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ランチクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("ランチクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.String("cutoff", cutoff),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はコンテキストがキャンセルされるまで、起動直後と以後intervalごとにRunを実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
