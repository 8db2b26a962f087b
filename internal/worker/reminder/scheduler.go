// Package reminder は毎日決まった時刻にランチのリマインダーを実行するワーカーを提供する。
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/notify"
)

// WorkmateLister は通知対象の同僚一覧を取得する。
type WorkmateLister interface {
	ListWorkmates(ctx context.Context) ([]*model.Workmate, error)
}

// ReminderRunner は同僚1人分のリマインダーを実行する。
type ReminderRunner interface {
	Run(ctx context.Context, externalID string) notify.Outcome
}

// Scheduler は毎日の指定時刻に全同僚のリマインダーを実行する。
// semaphoreパターンで最大並列数を制御する。起動が遅れても次回まで再試行しない。
type Scheduler struct {
	workmates      WorkmateLister
	runner         ReminderRunner
	logger         *slog.Logger
	hour           int
	minute         int
	location       *time.Location
	maxConcurrency int
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10、locationがnilの場合はUTCを使用する。
func NewScheduler(
	workmates WorkmateLister,
	runner ReminderRunner,
	logger *slog.Logger,
	hour, minute int,
	location *time.Location,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		workmates:      workmates,
		runner:         runner,
		logger:         logger,
		hour:           hour,
		minute:         minute,
		location:       location,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// NextFiring はnow以降で最初の指定時刻を返す。nowがちょうど指定時刻の場合は翌日。
func NextFiring(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start はコンテキストがキャンセルされるまで毎日の指定時刻にRunOnceを実行する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("リマインダースケジューラを開始しました",
		slog.Int("hour", s.hour),
		slog.Int("minute", s.minute),
		slog.String("timezone", s.location.String()),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	for {
		now := s.now()
		next := NextFiring(now, s.hour, s.minute, s.location)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("リマインダースケジューラを停止しました")
			return
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("リマインダーの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全同僚のリマインダーを1回実行し、結果ごとの件数をログ出力する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	workmates, err := s.workmates.ListWorkmates(ctx)
	if err != nil {
		return err
	}

	if len(workmates) == 0 {
		s.logger.Info("リマインダー対象の同僚はいません")
		return nil
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[notify.Outcome]int)
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, w := range workmates {
		wg.Add(1)
		sem <- struct{}{}

		go func(externalID string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.runner.Run(ctx, externalID)

			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}(w.ExternalID)
	}

	wg.Wait()

	s.logger.Info("リマインダーの実行が完了しました",
		slog.Int("workmate_count", len(workmates)),
		slog.Int("sent", outcomes[notify.OutcomeSent]),
		slog.Int("skipped", len(workmates)-outcomes[notify.OutcomeSent]-outcomes[notify.OutcomeFailed]),
		slog.Int("failed", outcomes[notify.OutcomeFailed]),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
