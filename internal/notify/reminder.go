package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/model"
)

// Outcome はリマインダー1回分の実行結果を表す。
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeDisabled    Outcome = "disabled"
	OutcomeNoWorkmate  Outcome = "no_workmate"
	OutcomeNoLunch     Outcome = "no_lunch"
	OutcomeNoAttendees Outcome = "no_attendees"
	OutcomeNoEndpoint  Outcome = "no_endpoint"
	OutcomeFailed      Outcome = "failed"
)

// WorkmateReader は同僚レコードを取得する。
type WorkmateReader interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.Workmate, error)
}

// LunchReader は当日のランチと参加者を取得する。
type LunchReader interface {
	TodayLunch(ctx context.Context, externalID string) (*model.Lunch, error)
	FetchTodayWorkmatesAtRestaurant(ctx context.Context, restaurant model.Restaurant) ([]model.WorkmateSnapshot, error)
}

// Reminder は同僚1人分のリマインダーを実行する。
// 各段階で条件を満たさなければその回は終了し、次回の起動まで再試行しない。
type Reminder struct {
	workmates WorkmateReader
	lunches   LunchReader
	notifier  Notifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewReminder はReminderを生成する。
func NewReminder(workmates WorkmateReader, lunches LunchReader, notifier Notifier, mc metrics.MetricsCollector, logger *slog.Logger) *Reminder {
	return &Reminder{
		workmates: workmates,
		lunches:   lunches,
		notifier:  notifier,
		metrics:   metrics.OrNop(mc),
		logger:    logger,
	}
}

// Run は同僚に当日のランチの通知を送る。
// 通知無効・ランチ未登録の場合は何も送らず、参加者の取得失敗はログのみ出力する。
func (r *Reminder) Run(ctx context.Context, externalID string) Outcome {
	outcome := r.run(ctx, externalID)
	r.metrics.RecordReminder(string(outcome))
	return outcome
}

func (r *Reminder) run(ctx context.Context, externalID string) Outcome {
	workmate, err := r.workmates.FindByExternalID(ctx, externalID)
	if err != nil || workmate == nil {
		return OutcomeNoWorkmate
	}

	if !workmate.NotificationEnabled {
		return OutcomeDisabled
	}

	lunch, err := r.lunches.TodayLunch(ctx, externalID)
	if err != nil || lunch == nil {
		return OutcomeNoLunch
	}

	attendees, err := r.lunches.FetchTodayWorkmatesAtRestaurant(ctx, lunch.Restaurant)
	if err != nil {
		r.logger.Info("ランチ参加者を取得できませんでした",
			slog.String("workmate", externalID),
			slog.String("restaurant", lunch.Restaurant.Name),
			slog.String("error", err.Error()),
		)
		return OutcomeNoAttendees
	}
	if len(attendees) == 0 {
		r.logger.Info("ランチ参加者が見つかりません",
			slog.String("workmate", externalID),
			slog.String("restaurant", lunch.Restaurant.Name),
		)
		return OutcomeNoAttendees
	}

	names := make([]string, 0, len(attendees))
	for _, a := range attendees {
		names = append(names, a.Name)
	}

	err = r.notifier.Notify(ctx, workmate, NewNotification(lunch.Restaurant, names))
	switch {
	case errors.Is(err, ErrNoEndpoint):
		return OutcomeNoEndpoint
	case err != nil:
		r.logger.Warn("リマインダー通知の送信に失敗しました",
			slog.String("workmate", externalID),
			slog.String("error", err.Error()),
		)
		return OutcomeFailed
	}
	return OutcomeSent
}
