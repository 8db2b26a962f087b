// Package ledger は日単位のランチ台帳を提供する。
// 当日のランチの登録・取消・照会と、レストランごとの人数集計を行う。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/repository"
)

// ErrUnnamedRestaurant はレストラン名が空のためランチと照合できないことを表す。
// ランチはレストラン名で照合するため、名前のない店舗は登録も照会もできない。
var ErrUnnamedRestaurant = errors.New("レストラン名が空です")

// DeleteResult はランチ取消の結果を表す。
// 一致なしと失敗を呼び出し側で区別できるようにする。
type DeleteResult int

const (
	// DeleteNoMatch は取消対象のランチが存在しなかったことを表す。
	DeleteNoMatch DeleteResult = iota
	// DeleteFailed は取消の試行が失敗したことを表す。
	DeleteFailed
	// Deleted は1件以上のランチを取り消したことを表す。
	Deleted
)

// String はDeleteResultの文字列表現を返す。
func (r DeleteResult) String() string {
	switch r {
	case DeleteNoMatch:
		return "no_match"
	case DeleteFailed:
		return "failed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("DeleteResult(%d)", int(r))
	}
}

// ChangePublisher はランチの変更イベントを配信する。
type ChangePublisher interface {
	Publish(event model.LunchEvent)
}

// Ledger はランチ台帳のサービス層。
// 「今日」は呼び出しごとに時計から計算し、キャッシュしない。
type Ledger struct {
	repo      repository.LunchRepository
	publisher ChangePublisher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// Option はLedgerの設定を変更する関数。
type Option func(*Ledger)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger はLedgerを生成する。publisherとmcはnilでもよい。
func NewLedger(repo repository.LunchRepository, publisher ChangePublisher, mc metrics.MetricsCollector, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics.OrNop(mc),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DayKey は現在時刻をUTCの日単位に切り捨てた日付キーを返す。
func (l *Ledger) DayKey() string {
	return DayKeyOf(l.now())
}

// DayKeyOf は時刻tの日付キーを返す。
func DayKeyOf(t time.Time) string {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

// CreateLunch は同僚の当日のランチとしてレストランを登録する。
// キーは同僚と日付の組のため、同じ日の既存のランチは置き換えられる。
// 同僚とレストランは登録時点のスナップショットとして保存される。
func (l *Ledger) CreateLunch(ctx context.Context, restaurant model.Restaurant, workmate *model.Workmate) (*model.Lunch, error) {
	if restaurant.Name == "" {
		l.metrics.RecordLunchWrite("create", "failed")
		return nil, fmt.Errorf("ランチの登録に失敗しました: %w", ErrUnnamedRestaurant)
	}
	day := l.DayKey()
	lunch := &model.Lunch{
		ID:         model.LunchID(workmate.ExternalID, day),
		Workmate:   model.SnapshotOf(workmate),
		Restaurant: restaurant.Clone(),
		Date:       day,
		CreatedAt:  l.now(),
	}

	if err := l.repo.Upsert(ctx, lunch); err != nil {
		l.metrics.RecordLunchWrite("create", "failed")
		l.logger.Error("ランチの登録に失敗しました",
			slog.String("workmate", workmate.ExternalID),
			slog.String("restaurant", restaurant.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ランチの登録に失敗しました: %w", err)
	}

	l.metrics.RecordLunchWrite("create", "ok")
	l.publish(model.LunchCreated, lunch.Workmate, restaurant, day)
	return lunch, nil
}

// DeleteLunch は当日の(レストラン名, 同僚)に一致するランチをすべて取り消す。
// 一部のみ削除できた場合は部分書き込みとしてログに残し、Deletedを返す。
// レストラン名が空の場合は何も削除せずDeleteNoMatchを返す。
func (l *Ledger) DeleteLunch(ctx context.Context, restaurant model.Restaurant, workmate *model.Workmate) DeleteResult {
	// 名前が空だと検索条件から外れ、別の店のランチまで一致してしまう
	if restaurant.Name == "" {
		l.metrics.RecordLunchWrite("delete", "no_match")
		return DeleteNoMatch
	}
	day := l.DayKey()
	filter := repository.LunchFilter{
		Date:               day,
		WorkmateExternalID: workmate.ExternalID,
		RestaurantName:     restaurant.Name,
	}

	matched, deleted, err := l.repo.Delete(ctx, filter)
	switch {
	case err != nil:
		l.metrics.RecordLunchWrite("delete", "failed")
		l.logger.Error("ランチの取消に失敗しました",
			slog.String("workmate", workmate.ExternalID),
			slog.String("restaurant", restaurant.Name),
			slog.String("error", err.Error()),
		)
		return DeleteFailed
	case matched == 0:
		l.metrics.RecordLunchWrite("delete", "no_match")
		return DeleteNoMatch
	case deleted == 0:
		l.metrics.RecordLunchWrite("delete", "failed")
		l.logger.Error("ランチを取り消せませんでした",
			slog.String("workmate", workmate.ExternalID),
			slog.String("restaurant", restaurant.Name),
			slog.Int64("matched", matched),
		)
		return DeleteFailed
	case deleted < matched:
		l.metrics.RecordLunchWrite("delete", "partial")
		l.logger.Warn("ランチの一部のみ取り消しました",
			slog.String("workmate", workmate.ExternalID),
			slog.String("restaurant", restaurant.Name),
			slog.Int64("matched", matched),
			slog.Int64("deleted", deleted),
			slog.String("error", model.ErrPartialWrite.Error()),
		)
	default:
		l.metrics.RecordLunchWrite("delete", "ok")
	}

	l.publish(model.LunchDeleted, model.SnapshotOf(workmate), restaurant, day)
	return Deleted
}

// HasChosen は同僚が当日そのレストランを選んでいるかを返す。
// エラーは判定不能を表す。
func (l *Ledger) HasChosen(ctx context.Context, restaurant model.Restaurant, externalID string) (bool, error) {
	if restaurant.Name == "" {
		return false, nil
	}
	n, err := l.repo.Count(ctx, repository.LunchFilter{
		Date:               l.DayKey(),
		WorkmateExternalID: externalID,
		RestaurantName:     restaurant.Name,
	})
	if err != nil {
		l.logger.Warn("ランチ選択状況の取得に失敗しました",
			slog.String("workmate", externalID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("ランチ選択状況の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// TodayLunch は同僚の当日のランチを返す。存在しない場合はnilを返す。
func (l *Ledger) TodayLunch(ctx context.Context, externalID string) (*model.Lunch, error) {
	lunches, err := l.repo.Find(ctx, repository.LunchFilter{
		Date:               l.DayKey(),
		WorkmateExternalID: externalID,
	})
	if err != nil {
		return nil, fmt.Errorf("当日のランチの取得に失敗しました: %w", err)
	}
	if len(lunches) == 0 {
		return nil, nil
	}
	return lunches[0], nil
}

// FetchTodayLunches は全同僚の当日のランチを取得する。
func (l *Ledger) FetchTodayLunches(ctx context.Context) ([]*model.Lunch, error) {
	lunches, err := l.repo.Find(ctx, repository.LunchFilter{Date: l.DayKey()})
	if err != nil {
		return nil, fmt.Errorf("当日のランチ一覧の取得に失敗しました: %w", err)
	}
	return lunches, nil
}

// FetchTodayWorkmatesAtRestaurant は当日そのレストランでランチする同僚を返す。
// 照合はレストラン名の完全一致（大文字小文字を区別）で行い、place_idは見ない。
func (l *Ledger) FetchTodayWorkmatesAtRestaurant(ctx context.Context, restaurant model.Restaurant) ([]model.WorkmateSnapshot, error) {
	if restaurant.Name == "" {
		return []model.WorkmateSnapshot{}, nil
	}
	lunches, err := l.repo.Find(ctx, repository.LunchFilter{
		Date:           l.DayKey(),
		RestaurantName: restaurant.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("参加者の取得に失敗しました: %w", err)
	}

	workmates := make([]model.WorkmateSnapshot, 0, len(lunches))
	for _, lunch := range lunches {
		if lunch.Restaurant.Name != restaurant.Name {
			continue
		}
		workmates = append(workmates, lunch.Workmate)
	}
	return workmates, nil
}

// FetchTodayLunchRestaurantNames は当日ランチが登録されているレストラン名を重複なしで返す。
func (l *Ledger) FetchTodayLunchRestaurantNames(ctx context.Context) ([]string, error) {
	lunches, err := l.FetchTodayLunches(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(lunches))
	names := make([]string, 0, len(lunches))
	for _, lunch := range lunches {
		name := lunch.Restaurant.Name
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// ToggleChoice はランチを登録または取消し、再取得した実際の選択状態を返す。
// 書き込みが失敗・空振りしても再取得できればその状態を返し、
// 再取得にも失敗した場合は操作前の状態をエラーとともに返す。
func (l *Ledger) ToggleChoice(ctx context.Context, workmate *model.Workmate, restaurant model.Restaurant, choose bool) (bool, error) {
	if choose {
		// 登録失敗はCreateLunch内でログ出力済み
		_, _ = l.CreateLunch(ctx, restaurant, workmate)
	} else if res := l.DeleteLunch(ctx, restaurant, workmate); res != Deleted {
		l.logger.Info("ランチの取消が反映されませんでした",
			slog.String("workmate", workmate.ExternalID),
			slog.String("result", res.String()),
		)
	}

	chosen, err := l.HasChosen(ctx, restaurant, workmate.ExternalID)
	if err != nil {
		return !choose, err
	}
	return chosen, nil
}

// WorkmateLunch は同僚と当日のランチの組。Lunchは未登録の場合nil。
type WorkmateLunch struct {
	Workmate *model.Workmate
	Lunch    *model.Lunch
}

// WorkmatesWithLunch は同僚一覧に当日のランチを対応付ける。
// queryが空でない場合、名前に部分一致（大文字小文字を区別しない）する同僚のみを返す。
func (l *Ledger) WorkmatesWithLunch(ctx context.Context, workmates []*model.Workmate, query string) ([]WorkmateLunch, error) {
	lunches, err := l.FetchTodayLunches(ctx)
	if err != nil {
		return nil, err
	}

	byWorkmate := make(map[string]*model.Lunch, len(lunches))
	for _, lunch := range lunches {
		if _, ok := byWorkmate[lunch.Workmate.ExternalID]; !ok {
			byWorkmate[lunch.Workmate.ExternalID] = lunch
		}
	}

	q := NormalizeName(query)
	result := make([]WorkmateLunch, 0, len(workmates))
	for _, w := range workmates {
		if q != "" && !containsNormalized(w.Name, q) {
			continue
		}
		result = append(result, WorkmateLunch{Workmate: w, Lunch: byWorkmate[w.ExternalID]})
	}
	return result, nil
}

func (l *Ledger) publish(typ model.LunchEventType, w model.WorkmateSnapshot, r model.Restaurant, day string) {
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(model.LunchEvent{
		Type:           typ,
		Date:           day,
		WorkmateID:     w.ExternalID,
		WorkmateName:   w.Name,
		RestaurantID:   r.ID,
		RestaurantName: r.Name,
	})
}

