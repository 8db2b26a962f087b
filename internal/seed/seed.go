// Package seed は開発用のダミー同僚と当日のランチを投入する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/repository"
)

// RestaurantSource は投入先のレストランを検索する。
type RestaurantSource interface {
	GetNearby(ctx context.Context, center model.LatLng, radius int, category string) ([]model.Restaurant, error)
}

// LunchCreator は当日のランチを登録する。
type LunchCreator interface {
	CreateLunch(ctx context.Context, restaurant model.Restaurant, workmate *model.Workmate) (*model.Lunch, error)
}

// Config は投入条件を表す。
type Config struct {
	Workmates int
	Center    model.LatLng
	Radius    int
	Category  string
	// RandomSeed が0以外の場合、生成される名前が再現可能になる。
	RandomSeed uint64
}

// assignment は検索結果のrestaurantIndex番目の店に同僚[from, to)を割り当てる。
type assignment struct {
	restaurantIndex int
	from, to        int
}

// 上位6店のうち4店に5人・3人・5人・5人が集まる配置
var assignments = []assignment{
	{restaurantIndex: 0, from: 0, to: 5},
	{restaurantIndex: 2, from: 6, to: 9},
	{restaurantIndex: 4, from: 10, to: 15},
	{restaurantIndex: 5, from: 16, to: 21},
}

// Result は投入結果の件数。
type Result struct {
	WorkmatesCreated int
	LunchesCreated   int
	LunchesFailed    int
}

// Seeder はダミーデータの投入を行う。
type Seeder struct {
	workmates   repository.WorkmateRepository
	restaurants RestaurantSource
	lunches     LunchCreator
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

// NewSeeder はSeederを生成する。cfg.Workmatesが0以下の場合は40人とする。
func NewSeeder(workmates repository.WorkmateRepository, restaurants RestaurantSource, lunches LunchCreator, cfg Config, logger *slog.Logger) *Seeder {
	if cfg.Workmates <= 0 {
		cfg.Workmates = 40
	}
	return &Seeder{
		workmates:   workmates,
		restaurants: restaurants,
		lunches:     lunches,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Run は同僚が規定数に満たない場合に同僚を生成し、周辺レストランに当日のランチを割り当てる。
// 既に規定数以上の同僚がいる場合は既存の同僚にランチを割り当てる。
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var result Result

	count, err := s.workmates.Count(ctx)
	if err != nil {
		return result, fmt.Errorf("同僚数の取得に失敗しました: %w", err)
	}

	var workmates []*model.Workmate
	if count < s.cfg.Workmates {
		workmates, err = s.createWorkmates(ctx)
		result.WorkmatesCreated = len(workmates)
		if err != nil {
			return result, err
		}
		s.logger.Info("同僚を生成しました", slog.Int("count", len(workmates)))
	} else {
		workmates, err = s.workmates.List(ctx)
		if err != nil {
			return result, fmt.Errorf("同僚一覧の取得に失敗しました: %w", err)
		}
		s.logger.Info("既存の同僚を使用します", slog.Int("count", len(workmates)))
	}

	restaurants, err := s.restaurants.GetNearby(ctx, s.cfg.Center, s.cfg.Radius, s.cfg.Category)
	if err != nil {
		return result, fmt.Errorf("レストランの検索に失敗しました: %w", err)
	}

	for _, a := range assignments {
		if a.restaurantIndex >= len(restaurants) {
			s.logger.Warn("検索結果が不足しているため割り当てをスキップしました",
				slog.Int("restaurant_index", a.restaurantIndex),
				slog.Int("restaurants", len(restaurants)),
			)
			continue
		}
		restaurant := restaurants[a.restaurantIndex]

		for i := a.from; i < a.to && i < len(workmates); i++ {
			if _, err := s.lunches.CreateLunch(ctx, restaurant, workmates[i]); err != nil {
				result.LunchesFailed++
				continue
			}
			result.LunchesCreated++
		}
	}

	s.logger.Info("ダミーデータの投入が完了しました",
		slog.Int("workmates_created", result.WorkmatesCreated),
		slog.Int("lunches_created", result.LunchesCreated),
		slog.Int("lunches_failed", result.LunchesFailed),
	)
	return result, nil
}

func (s *Seeder) createWorkmates(ctx context.Context) ([]*model.Workmate, error) {
	faker := gofakeit.New(s.cfg.RandomSeed)
	now := s.now()

	workmates := make([]*model.Workmate, 0, s.cfg.Workmates)
	for i := 0; i < s.cfg.Workmates; i++ {
		first, last := faker.FirstName(), faker.LastName()
		id := uuid.New().String()
		w := &model.Workmate{
			ID:                  uuid.New().String(),
			ExternalID:          id,
			Name:                first + " " + last,
			Email:               strings.ToLower(first + "." + last + "@mail.com"),
			AvatarURL:           "https://i.pravatar.cc/150?u=" + id,
			NotificationEnabled: false,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.workmates.Create(ctx, w); err != nil {
			return workmates, fmt.Errorf("同僚の作成に失敗しました: %w", err)
		}
		workmates = append(workmates, w)
	}
	return workmates, nil
}
