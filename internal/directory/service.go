// Package directory は同僚ディレクトリのドメインロジックを提供する。
// 外部IDごとの同僚レコードの解決・自動作成と、通知設定・お気に入りの管理を行う。
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/repository"
	"github.com/hitoshi/lunchmate/internal/security"
)

// Session は解決済みの外部IDと同僚レコードの組。
// リクエストごとに生成され、各操作に明示的に渡される。
type Session struct {
	Identity model.Identity
	Workmate *model.Workmate
}

// Service は同僚ディレクトリのサービス層。
type Service struct {
	workmates repository.WorkmateRepository
	liked     repository.LikedRestaurantRepository
	guard     security.OutboundGuardService
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// guardがnilの場合、アバターURLを検証しない。
func NewService(
	workmates repository.WorkmateRepository,
	liked repository.LikedRestaurantRepository,
	guard security.OutboundGuardService,
	logger *slog.Logger,
) *Service {
	return &Service{
		workmates: workmates,
		liked:     liked,
		guard:     guard,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve は外部IDに対応する同僚レコードを返す。存在しない場合は通知無効で作成する。
func (s *Service) Resolve(ctx context.Context, identity model.Identity) (*Session, error) {
	w, err := s.workmates.FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("同僚の取得に失敗しました: %w", err)
	}
	if w != nil {
		return &Session{Identity: identity, Workmate: w}, nil
	}

	now := s.now()
	w = &model.Workmate{
		ID:                  uuid.New().String(),
		ExternalID:          identity.ExternalID,
		Name:                identity.Name,
		Email:               identity.Email,
		AvatarURL:           s.safeAvatarURL(identity.AvatarURL),
		NotificationEnabled: false,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.workmates.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("同僚の作成に失敗しました: %w", err)
	}

	// 同時作成された場合は先に登録されたレコードを採用する
	created, err := s.workmates.FindByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("同僚の再取得に失敗しました: %w", err)
	}
	if created == nil {
		return nil, model.NewWorkmateNotFoundError()
	}

	s.logger.Info("同僚を登録しました",
		slog.String("workmate_id", created.ID),
		slog.String("external_id", created.ExternalID),
	)
	return &Session{Identity: identity, Workmate: created}, nil
}

func (s *Service) safeAvatarURL(raw string) string {
	if raw == "" || s.guard == nil {
		return raw
	}
	if err := s.guard.ValidateURL(raw); err != nil {
		s.logger.Warn("アバターURLを破棄しました", slog.String("error", err.Error()))
		return ""
	}
	return raw
}

// FindByExternalID は外部IDで同僚を取得する。見つからない場合はnilを返す。
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*model.Workmate, error) {
	w, err := s.workmates.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("同僚の取得に失敗しました: %w", err)
	}
	return w, nil
}

// IsNotificationEnabled は同僚の通知設定を返す。
// 同僚が存在しない場合はmodel.ErrEmptyResultを返す。
func (s *Service) IsNotificationEnabled(ctx context.Context, externalID string) (bool, error) {
	w, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, fmt.Errorf("workmate %s: %w", externalID, model.ErrEmptyResult)
	}
	return w.NotificationEnabled, nil
}

// SetNotificationEnabled は通知設定を更新する。
func (s *Service) SetNotificationEnabled(ctx context.Context, sess *Session, enabled bool) error {
	if err := s.workmates.UpdateNotificationEnabled(ctx, sess.Workmate.ExternalID, enabled); err != nil {
		return fmt.Errorf("通知設定の更新に失敗しました: %w", err)
	}
	sess.Workmate.NotificationEnabled = enabled
	return nil
}

// SetPushEndpoint はプッシュ通知の配信先を保存する。
func (s *Service) SetPushEndpoint(ctx context.Context, sess *Session, endpoint string) error {
	if err := s.workmates.UpdatePushEndpoint(ctx, sess.Workmate.ExternalID, endpoint); err != nil {
		return fmt.Errorf("通知配信先の更新に失敗しました: %w", err)
	}
	sess.Workmate.PushEndpoint = endpoint
	return nil
}

// ListWorkmates は全同僚を取得する。
func (s *Service) ListWorkmates(ctx context.Context) ([]*model.Workmate, error) {
	workmates, err := s.workmates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("同僚一覧の取得に失敗しました: %w", err)
	}
	return workmates, nil
}

// Like はレストラン名をお気に入りに追加する。
func (s *Service) Like(ctx context.Context, sess *Session, name string) error {
	liked := &model.LikedRestaurant{
		ID:         uuid.New().String(),
		WorkmateID: sess.Workmate.ID,
		Name:       name,
		CreatedAt:  s.now(),
	}
	if err := s.liked.Add(ctx, liked); err != nil {
		return fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}
	return nil
}

// Unlike はレストラン名をお気に入りから削除する。削除対象がなかった場合はfalseを返す。
func (s *Service) Unlike(ctx context.Context, sess *Session, name string) (bool, error) {
	n, err := s.liked.Remove(ctx, sess.Workmate.ID, name)
	if err != nil {
		return false, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return n > 0, nil
}

// IsLiked はレストラン名がお気に入りに含まれるかを返す。
func (s *Service) IsLiked(ctx context.Context, sess *Session, name string) (bool, error) {
	ok, err := s.liked.Exists(ctx, sess.Workmate.ID, name)
	if err != nil {
		return false, fmt.Errorf("お気に入りの確認に失敗しました: %w", err)
	}
	return ok, nil
}

// LikedNames はお気に入りのレストラン名を取得する。
func (s *Service) LikedNames(ctx context.Context, sess *Session) ([]string, error) {
	names, err := s.liked.ListNames(ctx, sess.Workmate.ID)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	return names, nil
}

// ToggleLike はお気に入りを追加または削除し、再取得した実際の状態を返す。
// 書き込みが失敗しても再取得できればその状態を返し、再取得にも失敗した場合は操作前の状態を返す。
func (s *Service) ToggleLike(ctx context.Context, sess *Session, name string, like bool) (bool, error) {
	var writeErr error
	if like {
		writeErr = s.Like(ctx, sess, name)
	} else {
		_, writeErr = s.Unlike(ctx, sess, name)
	}
	if writeErr != nil {
		s.logger.Warn("お気に入りの更新に失敗しました",
			slog.String("workmate_id", sess.Workmate.ID),
			slog.String("restaurant", name),
			slog.String("error", writeErr.Error()),
		)
	}

	liked, err := s.IsLiked(ctx, sess, name)
	if err != nil {
		return !like, err
	}
	return liked, nil
}
