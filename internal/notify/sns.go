package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/hitoshi/lunchmate/internal/model"
)

// SNSAPI はSNSNotifierが利用するSNSクライアントのインターフェース。
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
}

// SNSNotifier はAWS SNSのプラットフォームエンドポイント経由でプッシュ通知を配信する。
type SNSNotifier struct {
	client         SNSAPI
	platformAppARN string
	logger         *slog.Logger
}

// NewSNSNotifier はSNSNotifierを生成する。
func NewSNSNotifier(client SNSAPI, platformAppARN string, logger *slog.Logger) *SNSNotifier {
	return &SNSNotifier{
		client:         client,
		platformAppARN: platformAppARN,
		logger:         logger,
	}
}

// NewSNSClient はデフォルトの認証情報チェーンでSNSクライアントを生成する。
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// RegisterDevice は端末のプッシュトークンをプラットフォームエンドポイントとして登録し、そのARNを返す。
func (n *SNSNotifier) RegisterDevice(ctx context.Context, platform, token string) (string, error) {
	switch strings.ToLower(platform) {
	case "android", "ios":
	default:
		return "", model.NewInvalidDeviceError("platformはandroidまたはiosを指定してください")
	}
	if strings.TrimSpace(token) == "" {
		return "", model.NewInvalidDeviceError("tokenが空です")
	}
	if n.platformAppARN == "" {
		return "", model.NewPushUnavailableError()
	}

	out, err := n.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(n.platformAppARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create platform endpoint: %w: %w", model.ErrTransportFailure, err)
	}
	return aws.ToString(out.EndpointArn), nil
}

// gcmPayload はFCM向けのメッセージ本体。
// tagが同じ通知は端末上で置き換えられる。
type gcmPayload struct {
	Notification gcmNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
}

type gcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// BuildMessage はSNSのMessageStructure=json形式のメッセージを組み立てる。
func BuildMessage(n Notification) (string, error) {
	// タップ時に詳細画面を再取得なしで描画できるよう、スナップショット全体を載せる
	snapshot, err := json.Marshal(n.Restaurant)
	if err != nil {
		return "", fmt.Errorf("failed to marshal restaurant snapshot: %w", err)
	}

	gcm, err := json.Marshal(gcmPayload{
		Notification: gcmNotification{Title: n.Title, Body: n.Body, Tag: n.Tag},
		Data: map[string]string{
			"restaurant_id":      n.Restaurant.ID,
			"restaurant_name":    n.Restaurant.Name,
			"restaurant_address": n.Restaurant.Address,
			"restaurant":         string(snapshot),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal GCM payload: %w", err)
	}

	raw, err := json.Marshal(map[string]string{
		"default": n.Body,
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal SNS message: %w", err)
	}
	return string(raw), nil
}

// Notify は同僚の配信先へ通知を送る。配信先が未登録の場合はErrNoEndpointを返す。
func (n *SNSNotifier) Notify(ctx context.Context, workmate *model.Workmate, notification Notification) error {
	if workmate.PushEndpoint == "" {
		n.logger.Debug("通知配信先が未登録のため送信しません",
			slog.String("workmate", workmate.ExternalID),
		)
		return ErrNoEndpoint
	}

	msg, err := BuildMessage(notification)
	if err != nil {
		return err
	}

	if _, err := n.client.Publish(ctx, &sns.PublishInput{
		MessageStructure: aws.String("json"),
		Message:          aws.String(msg),
		TargetArn:        aws.String(workmate.PushEndpoint),
	}); err != nil {
		return fmt.Errorf("failed to publish notification: %w: %w", model.ErrTransportFailure, err)
	}
	return nil
}

var _ Notifier = (*SNSNotifier)(nil)
