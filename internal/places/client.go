// Package places はGoogle Places Web APIのクライアントを提供する。
// 周辺検索と店舗詳細の取得のみを扱い、キャッシュや重複排除は行わない。
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hitoshi/lunchmate/internal/model"
)

const (
	// DefaultBaseURL はPlaces APIのベースURL。
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	// DetailFields は店舗詳細で取得するフィールド。
	DetailFields = "place_id,name,rating,opening_hours,photo,vicinity,type,website,formatted_phone_number,geometry,user_ratings_total"

	// DefaultPhotoMaxWidth は写真URLの既定の最大幅。
	DefaultPhotoMaxWidth = 400

	// maxResponseSize は応答ボディの上限（バイト）。
	maxResponseSize = 2 << 20

	endpointNearby  = "nearbysearch"
	endpointDetails = "details"
)

// Client はPlaces APIのクライアント。
// 呼び出しはトークンバケットでペース配分されるが、間引きや統合はしない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string // テスト用にベースURLを差し替え可能
	limiter    *rate.Limiter
}

// Option はClientの任意設定。
type Option func(*Client)

// WithBaseURL はAPIのベースURLを変更する。
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit は1秒あたりの呼び出し数の上限を設定する。0以下は無制限。
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NearbySearch は中心座標から半径radius(m)以内の指定カテゴリの店舗を検索する。
// ZERO_RESULTSは空の結果として成功扱いにする。
func (c *Client) NearbySearch(ctx context.Context, center model.LatLng, radius int, placeType string) (*NearbySearchResponse, error) {
	q := url.Values{}
	q.Set("location", formatLatLng(center))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("type", placeType)

	var resp NearbySearchResponse
	if err := c.get(ctx, endpointNearby, q, &resp); err != nil {
		return nil, err
	}

	if resp.Status != StatusOK && resp.Status != StatusZeroResults {
		c.logger.Error("周辺検索がエラーステータスを返しました",
			slog.String("status", resp.Status),
			slog.String("error_message", resp.ErrorMessage),
		)
		return nil, fmt.Errorf("%w: nearbysearch status %s", model.ErrTransportFailure, resp.Status)
	}

	return &resp, nil
}

// Details は店舗詳細を取得する。店舗が存在しない場合はmodel.ErrEmptyResultを返す。
func (c *Client) Details(ctx context.Context, placeID string) (*DetailsResponse, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", DetailFields)

	var resp DetailsResponse
	if err := c.get(ctx, endpointDetails, q, &resp); err != nil {
		return nil, err
	}

	switch {
	case resp.Status == StatusNotFound || resp.Status == StatusZeroResults:
		return nil, fmt.Errorf("place %s: %w", placeID, model.ErrEmptyResult)
	case resp.Status != StatusOK:
		c.logger.Error("店舗詳細の取得がエラーステータスを返しました",
			slog.String("place_id", placeID),
			slog.String("status", resp.Status),
			slog.String("error_message", resp.ErrorMessage),
		)
		return nil, fmt.Errorf("%w: details status %s", model.ErrTransportFailure, resp.Status)
	case resp.Result == nil:
		return nil, fmt.Errorf("place %s: %w", placeID, model.ErrEmptyResult)
	}

	return &resp, nil
}

// PhotoURL は写真参照から画像URLを組み立てる。
func (c *Client) PhotoURL(reference string, maxWidth int) string {
	if reference == "" {
		return ""
	}
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoMaxWidth
	}
	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(maxWidth))
	q.Set("photoreference", reference)
	q.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + q.Encode()
}

// get はエンドポイントを1回だけ呼び出し、JSON応答をoutへデコードする。
// 失敗時はログ出力のうえmodel.ErrTransportFailureでラップしたエラーを返す。再試行はしない。
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", model.ErrTransportFailure, err)
	}

	q.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + endpoint + "/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Lunchmate/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.ErrorにはAPIキー入りのURLが含まれるためマスクする
		c.logger.Error("Places APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", redactKey(err.Error(), c.apiKey)),
		)
		return fmt.Errorf("%w: %s request failed", model.ErrTransportFailure, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Places APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s returned status %d", model.ErrTransportFailure, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: read %s body: %v", model.ErrTransportFailure, endpoint, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Places APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: decode %s body: %v", model.ErrTransportFailure, endpoint, err)
	}

	return nil
}

func formatLatLng(l model.LatLng) string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}
