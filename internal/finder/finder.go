// Package finder はレストラン検索サービスを提供する。
// Places APIの応答を欠落に強い形でmodel.Restaurantへ正規化する。
package finder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/model"
	"github.com/hitoshi/lunchmate/internal/places"
	"github.com/hitoshi/lunchmate/internal/security"
)

// PlacesAPI はFinderが利用するPlaces APIクライアントのインターフェース。
type PlacesAPI interface {
	NearbySearch(ctx context.Context, center model.LatLng, radius int, placeType string) (*places.NearbySearchResponse, error)
	Details(ctx context.Context, placeID string) (*places.DetailsResponse, error)
	PhotoURL(reference string, maxWidth int) string
}

// Finder はレストランの周辺検索と詳細取得を行う。
// 呼び出しごとに1回ネットワークへ問い合わせ、結果を保持しない。
type Finder struct {
	api       PlacesAPI
	sanitizer security.TextSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewFinder はFinderを生成する。metricsがnilの場合は記録しない。
func NewFinder(api PlacesAPI, sanitizer security.TextSanitizerService, mc metrics.MetricsCollector, logger *slog.Logger) *Finder {
	return &Finder{
		api:       api,
		sanitizer: sanitizer,
		metrics:   metrics.OrNop(mc),
		logger:    logger,
	}
}

// GetNearby は中心座標の周辺でカテゴリに一致するレストランを返す。
// 失敗時はmodel.ErrTransportFailureを返す（ログはクライアント側で出力済み）。
func (f *Finder) GetNearby(ctx context.Context, center model.LatLng, radius int, category string) ([]model.Restaurant, error) {
	start := time.Now()
	resp, err := f.api.NearbySearch(ctx, center, radius, category)
	f.record("nearbysearch", start, err)
	if err != nil {
		return nil, err
	}

	restaurants := make([]model.Restaurant, 0, len(resp.Results))
	for _, result := range resp.Results {
		r := f.toRestaurant(result)
		if r.ID == "" {
			f.logger.Warn("place_idのない検索結果を除外しました", slog.String("name", r.Name))
			continue
		}
		restaurants = append(restaurants, r)
	}

	return restaurants, nil
}

// GetDetail は店舗詳細を返す。
// 店舗が存在しない場合はmodel.ErrEmptyResult、失敗時はmodel.ErrTransportFailureを返す。
func (f *Finder) GetDetail(ctx context.Context, placeID string) (*model.Restaurant, error) {
	start := time.Now()
	resp, err := f.api.Details(ctx, placeID)
	f.record("details", start, err)
	if err != nil {
		return nil, err
	}

	r := f.toRestaurant(*resp.Result)
	// 詳細応答にplace_idが含まれない場合は要求値で補う
	if r.ID == "" {
		r.ID = placeID
	}
	return &r, nil
}

// PhotoURL は写真参照から表示用URLを返す。
func (f *Finder) PhotoURL(reference string) string {
	return f.api.PhotoURL(reference, places.DefaultPhotoMaxWidth)
}

func (f *Finder) record(endpoint string, start time.Time, err error) {
	f.metrics.RecordPlacesLatency(endpoint, time.Since(start))
	switch {
	case err == nil:
		f.metrics.RecordPlacesCall(endpoint, "ok")
	case errors.Is(err, model.ErrEmptyResult):
		f.metrics.RecordPlacesCall(endpoint, "not_found")
	default:
		f.metrics.RecordPlacesCall(endpoint, "error")
	}
}

// toRestaurant は応答の1件をmodel.Restaurantに変換する。
// 任意項目は存在する場合のみコピーする。レビュー数は欠落時0、評価と営業中フラグは欠落時nil。
func (f *Finder) toRestaurant(p places.PlaceResult) model.Restaurant {
	r := model.Restaurant{}

	if p.PlaceID != nil {
		r.ID = *p.PlaceID
	}
	if p.Name != nil {
		r.Name = f.sanitizer.SanitizeText(*p.Name)
	}

	switch {
	case p.Vicinity != nil:
		r.Address = f.sanitizer.SanitizeText(*p.Vicinity)
	case p.FormattedAddress != nil:
		r.Address = f.sanitizer.SanitizeText(*p.FormattedAddress)
	}

	if p.Geometry != nil && p.Geometry.Location != nil &&
		p.Geometry.Location.Lat != nil && p.Geometry.Location.Lng != nil {
		r.Location = &model.LatLng{Lat: *p.Geometry.Location.Lat, Lng: *p.Geometry.Location.Lng}
	}

	if len(p.Types) > 0 {
		r.Types = append([]string(nil), p.Types...)
	}

	if p.OpeningHours != nil && p.OpeningHours.OpenNow != nil {
		open := *p.OpeningHours.OpenNow
		r.OpenNow = &open
	}

	if p.UserRatingsTotal != nil {
		r.ReviewCount = *p.UserRatingsTotal
	}

	if p.Rating != nil {
		rating := *p.Rating
		r.Rating = &rating
	}

	if p.Website != nil {
		r.Website = *p.Website
	}
	if p.FormattedPhoneNumber != nil {
		r.Phone = f.sanitizer.SanitizeText(*p.FormattedPhoneNumber)
	}

	for _, photo := range p.Photos {
		if photo.PhotoReference == nil || *photo.PhotoReference == "" {
			continue
		}
		ph := model.Photo{Reference: *photo.PhotoReference}
		if photo.Width != nil {
			ph.Width = *photo.Width
		}
		if photo.Height != nil {
			ph.Height = *photo.Height
		}
		r.Photos = append(r.Photos, ph)
	}

	return r
}
