package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchmate/internal/finder"
	"github.com/hitoshi/lunchmate/internal/ledger"
	"github.com/hitoshi/lunchmate/internal/location"
	"github.com/hitoshi/lunchmate/internal/model"
)

// SearchDefaults は検索条件が省略された場合の既定値。
type SearchDefaults struct {
	Radius   int
	Category string
}

// RestaurantHandler はレストラン検索・詳細・選択のHTTPハンドラー。
type RestaurantHandler struct {
	directory DirectoryServiceInterface
	finder    RestaurantFinderInterface
	ledger    LunchLedgerInterface
	locations LocationTrackerInterface
	defaults  SearchDefaults
	logger    *slog.Logger
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(
	dir DirectoryServiceInterface,
	f RestaurantFinderInterface,
	l LunchLedgerInterface,
	locations LocationTrackerInterface,
	defaults SearchDefaults,
	logger *slog.Logger,
) *RestaurantHandler {
	if defaults.Radius <= 0 {
		defaults.Radius = 500
	}
	if defaults.Category == "" {
		defaults.Category = "restaurant"
	}
	return &RestaurantHandler{
		directory: dir,
		finder:    f,
		ledger:    l,
		locations: locations,
		defaults:  defaults,
		logger:    logger,
	}
}

// --- レスポンス型 ---

// restaurantResponse は検索結果1件のAPIレスポンス。
type restaurantResponse struct {
	model.Restaurant
	Headcount      int    `json:"headcount"`
	DistanceMeters *int   `json:"distance_meters,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// nearbyResponse は周辺検索のAPIレスポンス。
type nearbyResponse struct {
	Status      location.State       `json:"status"`
	Center      *model.LatLng        `json:"center,omitempty"`
	Restaurants []restaurantResponse `json:"restaurants"`
}

// restaurantDetailResponse は店舗詳細のAPIレスポンス。
// Liked・Chosenは取得できなかった場合nullになる。
type restaurantDetailResponse struct {
	Restaurant restaurantResponse       `json:"restaurant"`
	PhotoURLs  []string                 `json:"photo_urls"`
	Attendees  []model.WorkmateSnapshot `json:"attendees"`
	Liked      *bool                    `json:"liked"`
	Chosen     *bool                    `json:"chosen"`
}

type choiceRequest struct {
	Chosen *bool `json:"chosen"`
}

type likeRequest struct {
	Liked *bool `json:"liked"`
}

// ListNearby は周辺のレストランを当日の人数と距離付きで返す。
// lat・lngが指定された場合はその地点を中心とし、省略時は同僚の位置情報状態に従う。
// 権限がない場合は403、測位中の場合は202と空の一覧を返す。
// GET /api/restaurants?lat=&lng=&radius=&category=
func (h *RestaurantHandler) ListNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	explicit, apiErr := parseCenter(q.Get("lat"), q.Get("lng"))
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	radius := h.defaults.Radius
	if v := q.Get("radius"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 50000 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLocationError("radiusは1〜50000で指定してください"))
			return
		}
		radius = n
	}
	category := h.defaults.Category
	if v := q.Get("category"); v != "" {
		category = v
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	status := location.Status{State: location.StateAvailable, Location: explicit}
	if explicit == nil {
		status = h.locations.Status(sess.Workmate.ExternalID)
	}

	switch status.State {
	case location.StateDenied:
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewLocationDeniedError())
		return
	case location.StateQuerying:
		writeJSON(w, http.StatusAccepted, nearbyResponse{
			Status:      location.StateQuerying,
			Restaurants: []restaurantResponse{},
		})
		return
	}

	center := *status.Location
	restaurants, err := h.finder.GetNearby(r.Context(), center, radius, category)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewPlacesFailedError())
		return
	}

	// 人数の取得に失敗した場合は全店0人として表示する
	lunches, err := h.ledger.FetchTodayLunches(r.Context())
	if err != nil {
		h.logger.Warn("当日のランチを取得できませんでした", slog.String("error", err.Error()))
		lunches = nil
	}
	counts := ledger.Headcounts(restaurants, lunches)

	resp := nearbyResponse{
		Status:      location.StateAvailable,
		Center:      &center,
		Restaurants: make([]restaurantResponse, len(restaurants)),
	}
	for i, rest := range restaurants {
		resp.Restaurants[i] = h.toRestaurantResponse(rest, counts[i], &center)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRestaurant は店舗詳細を当日の参加者・お気に入り・選択状態付きで返す。
// GET /api/restaurants/{placeID}
func (h *RestaurantHandler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	rest := h.loadRestaurant(w, r)
	if rest == nil {
		return
	}

	attendees, err := h.ledger.FetchTodayWorkmatesAtRestaurant(r.Context(), *rest)
	if err != nil {
		h.logger.Warn("参加者を取得できませんでした", slog.String("error", err.Error()))
		attendees = nil
	}
	if attendees == nil {
		attendees = []model.WorkmateSnapshot{}
	}

	// 人数は一覧と同じく名前の前後空白・大文字小文字を無視して数える
	headcount := len(attendees)
	if lunches, err := h.ledger.FetchTodayLunches(r.Context()); err == nil {
		headcount = ledger.Headcounts([]model.Restaurant{*rest}, lunches)[0]
	} else {
		h.logger.Warn("当日のランチを取得できませんでした", slog.String("error", err.Error()))
	}

	resp := restaurantDetailResponse{
		Restaurant: h.toRestaurantResponse(*rest, headcount, nil),
		PhotoURLs:  make([]string, 0, len(rest.Photos)),
		Attendees:  attendees,
	}
	for _, p := range rest.Photos {
		resp.PhotoURLs = append(resp.PhotoURLs, h.finder.PhotoURL(p.Reference))
	}

	if liked, err := h.directory.IsLiked(r.Context(), sess, rest.Name); err == nil {
		resp.Liked = &liked
	}
	if chosen, err := h.ledger.HasChosen(r.Context(), *rest, sess.Workmate.ExternalID); err == nil {
		resp.Chosen = &chosen
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateChoice は当日のランチとしてレストランを選択または取消する。
// 書き込み後に再取得した状態が要求と異なる場合は409を返す。
// PUT /api/restaurants/{placeID}/choice
func (h *RestaurantHandler) UpdateChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Chosen == nil {
		writeInvalidRequest(w)
		return
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	rest := h.loadRestaurant(w, r)
	if rest == nil {
		return
	}

	chosen, err := h.ledger.ToggleChoice(r.Context(), sess.Workmate, *rest, *req.Chosen)
	if err != nil || chosen != *req.Chosen {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewLunchWriteFailedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"chosen": chosen})
}

// UpdateLike はレストランをお気に入りに追加または削除する。
// PUT /api/restaurants/{placeID}/like
func (h *RestaurantHandler) UpdateLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Liked == nil {
		writeInvalidRequest(w)
		return
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	rest := h.loadRestaurant(w, r)
	if rest == nil {
		return
	}

	liked, err := h.directory.ToggleLike(r.Context(), sess, rest.Name, *req.Liked)
	if err != nil || liked != *req.Liked {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewLikeWriteFailedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// loadRestaurant はURLのplaceIDから店舗詳細を取得する。
// 失敗した場合はエラーレスポンスを書き込み、nilを返す。
func (h *RestaurantHandler) loadRestaurant(w http.ResponseWriter, r *http.Request) *model.Restaurant {
	placeID := chi.URLParam(r, "placeID")

	rest, err := h.finder.GetDetail(r.Context(), placeID)
	switch {
	case errors.Is(err, model.ErrEmptyResult):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRestaurantNotFoundError(placeID))
		return nil
	case err != nil:
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewPlacesFailedError())
		return nil
	}
	return rest
}

func (h *RestaurantHandler) toRestaurantResponse(rest model.Restaurant, headcount int, center *model.LatLng) restaurantResponse {
	resp := restaurantResponse{
		Restaurant: rest,
		Headcount:  headcount,
	}
	if center != nil && rest.Location != nil {
		d := finder.DistanceMeters(*center, *rest.Location)
		resp.DistanceMeters = &d
	}
	if len(rest.Photos) > 0 {
		resp.PhotoURL = h.finder.PhotoURL(rest.Photos[0].Reference)
	}
	return resp
}

// parseCenter は検索中心の座標を解析する。両方省略時はnilを返す。
func parseCenter(latStr, lngStr string) (*model.LatLng, *model.APIError) {
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, model.NewInvalidLocationError("緯度と経度は両方指定してください")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, model.NewInvalidLocationError("latが数値ではありません")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, model.NewInvalidLocationError("lngが数値ではありません")
	}

	c := model.LatLng{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil, model.NewInvalidLocationError("座標が範囲外です")
	}
	return &c, nil
}
