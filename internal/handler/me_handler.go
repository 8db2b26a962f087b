package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/lunchmate/internal/location"
	"github.com/hitoshi/lunchmate/internal/model"
)

// MeHandler はサインイン中の同僚自身に関するHTTPハンドラー。
type MeHandler struct {
	directory DirectoryServiceInterface
	ledger    LunchLedgerInterface
	locations LocationTrackerInterface
	devices   DeviceRegistrar
	logger    *slog.Logger
}

// NewMeHandler はMeHandlerを生成する。devicesがnilの場合、端末登録は利用不可を返す。
func NewMeHandler(
	dir DirectoryServiceInterface,
	ledger LunchLedgerInterface,
	locations LocationTrackerInterface,
	devices DeviceRegistrar,
	logger *slog.Logger,
) *MeHandler {
	return &MeHandler{
		directory: dir,
		ledger:    ledger,
		locations: locations,
		devices:   devices,
		logger:    logger,
	}
}

// --- レスポンス型 ---

// workmateResponse は同僚情報のAPIレスポンス。
type workmateResponse struct {
	ID                  string `json:"id"`
	ExternalID          string `json:"external_id"`
	Name                string `json:"name"`
	Email               string `json:"email,omitempty"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	NotificationEnabled bool   `json:"notification_enabled"`
	PushRegistered      bool   `json:"push_registered"`
}

// meResponse は GET /api/me のレスポンス。
type meResponse struct {
	Workmate   workmateResponse `json:"workmate"`
	TodayLunch *lunchResponse   `json:"today_lunch"`
	Liked      []string         `json:"liked_restaurants"`
	Location   location.Status  `json:"location"`
}

// --- リクエスト型 ---

type settingsRequest struct {
	NotificationEnabled *bool `json:"notification_enabled"`
}

type deviceRequest struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

type locationRequest struct {
	Permission bool     `json:"permission"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

func toWorkmateResponse(w *model.Workmate) workmateResponse {
	return workmateResponse{
		ID:                  w.ID,
		ExternalID:          w.ExternalID,
		Name:                w.Name,
		Email:               w.Email,
		AvatarURL:           w.AvatarURL,
		NotificationEnabled: w.NotificationEnabled,
		PushRegistered:      w.PushEndpoint != "",
	}
}

// GetMe はサインイン中の同僚を解決して返す。初回アクセス時は同僚レコードを作成する。
// GET /api/me
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	resp := meResponse{
		Workmate: toWorkmateResponse(sess.Workmate),
		Liked:    []string{},
		Location: h.locations.Status(sess.Workmate.ExternalID),
	}

	// 付随情報の取得失敗は空として返す
	lunch, err := h.ledger.TodayLunch(r.Context(), sess.Workmate.ExternalID)
	if err != nil {
		h.logger.Warn("当日のランチを取得できませんでした", slog.String("error", err.Error()))
	} else if lunch != nil {
		lr := toLunchResponse(lunch)
		resp.TodayLunch = &lr
	}

	names, err := h.directory.LikedNames(r.Context(), sess)
	if err != nil {
		h.logger.Warn("お気に入りを取得できませんでした", slog.String("error", err.Error()))
	} else if names != nil {
		resp.Liked = names
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateSettings は通知設定を更新する。
// PUT /api/me/settings
func (h *MeHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NotificationEnabled == nil {
		writeInvalidRequest(w)
		return
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	if err := h.directory.SetNotificationEnabled(r.Context(), sess, *req.NotificationEnabled); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkmateResponse(sess.Workmate))
}

// RegisterDevice は端末のプッシュトークンを登録する。
// PUT /api/me/device
func (h *MeHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewPushUnavailableError())
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	endpoint, err := h.devices.RegisterDevice(r.Context(), req.Platform, req.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.directory.SetPushEndpoint(r.Context(), sess, endpoint); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkmateResponse(sess.Workmate))
}

// ReportLocation は端末の位置情報権限と座標を受け取り、融合後の状態を返す。
// 座標は緯度・経度の両方が指定された場合のみ採用する。
// POST /api/me/location
func (h *MeHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var loc *model.LatLng
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		l := model.LatLng{Lat: *req.Latitude, Lng: *req.Longitude}
		if !l.Valid() {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLocationError("座標が範囲外です"))
			return
		}
		loc = &l
	case req.Latitude != nil || req.Longitude != nil:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLocationError("緯度と経度は両方指定してください"))
		return
	}

	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	status := h.locations.Report(sess.Workmate.ExternalID, req.Permission, loc)
	writeJSON(w, http.StatusOK, status)
}

// GetLocation は融合後の位置情報状態を返す。
// GET /api/me/location
func (h *MeHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	sess := resolveSession(w, r, h.directory)
	if sess == nil {
		return
	}

	writeJSON(w, http.StatusOK, h.locations.Status(sess.Workmate.ExternalID))
}
