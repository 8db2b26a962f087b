package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/lunchmate/internal/model"
)

// LunchHandler は当日のランチと同僚一覧のHTTPハンドラー。
type LunchHandler struct {
	directory DirectoryServiceInterface
	ledger    LunchLedgerInterface
}

// NewLunchHandler はLunchHandlerを生成する。
func NewLunchHandler(dir DirectoryServiceInterface, ledger LunchLedgerInterface) *LunchHandler {
	return &LunchHandler{
		directory: dir,
		ledger:    ledger,
	}
}

// lunchResponse はランチのAPIレスポンス。同僚とレストランは選択時点のスナップショット。
type lunchResponse struct {
	ID         string                 `json:"id"`
	Date       string                 `json:"date"`
	Workmate   model.WorkmateSnapshot `json:"workmate"`
	Restaurant model.Restaurant       `json:"restaurant"`
	CreatedAt  time.Time              `json:"created_at"`
}

// workmateSummaryResponse は同僚一覧の1件。
type workmateSummaryResponse struct {
	ExternalID string         `json:"external_id"`
	Name       string         `json:"name"`
	AvatarURL  string         `json:"avatar_url,omitempty"`
	Lunch      *lunchResponse `json:"lunch"`
}

func toLunchResponse(l *model.Lunch) lunchResponse {
	return lunchResponse{
		ID:         l.ID,
		Date:       l.Date,
		Workmate:   l.Workmate,
		Restaurant: l.Restaurant,
		CreatedAt:  l.CreatedAt,
	}
}

// ListTodayLunches は全同僚の当日のランチを返す。
// GET /api/lunches/today
func (h *LunchHandler) ListTodayLunches(w http.ResponseWriter, r *http.Request) {
	if sess := resolveSession(w, r, h.directory); sess == nil {
		return
	}

	lunches, err := h.ledger.FetchTodayLunches(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]lunchResponse, len(lunches))
	for i, l := range lunches {
		resp[i] = toLunchResponse(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTodayRestaurantNames は当日ランチが登録されているレストラン名を返す。
// 地図上で同僚が集まる店を強調表示するために使う。
// GET /api/lunches/today/restaurants
func (h *LunchHandler) ListTodayRestaurantNames(w http.ResponseWriter, r *http.Request) {
	if sess := resolveSession(w, r, h.directory); sess == nil {
		return
	}

	names, err := h.ledger.FetchTodayLunchRestaurantNames(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

// ListWorkmates は全同僚を当日のランチ付きで返す。
// クエリパラメータqで名前の部分一致に絞り込む。
// GET /api/workmates?q=
func (h *LunchHandler) ListWorkmates(w http.ResponseWriter, r *http.Request) {
	if sess := resolveSession(w, r, h.directory); sess == nil {
		return
	}

	workmates, err := h.directory.ListWorkmates(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rows, err := h.ledger.WorkmatesWithLunch(r.Context(), workmates, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]workmateSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = workmateSummaryResponse{
			ExternalID: row.Workmate.ExternalID,
			Name:       row.Workmate.Name,
			AvatarURL:  row.Workmate.AvatarURL,
		}
		if row.Lunch != nil {
			lr := toLunchResponse(row.Lunch)
			resp[i].Lunch = &lr
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
