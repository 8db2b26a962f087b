package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/lunchmate/internal/middleware"
	"github.com/hitoshi/lunchmate/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequest はリクエストボディが解析できない場合のエラーを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrEmptyResult):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewWorkmateNotFoundError())
		return
	case errors.Is(err, model.ErrTransportFailure):
		slog.Warn("upstream call failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeLocationDenied:
		return http.StatusForbidden
	case model.ErrCodeInvalidLocation, model.ErrCodeInvalidDevice, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeRestaurantNotFound, model.ErrCodeWorkmateNotFound:
		return http.StatusNotFound
	case model.ErrCodePlacesFailed, model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	case model.ErrCodeLunchWriteFailed, model.ErrCodeLikeWriteFailed:
		return http.StatusConflict
	case model.ErrCodePushUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
