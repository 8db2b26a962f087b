package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/lunchmate/internal/model"
)

func requestAs(workmateID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
	return req.WithContext(ContextWithIdentity(req.Context(), model.Identity{ExternalID: workmateID}))
}

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// --- API全般 ---

func TestGeneralMiddleware_AllowsBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, SearchRate: 1, SearchBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("u1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestGeneralMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.5, GeneralBurst: 1, SearchRate: 1, SearchBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("u1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("u1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestGeneralMiddleware_IsolatesWorkmates(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1, SearchRate: 1, SearchBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("u1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("u2"))
	if w.Code != http.StatusOK {
		t.Errorf("別の同僚は制限されない: status = %d", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestGeneralMiddleware_NoIdentity_Returns401(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, SearchRate: 1, SearchBurst: 1})
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("外部IDがない場合はハンドラを呼ばない")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// --- レストラン検索 ---

func TestSearchMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 100, GeneralBurst: 100, SearchRate: 0.1, SearchBurst: 1})
	general := rl.GeneralMiddleware()(okHandler)
	search := rl.SearchMiddleware()(okHandler)

	w := httptest.NewRecorder()
	search.ServeHTTP(w, requestAs("u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("1回目の検索: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	search.ServeHTTP(w, requestAs("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("2回目の検索: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs("u1"))
	if w.Code != http.StatusOK {
		t.Errorf("検索の制限はAPI全般に影響しない: status = %d", w.Code)
	}
	if rl.SearchLimiterCount() != 1 {
		t.Errorf("SearchLimiterCount = %d, want 1", rl.SearchLimiterCount())
	}
}

// --- クリーンアップ ---

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 2, GeneralBurst: 5, SearchRate: 1, SearchBurst: 1,
		CleanupInterval: 50 * time.Millisecond,
	})
	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestAs("u1"))
	rl.SearchMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestAs("u1"))

	// TTLはクリーンアップ間隔の2倍
	time.Sleep(200 * time.Millisecond)

	if n := rl.GeneralLimiterCount(); n != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", n)
	}
	if n := rl.SearchLimiterCount(); n != 0 {
		t.Errorf("SearchLimiterCount = %d, want 0", n)
	}
}

// --- チェーン ---

func TestRateLimit_InChainWithAuthAndCORS(t *testing.T) {
	secret := []byte("chain-secret")
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 2, SearchRate: 1, SearchBurst: 1})

	// CORS -> Auth -> RateLimit -> Handler
	handler := NewCORSMiddleware("http://localhost:3000")(
		NewAuthMiddleware(AuthConfig{Secret: secret})(
			rl.GeneralMiddleware()(okHandler)))

	token := signTestToken(t, secret, testClaims("u-chain"))
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, want)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Errorf("request %d: CORSヘッダーがない", i)
		}
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 || cfg.GeneralBurst != 120 {
		t.Errorf("General = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.SearchRate != 0.5 || cfg.SearchBurst != 30 {
		t.Errorf("Search = %v/%d, want 0.5/30", cfg.SearchRate, cfg.SearchBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v", cfg.CleanupInterval)
	}
}
