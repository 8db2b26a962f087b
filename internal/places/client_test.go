package places

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/lunchmate/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "test-key", WithBaseURL(server.URL+"/"))
	return c, &buf
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "key")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
}

func TestClient_NearbySearch_BuildsQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nearbysearch/json" {
			t.Errorf("path = %s, want /nearbysearch/json", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("location"); got != "48.8566,2.3522" {
			t.Errorf("location = %s, want 48.8566,2.3522", got)
		}
		if got := q.Get("radius"); got != "500" {
			t.Errorf("radius = %s, want 500", got)
		}
		if got := q.Get("type"); got != "restaurant" {
			t.Errorf("type = %s, want restaurant", got)
		}
		if got := q.Get("key"); got != "test-key" {
			t.Errorf("key = %s, want test-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"Chez A","vicinity":"1 rue A","user_ratings_total":12,"rating":4.2,"opening_hours":{"open_now":true}},{"place_id":"p2"}]}`))
	})

	resp, err := c.NearbySearch(context.Background(), model.LatLng{Lat: 48.8566, Lng: 2.3522}, 500, "restaurant")
	if err != nil {
		t.Fatalf("NearbySearch がエラーを返した: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("結果件数 = %d, want 2", len(resp.Results))
	}

	first := resp.Results[0]
	if first.PlaceID == nil || *first.PlaceID != "p1" {
		t.Errorf("place_id = %v, want p1", first.PlaceID)
	}
	if first.UserRatingsTotal == nil || *first.UserRatingsTotal != 12 {
		t.Errorf("user_ratings_total = %v, want 12", first.UserRatingsTotal)
	}
	if first.OpeningHours == nil || first.OpeningHours.OpenNow == nil || !*first.OpeningHours.OpenNow {
		t.Errorf("open_now = %v, want true", first.OpeningHours)
	}

	// 欠落フィールドはnilのまま
	second := resp.Results[1]
	if second.Name != nil || second.Rating != nil || second.OpeningHours != nil || second.UserRatingsTotal != nil {
		t.Errorf("欠落フィールドが nil ではない: %+v", second)
	}
}

func TestClient_NearbySearch_ZeroResultsIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	resp, err := c.NearbySearch(context.Background(), model.LatLng{}, 500, "restaurant")
	if err != nil {
		t.Fatalf("ZERO_RESULTS はエラーにならないべき: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("結果件数 = %d, want 0", len(resp.Results))
	}
}

func TestClient_NearbySearch_APIErrorStatus(t *testing.T) {
	c, buf := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	})

	_, err := c.NearbySearch(context.Background(), model.LatLng{}, 500, "restaurant")
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
	if !strings.Contains(buf.String(), "REQUEST_DENIED") {
		t.Errorf("ログにステータスが含まれていない: %s", buf.String())
	}
}

func TestClient_NearbySearch_HTTPErrorStatus(t *testing.T) {
	c, buf := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.NearbySearch(context.Background(), model.LatLng{}, 500, "restaurant")
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
	if !strings.Contains(buf.String(), `"http_status":503`) {
		t.Errorf("ログにHTTPステータスが含まれていない: %s", buf.String())
	}
}

func TestClient_NearbySearch_InvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := c.NearbySearch(context.Background(), model.LatLng{}, 500, "restaurant")
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
}

func TestClient_NearbySearch_NetworkErrorDoesNotLogKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "secret-key-123", WithBaseURL(baseURL))

	_, err := c.NearbySearch(context.Background(), model.LatLng{}, 500, "restaurant")
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
	if strings.Contains(buf.String(), "secret-key-123") {
		t.Errorf("ログにAPIキーが含まれている: %s", buf.String())
	}
	if strings.Contains(err.Error(), "secret-key-123") {
		t.Errorf("エラーにAPIキーが含まれている: %v", err)
	}
}

func TestClient_NearbySearch_NoCacheEachCallHitsNetwork(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"OK","results":[]}`))
	})

	center := model.LatLng{Lat: 1, Lng: 2}
	for i := 0; i < 2; i++ {
		if _, err := c.NearbySearch(context.Background(), center, 500, "restaurant"); err != nil {
			t.Fatalf("NearbySearch がエラーを返した: %v", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("ネットワーク呼び出し回数 = %d, want 2", got)
	}
}

func TestClient_Details_RequestsFieldMask(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/details/json" {
			t.Errorf("path = %s, want /details/json", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("place_id"); got != "p1" {
			t.Errorf("place_id = %s, want p1", got)
		}
		if got := q.Get("fields"); got != DetailFields {
			t.Errorf("fields = %s, want %s", got, DetailFields)
		}
		w.Write([]byte(`{"status":"OK","result":{"place_id":"p1","name":"Chez A","website":"https://chez-a.example","formatted_phone_number":"01 23 45 67 89"}}`))
	})

	resp, err := c.Details(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Details がエラーを返した: %v", err)
	}
	if resp.Result == nil || resp.Result.Website == nil || *resp.Result.Website != "https://chez-a.example" {
		t.Errorf("website = %+v", resp.Result)
	}
}

func TestClient_Details_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"NOT_FOUND"}`))
	})

	_, err := c.Details(context.Background(), "missing")
	if !errors.Is(err, model.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestClient_Details_MissingResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK"}`))
	})

	_, err := c.Details(context.Background(), "p1")
	if !errors.Is(err, model.ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[]}`))
	})
	WithRateLimit(1)(c)

	ctx := context.Background()
	if _, err := c.NearbySearch(ctx, model.LatLng{}, 500, "restaurant"); err != nil {
		t.Fatalf("1回目の呼び出しが失敗: %v", err)
	}

	// トークンが尽きた状態でキャンセル済みのコンテキストを渡すと待機せずに失敗する
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := c.NearbySearch(canceled, model.LatLng{}, 500, "restaurant"); !errors.Is(err, model.ErrTransportFailure) {
		t.Errorf("err = %v, want ErrTransportFailure", err)
	}
}

func TestClient_PhotoURL(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "k", WithBaseURL("https://maps.example.com/api/place/"))

	got := c.PhotoURL("ref-1", 0)
	want := "https://maps.example.com/api/place/photo?key=k&maxwidth=400&photoreference=ref-1"
	if got != want {
		t.Errorf("PhotoURL = %q, want %q", got, want)
	}
	if c.PhotoURL("", 400) != "" {
		t.Error("空の参照は空文字列を返すべき")
	}
}
