package realtime

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func startHub(t *testing.T, allowedOrigin string, mc metrics.MetricsCollector) (*Hub, *httptest.Server) {
	t.Helper()
	var buf bytes.Buffer
	hub := NewHub(allowedOrigin, mc, newTestLogger(&buf))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("接続に失敗しました: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	hub, srv := startHub(t, "", nil)
	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	waitForClients(t, hub, 2)

	event := model.LunchEvent{
		Type:           model.LunchCreated,
		Date:           "2024-03-15T00:00:00Z",
		WorkmateID:     "u1",
		WorkmateName:   "Alice",
		RestaurantID:   "p1",
		RestaurantName: "Chez A",
	}
	hub.Publish(event)

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got model.LunchEvent
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("受信に失敗しました: %v", err)
		}
		if got != event {
			t.Errorf("受信イベント = %+v, want %+v", got, event)
		}
	}
}

func TestHub_UnregistersOnClientClose(t *testing.T) {
	hub, srv := startHub(t, "", nil)
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// 切断済みクライアントへの配信でパニックしない
	hub.Publish(model.LunchEvent{Type: model.LunchDeleted})
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, srv := startHub(t, "https://lunchmate.example.com", nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	if err == nil {
		t.Fatal("許可されていないOriginからの接続は拒否されるべき")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("レスポンス = %v, want 403", resp)
	}

	conn := dial(t, srv, http.Header{"Origin": {"https://lunchmate.example.com"}})
	if conn == nil {
		t.Fatal("許可されたOriginからの接続に失敗")
	}
}

func TestHub_TracksClientGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub, srv := startHub(t, "", metrics.NewCollector(reg))
	dial(t, srv, nil)
	waitForClients(t, hub, 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather に失敗: %v", err)
	}
	var gauge *dto.Metric
	for _, mf := range families {
		if mf.GetName() == "lunchmate_realtime_clients" {
			gauge = mf.GetMetric()[0]
		}
	}
	if gauge == nil || gauge.GetGauge().GetValue() != 1 {
		t.Errorf("lunchmate_realtime_clients = %v, want 1", gauge)
	}
}
