package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOutboundGuard(t *testing.T) {
	if guard := NewOutboundGuard(); guard == nil {
		t.Fatal("NewOutboundGuard() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	timeout := 5 * time.Second
	client := NewOutboundGuard().NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicHTTPS(t *testing.T) {
	guard := NewOutboundGuard()

	for _, u := range []string{
		"https://maps.googleapis.com/maps/api/place",
		"https://lh3.googleusercontent.com/a/avatar.png",
		"https://93.184.216.34/",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejects(t *testing.T) {
	guard := NewOutboundGuard()

	for _, u := range []string{
		"",
		"not-a-url",
		"http://maps.googleapis.com/maps/api/place",
		"ftp://example.com/file",
		"file:///etc/passwd",
		"https://10.0.0.1/api",
		"https://172.16.0.1/api",
		"https://192.168.1.100/api",
		"https://127.0.0.1/api",
		"https://localhost/api",
		"https://metadata.google.internal/computeMetadata/v1/",
		"https://169.254.169.254/latest/meta-data/",
		"https://[::1]/api",
		"https://0.0.0.0/api",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

func TestOutboundGuardInterface(t *testing.T) {
	var _ OutboundGuardService = NewOutboundGuard()
}
