package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleNotification() Notification {
	metric := 0.0123
	return Notification{
		Monitor:     "clock-rate",
		MonitorType: "ClockRateMonitor",
		ReceiverID:  "Test Rx",
		RxTime:      421.5,
		Metric:      &metric,
		Threshold:   0.0015,
		Channels:    []string{"0.3", "0.7"},
	}
}

func TestTelegramNotifySuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token123", "chat42", srv.URL, time.Second, noopLogger())
	if err := n.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotPath != "/bottoken123/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["chat_id"] != "chat42" {
		t.Fatalf("unexpected chat id: %s", gotBody["chat_id"])
	}
	text := gotBody["text"]
	for _, want := range []string{"clock-rate", "ClockRateMonitor", "Test Rx", "421.5", "0.0123", "0.3,0.7"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message text missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, time.Second, noopLogger())
	if err := n.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("HTTP 502 should return an error")
	}
}

func TestTelegramNotifyNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": false})
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat", srv.URL, time.Second, noopLogger())
	if err := n.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false should return an error")
	}
}
