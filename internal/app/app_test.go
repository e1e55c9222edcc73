package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/channel"
	"github.com/FurmanovVitaliy/extension-auth/internal/config"
	"github.com/FurmanovVitaliy/extension-auth/internal/popup"
	"github.com/prometheus/client_golang/prometheus"
)

func testConfig() *config.Config {
	cfg := &config.Config{Env: "local"}
	cfg.Channel.Path = "/channel"
	cfg.Channel.Timeout = 5 * time.Second
	cfg.Provider.Kind = config.ProviderLocal
	cfg.Provider.Local = config.LocalProviderConfig{
		AppID:           1,
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Accounts:        config.StoreMemory,
		Sessions:        config.StoreMemory,
	}
	cfg.Store.Kind = config.StoreMemory
	cfg.Store.Namespace = "popup"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// startApp serves a background process on a random local port.
func startApp(t *testing.T) (addr string) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	application := New(log, testConfig(), prometheus.NewRegistry())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = application.ChannelServer.Serve(l) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		application.ChannelServer.Stop(ctx)
		application.Close()
	})
	return l.Addr().String()
}

func TestPopupLifecycleOverWebsocket(t *testing.T) {
	addr := startApp(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := channel.Dial(ctx, log, "ws://"+addr+"/channel", nil)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	var toasts []string
	ctrl := popup.New(log, client, popup.NotifierFunc(func(d string) { toasts = append(toasts, d) }))

	if err := ctrl.Mount(ctx); err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}
	if ctrl.State().Status() != popup.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated on first mount, got %v", ctrl.State().Status())
	}

	if err := ctrl.SignIn(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if len(toasts) != 1 || toasts[0] != "Error with auth: Invalid login credentials" {
		t.Errorf("unexpected toasts: %v", toasts)
	}

	if err := ctrl.SignUp(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	state := ctrl.State()
	if state.Status() != popup.StatusAuthenticated || state.User().Email != "alice@example.com" {
		t.Fatalf("expected authenticated alice, got %v", state)
	}
	if state.ExpiresAt() <= time.Now().Unix() {
		t.Errorf("expected expiry in the future, got %d", state.ExpiresAt())
	}

	// A second popup resolves the persisted session.
	other := popup.New(log, client, nil)
	if err := other.Mount(ctx); err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}
	if other.State().Status() != popup.StatusAuthenticated {
		t.Errorf("expected persisted session, got %v", other.State().Status())
	}

	if err := ctrl.SignOut(ctx); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if ctrl.State().Status() != popup.StatusUnauthenticated {
		t.Errorf("expected unauthenticated after sign-out, got %v", ctrl.State().Status())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	addr := startApp(t)

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "extension_auth_connected_popups") {
		t.Errorf("metrics not exposed:\n%s", body)
	}
}
