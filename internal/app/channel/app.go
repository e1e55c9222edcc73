package channelapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/channel"
	"github.com/FurmanovVitaliy/logger"
)

type App struct {
	log        *slog.Logger
	httpServer *http.Server
	channel    *channel.Server
	addr       string
}

// New mounts the channel on path and, when metrics is not nil, the metrics
// handler on metricsPath.
func New(
	log *slog.Logger,
	addr string,
	path string,
	server *channel.Server,
	metricsPath string,
	metrics http.Handler,
) *App {
	mux := http.NewServeMux()
	mux.Handle(path, server)
	if metrics != nil {
		mux.Handle(metricsPath, metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &App{
		log: log,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		channel: server,
		addr:    addr,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "channelapp.App.Run"

	l, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return a.Serve(l)
}

// Serve runs on an existing listener.
func (a *App) Serve(l net.Listener) error {
	const op = "channelapp.App.Serve"

	a.log.Info("channel server is running", slog.String("op", op), slog.String("addr", l.Addr().String()))
	if err := a.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) Stop(ctx context.Context) {
	const op = "channelapp.App.Stop"
	log := a.log.With(slog.String("op", op))

	log.Info("stopping channel server", slog.String("addr", a.addr))

	// Websocket connections are hijacked and not tracked by Shutdown.
	a.channel.Close()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown failed", logger.ErrAttr(err))
	}
}
