package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/app"
	"github.com/FurmanovVitaliy/extension-auth/internal/config"
	"github.com/FurmanovVitaliy/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx := context.Background()

	logger.ExtractLogger(ctx).Info("starting background process")
	logger.ExtractLogger(ctx).Info("loading configuration")

	cfg := config.MustLoad()
	log := app.SetupLogger(cfg)

	log.Info("configuration loaded", "config", cfg.LogValue())

	application := app.New(log, cfg, prometheus.DefaultRegisterer)

	go func() {
		application.ChannelServer.MustRun()
	}()
	if application.GRPCServer != nil {
		go func() {
			application.GRPCServer.MustRun()
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	call := <-stop

	log.Info("stopping application", slog.String("signal", call.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	application.ChannelServer.Stop(shutdownCtx)
	if application.GRPCServer != nil {
		application.GRPCServer.Stop()
	}

	log.Info("closing backend connections")
	application.Close()

	log.Info("application stopped")
}
