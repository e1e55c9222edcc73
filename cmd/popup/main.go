package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/app"
	"github.com/FurmanovVitaliy/extension-auth/internal/channel"
	"github.com/FurmanovVitaliy/extension-auth/internal/config"
	"github.com/FurmanovVitaliy/extension-auth/internal/popup"
	"github.com/FurmanovVitaliy/extension-auth/internal/view"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
)

func main() {
	cfg := config.MustLoad()
	log := app.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var client *channel.Client
	err := utils.DoWithRetryContext(ctx, func(ctx context.Context) error {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var err error
		client, err = channel.Dial(dialCtx, log, cfg.Channel.URL, http.Header{"User-Agent": {"extension-popup/1.0"}})
		return err
	}, 3, time.Second)
	if err != nil {
		log.Error("failed to connect to background process", slog.String("url", cfg.Channel.URL), logger.ErrAttr(err))
		os.Exit(1)
	}
	defer client.Close()

	toast := view.NewToaster(os.Stdout)
	ctrl := popup.New(log, client, toast)
	terminal := view.NewTerminal(log, ctrl, os.Stdin, toast)

	go func() {
		select {
		case <-client.Done():
			log.Warn("background process went away")
			stop()
		case <-ctx.Done():
		}
	}()

	if err := terminal.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("popup stopped", logger.ErrAttr(err))
		os.Exit(1)
	}
}
