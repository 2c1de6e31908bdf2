package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/adapter/quizpresenter"
	appcfg "github.com/Terapyy18/ArtGuessr/internal/config"
	"github.com/Terapyy18/ArtGuessr/internal/obslog"
	"github.com/Terapyy18/ArtGuessr/internal/quizbuilder"
	"github.com/Terapyy18/ArtGuessr/internal/quizmetrics"
	"github.com/Terapyy18/ArtGuessr/internal/wsui"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := quizbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("init_failed", zap.Error(err))
		obslog.Sync()
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close_failed", zap.Error(err))
		}
	}()

	if deps.Registry != nil {
		go func() {
			if err := quizmetrics.ListenAndServe(ctx, cfg.MetricsAddr, deps.Registry, logger.Named("metrics")); err != nil {
				logger.Warn("metrics_stopped", zap.Error(err))
			}
		}()
	}

	switch cfg.UIMode {
	case appcfg.UIModeWS:
		srv := wsui.NewServer(deps.Facade, wsui.WithLogger(logger.Named("wsui")))
		err = srv.ListenAndServe(ctx, cfg.WSAddr)
	default:
		term := newTerminal(deps.Facade, quizpresenter.NewFormatter(deps.Messages), os.Stdout, cfg.Rounds)
		err = term.run(ctx, os.Stdin)
	}
	if err != nil {
		logger.Error("ui_stopped", zap.String("mode", cfg.UIMode), zap.Error(err))
	}
}
