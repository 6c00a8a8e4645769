package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiwari-pos/monitor/internal/config"
	"github.com/kiwari-pos/monitor/internal/logger"
	"github.com/kiwari-pos/monitor/internal/notify"
	"github.com/kiwari-pos/monitor/internal/printing"
	"github.com/kiwari-pos/monitor/internal/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logger.New(cfg.Logger.Level)

	alerter := notify.NewConsoleAlerter(log)
	sess, err := session.New(cfg, log, printing.SpoolPrinter{}, alerter)
	if err != nil {
		log.Error("failed to open session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("monitor starting")
	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session terminated", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
