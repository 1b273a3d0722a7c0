package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/audit"
	"commandr-server/internal/auth"
	"commandr-server/internal/config"
	"commandr-server/internal/hub"
	"commandr-server/internal/schema"
	"commandr-server/internal/server"
	"commandr-server/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.NewLogger()

	gin.SetMode(cfg.GinMode)

	sink, err := audit.Open(cfg.AuditSink, cfg.AuditTarget)
	if err != nil {
		log.WithError(err).Fatal("open audit sink")
	}
	defer sink.Close()

	events := hub.NewWithLogger(log)
	opts := store.Options{
		Policy:            cfg.SessionPolicy,
		InactivityTimeout: cfg.InactivityTimeout,
		PruneInterval:     cfg.PruneInterval,
		Audit:             sink,
		Events:            events,
		Logger:            log,
	}
	if cfg.SeedSampleSchema {
		opts.Seed = func() []*schema.Schema { return []*schema.Schema{schema.Sample("")} }
	}
	st := store.NewWithOptions(opts)

	tokenCfg := auth.DefaultTokenConfig(cfg.SessionSecret)
	tokenCfg.Expiry = cfg.TokenExpiry

	router := server.NewRouter(server.Deps{
		Store:          st,
		TokenConfig:    tokenCfg,
		Hub:            events,
		Logger:         log,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"addr":    fmt.Sprintf(":%d", cfg.Port),
		"policy":  cfg.SessionPolicy,
		"audit":   cfg.AuditSink,
		"timeout": cfg.InactivityTimeout,
	}).Info("listening")
	if err := server.Run(ctx, cfg, router); err != nil {
		log.WithError(err).Error("server stopped")
		return
	}
	log.Info("server stopped")
}
