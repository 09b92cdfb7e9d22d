package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/api/routes"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/providers/llm"
	"github.com/yoockh/scribe/internal/providers/stt"
	"github.com/yoockh/scribe/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config validation failed")
	}
	log := logger.New(cfg.LogLevel)
	log.WithField("env", cfg.Env).Info("configuration loaded")

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// outlives the signal so accepted work can drain during shutdown
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	injector := setupDI(appCtx, cfg, log)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session: do.MustInvoke[*handlers.SessionHandler](injector),
		WS:      do.MustInvoke[*handlers.WSHandler](injector),
		JWT: middleware.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-sigCtx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// let stops already accepted finish their summaries
	finished := make(chan struct{})
	go func() {
		do.MustInvoke[services.FinalizeService](injector).Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-shutdownCtx.Done():
		log.Warn("finalizations still running at shutdown")
	}

	cancelApp()
	closeProviders(injector, log)
}

func closeProviders(injector do.Injector, log *logrus.Logger) {
	if p, err := do.Invoke[stt.Provider](injector); err == nil {
		if err := p.Close(); err != nil {
			log.WithError(err).Warn("close transcription provider")
		}
	}
	if p, err := do.Invoke[llm.Provider](injector); err == nil {
		if err := p.Close(); err != nil {
			log.WithError(err).Warn("close summary provider")
		}
	}
}
