package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"squadgraph/backend/internal/api"
	"squadgraph/backend/internal/app"
	"squadgraph/backend/pkg/config"
	"squadgraph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	router := newRouter(application)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newRouter(a *app.App) *gin.Engine {
	handler := api.NewHandler(api.Deps{
		Queries:      a.Cached,
		Communities:  a.Communities,
		Aliases:      a.Aliases,
		Invalidator:  a.Cached,
		AliasTimeout: a.Config.AliasTimeout,
	})
	router := api.NewRouter(handler, a.Config.IsProduction())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
