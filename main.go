package main

import (
	"bitwise74/course-archive/app"
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/internal"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Setup()
	if err != nil {
		panic(err)
	}

	if err := app.MakeLogger(cfg.App); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	for _, w := range cfg.Warnings {
		zap.L().Warn(w)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := internal.NewDeps(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer d.Close()

	router, err := app.NewRouter(d)
	if err != nil {
		zap.L().Fatal("Failed to create router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.Int("port", cfg.Host.Port), zap.String("storage", cfg.Storage.Type))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Failed to shut down cleanly", zap.Error(err))
	}
}
