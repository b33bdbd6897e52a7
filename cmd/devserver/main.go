package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/internal/devserver"
)

func main() {
	ctx := context.TODO()

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err == nil {
		log.CtxInfo(ctx, "loaded .env")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	srv, err := devserver.New(ctx, cfg)
	if err != nil {
		log.CtxError(ctx, "failed to start devserver: %v", err)
		panic(err)
	}
	defer srv.Close()

	h := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Devserver.HTTPPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.CtxInfo(ctx, "devserver starting on port %d", cfg.Devserver.HTTPPort)

	// Start server in goroutine
	go func() {
		if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.CtxError(ctx, "listen failed: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down devserver...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "devserver stopped")
}
