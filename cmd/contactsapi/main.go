// Command contactsapi serves the reference contacts REST backend in memory,
// for development against a real daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/matheus3301/phonecontact/internal/remote/remotetest"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	apiKey := flag.String("key", os.Getenv("PHONECONTACT_API_KEY"), "required ApiKey header value (empty disables the check)")
	publicURL := flag.String("public-url", "", "origin used in uploaded image URLs (default http://localhost<addr>)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *publicURL == "" {
		*publicURL = "http://localhost" + *addr
	}

	backend := remotetest.New(*apiKey)
	backend.SetPublicURL(*publicURL)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(cors.New(corsConfig()))
	backend.Register(r, "/api")

	srv := &http.Server{Addr: *addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("contacts API listening", zap.String("addr", *addr), zap.String("public_url", *publicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("contacts API stopped")
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "ApiKey"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
