// Package main runs the SFU signaling control plane with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-conf/roomcore/config"
	"github.com/aura-conf/roomcore/internal/identity"
	"github.com/aura-conf/roomcore/internal/mediaengine"
	"github.com/aura-conf/roomcore/internal/middleware"
	"github.com/aura-conf/roomcore/internal/roomcore"
	"github.com/aura-conf/roomcore/internal/signaling"
	"github.com/aura-conf/roomcore/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	webrtcCfg := mediaengine.Config{
		ListenIP:    cfg.WebRTC.ListenIP,
		AnnouncedIP: cfg.WebRTC.AnnouncedIP,
		PortMin:     cfg.WebRTC.PortMin,
		PortMax:     cfg.WebRTC.PortMax,
		EnableUDP:   cfg.WebRTC.EnableUDP,
		EnableTCP:   cfg.WebRTC.EnableTCP,
		PreferUDP:   cfg.WebRTC.PreferUDP,
	}

	worker, err := mediaengine.NewWorker(webrtcCfg, logger)
	if err != nil {
		logger.Fatal("start media engine worker", zap.Error(err))
	}

	server := roomcore.NewServer(roomcore.NewEngine(worker), webrtcCfg, logger)
	verifier := identity.NewJWTVerifier(cfg.JWT.Secret)

	grace := time.Duration(cfg.Server.WorkerDeathGrace) * time.Second
	worker.OnDeath(func(reason error) {
		logger.Error("media engine worker died, exiting after grace period", zap.Error(reason), zap.Duration("grace", grace))
		server.NotifyWorkerDied(reason)
		time.AfterFunc(grace, func() { os.Exit(1) })
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/ws", signaling.Handler(server, verifier, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
