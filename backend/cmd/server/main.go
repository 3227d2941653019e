package main

import (
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

	"cogbot/backend/internal/chunker"
	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/store"
	"cogbot/backend/pkg/config"
	apperrors "cogbot/backend/pkg/errors"
	"cogbot/backend/pkg/logger"
)

// secretKeys are settings whose values never leave the store in clear text
var secretKeys = map[string]bool{"api_key": true}

var cogNames = []string{
	constants.CogAvailability,
	constants.CogNFO,
	constants.CogGreeting,
	constants.CogLinkRewrite,
	constants.CogMedal,
	constants.CogMinecraft,
	constants.CogChat,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env, cfg.Debug); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP status server...")

	ctx := context.Background()
	settings, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer closeStore()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(settings, cfg.Cogs, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func newRouter(st store.Store, cogs *config.CogsConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Preview how a response would be split into messages
		api.POST("/split", func(c *gin.Context) {
			var req struct {
				Text  string `json:"text"`
				Limit *int   `json:"limit"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			limit := constants.DefaultChunkLimit
			if req.Limit != nil {
				limit = *req.Limit
			}

			chunks, err := chunker.Split(req.Text, limit)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if chunks == nil {
				chunks = []string{}
			}

			c.JSON(http.StatusOK, gin.H{"chunks": chunks})
		})

		api.GET("/settings/:scope", func(c *gin.Context) {
			scope := c.Param("scope")

			values, err := st.All(c.Request.Context(), scope)
			if err != nil {
				log.Error("Failed to read settings", zap.String("scope", scope), zap.Error(err))
				status := http.StatusInternalServerError
				if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
					status = http.StatusServiceUnavailable
				}
				c.JSON(status, gin.H{"error": "Failed to read settings"})
				return
			}

			for k, v := range values {
				if secretKeys[k] && v != "" {
					values[k] = "********"
				}
			}

			c.JSON(http.StatusOK, gin.H{"scope": scope, "settings": values})
		})

		api.GET("/cogs", func(c *gin.Context) {
			out := make([]gin.H, 0, len(cogNames))
			for _, name := range cogNames {
				out = append(out, gin.H{"name": name, "enabled": cogs.Enabled(name)})
			}
			c.JSON(http.StatusOK, gin.H{"cogs": out})
		})
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
