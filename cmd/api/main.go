package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/attendance"
	"cohort/internal/chat"
	"cohort/internal/config"
	"cohort/internal/feedback"
	"cohort/internal/handler"
	"cohort/internal/httpmiddleware"
	"cohort/internal/loginlog"
	"cohort/internal/profile"
	"cohort/internal/queue"
	"cohort/internal/store"
	"cohort/internal/submission"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error.Fatalf("invalid config: %v", err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Error.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	calendar, err := cfg.Calendar()
	if err != nil {
		return err
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info.Printf("Database ready (%s)", db.Dialect)

	rdb, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()
	redisUp := rdb.Healthy(ctx)
	if !redisUp {
		logger.Info.Printf("Redis at %s not reachable, continuing without it", cfg.RedisAddr)
	}

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	logins := loginlog.NewRepository(db)
	var recorder *loginlog.Recorder
	if cfg.QueueBackend != "redis" || redisUp {
		q, err := queue.New(cfg.QueueBackend, rdb.Client, cfg.QueueKey)
		if err != nil {
			return err
		}
		recorder = loginlog.NewRecorder(q)
		// the memory queue only exists in this process, so drain it here
		if cfg.QueueBackend == "memory" {
			go func() {
				if err := logins.Serve(consumeCtx, q); err != nil {
					logger.Error.Printf("Login event consumer stopped: %v", err)
				}
			}()
		}
	}

	deps := handler.Deps{
		DB:          db,
		Attendance:  attendance.NewService(attendance.NewRepository(db), calendar, time.Now),
		Profiles:    profile.NewRepository(db, calendar.TotalTeams),
		Submissions: submission.NewRepository(db),
		Feedback:    feedback.NewRepository(db),
		Logins:      logins,
		Recorder:    recorder,
		Limiter:     httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		SigningKey:  cfg.JWTSigningKey,
		Issuer:      cfg.JWTIssuer,
	}
	if redisUp {
		deps.Redis = rdb
		if cfg.ChatEnabled {
			deps.Chat = chat.NewHub(rdb.Client, cfg.Rooms(calendar.TotalTeams))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	handler.New(deps).Register(r)

	// no WriteTimeout: chat streams stay open
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info.Printf("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("Server forced shutdown: %v", err)
	}
	stopConsumer()

	logger.Info.Printf("Server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
