package main // Entry point package

import (
	"context" // context for the schema bootstrap timeout
	"log"     // Logging library
	"time"    // timeout durations

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/utilhub/membership-auth/internal/config"     // Internal config loader
	"github.com/utilhub/membership-auth/internal/database"   // MySQL pool + schema bootstrap
	"github.com/utilhub/membership-auth/internal/handler"    // HTTP handlers
	"github.com/utilhub/membership-auth/internal/middleware" // rate limiting and response cache
	"github.com/utilhub/membership-auth/internal/queue"      // background activity consumer
	"github.com/utilhub/membership-auth/internal/repository" // data access
	"github.com/utilhub/membership-auth/internal/router"     // Internal router setup
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg) // Connect to MySQL and verify
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Create tables on first start; idempotent afterwards.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	// Redis backs rate limiting and the catalogue cache; nil disables both.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: rate limiting and response cache disabled")
	}

	accounts := repository.NewAccountRepo(db) // accounts table access
	tokens := repository.NewTokenRepo(db)     // refresh_tokens table access
	resets := repository.NewResetRepo(db)     // password_resets table access

	authHandler := handler.NewAuthHandler(cfg, accounts, tokens, resets)
	userHandler := handler.NewUserHandler(accounts)

	e := echo.New() // Create Echo instance
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.CORSOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.NewFixedWindow(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e) // health check
	router.RegisterAuth(e, authHandler, accounts, cfg.JWTSecret)
	router.RegisterUsers(e, userHandler, accounts, cfg.JWTSecret)
	router.RegisterPublic(e, userHandler, middleware.NewResponseCache(config.LoadCacheConfig(), rdb))

	// Consume account activity events in the background; the consumer
	// reconnects on broker failure and never takes the API down.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
