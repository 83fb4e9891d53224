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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/api"
	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/handlers"
	"github.com/Eyali1001/harpoon/middleware"
	"github.com/Eyali1001/harpoon/service"
	"github.com/Eyali1001/harpoon/storage"
	"github.com/Eyali1001/harpoon/syncer"
)

func main() {
	// .env is optional; ignore if missing
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load(os.Getenv("HARPOON_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	gamma := api.NewGammaClient()
	subgraph := api.NewSubgraphClient(gamma, cfg.Sync.PageSize,
		time.Duration(cfg.Sync.RequestTimeoutMS)*time.Millisecond)
	profiles := api.NewPolymarketClient()

	engine := syncer.New(subgraph, store, cfg.Sync)
	svc := service.NewService(store, engine, gamma, profiles, cfg)

	router := setupRouter(cfg, svc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

// openStore picks Postgres when POSTGRES_HOST is configured and falls back
// to the in-memory store for local development.
func openStore(cfg *config.Config) (storage.DataStore, error) {
	if os.Getenv("POSTGRES_HOST") == "" {
		log.Warn().Msg("POSTGRES_HOST not set, using in-memory storage")
		return storage.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return storage.NewPostgres(ctx, time.Duration(cfg.Analytics.CacheTTLMins)*time.Minute)
}

func setupRouter(cfg *config.Config, svc *service.Service) *gin.Engine {
	if os.Getenv("DEBUG") != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	h := handlers.NewHandler(cfg, svc)

	router.GET("/health", h.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/trades/*addr", h.GetTrades)
		apiGroup.GET("/analytics/*addr", h.GetAnalytics)
		apiGroup.DELETE("/cache/*addr", h.InvalidateCache)
	}

	return router
}
