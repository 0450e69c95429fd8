package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"puzzle_webapp/internal/bot"
	"puzzle_webapp/internal/config"
	"puzzle_webapp/internal/db"
	"puzzle_webapp/internal/dispatch"
	"puzzle_webapp/internal/domain"
	httpServer "puzzle_webapp/internal/http"
	"puzzle_webapp/internal/http/handlers"
	"puzzle_webapp/internal/http/middleware"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/puzzle"
	"puzzle_webapp/internal/repository"
	"puzzle_webapp/internal/rotation"
	"puzzle_webapp/internal/service"
	"puzzle_webapp/internal/session"
	"puzzle_webapp/internal/store"
	"puzzle_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}
	middleware.InitRedisRateLimiter(rdb)

	var dbPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
	} else {
		logger.Warn("DATABASE_URL not set, results history disabled and stats kept in memory")
	}

	registry, err := puzzle.NewDefaultRegistry(puzzle.Options{
		ChessMaxMistakes: cfg.ChessMaxMistakes,
		MinesweeperMines: cfg.MinesweeperMines,
	})
	if err != nil {
		logger.Fatal("failed to build puzzle registry", "error", err)
	}
	clock := rotation.NewClock(cfg.RotationHour, cfg.RotationPeriod)

	// Stores: Redis when available, memory otherwise
	var (
		sessionStore store.SessionStore
		puzzleStore  store.PuzzleStore
		board        repository.Leaderboard
	)
	if rdb != nil {
		backstop := 2 * cfg.SessionTTL
		sessionStore = store.NewRedisSessionStore(rdb, backstop)
		puzzleStore = store.NewRedisPuzzleStore(rdb, backstop)
		board = repository.NewRedisLeaderboard(rdb, 2*cfg.RotationPeriod)
	} else {
		sessionStore = store.NewMemorySessionStore()
		puzzleStore = store.NewMemoryPuzzleStore()
		board = repository.NewMemoryLeaderboard()
	}

	var (
		stats   service.StatsStore = repository.NewMemoryStatsRepository()
		results service.ResultStore
	)
	if dbPool != nil {
		stats = repository.NewStatsRepository(dbPool)
		results = repository.NewPuzzleResultRepository(dbPool)
	}
	resultService := service.NewResultService(sessionStore, registry, board, stats, results, clock)

	engine := dispatch.NewEngine(registry, puzzleStore, dispatch.Options{
		HouseMode:  dispatch.HouseMode(cfg.HouseTurnMode),
		Generation: clock.Generation,
		Sink:       resultService,
		Sessions:   sessionStore,
	})

	identity, err := service.NewIdentityService(cfg.JWTSecret, 24*time.Hour, cfg.DevMode)
	if err != nil {
		logger.Fatal("failed to init identity service", "error", err)
	}

	hub := ws.NewHub()
	manager := session.NewManager(sessionStore, identity, engine, session.Options{
		TTL:      cfg.SessionTTL,
		Notifier: hub,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	reaper := session.NewReaper(manager, cfg.ReapInterval)
	reaper.Start(ctx)
	scheduler := rotation.NewScheduler(clock, engine, hub, resultService)
	scheduler.Start(ctx)

	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled && cfg.BotToken != "" && len(cfg.AdminTelegramIDs) > 0 {
		games := make([]domain.GameType, 0)
		for _, g := range registry.List() {
			games = append(games, g.Type())
		}
		adminBot, err = bot.NewAdminBot(cfg.BotToken, bot.Ops{
			Reporter:    resultService,
			Rotator:     scheduler,
			Generation:  clock.Generation,
			Sessions:    sessionStore.Count,
			Connections: hub.Count,
			Games:       games,
		}, cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("failed to start admin bot", "error", err)
		} else {
			go adminBot.Start()
		}
	}

	h := handlers.NewHandler(manager, engine, resultService, identity, handlers.HandlerConfig{
		BotToken:  cfg.BotToken,
		DevMode:   cfg.DevMode,
		Heartbeat: cfg.Heartbeat,
	})
	health := handlers.NewHealthHandler(dbPool, rdb, sessionStore.Count, version)

	r := gin.New()
	r.Use(gin.Recovery())
	httpServer.RegisterRoutes(r, h, health, hub, manager, httpServer.LimitsFromConfig(cfg), cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version,
			"house_mode", engine.HouseMode(), "session_ttl", cfg.SessionTTL.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if adminBot != nil {
		adminBot.Stop()
	}
	scheduler.Stop()
	reaper.Stop()
	stop()
	engine.Wait()

	logger.Info("server exited")
}
