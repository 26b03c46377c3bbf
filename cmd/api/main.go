package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/snakesync/internal/config"
	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/repository/postgres"
	"github.com/iamasit07/snakesync/internal/repository/redis"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/internal/service/cleanup"
	"github.com/iamasit07/snakesync/internal/service/game"
	"github.com/iamasit07/snakesync/internal/service/registry"
	"github.com/iamasit07/snakesync/internal/service/session"
	"github.com/iamasit07/snakesync/internal/transport/bluetooth"
	transportHttp "github.com/iamasit07/snakesync/internal/transport/http"
	"github.com/iamasit07/snakesync/internal/transport/websocket"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/iamasit07/snakesync/pkg/uid"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	log := logger.For("MAIN")

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Info().Msg("No .env file found")
		}
	}

	cfg := config.LoadConfig()
	logger.SetLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Optional match history
	var matchRepo *postgres.MatchRepo
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
		if err != nil {
			log.Warn().Err(err).Msg("Database unreachable, match history disabled")
		} else {
			defer db.Close()
			if err := postgres.RunMigrations(db); err != nil {
				log.Fatal().Err(err).Msg("Migration failed")
			}
			log.Info().Msg("Database migration completed successfully")
			matchRepo = postgres.NewMatchRepo(db)
		}
	}

	// 2. Optional Redis mirror of the room registry
	if err := redis.InitRedis(cfg.RedisURL, cfg.RedisPassword); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis")
	}
	defer redis.CloseRedis()

	var cache registry.CacheRepository
	if redis.IsRedisEnabled() && redis.RedisClient != nil {
		cache = redis.NewRedisCache(redis.RedisClient)
	}
	rooms := registry.New(cache, cfg.RoomCacheTTL)

	// 3. Transports and their connection managers
	channels := session.ChannelConfig{
		InboundRate:  rate.Limit(cfg.InboundRate),
		InboundBurst: cfg.InboundBurst,
		WriteTimeout: cfg.ChannelWriteTimeout,
	}
	lanTransport := session.NewLANTransport(session.LANConfig{
		ServiceType:      cfg.LANServiceType,
		AnnounceInterval: cfg.LANAnnounceInterval,
		RoomLifetime:     cfg.LANRoomLifetime,
		AllowLoopback:    cfg.LANAllowLoopback,
		Channel:          channels,
	}, rooms)

	radio, err := bluetooth.NewRadio(cfg.BTAdapter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open Bluetooth radio")
	}
	scanner := bluetooth.NewScanner(radio, cfg.BTScanTimeout)
	btTransport := session.NewBluetoothTransport(radio, scanner, cfg.BTChannel, channels, rooms)

	managerOpts := func(kind domain.ConnectionType) session.Options {
		return session.Options{
			PlayerID:       uid.NewPlayerID(string(kind)),
			PlayerName:     cfg.PlayerName,
			ConnectTimeout: cfg.ConnectTimeout,
			StaleAfter:     cfg.StaleAfter,
			Heartbeat:      cfg.HeartbeatInterval,
			Rooms:          rooms,
		}
	}
	lanManager := session.NewManager(lanTransport, managerOpts(domain.LAN))
	btManager := session.NewManager(btTransport, managerOpts(domain.Bluetooth))
	defer lanManager.Close()
	defer btManager.Close()

	// 4. Game coordinator and observer stream
	settings := domain.DefaultSettings()
	settings.Speed = cfg.GameSpeed
	settings.BoostMultiplier = cfg.BoostMultiplier

	hub := websocket.NewHub()
	defer hub.CloseAll()

	gameOpts := game.Options{
		Grid:      domain.Grid{Width: cfg.GridWidth, Height: cfg.GridHeight},
		Settings:  authority.StaticSettings(settings.Clamp()),
		LocalID:   uid.NewPlayerID("local"),
		LocalName: cfg.PlayerName,
	}
	if matchRepo != nil {
		gameOpts.Repo = matchRepo
	}
	wsHandler := websocket.NewHandler(hub, nil, lanManager, btManager)
	gameOpts.OnView = wsHandler.PublishView
	gameService := game.NewService(gameOpts)
	defer gameService.Stop()
	wsHandler.Game = gameService
	go wsHandler.Run(ctx)

	// 5. Background workers
	var cleaner cleanup.MatchCleaner
	if matchRepo != nil {
		cleaner = matchRepo
	}
	cleanupWorker := cleanup.NewWorker(rooms, cleaner, cfg.CleanupInterval, cfg.LANRoomLifetime, cfg.HistoryDays)
	cleanupWorker.Start(ctx)

	// 6. HTTP surface
	var store transportHttp.MatchStore
	if matchRepo != nil {
		store = matchRepo
	}
	control := transportHttp.NewControlHandler(lanManager, btManager, rooms, btTransport, gameService)
	control.DiscoveryCtx = ctx
	router := transportHttp.NewRouter(control, transportHttp.NewHistoryHandler(store), func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	}, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("player", cfg.PlayerName).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	cancel()

	log.Info().Msg("Server exited gracefully")
}
