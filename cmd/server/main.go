// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mkells/pointdeck/internal/backing"
	"github.com/mkells/pointdeck/internal/bus"
	"github.com/mkells/pointdeck/internal/config"
	"github.com/mkells/pointdeck/internal/handlers"
	"github.com/mkells/pointdeck/internal/journal"
	"github.com/mkells/pointdeck/internal/middleware"
	"github.com/mkells/pointdeck/internal/roomstore"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := roomstore.Options{Logger: logger}

	var rdb *redis.Client
	if cfg.Backing != "memory" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		opts.Bus = bus.NewRedisBus(rdb, cfg.SyncChannel, logger)
		if cfg.EventsQueue != "" {
			opts.Journal = journal.New(rdb, cfg.EventsQueue)
		}
	}

	switch cfg.Backing {
	case "postgres":
		pg, err := backing.NewPostgresBacking(ctx, cfg.DatabaseURL, cfg.StorageKey)
		if err != nil {
			log.Fatalf("failed to open postgres backing: %v", err)
		}
		defer pg.Close()
		opts.Backing = pg
	case "memory":
		opts.Backing = backing.NewMemoryBacking()
		opts.Bus = bus.NewMemoryBus()
	default:
		opts.Backing = backing.NewRedisBacking(rdb, cfg.StorageKey)
	}

	store := roomstore.New(opts)
	store.Init(ctx)
	defer store.Close()

	rs := handlers.NewRoomServer(store, logger)

	mux := http.NewServeMux()
	mux.Handle("/rooms/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		rs.CreateRoomHandler(),
	)))
	mux.Handle("/rooms/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		rs.ListRoomsHandler(),
	)))
	mux.Handle("/rooms/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, rs),
	)))
	mux.Handle("/rooms/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		rs.RoomHandler(),
	)))

	logger.Infof("Running on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
