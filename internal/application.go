package application

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/repository/storage"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/usecase"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/transport/rest"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/transport/websocket"
)

// RunApp - runs the application until SIGINT/SIGTERM or a server failure.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(logger)
	opts := []usecase.Option{usecase.WithMaxCodeLength(conf.Rooms.MaxCodeLength)}

	var results rest.History
	if conf.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		resultRepo := repository.NewResultRepository(redisStorage.Connection, repository.DefaultHistoryLimit)
		opts = append(opts, usecase.WithResultRecorder(resultRepo))
		results = resultRepo

		log.Info("Match history enabled", "redis", conf.Redis.GetRedisAddr())
	}

	roomManager := usecase.NewRoomManager(logger, hub, opts...)
	wsServer := websocket.New(ctx, logger, conf.WebSocket, hub, roomManager)
	router := rest.NewRouter(logger, roomManager, results, wsServer)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		return rest.Start(groupCtx, conf.HTTPPort, router)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}
