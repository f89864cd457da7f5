package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	recentResults   = 20
)

type roomStats interface {
	Stats() usecase.Stats
}

// History is optional; without it /stats omits wins and /results is not mounted.
type History interface {
	Recent(ctx context.Context, n int64) ([]entity.GameResult, error)
	Wins(ctx context.Context) (entity.WinStats, error)
}

type statsResponse struct {
	usecase.Stats
	Wins *entity.WinStats `json:"wins,omitempty"`
}

// NewRouter - /ping, /stats, optionally /results, and the WebSocket endpoint at /ws.
func NewRouter(logger *slog.Logger, rooms roomStats, results History, ws http.Handler) http.Handler {
	log := logger.With("component", "rest")

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/ping", NewPingHandler().PingHandler)
	router.Get("/stats", statsHandler(log, rooms, results))
	if results != nil {
		router.Get("/results", resultsHandler(log, results))
	}
	router.Handle("/ws", ws)

	return router
}

// Start - serves handler on port until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	return nil
}

func statsHandler(log *slog.Logger, rooms roomStats, results History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := statsResponse{Stats: rooms.Stats()}

		if results != nil {
			wins, err := results.Wins(r.Context())
			if err != nil {
				log.Error("failed to get win stats", "error", err)
			} else {
				response.Wins = &wins
			}
		}

		writeJSON(log, w, response)
	}
}

func resultsHandler(log *slog.Logger, results History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recent, err := results.Recent(r.Context(), recentResults)
		if err != nil {
			log.Error("failed to get recent results", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(log, w, recent)
	}
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response", "error", err)
	}
}
