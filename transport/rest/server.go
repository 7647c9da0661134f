package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cingohq/cingo-backend/internal/usecase"
)

type roomLister interface {
	Rooms() []usecase.RoomSummary
}

// Start - starts the HTTP server and blocks until it stops.
func Start(ctx context.Context, port string, rooms roomLister) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", pingHandler)
	mux.HandleFunc("/rooms", roomsHandler(rooms))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
