package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"pharmapos/internal/config"
	"pharmapos/internal/db"
	"pharmapos/internal/events"
	httpapi "pharmapos/internal/http"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}

	if err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		log.Fatalf("migration error: %v", err)
	}

	stream := events.NewBroadcaster(events.DefaultBuffer)
	repo := repository.New(pool)
	svc := service.New(repo, stream, service.Options{
		LowStockLevel:    cfg.LowStockLevel,
		ExpiryWindowDays: cfg.ExpiryWindowDays,
	})
	handler := httpapi.NewHandler(svc, stream, pool)
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("pharmapos listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// One operation so the steps run in order: streams first, or Shutdown
	// would wait on them until the timeout.
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"pharmapos": func(ctx context.Context) error {
			log.Printf("shutting down")
			stream.Close()
			err := server.Shutdown(ctx)
			if err != nil {
				log.Printf("graceful shutdown failed: %v", err)
				if closeErr := server.Close(); closeErr != nil {
					log.Printf("force close failed: %v", closeErr)
				}
			}
			pool.Close()
			return err
		},
	})

	exitCode := <-wait
	log.Printf("exited with code %d", exitCode)
	os.Exit(exitCode)
}
