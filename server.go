package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/integrity.report/api"
	"github.com/banshee-data/integrity.report/internal/db"
	"github.com/banshee-data/integrity.report/internal/ili"
	"github.com/banshee-data/integrity.report/internal/ili/monitor"
	"github.com/banshee-data/integrity.report/internal/notify"
)

// runServe starts the HTTP server and blocks until SIGINT or SIGTERM.
func runServe(database *db.DB, cfg ili.Config) error {
	reconciler, err := ili.NewReconciler(cfg)
	if err != nil {
		return err
	}
	notifier := notify.New(*webhookURL, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// admin debugging routes (tailsql browser, backup)
	database.AttachAdminRoutes(mux)

	// server-rendered debugging charts
	monitor.NewWebServer(database).RegisterRoutes(mux)

	// JSON API
	apiMux := api.NewServer(database, reconciler, notifier, *dataDir).ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:    *listen,
		Handler: h,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Printf("graceful shutdown complete")
	return nil
}
