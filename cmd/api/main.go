package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"regattalog/api/internal/app"
	"regattalog/api/internal/archive"
	"regattalog/api/internal/cache"
	"regattalog/api/internal/config"
	"regattalog/api/internal/exporter"
	"regattalog/api/internal/history"
	"regattalog/api/internal/importer"
	"regattalog/api/internal/search"
	"regattalog/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	importService := importer.New(dataStore)
	exportService := exporter.NewService(dataStore)
	historyService := history.New(cfg.HistoryDir)

	service := app.NewService(dataStore, importService, exportService).
		WithHistory(historyService)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		exportCache, err := cache.New(cfg.RedisURL, cfg.ExportCacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer exportCache.Close()
		service.WithCache(exportCache)
		log.Printf("Export cache enabled (ttl %s)", cfg.ExportCacheTTL)
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		service.WithSearch(search.NewService(meiliClient, dataStore))
	} else {
		service.WithSearch(search.NewService(nil, dataStore))
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		fileArchive, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object archive connection failed: %v", err)
		}
		service.WithArchive(fileArchive)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Regattalog API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
