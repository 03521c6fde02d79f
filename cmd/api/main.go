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

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/app"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/cache"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/config"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/email"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/identity"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
	"github.com/yogeshchauhan3103-code/prompt-manager/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var store recordstore.Store
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := recordstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema setup failed: %v", err)
		}
		store = pg
	case "memory":
		log.Printf("Using in-memory record store (data is not persisted)")
		store = recordstore.NewMemoryStore()
	default:
		store = recordstore.NewRESTStore(cfg.StoreURL, cfg.StoreAPIKey)
	}

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using in-memory session storage")
		sessions = session.NewMemoryStore()
	}

	var verifier identity.Verifier
	if cfg.IdentityProvider == "local" {
		mailer := email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		verifier = identity.NewLocalVerifier(store.Accounts(), mailer, cfg.AppURL)
	} else {
		verifier = identity.NewRESTVerifier(cfg.IdentityURL, cfg.IdentityAPIKey, cfg.AppURL)
	}

	reads := cache.New(store, cfg.CacheTTL)
	service := app.New(cfg, store, sessions, verifier, reads)

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
		log.Printf("Prompt Manager API listening on %s", cfg.Addr)
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
