package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/cipherchat/backend/internal/config"
	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
	"github.com/zhouzirui/cipherchat/backend/internal/database"
	"github.com/zhouzirui/cipherchat/backend/internal/handler"
	"github.com/zhouzirui/cipherchat/backend/internal/handler/stream"
	"github.com/zhouzirui/cipherchat/backend/internal/service/ai"
	"github.com/zhouzirui/cipherchat/backend/internal/service/auth"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cipher, err := cryptox.New(cfg.Crypto.Key)
	if err != nil {
		log.Fatalf("failed to initialize cipher: %v", err)
	}

	messageStore, cleanup, err := newStore(cfg, cipher)
	if err != nil {
		log.Fatalf("failed to initialize message store: %v", err)
	}
	defer cleanup()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	gate := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.CookieName)

	var gateway *ai.Service
	if cfg.AI.Enabled() {
		gateway, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize completion gateway: %v", err)
			log.Println("continuing without chat generation")
		} else {
			log.Println("completion gateway initialized")
		}
	} else {
		log.Println("completion provider credentials not configured, chat generation disabled")
	}

	var generator stream.Generator
	if gateway != nil {
		generator = gateway
	}

	router := handler.NewRouter(gate, messageStore, generator)

	startServer(ctx, cfg.Server, router)
}

// newStore selects the persistence backend: postgres when a database is
// configured, otherwise the in-memory store.
func newStore(cfg *config.Config, cipher *cryptox.Cipher) (store.Store, func(), error) {
	if !cfg.Database.Configured() {
		log.Println("no database configured, using in-memory message store")
		return store.NewMemory(cipher), func() {}, nil
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	pg, err := store.NewPostgres(db.DB, cipher)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("warning: failed to close database: %v", err)
		}
	}
	return pg, cleanup, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("cipherchat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
