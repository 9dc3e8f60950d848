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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"consola.app/internal/config"
	"consola.app/internal/devbackend"
	"consola.app/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dc := cfg.DevBackend

	secret := dc.Secret
	if secret == "" {
		secret = uuid.NewString()
		obs.Warn("devbackend_ephemeral_secret", map[string]any{"hint": "set DEVBACKEND_SECRET to keep tokens valid across restarts"})
	}
	tokens, err := devbackend.NewTokens(secret, dc.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	seed := devbackend.DefaultUsers()
	if dc.UsersFile != "" {
		if seed, err = devbackend.LoadUsers(dc.UsersFile); err != nil {
			log.Fatalf("users: %v", err)
		}
	}
	users, err := devbackend.NewDirectory(seed)
	if err != nil {
		log.Fatalf("users: %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := obs.RegisterBuildInfo(reg, "devbackend", version, commit); err != nil {
		log.Fatalf("metrics: %v", err)
	}
	backend, err := devbackend.New(tokens, users, devbackend.Options{
		LoginRPS:   dc.LoginRPS,
		LoginBurst: dc.LoginBurst,
		Registry:   reg,
	})
	if err != nil {
		log.Fatalf("devbackend: %v", err)
	}

	srv := &http.Server{
		Addr:              dc.Addr,
		Handler:           backend.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("devbackend_starting", map[string]any{"addr": srv.Addr, "version": version, "users": len(seed)})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("devbackend_stopping", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	obs.Info("devbackend_stopped", nil)
}
