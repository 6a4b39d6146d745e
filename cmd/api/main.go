package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chrona.app/internal/auth"
	"chrona.app/internal/config"
	"chrona.app/internal/httpapi"
	"chrona.app/internal/obs"
	"chrona.app/internal/store/pg"
	"chrona.app/internal/tenantdb"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.ControlDSN)
	if err != nil {
		log.Fatalf("open control db: %v", err)
	}

	router := tenantdb.NewRouter(tenantdb.Credentials{
		User:     cfg.TenantDBUser,
		Password: cfg.TenantDBPassword,
		SSLMode:  cfg.TenantDBSSLMode,
	}, nil)

	svc, err := auth.NewService(store, cfg.AuthSecret,
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	admin, err := auth.NewAdminService(store, svc, router)
	if err != nil {
		log.Fatalf("admin service: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureBuiltins(seedCtx); err != nil {
		cancelSeed()
		log.Fatalf("seed capabilities: %v", err)
	}
	cancelSeed()

	api := httpapi.New(svc, admin, store, router, httpapi.ReadyProbe{DB: store.DB()}, version)
	api.SetLimits(httpapi.Limits{
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting chrona-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = router.Close()
	_ = store.Close()
	log.Println("Stopped")
}
