package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tutorgate.org/internal/audit"
	"tutorgate.org/internal/auth"
	"tutorgate.org/internal/booksync"
	"tutorgate.org/internal/config"
	"tutorgate.org/internal/cookies"
	"tutorgate.org/internal/httpapi"
	"tutorgate.org/internal/oauth"
	"tutorgate.org/internal/oauthstate"
	"tutorgate.org/internal/obs"
	"tutorgate.org/internal/schedule"
	"tutorgate.org/internal/storage"
	"tutorgate.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	states, err := oauthstate.NewSigner(cfg.StateSecret)
	if err != nil {
		log.Fatalf("state signer: %v", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("token verifier: %v", err)
	}
	coordinator, err := oauth.NewCoordinator(cfg.PlatformURL, cfg.ServiceKey, nil)
	if err != nil {
		log.Fatalf("oauth coordinator: %v", err)
	}

	deps := httpapi.Deps{
		States:          states,
		Cookies:         cookies.NewCodec(cfg.CookieName, cfg.CookieDomain, cfg.CookiePath, cfg.CookieSecure, cfg.CookieSameSite),
		OAuth:           coordinator,
		Verifier:        verifier,
		DefaultRedirect: cfg.DefaultRedirect,
		AllowedOrigins:  cfg.AllowedOrigins,
	}

	var (
		store      *pg.Store
		compliance *audit.Logger
		probe      httpapi.ReadyProbe
	)
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		probe = httpapi.ReadyProbe{DB: store.DB()}

		compliance = audit.NewLogger(store, 256)
		signer := storage.NewClient(cfg.PlatformURL, cfg.ServiceKey, cfg.Bucket, nil)
		deps.Broker = schedule.NewService(store, signer, compliance)

		if cfg.BooksConfigured() {
			deps.Sync = booksync.NewOrchestrator(
				booksync.NewClient(cfg.BooksURL, cfg.BooksCompanyID, cfg.BooksToken, nil),
				store,
			)
		}
	}

	api := httpapi.New(probe, version, deps)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tutorgate-api %s on %s", version, srv.Addr)

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
	if compliance != nil {
		compliance.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
