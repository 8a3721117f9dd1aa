package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recircuit.org/internal/auth"
	"recircuit.org/internal/httpapi"
	"recircuit.org/internal/obs"
	"recircuit.org/internal/store/pg"
	"recircuit.org/internal/stream"
	"recircuit.org/internal/waste"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("RECIRCUIT_AUTH_SECRET")
	if secret == "" {
		log.Fatal("RECIRCUIT_AUTH_SECRET is required")
	}
	signer, err := auth.NewSigner(auth.Config{Secret: []byte(secret)})
	if err != nil {
		log.Fatalf("auth signer: %v", err)
	}

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	var (
		registry  waste.Registry
		denylist  auth.Denylist
		directory auth.Directory
		probe     httpapi.ReadyProbe
		pgStore   *pg.Store
	)
	if dsn := os.Getenv("RECIRCUIT_PG_DSN"); dsn != "" {
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		registry = pgStore
		pgDenylist := auth.NewPGDenylist(pgStore.DB())
		denylist = pgDenylist
		directory = auth.NewPGDirectory(pgStore.DB())
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}

		// Drop revocations that outlived any possible credential by a wide
		// margin; live sessions are never affected.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := pgDenylist.PurgeOlderThan(ctx, 24*time.Hour); err != nil {
					log.Printf("denylist purge: %v", err)
				} else if n > 0 {
					log.Printf("denylist purge: removed %d stale rows", n)
				}
				cancel()
			}
		}()
	} else {
		registry = waste.NewInMemory()
		denylist = auth.NewMemoryDenylist()
		directory = auth.NewMemoryDirectory()
		log.Print("no RECIRCUIT_PG_DSN set, using in-memory stores")
	}

	events := stream.New()
	api := httpapi.New(probe, version, httpapi.Deps{
		Guard:     auth.NewGuard(signer, denylist, directory),
		Signer:    signer,
		Directory: directory,
		Registry:  registry,
		Engine:    waste.NewEngine(registry, events),
		Catalog:   waste.NewCatalog(registry, events),
		Stream:    events,
	})

	addr := os.Getenv("RECIRCUIT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	handler := httpapi.CORS(httpapi.RateLimit(api.Handler(), 100, 50))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting recircuit-api %s on %s", version, srv.Addr)

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
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
