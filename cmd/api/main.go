package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolcore.org/internal/audit"
	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/httpapi"
	"schoolcore.org/internal/obs"
	"schoolcore.org/internal/rbac"
	"schoolcore.org/internal/roster"
	"schoolcore.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SCHOOLCORE_COMMIT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		readyProbe httpapi.ReadyProbe
		rbacStore  rbac.Store
		roleStore  authz.RoleStore
		rosterSvc  roster.Service
		pgStore    *pg.Store
	)
	if dsn := os.Getenv("SCHOOLCORE_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		readyProbe = httpapi.ReadyProbe{DB: pgStore.DB()}
		rbacStore = pgStore
		rosterSvc = pgStore

		// Decisions read from a periodically refreshed snapshot rather than
		// hitting the database per request.
		cached := authz.NewCachedRoleStore(pgStore, refreshInterval())
		if err := cached.Start(ctx); err != nil {
			log.Fatalf("initial role snapshot: %v", err)
		}
		roleStore = cached
	} else {
		// In-memory mode for local development and demos.
		mem := rbac.NewMemoryStore()
		rbacStore = mem
		roleStore = mem
		rosterSvc = roster.NewMemoryService()
		log.Println("SCHOOLCORE_PG_DSN not set, using in-memory stores")
	}

	rbacSvc, err := rbac.NewService(rbacStore, nil)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}

	recorder := audit.NewRecorder(0)
	engine, err := authz.NewEngine(
		authz.NewResolver(roleStore, nil),
		authz.WithAuditSink(recorder),
	)
	if err != nil {
		log.Fatalf("decision engine: %v", err)
	}

	api := httpapi.New(readyProbe, version, engine, rbacSvc, rosterSvc)

	addr := os.Getenv("SCHOOLCORE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting schoolcore-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()
	recorder.Close()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

func refreshInterval() time.Duration {
	raw := os.Getenv("SCHOOLCORE_ROLE_REFRESH")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("parse SCHOOLCORE_ROLE_REFRESH: %v", err)
	}
	return d
}
