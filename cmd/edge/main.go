package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"crxanode.me/docs-edge/internal/config"
	"crxanode.me/docs-edge/internal/inject"
	"crxanode.me/docs-edge/internal/locations"
	mw "crxanode.me/docs-edge/internal/middleware"
	"crxanode.me/docs-edge/internal/ogimage"
	"crxanode.me/docs-edge/internal/registry"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to YAML config (optional, env overrides apply)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalBoot(err)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fatalBoot(err)
	}
	defer func() { _ = logger.Sync() }()

	origin, err := url.Parse(cfg.OriginURL)
	if err != nil {
		logger.Fatal("invalid origin url", zap.String("origin", cfg.OriginURL), zap.Error(err))
	}

	reg, err := registry.New(cfg.ContentDir, logger)
	if err != nil {
		logger.Fatal("registry init failed", zap.Error(err))
	}
	if err := reg.Watch(); err != nil {
		logger.Warn("registry watch unavailable", zap.Error(err))
	}
	defer func() { _ = reg.Close() }()

	rewriter := inject.NewRewriter(origin, logger)
	ogHandler := ogimage.NewHandler(cfg.LogoBaseURL, logger)
	locHandler := locations.NewHandler(locations.New(cfg.RootDomain, logger), logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// Behind the platform load balancer; only trusted hops set the
	// forwarding headers.
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/og", ogHandler.ServeHTTP)
	r.Method(http.MethodGet, "/api/server-locations", locHandler)

	// Everything else relays to the origin; document requests inside the
	// injection scope get their head rewritten.
	r.NotFound(rewriter.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("edge listening",
			zap.String("addr", cfg.Addr),
			zap.String("origin", cfg.OriginURL),
			zap.Int("chains", len(reg.ListSlugs())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func fatalBoot(err error) {
	// Logger may not exist yet.
	os.Stderr.WriteString("edge: " + err.Error() + "\n")
	os.Exit(1)
}
