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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardline/timeline-backend/internal/catalog"
	"github.com/cardline/timeline-backend/internal/config"
	"github.com/cardline/timeline-backend/internal/httpapi"
	"github.com/cardline/timeline-backend/internal/hub"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	var cat *catalog.Catalog
	if cfg.CatalogDSN != "" {
		cat, err = catalog.LoadDatabase(cfg.CatalogDSN)
	} else {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
	}
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("cards", cat.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build the router *with* the hub injected
	h := hub.NewHub(ctx, cat, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(h, logger)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
