package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/reviews-extractor/internal/blob"
	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
	"github.com/joseph-ayodele/reviews-extractor/internal/export"
	"github.com/joseph-ayodele/reviews-extractor/internal/extract"
	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
	"github.com/joseph-ayodele/reviews-extractor/internal/repository"
	"github.com/joseph-ayodele/reviews-extractor/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reviewsd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	creds, err := credential.NewStore(cfg.Storage.CredentialPath, cfg.Pleper.FallbackAPIKey, logger)
	if err != nil {
		return err
	}
	logger.Info("credential resolved", "source", creds.Source(), "path", creds.Path())

	artifacts, err := blob.NewLocalFS(cfg.Storage.UploadsDir)
	if err != nil {
		return err
	}

	client := pleper.NewClient(pleper.Config{
		BaseURL: cfg.Pleper.BaseURL,
		Timeout: cfg.Pleper.Timeout.Std(),
	}, creds, logger)
	bindings := repository.NewBatchBindingRepository(cfg.Bindings.Capacity, cfg.Bindings.TTL.Std(), logger)
	exporter := export.NewService(artifacts, logger)
	svc := extract.NewService(client, bindings, exporter, logger)

	httpServer := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.Server{
			Extract:     svc,
			Artifacts:   artifacts,
			Credentials: creds,
			UIDir:       cfg.Server.UIDir,
			Logger:      logger,
		}.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("reviewsd listening", "addr", cfg.Server.Addr, "uploads_dir", artifacts.Root)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return err
		}
		grpcServer, health := server.NewGRPCServer(artifacts, 10*time.Second, logger)
		g.Go(func() error {
			logger.Info("health endpoint listening", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			health.Run(gctx)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
