package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"audio-analyzer/pkg/api"
	"audio-analyzer/pkg/audio"
	"audio-analyzer/pkg/config"
	"audio-analyzer/pkg/features"
	"audio-analyzer/pkg/logging"
	"audio-analyzer/pkg/pipeline"
	"audio-analyzer/pkg/storage"
)

const shutdownTimeout = 30 * time.Second

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface and HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "addr", "",
		"listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger := appConfig, appLogger
	if serveAddress != "" {
		cfg.Server.Address = serveAddress
	}

	memStore := storage.NewMemoryStore()
	diskStore, err := newDiskStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize disk storage: %w", err)
	}
	defer diskStore.Close()

	files, err := newFileStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize export storage: %w", err)
	}

	extractor := features.NewExtractor(extractorConfig(cfg),
		features.WithLogger(logrus.NewEntry(logger)))

	manager := pipeline.NewManager(cfg.Pipeline, cfg.Server.MaxUploadBytes, pipeline.Deps{
		Decode:    audio.DecodeFile,
		Extractor: extractor,
		MemStore:  memStore,
		DiskStore: diskStore,
		Files:     files,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer manager.Stop()

	handlers := api.NewHandlers(manager, api.Options{
		Brand:          cfg.UI.Brand,
		Logo:           loadLogo(cfg.UI.LogoPath, logger),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logging.Fields{
			"address": cfg.Server.Address,
			"export":  files.Location(""),
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func newDiskStore(cfg *config.Config) (storage.DiskStore, error) {
	if cfg.Storage.InMemory {
		return storage.NewInMemoryDiskStore()
	}
	return storage.NewDiskStore(cfg.Storage.Path)
}

func newFileStore(cfg *config.Config) (storage.FileStore, error) {
	switch cfg.Export.Backend {
	case config.ExportBackendS3:
		client := storage.NewS3Client(storage.S3ClientOptions{
			Region:   cfg.Export.S3.Region,
			Endpoint: cfg.Export.S3.Endpoint,
		})
		return storage.NewS3(client, cfg.Export.S3.Bucket, cfg.Export.S3.Prefix), nil
	default:
		return storage.NewLocal(cfg.Export.Dir)
	}
}

// loadLogo reads the optional sidebar image. A missing file only hides the logo.
func loadLogo(path string, logger *logrus.Logger) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Logo not loaded")
		return nil
	}
	return data
}
