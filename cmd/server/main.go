package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"muxfleet/internal/config"
	"muxfleet/internal/logging"
	"muxfleet/internal/metrics"
	"muxfleet/internal/server"
)

func main() {
	logging.Init()
	defer logging.Sync()
	log.Println("starting muxfleet - multi-host terminal session aggregator")

	configPath := getEnv("MUXFLEET_CONFIG", "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("CRITICAL: invalid configuration: %v", err)
	}

	dataDir := getEnv("MUXFLEET_DATA_DIR", "./data")
	hostsPath := getEnv("MUXFLEET_HOSTS_FILE", filepath.Join(dataDir, "hosts.json"))

	srv, err := server.New(server.Options{
		Config:    cfg,
		DataDir:   dataDir,
		HostsPath: hostsPath,
	})
	if err != nil {
		log.Fatalf("CRITICAL: failed to construct server: %v", err)
	}

	metrics.Get().SetBuildInfo(getEnv("VERSION", "dev"), getEnv("GIT_COMMIT", "unknown"), getEnv("BUILD_DATE", "unknown"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		log.Fatalf("CRITICAL: server failed: %v", err)
	case <-ctx.Done():
		log.Println("received shutdown signal, draining...")
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("muxfleet stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
