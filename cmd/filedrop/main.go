package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"filedrop/internal/auth"
	"filedrop/internal/core"
	"filedrop/internal/storage"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// getEnv returns the value of the environment variable key, or fallback when
// it is unset or empty.
func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func parseLevel(s string) log.Level {
	level, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// buildEngineConfig selects the storage engine. An empty backend means the
// filesystem, and local paths are made absolute for easier debugging.
func buildEngineConfig(backend string, dataDir string, dbPath string, objectStore storage.ObjectStoreOptions) (storage.EngineConfig, error) {
	if backend == "" {
		backend = storage.EngineFilesystem
	}

	cfg := storage.EngineConfig{
		Kind:        backend,
		ObjectStore: objectStore,
	}

	switch backend {
	case storage.EngineFilesystem:
		absDataDir, err := filepath.Abs(dataDir)
		if err != nil {
			return storage.EngineConfig{}, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.DataDir = absDataDir
	case storage.EngineSQLite:
		absDBPath, err := filepath.Abs(dbPath)
		if err != nil {
			return storage.EngineConfig{}, fmt.Errorf("failed to resolve database path: %w", err)
		}
		cfg.DBPath = absDBPath
	}

	return cfg, nil
}

func Run(ctx context.Context) error {

	listen := flag.String("listen", getEnv("FILEDROP_LISTEN", "8080"), "HTTP listen port")
	tlsListen := flag.String("tls-listen", getEnv("FILEDROP_TLS_LISTEN", "8443"), "HTTPS listen port")
	certFile := flag.String("tls-cert", getEnv("FILEDROP_TLS_CERT", ""), "TLS certificate file; HTTPS is disabled without one")
	keyFile := flag.String("tls-key", getEnv("FILEDROP_TLS_KEY", ""), "TLS private key file")
	logLevel := flag.String("log-level", getEnv("FILEDROP_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	backend := flag.String("backend", getEnv("FILEDROP_BACKEND", storage.EngineFilesystem), "storage backend (fs, sqlite, minio, s3)")
	dataDir := flag.String("data-dir", getEnv("FILEDROP_DATA_DIR", "./uploads"), "directory for the fs backend")
	dbPath := flag.String("db-path", getEnv("FILEDROP_DB_PATH", "./filedrop.db"), "database file for the sqlite backend")

	endpoint := flag.String("s3-endpoint", getEnv("FILEDROP_S3_ENDPOINT", ""), "object store endpoint (host:port for minio, URL for s3)")
	region := flag.String("s3-region", getEnv("FILEDROP_S3_REGION", "us-east-1"), "object store region")
	bucket := flag.String("s3-bucket", getEnv("FILEDROP_S3_BUCKET", "uploads"), "object store bucket")
	accessKey := flag.String("s3-access-key", getEnv("FILEDROP_S3_ACCESS_KEY", ""), "object store access key")
	secretKey := flag.String("s3-secret-key", getEnv("FILEDROP_S3_SECRET_KEY", ""), "object store secret key")
	useSSL := flag.Bool("s3-ssl", getEnvBool("FILEDROP_S3_SSL", false), "use TLS for the minio backend")
	publicURL := flag.String("s3-public-url", getEnv("FILEDROP_S3_PUBLIC_URL", ""), "public base URL for objects; presigned URLs are used when empty")
	presignExpiry := flag.Duration("s3-presign-expiry", getEnvDuration("FILEDROP_S3_PRESIGN_EXPIRY", storage.DefaultPresignExpiry), "lifetime of presigned download URLs")

	timeout := flag.Duration("timeout", getEnvDuration("FILEDROP_TIMEOUT", storage.DefaultTimeout), "per-operation storage timeout")
	maxUpload := flag.Int64("max-upload", getEnvInt("FILEDROP_MAX_UPLOAD", core.DefaultMaxUploadBytes), "maximum upload size in bytes")

	authUser := flag.String("auth-user", getEnv("FILEDROP_AUTH_USER", ""), "basic auth username; authentication is disabled when empty")
	authPass := flag.String("auth-pass", getEnv("FILEDROP_AUTH_PASS", ""), "basic auth password")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           parseLevel(*logLevel),
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	engineCfg, err := buildEngineConfig(*backend, *dataDir, *dbPath, storage.ObjectStoreOptions{
		Endpoint:      *endpoint,
		Region:        *region,
		Bucket:        *bucket,
		AccessKey:     *accessKey,
		SecretKey:     *secretKey,
		UseSSL:        *useSSL,
		PublicBaseURL: *publicURL,
		PresignExpiry: *presignExpiry,
	})
	if err != nil {
		return err
	}

	setupCtx, cancel := context.WithTimeout(ctx, *timeout)
	engine, err := storage.NewEngine(setupCtx, engineCfg)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to create %s storage engine: %w", engineCfg.Kind, err)
	}

	opts := []core.ConfigOption{
		core.WithGateway(storage.NewGateway(engine, storage.WithTimeout(*timeout))),
		core.WithMaxUploadBytes(*maxUpload),
	}

	if *authUser != "" || *authPass != "" {
		basic, err := auth.NewBasicAuthEngine(*authUser, *authPass)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithAuthEngine(basic))
	} else {
		slog.Warn("Authentication is disabled")
	}

	server, err := core.NewServer(core.NewConfig(opts...))
	if err != nil {
		return fmt.Errorf("failed to create filedrop server: %w", err)
	}

	defer server.Close()

	router := server.Handler()

	// Uploads and downloads stream through the handlers, so the write side
	// gets the storage timeout on top of the read deadline.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listen),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       *timeout,
		WriteTimeout:      *timeout + 20*time.Second,
	}

	httpsServer := &http.Server{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		Addr:              fmt.Sprintf(":%s", *tlsListen),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       *timeout,
		WriteTimeout:      *timeout + 20*time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	shutdown := func(srv *http.Server) error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}

	eg.Go(func() error { return shutdown(httpsServer) })
	eg.Go(func() error { return shutdown(httpServer) })

	eg.Go(func() error {
		if *certFile == "" || *keyFile == "" {
			slog.Debug("Skipping HTTPS service because no certificate was provided")
			return nil
		}

		slog.Info("Starting filedrop HTTPS server", "port", *tlsListen)
		err := httpsServer.ListenAndServeTLS(*certFile, *keyFile)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting filedrop HTTP server", "port", *listen, "backend", engineCfg.Kind)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("filedrop started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("filedrop exited with error", "error", err)
		os.Exit(1)
	}
}
