// Package app initializes and runs the blog server.
// It configures logging, storage, the asset store, authentication and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/blogshelf/internal/assetreaper"
	"github.com/patric-chuzhbe/blogshelf/internal/assetstore"
	"github.com/patric-chuzhbe/blogshelf/internal/auth"
	"github.com/patric-chuzhbe/blogshelf/internal/config"
	"github.com/patric-chuzhbe/blogshelf/internal/db/jsondb"
	"github.com/patric-chuzhbe/blogshelf/internal/db/memorystorage"
	"github.com/patric-chuzhbe/blogshelf/internal/db/postgresdb"
	"github.com/patric-chuzhbe/blogshelf/internal/ipchecker"
	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/router"
	"github.com/patric-chuzhbe/blogshelf/internal/service"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

const shutdownTimeout = 10 * time.Second

type storage interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
	ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error)
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error)
	UpdateBlogByID(ctx context.Context, blogID, ownerID string, patch models.BlogPatch) (*models.BlogUpdateResult, error)
	DeleteBlogByID(ctx context.Context, blogID, ownerID string) (*models.Blog, error)
	GetNumberOfBlogs(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// App holds the configured server and the background workers it owns.
type App struct {
	cfg         *config.Config
	db          storage
	assetReaper *assetreaper.AssetReaper
	stopReaper  context.CancelFunc
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - selecting the asset store backend
// - starting the asset reaper
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	signingKey, err := base64.URLEncoding.DecodeString(app.cfg.TokenSigningKey)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `base64.URLEncoding.DecodeString()` calling: %w", err)
	}
	tokens := auth.New(signingKey, app.cfg.TokenTTL)

	objectStore, routerOptions, err := getObjectStore(app.cfg)
	if err != nil {
		return nil, err
	}
	assets := assetstore.New(objectStore, app.cfg.AssetBaseURL)

	app.assetReaper = assetreaper.New(
		assets,
		app.cfg.ReaperChannelCapacity,
		app.cfg.ReaperFlushInterval,
	)
	reaperRunCtx, stopReaper := context.WithCancel(context.Background())
	app.stopReaper = stopReaper

	app.assetReaper.Run(reaperRunCtx)
	app.assetReaper.ListenErrors(func(err error) {
		logger.Log.Warnw("asset cleanup failed", zap.Error(err))
	})

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		service.New(app.db, assets, app.assetReaper, tokens, app.cfg.AssetFolder),
		tokens.Verify,
		checker,
		app.cfg.UploadMaxBytes,
		routerOptions...,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// On SIGINT/SIGTERM it stops accepting requests, lets the asset reaper finish
// the removals already queued and then closes the storage.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr, "AssetBackend", a.cfg.AssetBackend)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Draining requests and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(shutdownCtx)

		a.stopReaper()
		a.assetReaper.Wait()

		if err := a.db.Close(); err != nil {
			return errors.Join(shutdownErr, err)
		}
		if shutdownErr != nil {
			return fmt.Errorf("server shutdown error: %w", shutdownErr)
		}
		return nil

	case err := <-serverErrCh:
		a.stopReaper()
		a.assetReaper.Wait()
		return errors.Join(fmt.Errorf("server error: %w", err), a.db.Close())
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}

// getObjectStore builds the configured backend. The filesystem backend also
// needs the router to serve the stored files.
func getObjectStore(cfg *config.Config) (assetstore.ObjectStore, []router.InitOption, error) {
	switch cfg.AssetBackend {
	case config.AssetBackendS3:
		store, err := assetstore.NewS3Store(context.Background(), assetstore.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3PathStyle,
		})
		return store, nil, err

	case config.AssetBackendFS:
		store, err := assetstore.NewFSStore(cfg.AssetDir)
		if err != nil {
			return nil, nil, err
		}
		return store, []router.InitOption{router.WithAssetsHandler(store.Handler())}, nil
	}

	return nil, nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
}
