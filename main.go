package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	config "github.com/phillip/event-finder-go/config"
	"github.com/phillip/event-finder-go/geo"
	"github.com/phillip/event-finder-go/logger"
	"github.com/phillip/event-finder-go/metrics"
	"github.com/phillip/event-finder-go/repository"
	"github.com/phillip/event-finder-go/routes"
	"github.com/phillip/event-finder-go/services"
	"github.com/phillip/event-finder-go/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not up yet.
		panic(err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Env, "event-finder"); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	metrics.Register()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	if err := config.ConnectMongo(ctx, cfg); err != nil {
		log.Fatal("MongoDB connection failed", zap.Error(err))
	}
	db := cfg.Database()
	if err := config.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("index setup failed", zap.Error(err))
	}
	log.Info("MongoDB connected", zap.String("db", cfg.DBName))

	httpClient := &http.Client{}
	geocoder := geo.NewGeocoder(geo.GeocoderConfig{
		APIKey:    cfg.OpenCageAPIKey,
		BaseURL:   cfg.OpenCageBaseURL,
		Timeout:   cfg.ProviderTimeout,
		CacheSize: cfg.GeocodeCacheSize,
	}, httpClient, log)
	router := geo.NewDistanceMatrix(geo.DistanceMatrixConfig{
		APIKey:  cfg.GoogleMapsAPIKey,
		BaseURL: cfg.GoogleMapsBaseURL,
		Timeout: cfg.ProviderTimeout,
	}, httpClient, log)

	eventRepo := repository.NewMongoEventRepository(db)
	users := services.NewUserService(repository.NewMongoUserRepository(db), eventRepo, log)
	events := services.NewEventService(
		eventRepo,
		repository.NewMongoArchiveRepository(db),
		users,
		geocoder,
		router,
		log,
	)

	documents, err := utils.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Fatal("cloudinary setup failed", zap.Error(err))
	}
	if !documents.Configured() {
		log.Warn("cloudinary credentials missing, verification uploads will fail")
	}

	identity := utils.NewGoogleProvider(utils.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.HostURL + "/api/auth/callback",
	})
	if !identity.Configured() {
		log.Warn("google oauth credentials missing, login will fail")
	}

	engine := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Events:    events,
		Users:     users,
		Identity:  identity,
		Documents: documents,
		Ping: func(ctx context.Context) error {
			return cfg.MongoClient.Ping(ctx, readpref.Primary())
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", append(cfg.LogFields(), zap.String("addr", srv.Addr))...)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := cfg.MongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("error disconnecting MongoDB", zap.Error(err))
	} else {
		log.Info("MongoDB disconnected")
	}
}
