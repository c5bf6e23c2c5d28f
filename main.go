package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attraction-map/config"
	"attraction-map/handlers"
	"attraction-map/middleware"
	"attraction-map/services"
	"attraction-map/utils/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	config.Load()
	cfg, err := config.LoadServer()
	log := logger.Must(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log = logger.Must(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()
	middleware.SetErrorLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("MongoDB connection failed", zap.Error(err))
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("db", cfg.MongoDB))
	db := mongoClient.Database(cfg.MongoDB)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	recordService := services.NewRecordService(
		services.NewMongoRecordRepository(ctx, db.Collection("attractions"), log), redisClient, log)
	reviewService := services.NewReviewService(
		recordService, services.NewMongoReviewRepository(ctx, db.Collection("reviews"), log), log)
	featureService := services.NewFeatureService(db.Collection("features"), redisClient, log)
	if err := featureService.Seed(ctx, cfg.FeatureSeedFile); err != nil {
		// The service still works without a feature layer; identify just finds nothing.
		log.Warn("feature layer not seeded", zap.Error(err))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Records:        recordService,
		Reviews:        reviewService,
		Features:       featureService,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		Health: func(r *http.Request) error {
			g, gctx := errgroup.WithContext(r.Context())
			g.Go(func() error { return mongoClient.Ping(gctx, nil) })
			g.Go(func() error { return redisClient.Ping(gctx).Err() })
			return g.Wait()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
		}
		return mongoClient.Disconnect(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
