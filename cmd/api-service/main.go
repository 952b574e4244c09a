package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MagnunAVF/boost-shortener/internal"
	"github.com/MagnunAVF/boost-shortener/internal/api"
	applog "github.com/MagnunAVF/boost-shortener/internal/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	ctx := context.Background()

	db, err := gorm.Open(postgres.Open(os.Getenv("DB_URL")), &gorm.Config{
		Logger:         applog.NewGormLogger(os.Getenv("GORM_LOG_LEVEL")),
		TranslateError: true,
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}

	slog.Info("Running GORM auto-migration")
	if err := db.AutoMigrate(&internal.URL{}, &internal.URLAnalytics{}); err != nil {
		slog.Error("Failed to auto-migrate database", "err", err)
		os.Exit(1)
	}

	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	rdb := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Unable to connect to Redis", "err", err)
		os.Exit(1)
	}

	rabbitConn, err := amqp091.Dial(os.Getenv("RABBITMQ_URL"))
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	defer rabbitCH.Close()

	clicks, err := internal.NewAMQPClickPublisher(rabbitCH, os.Getenv("CLICK_QUEUE_NAME"))
	if err != nil {
		slog.Error("Failed to declare click queue", "err", err)
		os.Exit(1)
	}

	store := internal.NewGormStore(db)
	cache := internal.NewRedisCache(rdb)
	svc := internal.NewService(store, cache, internal.ServiceOptions{
		CacheTTL: time.Duration(envInt("REDIS_TTL_SECONDS", 3600)) * time.Second,
		Logger:   applog.Default(),
	})

	app := api.NewApp(api.Deps{
		Service:         svc,
		Clicks:          clicks,
		DB:              store,
		Cache:           cache,
		BaseURL:         os.Getenv("APP_DOMAIN"),
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 0),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	})

	port := os.Getenv("API_SERVICE_PORT")
	slog.Info("Starting API Service", "port", port)
	if err := app.Listen(port); err != nil {
		slog.Error("API Service failed", "err", err)
		os.Exit(1)
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
