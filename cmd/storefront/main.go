package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ErezMalka/bite-checkout-signing/internal/cart"
	"github.com/ErezMalka/bite-checkout-signing/internal/checkout"
	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	h "github.com/ErezMalka/bite-checkout-signing/internal/http"
	"github.com/ErezMalka/bite-checkout-signing/internal/notifier"
	"github.com/ErezMalka/bite-checkout-signing/internal/plans"
	"github.com/ErezMalka/bite-checkout-signing/internal/repository"
	"github.com/ErezMalka/bite-checkout-signing/internal/signing"
)

type Config struct {
	HTTPPort string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	MongoURI string
	MongoDB  string

	RedisAddr    string
	KafkaBrokers []string

	SigningURL     string
	SigningTimeout time.Duration

	ImageDir string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnvInt("DB_PORT", 5432),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "storefront"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		SigningURL:      getEnv("SIGNING_URL", "http://localhost:9090"),
		SigningTimeout:  15 * time.Second,
		ImageDir:        getEnv("IMAGE_DIR", "./images"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	// Postgres: products, payment plans, order drafts
	cred := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewRepository(cred)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cred); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// MongoDB: shopper carts
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer mongoCancel()

	mongoClient, err := mongo.Connect(mongoCtx, mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("mongo disconnect error: %v", err)
		}
	}()

	mongoDB := mongoClient.Database(cfg.MongoDB)
	if err := cart.EnsureIndexes(mongoCtx, mongoDB); err != nil {
		log.Fatalf("failed to create cart indexes: %v", err)
	}

	// Redis: payment plan schedule cache
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Cache is optional; with no cache the resolver goes straight to
	// postgres on every resolve.
	var planCache plans.ScheduleCache
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable, plan cache disabled: %v", err)
	} else {
		planCache = plans.NewRedisCache(redisClient)
	}

	// Kafka: cart update events
	kafkaNotifier := notifier.NewKafkaNotifier(cfg.KafkaBrokers...)
	defer kafkaNotifier.Close()

	cartService := cart.NewService(cart.NewMongoRepository(mongoDB), kafkaNotifier)
	planResolver := plans.NewResolver(repo, planCache)
	signingClient := signing.NewHTTPClient(cfg.SigningURL, cfg.SigningTimeout)

	sessionStore := checkout.NewSessionStore()
	defer sessionStore.Close()

	checkoutService := checkout.NewService(
		sessionStore, cartService, planResolver, signingClient, repo, repo, domain.DefaultCurrency)

	imageStore, err := h.NewDiskImageStore(cfg.ImageDir)
	if err != nil {
		log.Fatalf("failed to init image store: %v", err)
	}

	productHandler := h.NewProductHandler(repo, imageStore, planCache, cfg.RequestTimeout)
	cartHandler := h.NewCartHandler(cartService, repo, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.MockAuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Uploaded product images
	fileServer := http.StripPrefix("/static/images/", http.FileServer(http.Dir(cfg.ImageDir)))
	r.Get("/static/images/*", fileServer.ServeHTTP)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/lines", cartHandler.AddLine)
			r.Patch("/lines/{product_id}", cartHandler.UpdateLine)
			r.Delete("/lines/{product_id}", cartHandler.RemoveLine)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Start)
			r.Get("/{session_id}", checkoutHandler.Get)
			r.Post("/{session_id}/lines", checkoutHandler.AddLine)
			r.Patch("/{session_id}/lines/{product_id}", checkoutHandler.UpdateLine)
			r.Delete("/{session_id}/lines/{product_id}", checkoutHandler.RemoveLine)
			r.Post("/{session_id}/submit", checkoutHandler.Submit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.MockAdminMiddleware)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.AdminList)
				r.Post("/", productHandler.Create)
				r.Put("/{id}", productHandler.Update)
				r.Delete("/{id}", productHandler.Delete)
				r.Put("/{id}/plans", productHandler.UpsertPlan)
				r.Post("/{id}/images", productHandler.UploadImage)
				r.Delete("/{id}/images/{image_id}", productHandler.DeleteImage)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
