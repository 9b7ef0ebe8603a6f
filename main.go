package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/cache"
	"github.com/careslot/backend/config"
	"github.com/careslot/backend/handlers"
	"github.com/careslot/backend/media"
	"github.com/careslot/backend/middleware"
	"github.com/careslot/backend/payments"
	"github.com/careslot/backend/store"
	"github.com/careslot/backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	Fiber       *fiber.App
	Mongo       *mongo.Client
	Redis       *redis.Client
	MinioClient *minio.Client
	Ctx         context.Context
	Config      *config.Config
	Logger      *zap.Logger
}

func NewApp() (*App, error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Setup MongoDB connection with retry logic
	var mongoClient *mongo.Client
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		mongoClient, err = mongo.Connect(options.Client().ApplyURI(cfg.MongoDBURL))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = mongoClient.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				break
			}
			mongoClient.Disconnect(ctx)
		}
		logger.Warn("failed to connect to mongodb, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup Redis connection with retry logic
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis URL parsing failed: %v", err)
	}

	redisClient := redis.NewClient(redisOpt)
	for i := 0; i < maxRetries; i++ {
		_, err = redisClient.Ping(ctx).Result()
		if err == nil {
			break
		}
		logger.Warn("failed to connect to redis, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("redis connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup MinIO connection with retry logic
	var minioClient *minio.Client
	for i := 0; i < maxRetries; i++ {
		minioClient, err = minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Warn("failed to create minio client, retrying...",
				zap.Error(err),
				zap.Int("attempt", i+1))
			time.Sleep(time.Second * time.Duration(i+1))
			continue
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("minio connection failed after %d attempts: %v", maxRetries, err)
	}

	// Fiber setup
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code))
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		BodyLimit:    10 * 1024 * 1024,
	})

	fiberApp.Use(middleware.RecoveryMiddleware(logger))

	// CORS configuration
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, token, dtoken, atoken",
		MaxAge:       300,
	}))

	// Request logging middleware
	fiberApp.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		logger.Info("request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("duration", duration),
			zap.Int("status", c.Response().StatusCode()),
		)
		return err
	})

	return &App{
		Fiber:       fiberApp,
		Mongo:       mongoClient,
		Redis:       redisClient,
		MinioClient: minioClient,
		Ctx:         ctx,
		Config:      cfg,
		Logger:      logger,
	}, nil
}

func (a *App) setupRoutes() error {
	mongoStore := store.NewMongo(a.Mongo, a.Config.MongoDBName, a.Logger)
	if err := mongoStore.EnsureIndexes(a.Ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %v", err)
	}

	uploader := media.NewUploader(a.MinioClient, a.Config.MinioBucket, a.Config.MinioEndpoint,
		a.Config.MinioUseSSL, a.Logger)
	if err := uploader.EnsureBucket(a.Ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %v", err)
	}

	engine := booking.NewEngine(mongoStore, a.Logger)
	doctorCache := cache.NewCache(a.Redis, "doctors:")
	issuer := utils.NewTokenIssuer(a.Config.JWTSecret)

	razorpayAdapter := payments.NewRazorpay(a.Config.RazorpayKeyID, a.Config.RazorpayKeySecret,
		a.Config.Currency, a.Logger)
	stripeAdapter := payments.NewStripe(a.Config.StripeSecretKey, a.Config.Currency,
		a.Config.ClientOrigin, a.Logger)

	userHandler := handlers.NewUserHandler(a.Config, mongoStore, engine, uploader,
		razorpayAdapter, stripeAdapter, issuer, a.Logger)
	doctorHandler := handlers.NewDoctorHandler(a.Config, mongoStore, engine, doctorCache,
		issuer, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Config, mongoStore, engine, doctorCache,
		uploader, issuer, a.Logger)

	// One verification capability parameterized per principal kind; each
	// kind reads its own header.
	userAuth := middleware.NewTokenAuth(a.Logger, issuer, utils.KindUser, "token")
	doctorAuth := middleware.NewTokenAuth(a.Logger, issuer, utils.KindDoctor, "dtoken")
	adminAuth := middleware.NewAdminTokenAuth(a.Logger, issuer, "atoken", a.Config.AdminEmail)

	user := a.Fiber.Group("/api/user")
	user.Post("/register", userHandler.Register)
	user.Post("/login", userHandler.Login)
	user.Get("/get-profile", userAuth.Handler(), userHandler.GetProfile)
	user.Post("/update-profile", userAuth.Handler(), userHandler.UpdateProfile)
	user.Post("/book-appointment", userAuth.Handler(), userHandler.BookAppointment)
	user.Get("/appointments", userAuth.Handler(), userHandler.ListAppointments)
	user.Post("/cancel-appointment", userAuth.Handler(), userHandler.CancelAppointment)
	user.Post("/payment-razorpay", userAuth.Handler(), userHandler.PaymentRazorpay)
	user.Post("/verifyRazorpay", userAuth.Handler(), userHandler.VerifyRazorpay)
	user.Post("/payment-stripe", userAuth.Handler(), userHandler.PaymentStripe)
	user.Post("/verifyStripe", userAuth.Handler(), userHandler.VerifyStripe)

	doctor := a.Fiber.Group("/api/doctor")
	doctor.Get("/list", doctorHandler.List)
	doctor.Post("/login", doctorHandler.Login)
	doctor.Get("/appointments", doctorAuth.Handler(), doctorHandler.Appointments)
	doctor.Post("/cancel-appointment", doctorAuth.Handler(), doctorHandler.CancelAppointment)
	doctor.Post("/complete-appointment", doctorAuth.Handler(), doctorHandler.CompleteAppointment)
	doctor.Post("/change-availability", doctorAuth.Handler(), doctorHandler.ChangeAvailability)
	doctor.Get("/dashboard", doctorAuth.Handler(), doctorHandler.Dashboard)
	doctor.Get("/profile", doctorAuth.Handler(), doctorHandler.Profile)
	doctor.Post("/update-profile", doctorAuth.Handler(), doctorHandler.UpdateProfile)

	admin := a.Fiber.Group("/api/admin")
	admin.Post("/login", adminHandler.Login)
	admin.Post("/add-doctor", adminAuth.Handler(), adminHandler.AddDoctor)
	admin.Get("/appointments", adminAuth.Handler(), adminHandler.Appointments)
	admin.Get("/all-doctors", adminAuth.Handler(), adminHandler.AllDoctors)
	admin.Get("/dashboard", adminAuth.Handler(), adminHandler.Dashboard)
	admin.Post("/cancel-appointment", adminAuth.Handler(), adminHandler.CancelAppointment)
	admin.Post("/change-availability", adminAuth.Handler(), adminHandler.ChangeAvailability)

	return nil
}

func (a *App) Start() error {
	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Setup routes
	if err := a.setupRoutes(); err != nil {
		return fmt.Errorf("failed to setup routes: %v", err)
	}

	// Start server in a goroutine
	go func() {
		if err := a.Fiber.Listen(":" + a.Config.ServerPort); err != nil {
			a.Logger.Fatal("failed to start server",
				zap.Error(err),
				zap.String("port", a.Config.ServerPort))
		}
	}()

	a.Logger.Info("server started",
		zap.String("port", a.Config.ServerPort))

	// Wait for interrupt signal
	<-sigChan
	a.Logger.Info("shutting down server...")

	// Cleanup
	if err := a.Fiber.Shutdown(); err != nil {
		a.Logger.Error("error during server shutdown",
			zap.Error(err))
	}
	if err := a.Mongo.Disconnect(a.Ctx); err != nil {
		a.Logger.Error("error closing mongodb connection",
			zap.Error(err))
	}
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("error closing redis connection",
			zap.Error(err))
	}
	if err := a.Logger.Sync(); err != nil {
		log.Printf("error syncing logger: %v", err)
	}

	return nil
}

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
