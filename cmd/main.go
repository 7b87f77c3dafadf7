package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/joho/godotenv"

	"github.com/delish/storefront/internal/config"
	"github.com/delish/storefront/internal/db"
	"github.com/delish/storefront/internal/handlers"
	"github.com/delish/storefront/internal/middleware"
	"github.com/delish/storefront/internal/repository"
	"github.com/delish/storefront/internal/services"
	"github.com/delish/storefront/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()
	appLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("connecting to mongodb: %v", err)
	}
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("creating indexes: %v", err)
	}
	appLogger.Info("connected to mongodb", "database", cfg.Mongo.Database)

	photos, err := storage.NewPhotoStore(ctx, cfg.Minio, appLogger)
	if err != nil {
		log.Fatalf("connecting to minio: %v", err)
	}

	storeRepo := repository.NewMongoStoreRepository(database)
	userRepo := repository.NewMongoUserRepository(database)
	reviewRepo := repository.NewMongoReviewRepository(database)

	mailer := services.NewSMTPMailer(cfg.SMTP, appLogger)
	authService := services.NewAuthService(userRepo, mailer, cfg.Auth.JWTSecret, cfg.Server.BaseURL, appLogger)

	sessions := session.New(session.Config{
		KeyLookup:      "cookie:" + cfg.Auth.SessionKey,
		CookieHTTPOnly: true,
	})
	auth := middleware.NewAuth(sessions, cfg.Auth.JWTSecret)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			appLogger.Error("request failed", "path", c.Path(), "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(auth.Locate)

	base := handlers.Base{Sessions: sessions}
	storeHandler := handlers.NewStoreHandler(base, storeRepo, reviewRepo, userRepo, photos)
	authHandler := handlers.NewAuthHandler(base, authService)
	userHandler := handlers.NewUserHandler(base, userRepo, authService, authHandler)
	reviewHandler := handlers.NewReviewHandler(base, reviewRepo, storeRepo)

	storeHandler.RegisterRoutes(app, auth.RequireLogin)
	authHandler.RegisterRoutes(app)
	userHandler.RegisterRoutes(app, auth.RequireLogin)
	reviewHandler.RegisterRoutes(app, auth.RequireLogin)

	appLogger.Info("listening", "port", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
