package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"marketqa/internal/config"
	"marketqa/internal/http/handlers"
	applog "marketqa/internal/log"
	"marketqa/internal/repos"
	"marketqa/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Auth wiring
	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}
	authH := &handlers.AuthHandler{Auth: authSvc}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Log and answer with a friendly message; never leak internals
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong, please try again",
			})
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
	}))

	// ---------- App handlers ----------
	deps := handlers.NewDeps(db, cfg)

	// Auth (login throttled)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts, try again later"})
		},
	}), authH.Login)
	app.Post("/logout", authH.Logout)

	// Seller
	seller := app.Group("/seller", handlers.RequireSeller(authSvc))
	seller.Post("/listings", deps.SellerHandler.Submit)
	seller.Get("/listings", deps.SellerHandler.View)
	seller.Post("/listings/refresh", deps.SellerHandler.Refresh)
	seller.Put("/listings/:id", deps.SellerHandler.Edit)
	seller.Post("/listings/:id/sample", deps.SellerHandler.SubmitSample)
	seller.Get("/notifications", deps.SellerHandler.Notifications)

	// Moderator review console
	mod := app.Group("/moderator", handlers.RequireModerator(authSvc))
	mod.Get("/queue", deps.ModeratorHandler.Queue)
	mod.Post("/queue/refresh", deps.ModeratorHandler.Refresh)
	mod.Post("/listings/:id/approve-sample", deps.ModeratorHandler.ApproveForSample)
	mod.Post("/listings/:id/reject-digital", deps.ModeratorHandler.RejectDigital)
	mod.Post("/listings/:id/pass-quality", deps.ModeratorHandler.PassQuality)
	mod.Post("/listings/:id/fail-quality", deps.ModeratorHandler.FailQuality)
	mod.Post("/listings/:id/request-revision", deps.ModeratorHandler.RequestRevision)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
