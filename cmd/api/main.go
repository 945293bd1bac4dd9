package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cnfroast/storefront-backend/internal/cart"
	"github.com/cnfroast/storefront-backend/internal/config"
	"github.com/cnfroast/storefront-backend/internal/database"
	"github.com/cnfroast/storefront-backend/internal/notify"
	"github.com/cnfroast/storefront-backend/internal/order"
	"github.com/cnfroast/storefront-backend/internal/pricing"
	"github.com/cnfroast/storefront-backend/internal/product"
	"github.com/cnfroast/storefront-backend/internal/settings"
	"github.com/cnfroast/storefront-backend/internal/stock"
)

// main wires dependencies and starts the HTTP server.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// stock cache is optional; without Redis every read hits the ledger
	var stockCache stock.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		stockCache = stock.NewRedisCache(rdb)
	}

	productService := product.NewService(product.NewPostgresRepository(db))
	productHandler := product.NewHandler(productService)

	settingsService := settings.NewService(settings.NewPostgresRepository(db))
	settingsHandler := settings.NewHandler(settingsService)

	stockService := stock.NewService(stock.NewPostgresRepository(db), stockCache)
	stockHandler := stock.NewHandler(stockService)

	cartRepo := cart.NewPostgresRepository(db)
	cartService := cart.NewService(cartRepo, productService)
	cartHandler := cart.NewHandler(cartService)

	var notifier order.Notifier = notify.Log{}
	if cfg.SendGridKey != "" {
		notifier = notify.NewSendGrid(cfg.SendGridKey, cfg.EmailFrom, cfg.AdminEmail)
	}

	orderService := order.NewService(order.NewPostgresRepository(db), cartRepo, productService,
		pricing.NewSettingsPolicy(settingsService), stockService, notifier, cfg.Production)
	orderHandler := order.NewHandler(orderService)

	app := fiber.New()
	setupCORS(app)
	app.Use(requestLog)

	productHandler.RegisterPublicRoutes(app)
	stockHandler.RegisterPublicRoutes(app)
	cartHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterPublicRoutes(app)

	// requests without a bearer token pass through and stay guests; routes
	// registered below still reject them when no user claim is present
	app.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.JWTSecret),
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
	}))

	cartHandler.RegisterProtectedRoutes(app)
	settingsHandler.RegisterProtectedRoutes(app)
	stockHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	log.Printf("starting server on %s", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-Token",
	}))
}

func requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	fmt.Printf("URL = %s, Method = %s, Duration = %v\n", c.OriginalURL(), c.Method(), time.Since(start))
	return err
}
