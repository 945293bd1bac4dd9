package config

import "os"

type Config struct {
	Addr          string
	DatabaseURL   string
	MigrationsDir string
	RedisAddr     string
	JWTSecret     string
	SendGridKey   string
	EmailFrom     string
	AdminEmail    string
	// Production gates the live order-number prefix and payment
	// auto-capture. Both APP_ENV=production and a non-test PAYMENT_MODE
	// are required, so staging traffic stays visually distinguishable.
	Production bool
}

func Load() Config {
	addr := os.Getenv("STOREFRONT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	emailFrom := os.Getenv("EMAIL_FROM")
	if emailFrom == "" {
		emailFrom = "orders@cnfroast.example"
	}

	return Config{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: migrationsDir,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SendGridKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:     emailFrom,
		AdminEmail:    os.Getenv("ADMIN_ORDER_EMAIL"),
		Production:    os.Getenv("APP_ENV") == "production" && os.Getenv("PAYMENT_MODE") != "test",
	}
}
