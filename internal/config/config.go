// Package config loads application configuration from environment
// variables.  Required variables halt startup when missing; optional
// subsystems (Redis, RabbitMQ) degrade gracefully when theirs are
// absent.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration.  Each field corresponds to an
// environment variable.
type Config struct {
	Env            string // application environment (dev/test/prod)
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	StripeAPIKey        string // secret key for the Stripe API
	StripeWebhookSecret string // signing secret for webhook verification
	CheckoutSuccessURL  string // browser redirect after a paid checkout
	CheckoutCancelURL   string // browser redirect after an abandoned checkout

	AMQPURL              string // RabbitMQ connection URL (optional)
	InvoiceSweepInterval int    // seconds between expired-invoice sweeps
}

// Load reads configuration from the environment.  Missing required
// variables cause a fatal log and exit.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		StripeAPIKey:        must("STRIPE_API_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  must("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   must("CHECKOUT_CANCEL_URL"),

		AMQPURL:              os.Getenv("AMQP_URL"),
		InvoiceSweepInterval: envIntDefault("INVOICE_SWEEP_INTERVAL_SEC", 60),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must() plus integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
