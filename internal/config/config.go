package config // package config loads application configuration from environment variables

import (
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // durations for payment windows and upstream timeouts
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Upstream credentials are strings, windows and
// timeouts are durations.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username (empty disables the purchase ledger)
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	CatalogBaseURL     string // base URL of the promotion/catalog service
	CatalogAPIKey      string // x-api-key sent to the catalog service
	CatalogPromotionID string // promotion sold by this deployment (optional)
	GatewayBaseURL     string // base URL of the Pix gateway
	GatewayAPIKey      string // bearer credential for the Pix gateway

	JWTSecret         string // secret used to sign admin JWTs
	WebhookJWTSecret  string // secret the gateway signs webhook bearer tokens with
	AccessTTLMin      int    // admin access token time-to-live in minutes
	AdminUser         string // operator login for reconciliation endpoints
	AdminPasswordHash string // bcrypt hash of the operator password

	ChargeExpiry     time.Duration // logical Pix payment window
	PollInterval     time.Duration // buyer status poll interval
	AbandonThreshold time.Duration // hidden-tab span that triggers the abandon prompt
	UpstreamTimeout  time.Duration // bound on every outbound catalog/gateway call
	PendingGrace     time.Duration // extra lifetime of pending entries past expiresAt

	BoltPath        string // fallback pending store file when Redis is unavailable
	ConsumerEnabled bool   // run the purchase.confirmed consumer in-process
	PublishEvents   bool   // publish purchase.confirmed events to RabbitMQ
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "3000"),

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: envStr("DB_HOST", "localhost"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: envStr("DB_NAME", "raffle"),

		CatalogBaseURL:     must("CATALOG_BASE_URL"),
		CatalogAPIKey:      must("CATALOG_API_KEY"),
		CatalogPromotionID: os.Getenv("CATALOG_PROMOTION_ID"),
		GatewayBaseURL:     must("GATEWAY_BASE_URL"),
		GatewayAPIKey:      must("GATEWAY_API_KEY"),

		JWTSecret:         must("JWT_SECRET"),
		WebhookJWTSecret:  must("WEBHOOK_JWT_SECRET"),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 30),
		AdminUser:         envStr("ADMIN_USER", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		ChargeExpiry:     envDur("CHARGE_EXPIRY", 300*time.Second),
		PollInterval:     envDur("POLL_INTERVAL", 5*time.Second),
		AbandonThreshold: envDur("ABANDON_THRESHOLD", 30*time.Second),
		UpstreamTimeout:  envDur("UPSTREAM_TIMEOUT", 10*time.Second),
		PendingGrace:     envDur("PENDING_GRACE", 10*time.Minute),

		BoltPath:        envStr("BOLT_PATH", "data/pending.db"),
		ConsumerEnabled: envBool("QUEUE_CONSUMER_ENABLED", false),
		PublishEvents:   envBool("QUEUE_PUBLISH_ENABLED", false),
	}
}

// LedgerEnabled reports whether MySQL credentials were supplied.
func (c Config) LedgerEnabled() bool { return c.DBUser != "" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
