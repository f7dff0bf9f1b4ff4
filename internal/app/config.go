package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (MARKET_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (MARKET_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Cart        CartConfig
	Checkout    CheckoutConfig
	Cod         CodConfig
	Commission  CommissionConfig
	Payout      PayoutConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CartConfig controls cart totals and stock reservations.
type CartConfig struct {
	TaxRatePercent string        `default:"10" usage:"Tax rate applied to cart and order lines, percent" flag:"tax-rate"`
	ReservationTTL time.Duration `default:"30m" usage:"How long a cart reservation holds stock" flag:"reservation-ttl"`
	SweepInterval  time.Duration `default:"5m" usage:"How often expired reservations are swept" flag:"sweep-interval"`
}

// CheckoutConfig controls order pricing at checkout.
type CheckoutConfig struct {
	ShippingCents int64 `default:"500" usage:"Flat shipping charge in cents" flag:"shipping-cents"`
	CodMinCents   int64 `default:"1000" usage:"Minimum order total eligible for cash on delivery" flag:"cod-min-cents"`
	CodMaxCents   int64 `default:"5000000" usage:"Maximum order total eligible for cash on delivery (0 disables the cap)" flag:"cod-max-cents"`
	// CodFeeTiers is the COD fee schedule; when empty, defaultCodFeeTiers
	// applies. Tiers must be sorted ascending with the open-ended tier
	// (UpToCents 0) last.
	CodFeeTiers []CodFeeTier
}

// CodFeeTier is one step of the configurable COD fee schedule.
type CodFeeTier struct {
	UpToCents int64 `usage:"Upper order total bound for this tier, 0 for open-ended"`
	FeeCents  int64 `usage:"COD fee charged within this tier"`
}

// defaultCodFeeTiers applies when no schedule is configured.
var defaultCodFeeTiers = []CodFeeTier{
	{UpToCents: 50_000, FeeCents: 2_000},
	{UpToCents: 200_000, FeeCents: 3_000},
	{UpToCents: 0, FeeCents: 5_000},
}

// CodConfig controls the delivery workflow.
type CodConfig struct {
	EscalationThreshold int `default:"3" usage:"Failed delivery attempts before escalation" flag:"escalation-threshold"`
}

// CommissionConfig controls the platform commission split.
type CommissionConfig struct {
	RatePercent string `default:"10" usage:"Platform commission rate, percent of item total" flag:"commission-rate"`
}

// PayoutConfig controls vendor disbursement fees.
type PayoutConfig struct {
	ProcessingFeePercent string `default:"2" usage:"Payout processing fee, percent of gross" flag:"payout-fee"`
	MinFeeCents          int64  `default:"2500" usage:"Minimum payout processing fee in cents" flag:"payout-min-fee"`
}

// KafkaConfig controls domain event publishing. With no brokers configured,
// events are logged instead of published.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses; empty disables publishing"`
	Topic   string   `default:"marketplace.events" usage:"Topic for domain events"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MARKET",
		Files:     []string{"config.yaml", "/etc/marketplace/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if len(cfg.Checkout.CodFeeTiers) == 0 {
		cfg.Checkout.CodFeeTiers = defaultCodFeeTiers
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set MARKET_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MARKET_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
