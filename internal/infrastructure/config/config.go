package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "LEDGERSYNC"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Ledger    LedgerConfig
	Catalog   CatalogConfig
	Worker    WorkerConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis; submissions and the batch lock then stay in process.
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// LedgerConfig holds remote ledger API settings
type LedgerConfig struct {
	BaseURL           string
	APIKey            string
	ChannelID         string
	TimeoutSeconds    int
	MaxAttempts       int
	TokenLifetime     time.Duration
	TokenSafetyMargin time.Duration
	PageLimit         int
}

// SubstitutionConfig is the identity a substituted product is reported under
type SubstitutionConfig struct {
	Slug string `mapstructure:"slug"`
	Name string `mapstructure:"name"`
}

// CatalogConfig holds the tax, naming and substitution rules applied to products.
// Rates and amounts are decimal strings.
type CatalogConfig struct {
	DefaultTaxRate        string
	OverrideTaxRate       string
	ReducedRateSlugs      []string
	ReducedRateCategories []string
	ShippingSlug          string
	ShippingName          string
	ShippingCost          string
	Substitutions         map[string]SubstitutionConfig
	CodeSuffix            string
	CategoryCodeSuffixes  map[string]string
	CategoryNameSuffixes  map[string]string
	// Fixed associate and goods attributes required by the ledger
	NationalID             string
	Country                string
	CustomerClassification string
	ProductType            string
	ProductClassification  string
}

// WorkerConfig holds batch synchronization settings
type WorkerConfig struct {
	Enabled         bool
	Workers         int
	PollInterval    time.Duration
	BatchSize       int
	OrdersPerMinute int
	Burst           int
	OrderTimeout    time.Duration
	QueueSize       int
	HistorySize     int
	LockTTL         time.Duration
}

// HTTPConfig holds admin HTTP server configuration
type HTTPConfig struct {
	Enabled         bool
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEDGERSYNC_ prefix (e.g., LEDGERSYNC_LEDGER_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ledgersync")

	return load(v)
}

// LoadFile loads configuration from an explicit file path plus environment overrides
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Ledger: LedgerConfig{
			BaseURL:           v.GetString("ledger.base_url"),
			APIKey:            v.GetString("ledger.api_key"),
			ChannelID:         v.GetString("ledger.channel_id"),
			TimeoutSeconds:    v.GetInt("ledger.timeout_seconds"),
			MaxAttempts:       v.GetInt("ledger.max_attempts"),
			TokenLifetime:     v.GetDuration("ledger.token_lifetime"),
			TokenSafetyMargin: v.GetDuration("ledger.token_safety_margin"),
			PageLimit:         v.GetInt("ledger.page_limit"),
		},
		Catalog: CatalogConfig{
			DefaultTaxRate:         v.GetString("catalog.default_tax_rate"),
			OverrideTaxRate:        v.GetString("catalog.override_tax_rate"),
			ReducedRateSlugs:       v.GetStringSlice("catalog.reduced_rate_slugs"),
			ReducedRateCategories:  v.GetStringSlice("catalog.reduced_rate_categories"),
			ShippingSlug:           v.GetString("catalog.shipping_slug"),
			ShippingName:           v.GetString("catalog.shipping_name"),
			ShippingCost:           v.GetString("catalog.shipping_cost"),
			CodeSuffix:             v.GetString("catalog.code_suffix"),
			CategoryCodeSuffixes:   v.GetStringMapString("catalog.category_code_suffixes"),
			CategoryNameSuffixes:   v.GetStringMapString("catalog.category_name_suffixes"),
			NationalID:             v.GetString("catalog.national_id"),
			Country:                v.GetString("catalog.country"),
			CustomerClassification: v.GetString("catalog.customer_classification"),
			ProductType:            v.GetString("catalog.product_type"),
			ProductClassification:  v.GetString("catalog.product_classification"),
		},
		Worker: WorkerConfig{
			Enabled:         v.GetBool("worker.enabled"),
			Workers:         v.GetInt("worker.workers"),
			PollInterval:    v.GetDuration("worker.poll_interval"),
			BatchSize:       v.GetInt("worker.batch_size"),
			OrdersPerMinute: v.GetInt("worker.orders_per_minute"),
			Burst:           v.GetInt("worker.burst"),
			OrderTimeout:    v.GetDuration("worker.order_timeout"),
			QueueSize:       v.GetInt("worker.queue_size"),
			HistorySize:     v.GetInt("worker.history_size"),
			LockTTL:         v.GetDuration("worker.lock_ttl"),
		},
		HTTP: HTTPConfig{
			Enabled:         v.GetBool("http.enabled"),
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	if v.IsSet("catalog.substitutions") {
		if err := v.UnmarshalKey("catalog.substitutions", &cfg.Catalog.Substitutions); err != nil {
			return nil, fmt.Errorf("invalid catalog.substitutions: %w", err)
		}
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledgersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "ledgersync:"
	}
	// Ledger defaults beyond these are filled by the API client itself
	if cfg.Catalog.DefaultTaxRate == "" {
		cfg.Catalog.DefaultTaxRate = "20"
	}
	if cfg.Catalog.OverrideTaxRate == "" {
		cfg.Catalog.OverrideTaxRate = "10"
	}
	if cfg.Catalog.ShippingSlug == "" {
		cfg.Catalog.ShippingSlug = "kargo"
	}
	if cfg.Catalog.ShippingName == "" {
		cfg.Catalog.ShippingName = "Kargo"
	}
	if cfg.Catalog.ShippingCost == "" {
		cfg.Catalog.ShippingCost = "0"
	}
	if cfg.Catalog.Country == "" {
		cfg.Catalog.Country = "TR"
	}
	if cfg.Catalog.NationalID == "" {
		cfg.Catalog.NationalID = "11111111111"
	}
	if cfg.Catalog.CustomerClassification == "" {
		cfg.Catalog.CustomerClassification = "customer"
	}
	if cfg.Catalog.ProductType == "" {
		cfg.Catalog.ProductType = "physical"
	}
	if cfg.Catalog.ProductClassification == "" {
		cfg.Catalog.ProductClassification = "trade_goods"
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = 1
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 5 * time.Minute
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 50
	}
	if cfg.Worker.OrdersPerMinute == 0 {
		cfg.Worker.OrdersPerMinute = 30
	}
	if cfg.Worker.Burst == 0 {
		cfg.Worker.Burst = 1
	}
	if cfg.Worker.OrderTimeout == 0 {
		cfg.Worker.OrderTimeout = 2 * time.Minute
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = 500
	}
	if cfg.Worker.HistorySize == 0 {
		cfg.Worker.HistorySize = 200
	}
	if cfg.Worker.LockTTL == 0 {
		cfg.Worker.LockTTL = 10 * time.Minute
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8081"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// a synchronous sync-now request waits for the whole order
		cfg.HTTP.WriteTimeout = 3 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := c.Catalog.Rules(); err != nil {
		return err
	}

	if c.Worker.Workers < 0 || c.Worker.BatchSize < 0 || c.Worker.QueueSize < 0 {
		return fmt.Errorf("worker.workers, worker.batch_size and worker.queue_size cannot be negative")
	}
	if c.Worker.OrdersPerMinute < 0 {
		return fmt.Errorf("worker.orders_per_minute cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Ledger.BaseURL == "" || c.Ledger.APIKey == "" || c.Ledger.ChannelID == "" {
			return fmt.Errorf("ledger.base_url, ledger.api_key and ledger.channel_id are required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Rules builds the catalog rules used by reconciliation and payload building
func (c *CatalogConfig) Rules() (*ledger.CatalogRules, error) {
	defaultRate, err := parseDecimal("catalog.default_tax_rate", c.DefaultTaxRate)
	if err != nil {
		return nil, err
	}
	overrideRate, err := parseDecimal("catalog.override_tax_rate", c.OverrideTaxRate)
	if err != nil {
		return nil, err
	}
	shippingCost, err := parseDecimal("catalog.shipping_cost", c.ShippingCost)
	if err != nil {
		return nil, err
	}
	if c.ShippingSlug == "" {
		return nil, fmt.Errorf("catalog.shipping_slug is required")
	}

	rules := &ledger.CatalogRules{
		DefaultTaxRate:        defaultRate,
		OverrideTaxRate:       overrideRate,
		ReducedRateSlugs:      c.ReducedRateSlugs,
		ReducedRateCategories: c.ReducedRateCategories,
		Shipping:              ledger.ProductIdentity{Slug: c.ShippingSlug, Name: c.ShippingName},
		ShippingCost:          shippingCost,
		CodeSuffix:            c.CodeSuffix,
		CategoryCodeSuffixes:  c.CategoryCodeSuffixes,
		CategoryNameSuffixes:  c.CategoryNameSuffixes,
	}
	if len(c.Substitutions) > 0 {
		rules.Substitutions = make(map[string]ledger.ProductIdentity, len(c.Substitutions))
		for slug, sub := range c.Substitutions {
			if sub.Slug == "" {
				return nil, fmt.Errorf("catalog.substitutions.%s.slug is required", slug)
			}
			rules.Substitutions[slug] = ledger.ProductIdentity{Slug: sub.Slug, Name: sub.Name}
		}
	}
	return rules, nil
}

func parseDecimal(key, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number, got %q", key, value)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address, or an empty string when Redis is not configured
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
