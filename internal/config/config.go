package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/carebook/booking/internal/domain/booking"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	SessionStore    string        `mapstructure:"SESSION_STORE"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	SessionCapacity int           `mapstructure:"SESSION_CAPACITY"`
	SessionCookie   string        `mapstructure:"SESSION_COOKIE"`

	DoctorCacheSize int           `mapstructure:"DOCTOR_CACHE_SIZE"`
	DoctorCacheTTL  time.Duration `mapstructure:"DOCTOR_CACHE_TTL"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	WorkdayStart string `mapstructure:"WORKDAY_START"`
	WorkdayEnd   string `mapstructure:"WORKDAY_END"`
	SlotMinutes  int    `mapstructure:"SLOT_MINUTES"`
}

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"SESSION_STORE", "SESSION_TTL", "SESSION_CAPACITY", "SESSION_COOKIE",
	"DOCTOR_CACHE_SIZE", "DOCTOR_CACHE_TTL",
	"RABBITMQ_URL", "RABBITMQ_EXCHANGE",
	"WORKDAY_START", "WORKDAY_END", "SLOT_MINUTES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("SESSION_CAPACITY", 10000)
	v.SetDefault("SESSION_COOKIE", "booking_session")
	v.SetDefault("DOCTOR_CACHE_SIZE", 512)
	v.SetDefault("DOCTOR_CACHE_TTL", "5m")
	v.SetDefault("RABBITMQ_EXCHANGE", "booking.events")
	v.SetDefault("WORKDAY_START", "09:00")
	v.SetDefault("WORKDAY_END", "17:00")
	v.SetDefault("SLOT_MINUTES", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Policy builds the global working-hours policy from the WORKDAY_* keys.
func (c *Config) Policy() (booking.WorkingHoursPolicy, error) {
	start, err := booking.ParseTimeOfDay(c.WorkdayStart)
	if err != nil {
		return booking.WorkingHoursPolicy{}, fmt.Errorf("WORKDAY_START: %w", err)
	}
	end, err := booking.ParseTimeOfDay(c.WorkdayEnd)
	if err != nil {
		return booking.WorkingHoursPolicy{}, fmt.Errorf("WORKDAY_END: %w", err)
	}
	p := booking.WorkingHoursPolicy{
		Start:       start,
		End:         end,
		Granularity: time.Duration(c.SlotMinutes) * time.Minute,
	}
	if err := p.Validate(); err != nil {
		return booking.WorkingHoursPolicy{}, err
	}
	return p, nil
}

// Validate checks that the configuration is safe to run. Outside development
// bearer tokens are always verified, so a signing key is required.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER is required in production")
	}
	switch c.SessionStore {
	case SessionStoreMemory, SessionStorePostgres:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStorePostgres, c.SessionStore)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionStore == SessionStoreMemory && c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive, got %d", c.SessionCapacity)
	}
	if c.DoctorCacheSize <= 0 {
		return fmt.Errorf("DOCTOR_CACHE_SIZE must be positive, got %d", c.DoctorCacheSize)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}
