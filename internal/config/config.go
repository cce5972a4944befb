package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite|mongo
	DBPath      string `envconfig:"DB_PATH" default:"./data/stoatbot.db"`
	MongoURI    string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB     string `envconfig:"MONGO_DB" default:"stoatbot"`
	RunMode     string `envconfig:"RUN_MODE" default:"polling"` // polling|webhook
	WebhookURL  string `envconfig:"WEBHOOK_URL"`
	// Checked against X-Telegram-Bot-Api-Secret-Token on every webhook call.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	ZoneInfoPath  string `envconfig:"ZONEINFO_PATH"`
	ReferenceYear int    `envconfig:"REFERENCE_YEAR" default:"0"` // 0 = current year

	InstallCommands      bool          `envconfig:"INSTALL_COMMANDS" default:"true"`
	DedupeTTL            time.Duration `envconfig:"DEDUPE_TTL" default:"10m"`
	MaxConcurrentUpdates int           `envconfig:"MAX_CONCURRENT_UPDATES" default:"16"`
	DigestPoll           time.Duration `envconfig:"DIGEST_POLL" default:"30s"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks rules envconfig tags cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver)
	}
	switch c.RunMode {
	case "polling":
	case "webhook":
		if c.WebhookURL == "" {
			return errors.New("WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("RUN_MODE: unknown mode %q", c.RunMode)
	}
	if c.MaxConcurrentUpdates < 1 {
		return errors.New("MAX_CONCURRENT_UPDATES must be at least 1")
	}
	if c.ReferenceYear < 0 {
		return errors.New("REFERENCE_YEAR must not be negative")
	}
	return nil
}

// Year returns the reference year used to classify zones.
func (c Config) Year(now time.Time) int {
	if c.ReferenceYear > 0 {
		return c.ReferenceYear
	}
	return now.UTC().Year()
}

// Tooling is the slice of Config read by operator commands, which never talk
// to Telegram and so do not need BOT_TOKEN.
type Tooling struct {
	StoreDriver   string `envconfig:"STORE_DRIVER" default:"sqlite"`
	DBPath        string `envconfig:"DB_PATH" default:"./data/stoatbot.db"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB       string `envconfig:"MONGO_DB" default:"stoatbot"`
	ZoneInfoPath  string `envconfig:"ZONEINFO_PATH"`
	ReferenceYear int    `envconfig:"REFERENCE_YEAR" default:"0"`
}

// LoadTooling reads the Tooling variables.
func LoadTooling() (Tooling, error) {
	var t Tooling
	if err := envconfig.Process("", &t); err != nil {
		return t, err
	}
	return t, nil
}

// Config widens t into a Config suitable for app.OpenStore and app.LoadIndex.
func (t Tooling) Config() Config {
	return Config{
		StoreDriver:          t.StoreDriver,
		DBPath:               t.DBPath,
		MongoURI:             t.MongoURI,
		MongoDB:              t.MongoDB,
		ZoneInfoPath:         t.ZoneInfoPath,
		ReferenceYear:        t.ReferenceYear,
		RunMode:              "polling",
		MaxConcurrentUpdates: 1,
	}
}
