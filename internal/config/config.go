package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "VISA_DECISIONS_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	stagingDirEnv     = "STAGING_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Paths         PathsConfig        `yaml:"paths"`
	Source        SourceConfig       `yaml:"source"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Summary       SummaryConfig      `yaml:"summary"`
}

// LoggingConfig selects the slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig names the SQL driver ("sqlite3" or "postgres") and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// PathsConfig locates the document lifecycle directories and run outputs.
type PathsConfig struct {
	StagingDir   string `yaml:"stagingDir"`
	ProcessedDir string `yaml:"processedDir"`
	HeldDir      string `yaml:"heldDir"`
	ExportDir    string `yaml:"exportDir"`
	MessageFile  string `yaml:"messageFile"`
}

// SourceConfig points at the index page listing bulletins.
type SourceConfig struct {
	Enabled        bool   `yaml:"enabled"`
	IndexURL       string `yaml:"indexUrl"`
	Prefix         string `yaml:"prefix"`
	UserAgent      string `yaml:"userAgent"`
	MaxRetries     uint64 `yaml:"maxRetries"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the HTTP client timeout.
func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfilePath"`
}

// SummaryConfig tunes the weekly aggregation.
type SummaryConfig struct {
	RollingWindow int `yaml:"rollingWindow"`
}

// Load reads .env, then the YAML file named by VISA_DECISIONS_CONFIG (if any),
// then applies environment overrides.
func Load() Config {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path uses defaults.
// Keys missing from the file keep their default values.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.derivePaths()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(stagingDirEnv); v != "" {
		c.Paths.StagingDir = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		tz = defaultTimezone
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.Timezone = tz
	c.Scheduler.location = loc
}

// derivePaths fills empty lifecycle directories next to the staging directory.
func (c *Config) derivePaths() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))

	base := filepath.Dir(filepath.Clean(c.Paths.StagingDir))
	if c.Paths.ProcessedDir == "" {
		c.Paths.ProcessedDir = filepath.Join(base, "processed")
	}
	if c.Paths.HeldDir == "" {
		c.Paths.HeldDir = filepath.Join(base, "held")
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join("data", "visa_decisions.db")},
		Paths: PathsConfig{
			StagingDir:  filepath.Join("data", "pdf", "to_process"),
			ExportDir:   filepath.Join("data", "exports"),
			MessageFile: filepath.Join("data", "message.txt"),
		},
		Source: SourceConfig{
			Enabled:        true,
			IndexURL:       "https://www.irishimmigration.ie/south-africa-visa-desk/#tourist",
			Prefix:         "SAVD-",
			MaxRetries:     3,
			TimeoutSeconds: 60,
		},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Summary: SummaryConfig{RollingWindow: 3},
	}
}
