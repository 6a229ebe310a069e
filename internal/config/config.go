package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ThreatScanner/internal/apperr"
)

const (
	defaultTimezone = "UTC"

	configPathEnv     = "THREAT_SCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	logLevelEnv       = "LOG_LEVEL"
	artifactsPathEnv  = "ARTIFACTS_PATH"
	datasetPathEnv    = "DATASET_PATH"
	smtpServerEnv     = "SMTP_SERVER"
	smtpPortEnv       = "SMTP_PORT"
	smtpUsernameEnv   = "SMTP_USERNAME"
	smtpPasswordEnv   = "SMTP_PASSWORD"
	emailFromEnv      = "ALERT_EMAIL_FROM"
	emailToEnv        = "ALERT_EMAIL_TO"
	splunkURLEnv      = "SPLUNK_URL"
	splunkTokenEnv    = "SPLUNK_TOKEN"
	otxAPIKeyEnv      = "OTX_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sources   []SourceConfig  `yaml:"sources"`
	OTX       OTXConfig       `yaml:"otx"`
	Retry     RetryConfig     `yaml:"retry"`
	Model     ModelConfig     `yaml:"model"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// LoggingConfig selects slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when the collection pipeline should run in serve mode.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
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

// SourceConfig describes a single upstream with its collector strategy.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	Collector string            `yaml:"collector"`
	URLs      []string          `yaml:"urls"`
	Options   map[string]string `yaml:"options"`
	Limit     int               `yaml:"limit"`
}

// OTXConfig holds AlienVault OTX credentials.
type OTXConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
}

// RetryConfig bounds the exponential backoff used for upstream calls.
type RetryConfig struct {
	Attempts        int           `yaml:"attempts"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
}

// ModelConfig tunes feature extraction, the ensemble and verdict thresholds.
type ModelConfig struct {
	MaxFeatures       int     `yaml:"maxFeatures"`
	MaxNGram          int     `yaml:"maxNGram"`
	ThreatThreshold   float64 `yaml:"threatThreshold"`
	CriticalThreshold float64 `yaml:"criticalThreshold"`
	Bootstrap         bool    `yaml:"bootstrap"`
	Members           int     `yaml:"members"`
	Epochs            int     `yaml:"epochs"`
	PartialEpochs     int     `yaml:"partialEpochs"`
	LearningRate      float64 `yaml:"learningRate"`
	Seed              int64   `yaml:"seed"`
	HoldoutFraction   float64 `yaml:"holdoutFraction"`
}

// DatasetConfig points at the labelled CSV used by the train command.
type DatasetConfig struct {
	Path              string  `yaml:"path"`
	TextColumn        string  `yaml:"textColumn"`
	SeverityColumn    string  `yaml:"severityColumn"`
	SeverityThreshold float64 `yaml:"severityThreshold"`
}

// AlertsConfig groups outbound alert channels.
type AlertsConfig struct {
	ConfidenceThreshold float64        `yaml:"confidenceThreshold"`
	Email               EmailConfig    `yaml:"email"`
	Splunk              SplunkConfig   `yaml:"splunk"`
	Telegram            TelegramConfig `yaml:"telegram"`
}

// EmailConfig carries SMTP relay settings.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Enabled reports whether every field needed to send mail is present.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port > 0 && e.Username != "" && e.Password != "" && e.From != "" && e.To != ""
}

// SplunkConfig describes an HTTP Event Collector endpoint.
type SplunkConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Index   string        `yaml:"index"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether the HEC endpoint is configured.
func (s SplunkConfig) Enabled() bool {
	return s.URL != "" && s.Token != ""
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether bot credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ArtifactsConfig locates the model artifact database.
type ArtifactsConfig struct {
	Path string `yaml:"path"`
}

// Load reads .env, the YAML file named by THREAT_SCANNER_CONFIG and environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit YAML path; an empty path uses defaults only.
func LoadFrom(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if merged, err := mergeYAML(cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = merged
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Validate reports settings that would make the pipeline misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.Model.ThreatThreshold <= 0 || c.Model.ThreatThreshold >= 1 {
		errs = append(errs, fmt.Errorf("model.threatThreshold must be in (0,1), got %v", c.Model.ThreatThreshold))
	}
	if c.Model.CriticalThreshold < c.Model.ThreatThreshold || c.Model.CriticalThreshold >= 1 {
		errs = append(errs, fmt.Errorf("model.criticalThreshold must be in [threatThreshold,1), got %v", c.Model.CriticalThreshold))
	}
	if c.Model.MaxFeatures <= 0 || c.Model.MaxNGram <= 0 {
		errs = append(errs, fmt.Errorf("model.maxFeatures and model.maxNGram must be positive"))
	}
	if c.Model.Members <= 0 || c.Model.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("model.members and model.epochs must be positive"))
	}
	if c.Model.HoldoutFraction < 0 || c.Model.HoldoutFraction >= 1 {
		errs = append(errs, fmt.Errorf("model.holdoutFraction must be in [0,1), got %v", c.Model.HoldoutFraction))
	}
	if c.Alerts.ConfidenceThreshold < 0 || c.Alerts.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("alerts.confidenceThreshold must be in [0,1], got %v", c.Alerts.ConfidenceThreshold))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1"))
	}
	if c.Artifacts.Path == "" {
		errs = append(errs, fmt.Errorf("artifacts.path is required"))
	}
	for i, src := range c.Sources {
		if src.Name == "" || src.Collector == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name and collector are required", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return apperr.Wrap(apperr.ErrConfiguration, "validate config", errors.Join(errs...))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(artifactsPathEnv); v != "" {
		c.Artifacts.Path = v
	}
	if v := os.Getenv(datasetPathEnv); v != "" {
		c.Dataset.Path = v
	}

	if v := os.Getenv(smtpServerEnv); v != "" {
		c.Alerts.Email.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Alerts.Email.Port = port
		} else {
			log.Printf("config: ignoring %s=%q: %v", smtpPortEnv, v, err)
		}
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Alerts.Email.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Alerts.Email.Password = v
	}
	if v := os.Getenv(emailFromEnv); v != "" {
		c.Alerts.Email.From = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Alerts.Email.To = v
	}

	if v := os.Getenv(splunkURLEnv); v != "" {
		c.Alerts.Splunk.URL = v
	}
	if v := os.Getenv(splunkTokenEnv); v != "" {
		c.Alerts.Splunk.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Alerts.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Alerts.Telegram.ChatID = v
	}

	if v := os.Getenv(otxAPIKeyEnv); v != "" {
		c.OTX.APIKey = v
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
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// mergeYAML decodes the file on top of base so absent keys keep their defaults
// and explicit false/zero values in the file still win.
func mergeYAML(base Config, raw []byte) (Config, error) {
	merged := base
	merged.Sources = nil
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return base, err
	}
	if merged.Sources == nil {
		merged.Sources = base.Sources
	}
	return merged, nil
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{CronExpression: "0 */6 * * *", Timezone: defaultTimezone, location: tz},
		Sources: []SourceConfig{
			{Name: "threatpost", Collector: "rss", URLs: []string{"https://threatpost.com/feed/"}},
			{Name: "us-cert", Collector: "rss", URLs: []string{"https://www.us-cert.gov/ncas/alerts.xml"}},
			{
				Name:      "security_forum",
				Collector: "forum",
				URLs:      []string{"https://security.stackexchange.com/questions?sort=newest"},
				Limit:     20,
			},
		},
		OTX:   OTXConfig{BaseURL: "https://otx.alienvault.com"},
		Retry: RetryConfig{Attempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second},
		Model: ModelConfig{
			MaxFeatures:       1000,
			MaxNGram:          3,
			ThreatThreshold:   0.5,
			CriticalThreshold: 0.7,
			Bootstrap:         true,
			Members:           25,
			Epochs:            40,
			PartialEpochs:     10,
			LearningRate:      0.5,
			Seed:              42,
			HoldoutFraction:   0.2,
		},
		Dataset: DatasetConfig{
			Path:              "Cybersecurity_Dataset.csv",
			TextColumn:        "Cleaned Threat Description",
			SeverityColumn:    "Severity Score",
			SeverityThreshold: 2,
		},
		Alerts: AlertsConfig{
			ConfidenceThreshold: 0.7,
			Email:               EmailConfig{Port: 587},
			Splunk:              SplunkConfig{Index: "threat_intel", Timeout: 5 * time.Second},
		},
		Artifacts: ArtifactsConfig{Path: "artifacts/model.db"},
	}
}
