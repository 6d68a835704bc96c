package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/savegress/sentinel/internal/pipeline"
	"github.com/savegress/sentinel/internal/risk"
)

// Config holds all configuration for Sentinel
type Config struct {
	Risk     RiskConfig     `yaml:"risk"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Advisory AdvisoryConfig `yaml:"advisory"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RiskConfig holds the screening thresholds
type RiskConfig struct {
	MaxExpenseRatio       float64  `yaml:"max_expense_ratio"`
	ReportingLimit        float64  `yaml:"reporting_limit"`
	StructuringMin        float64  `yaml:"structuring_min"`
	StructuringThreshold  int      `yaml:"structuring_threshold"`
	CashMarker            string   `yaml:"cash_marker"`
	HighRiskKeywords      []string `yaml:"high_risk_keywords"`
	UnclearWealthPenalty  int      `yaml:"unclear_wealth_penalty"`
	HighRiskEntityPenalty int      `yaml:"high_risk_entity_penalty"`
	StructuringPenalty    int      `yaml:"structuring_penalty"`
	HighRiskScore         int      `yaml:"high_risk_score"`
	MediumRiskScore       int      `yaml:"medium_risk_score"`
}

// PipelineConfig holds orchestration and batch configuration
type PipelineConfig struct {
	Workers              int           `yaml:"workers"`
	QueueSize            int           `yaml:"queue_size"`
	ValidationPolicy     string        `yaml:"validation_policy"`
	WealthHighRiskIncome float64       `yaml:"wealth_high_risk_income"`
	StageTimeout         time.Duration `yaml:"stage_timeout"`
}

// AdvisoryConfig holds generator configuration
type AdvisoryConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// ArchiveConfig holds outcome archive configuration
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Providers accepted in AdvisoryConfig.Provider
const (
	ProviderStatic = "static"
	ProviderGemini = "gemini"
)

// Load loads configuration from a YAML file. Values absent from the file
// keep their LoadFromEnv defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := LoadFromEnv()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	apiKey := getEnv("SENTINEL_GEMINI_API_KEY", getEnv("GEMINI_API_KEY", ""))
	provider := ProviderStatic
	if apiKey != "" {
		provider = ProviderGemini
	}

	return &Config{
		Risk: RiskConfig{
			MaxExpenseRatio:       getEnvFloat("SENTINEL_MAX_EXPENSE_RATIO", 0.60),
			ReportingLimit:        getEnvFloat("SENTINEL_REPORTING_LIMIT", 5000),
			StructuringMin:        getEnvFloat("SENTINEL_STRUCTURING_MIN", 4000),
			StructuringThreshold:  getEnvInt("SENTINEL_STRUCTURING_THRESHOLD", 1),
			CashMarker:            getEnv("SENTINEL_CASH_MARKER", "cash"),
			HighRiskKeywords:      getEnvList("SENTINEL_HIGH_RISK_KEYWORDS", risk.DefaultHighRiskKeywords),
			UnclearWealthPenalty:  getEnvInt("SENTINEL_UNCLEAR_WEALTH_PENALTY", 30),
			HighRiskEntityPenalty: getEnvInt("SENTINEL_HIGH_RISK_ENTITY_PENALTY", 50),
			StructuringPenalty:    getEnvInt("SENTINEL_STRUCTURING_PENALTY", 100),
			HighRiskScore:         getEnvInt("SENTINEL_HIGH_RISK_SCORE", 50),
			MediumRiskScore:       getEnvInt("SENTINEL_MEDIUM_RISK_SCORE", 30),
		},
		Pipeline: PipelineConfig{
			Workers:              getEnvInt("SENTINEL_WORKERS", 4),
			QueueSize:            getEnvInt("SENTINEL_QUEUE_SIZE", 64),
			ValidationPolicy:     getEnv("SENTINEL_VALIDATION_POLICY", string(pipeline.PolicyManualReview)),
			WealthHighRiskIncome: getEnvFloat("SENTINEL_WEALTH_HIGH_RISK_INCOME", 20000),
			StageTimeout:         getEnvDuration("SENTINEL_STAGE_TIMEOUT", 60*time.Second),
		},
		Advisory: AdvisoryConfig{
			Provider:     getEnv("SENTINEL_ADVISORY_PROVIDER", provider),
			APIKey:       apiKey,
			Model:        getEnv("SENTINEL_GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature:  getEnvFloat("SENTINEL_GEMINI_TEMPERATURE", 0.2),
			MaxRetries:   getEnvInt("SENTINEL_ADVISORY_MAX_RETRIES", 2),
			InitialDelay: getEnvDuration("SENTINEL_ADVISORY_INITIAL_DELAY", 500*time.Millisecond),
			MaxDelay:     getEnvDuration("SENTINEL_ADVISORY_MAX_DELAY", 5*time.Second),
		},
		Archive: ArchiveConfig{
			Enabled: getEnvBool("SENTINEL_ARCHIVE_ENABLED", true),
			Path:    getEnv("SENTINEL_ARCHIVE_PATH", "sentinel.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("SENTINEL_LOG_LEVEL", "info"),
			Format: getEnv("SENTINEL_LOG_FORMAT", "text"),
		},
	}
}

// Validate checks values that cannot be corrected by defaults
func (c *Config) Validate() error {
	if _, err := c.Risk.EngineConfig(); err != nil {
		return err
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 0 {
		return fmt.Errorf("pipeline.queue_size must not be negative, got %d", c.Pipeline.QueueSize)
	}
	if _, err := pipeline.ParseValidationPolicy(c.Pipeline.ValidationPolicy); err != nil {
		return fmt.Errorf("pipeline.validation_policy: %w", err)
	}
	switch c.Advisory.Provider {
	case ProviderStatic:
	case ProviderGemini:
		if c.Advisory.APIKey == "" {
			return fmt.Errorf("advisory.api_key is required for provider %q", ProviderGemini)
		}
	default:
		return fmt.Errorf("advisory.provider must be %s or %s, got %q", ProviderStatic, ProviderGemini, c.Advisory.Provider)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// EngineConfig converts the YAML thresholds into a validated risk.Config
func (r RiskConfig) EngineConfig() (risk.Config, error) {
	cfg := risk.Config{
		MaxExpenseRatio:       decimal.NewFromFloat(r.MaxExpenseRatio),
		ReportingLimit:        decimal.NewFromFloat(r.ReportingLimit),
		StructuringMin:        decimal.NewFromFloat(r.StructuringMin),
		StructuringThreshold:  r.StructuringThreshold,
		CashMarker:            r.CashMarker,
		HighRiskKeywords:      append([]string(nil), r.HighRiskKeywords...),
		UnclearWealthPenalty:  r.UnclearWealthPenalty,
		HighRiskEntityPenalty: r.HighRiskEntityPenalty,
		StructuringPenalty:    r.StructuringPenalty,
		HighRiskScore:         r.HighRiskScore,
		MediumRiskScore:       r.MediumRiskScore,
	}
	if err := cfg.Validate(); err != nil {
		return risk.Config{}, fmt.Errorf("risk: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
