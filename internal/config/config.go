package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "NEWS_DIGEST_CONFIG"
	apiKeyEnv      = "API_KEY"
	apiURLEnv      = "API_URL"
	apiModelEnv    = "API_MODEL"
	temperatureEnv = "API_TEMPERATURE"
	maxTokensEnv   = "API_MAX_TOKENS"
	maxRetriesEnv  = "API_MAX_RETRIES"
	maxArticlesEnv = "MAX_ARTICLES"
	outputDirEnv   = "NEWS_OUTPUT_DIR"
	serverPortEnv  = "SERVER_PORT"
	databaseDSNEnv = "DATABASE_DSN"
	logLevelEnv    = "LOG_LEVEL"
	httpRefererEnv = "HTTP_REFERER"
	xTitleEnv      = "X_TITLE"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Provider ProviderConfig `yaml:"provider"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Report   ReportConfig   `yaml:"report"`
	Database DatabaseConfig `yaml:"database"`
	Sources  []SourceConfig `yaml:"sources"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig controls log level and the durable log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ProviderConfig defines how to contact the summarization provider.
type ProviderConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	MaxRetries  int           `yaml:"maxRetries"`
	Timeout     time.Duration `yaml:"timeout"`
	HTTPReferer string        `yaml:"httpReferer"`
	XTitle      string        `yaml:"xTitle"`
}

// CrawlConfig bounds the crawl phase.
type CrawlConfig struct {
	MaxArticles int           `yaml:"maxArticles"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ReportConfig describes where rendered reports live.
type ReportConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// DatabaseConfig describes the optional run-history Postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SourceConfig describes a single scrape target with its selectors.
type SourceConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	BaseURL        string `yaml:"baseUrl"`
	ItemSelector   string `yaml:"itemSelector"`
	TitleSelector  string `yaml:"titleSelector"`
	LinkSelector   string `yaml:"linkSelector"`
	TimeSelector   string `yaml:"timeSelector"`
	SourceSelector string `yaml:"sourceSelector"`
}

// Load reads .env, YAML configuration (if present) and applies environment
// overrides. It never fails: unreadable files fall back to defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv(apiURLEnv); v != "" {
		c.Provider.Endpoint = v
	}
	if v := os.Getenv(apiModelEnv); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv(temperatureEnv); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Provider.Temperature = f
		}
	}
	if v := os.Getenv(maxTokensEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Provider.MaxTokens = n
		}
	}
	if v := os.Getenv(maxRetriesEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Provider.MaxRetries = n
		}
	}
	if v := os.Getenv(httpRefererEnv); v != "" {
		c.Provider.HTTPReferer = v
	}
	if v := os.Getenv(xTitleEnv); v != "" {
		c.Provider.XTitle = v
	}
	if v := os.Getenv(maxArticlesEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxArticles = n
		}
	}
	if v := os.Getenv(outputDirEnv); v != "" {
		c.Report.OutputDir = v
	}
	if v := os.Getenv(serverPortEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Provider.Endpoint != "" {
		base.Provider.Endpoint = override.Provider.Endpoint
	}
	if override.Provider.Model != "" {
		base.Provider.Model = override.Provider.Model
	}
	if override.Provider.APIKey != "" {
		base.Provider.APIKey = override.Provider.APIKey
	}
	if override.Provider.Temperature != 0 {
		base.Provider.Temperature = override.Provider.Temperature
	}
	if override.Provider.MaxTokens != 0 {
		base.Provider.MaxTokens = override.Provider.MaxTokens
	}
	if override.Provider.MaxRetries != 0 {
		base.Provider.MaxRetries = override.Provider.MaxRetries
	}
	if override.Provider.Timeout != 0 {
		base.Provider.Timeout = override.Provider.Timeout
	}
	if override.Provider.HTTPReferer != "" {
		base.Provider.HTTPReferer = override.Provider.HTTPReferer
	}
	if override.Provider.XTitle != "" {
		base.Provider.XTitle = override.Provider.XTitle
	}

	if override.Crawl.MaxArticles != 0 {
		base.Crawl.MaxArticles = override.Crawl.MaxArticles
	}
	if override.Crawl.Timeout != 0 {
		base.Crawl.Timeout = override.Crawl.Timeout
	}

	if override.Report.OutputDir != "" {
		base.Report.OutputDir = override.Report.OutputDir
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server:  ServerConfig{Port: "8000"},
		Logging: LoggingConfig{Level: "info", File: "news.log"},
		Provider: ProviderConfig{
			Endpoint:    "https://api.deepseek.com/v1/chat/completions",
			Temperature: 0.7,
			MaxTokens:   2000,
			MaxRetries:  2,
			Timeout:     30 * time.Second,
		},
		Crawl: CrawlConfig{
			MaxArticles: 10,
			Timeout:     10 * time.Second,
		},
		Report: ReportConfig{OutputDir: "news_output"},
		Sources: []SourceConfig{
			{
				Name:           "ifeng-news",
				URL:            "https://news.ifeng.com/",
				BaseURL:        "https://news.ifeng.com",
				ItemSelector:   ".news-stream-newsStream-news-item-infor",
				TitleSelector:  "h2",
				LinkSelector:   "a",
				TimeSelector:   ".time",
				SourceSelector: ".source",
			},
		},
	}
}
