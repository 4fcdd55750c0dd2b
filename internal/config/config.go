// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and cache files (always absolute)
	CacheDir string // Persistent cache layer directory, defaults to DataDir/cache
	LogLevel string
	Port     int
	DevMode  bool

	WorkerPoolSize  int
	WorkerQueueSize int

	RateLimit int // Requests per minute allowed per client IP on /api, 0 disables

	Scheduler SchedulerConfig
	LLM       LLMConfig
	News      NewsConfig
	Backup    BackupConfig

	YTDStartPrice float64 // Gold price at the start of the year, used for ytd return
}

// SchedulerConfig holds the cron cadences of the proactive refresh jobs
type SchedulerConfig struct {
	Enabled         bool
	Timezone        string
	PriceCron       string
	NewsCron        string
	AIAnalysisCron  string
	CacheCleanup    string
	WALCheckpoint   string
	BackupCron      string
	ProducerTimeout time.Duration
}

// LLMConfig holds both generation providers. Zhipu is the web-search primary,
// DeepSeek the secondary.
type LLMConfig struct {
	ZhipuAPIKey     string
	ZhipuBaseURL    string
	ZhipuModel      string
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string
	Timeout         time.Duration
}

// NewsConfig lists the feeds crawled by the news ingestion job
type NewsConfig struct {
	Feeds        []string // "source|url" pairs
	PerFeedLimit int
}

// BackupConfig configures the optional S3-compatible backup of the data directory
type BackupConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Retention int // Number of archives kept in the bucket
}

// Enabled reports whether enough settings are present to run backups
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("AURUM_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cacheDir := getEnv("CACHE_DIR", filepath.Join(absDataDir, "cache"))
	absCacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		CacheDir:        absCacheDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("GO_PORT", 8000),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		WorkerPoolSize:  getEnvAsInt("WORKER_POOL_SIZE", 3),
		WorkerQueueSize: getEnvAsInt("WORKER_QUEUE_SIZE", 32),
		RateLimit:       getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		YTDStartPrice:   getEnvAsFloat("YTD_START_PRICE", 2633),
		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", true),
			Timezone:        getEnv("SCHEDULER_TIMEZONE", "Asia/Shanghai"),
			PriceCron:       getEnv("UPDATE_PRICE_CRON", "30 6 * * *"),
			NewsCron:        getEnv("UPDATE_NEWS_CRON", "0 0,2,4,6,8,10,12,14,16,18,20,22 * * *"),
			AIAnalysisCron:  getEnv("UPDATE_AI_ANALYSIS_CRON", "0 0,2,4,6,8,10,12,14,16,18,20,22 * * *"),
			CacheCleanup:    getEnv("CACHE_CLEANUP_CRON", "@hourly"),
			WALCheckpoint:   getEnv("WAL_CHECKPOINT_CRON", "@daily"),
			BackupCron:      getEnv("BACKUP_CRON", "0 3 * * *"),
			ProducerTimeout: getEnvAsDuration("PRODUCER_TIMEOUT", 5*time.Minute),
		},
		LLM: LLMConfig{
			ZhipuAPIKey:     getEnv("ZHIPU_API_KEY", ""),
			ZhipuBaseURL:    getEnv("ZHIPU_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"),
			ZhipuModel:      getEnv("ZHIPU_MODEL", "glm-4-plus"),
			DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
			DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
			DeepSeekModel:   getEnv("MODEL_NAME", "deepseek-chat"),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
		},
		News: NewsConfig{
			Feeds: getEnvAsList("NEWS_FEEDS", []string{
				"新浪财经|http://finance.sina.com.cn/roll/finance_gold/index.d.html",
				"FX168|http://www.fx168.com/rss/gold.xml",
			}),
			PerFeedLimit: getEnvAsInt("NEWS_PER_FEED_LIMIT", 5),
		},
		Backup: BackupConfig{
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:    getEnv("BACKUP_S3_REGION", "auto"),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
			Retention: getEnvAsInt("BACKUP_RETENTION", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.WorkerQueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1, got %d", c.WorkerQueueSize)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.YTDStartPrice <= 0 {
		return fmt.Errorf("ytd start price must be positive, got %v", c.YTDStartPrice)
	}

	// Both LLM keys are optional: without them every artifact serves its static default.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
