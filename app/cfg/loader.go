package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/lettermill.db" description:"Path to the sqlite database file"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Ingestion configuration
	IngestInterval     int    `long:"ingest-interval" env:"INGEST_INTERVAL" default:"900" description:"Interval between mailbox ingest runs in seconds (0 disables scheduled runs)"`
	IngestMaxPerSource int    `long:"ingest-max-per-source" env:"INGEST_MAX_PER_SOURCE" default:"25" description:"Maximum messages fetched per monitored source per run"`
	MailCLIBin         string `long:"mail-cli" env:"MAIL_CLI" default:"gmail-cli" description:"Path to the Gmail search CLI binary"`

	// LLM configuration
	LLMEndpoint string `long:"llm-endpoint" env:"LLM_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"OpenAI-compatible chat completions endpoint"`
	LLMModel    string `long:"llm-model" env:"LLM_MODEL" default:"gpt-4o-mini" description:"Model used for extraction and draft generation"`
	LLMAPIKey   string `long:"llm-api-key" env:"LLM_API_KEY" description:"API key for the LLM endpoint"`

	// Notifications
	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token for run notifications (optional)"`
	TelegramChatID int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat ID for run notifications"`

	// Webhook rate limiting
	RateLimitRPS   float64 `long:"rate-limit-rps" env:"RATE_LIMIT_RPS" default:"1" description:"Webhook requests per second allowed per caller"`
	RateLimitBurst int     `long:"rate-limit-burst" env:"RATE_LIMIT_BURST" default:"5" description:"Webhook burst size allowed per caller"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Lettermill/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		APIAccessKey:       raw.APIAccessKey,
		IngestInterval:     raw.IngestInterval,
		IngestMaxPerSource: raw.IngestMaxPerSource,
		MailCLIBin:         raw.MailCLIBin,
		LLMEndpoint:        raw.LLMEndpoint,
		LLMModel:           raw.LLMModel,
		LLMAPIKey:          raw.LLMAPIKey,
		TelegramToken:      raw.TelegramToken,
		TelegramChatID:     raw.TelegramChatID,
		RateLimitRPS:       raw.RateLimitRPS,
		RateLimitBurst:     raw.RateLimitBurst,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
