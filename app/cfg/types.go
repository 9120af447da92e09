package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Ingestion configuration
	IngestInterval     int
	IngestMaxPerSource int
	MailCLIBin         string

	// LLM configuration
	LLMEndpoint string
	LLMModel    string
	LLMAPIKey   string

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// Webhook rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
