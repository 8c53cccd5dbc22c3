package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the single application configuration, constructed once at startup
// and passed explicitly to each component.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Deepgram   DeepgramConfig   `mapstructure:"deepgram"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// StorageConfig selects and configures the tabular store backend.
// Driver "csv" keeps records in a flat CSV file; "sqlite" and "postgres"
// use an embedded/remote database through GORM.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	CSVPath         string        `mapstructure:"csv_path"`
	DBPath          string        `mapstructure:"db_path"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type PathsConfig struct {
	IntakeDir    string `mapstructure:"intake_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	LogDir       string `mapstructure:"log_dir"`
}

type ProcessingConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxFileSizeMB  int           `mapstructure:"max_file_size_mb"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DeepgramConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type AWSConfig struct {
	SyncEnabled  bool          `mapstructure:"sync_enabled"`
	AccessKey    string        `mapstructure:"access_key"`
	SecretKey    string        `mapstructure:"secret_key"`
	Bucket       string        `mapstructure:"bucket"`
	Prefix       string        `mapstructure:"prefix"`
	Region       string        `mapstructure:"region"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from an optional YAML file, the environment, and
// a .env file if present. Secrets always come from the environment.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.csv_path", "./data/transcriptions.csv")
	v.SetDefault("storage.db_path", "./data/callscope.db")
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.conn_max_lifetime", time.Hour)
	v.SetDefault("paths.intake_dir", "./data/audio")
	v.SetDefault("paths.processed_dir", "./data/processed")
	v.SetDefault("paths.log_dir", "./logs")
	v.SetDefault("processing.workers", 3)
	v.SetDefault("processing.queue_size", 100)
	v.SetDefault("processing.max_retries", 3)
	v.SetDefault("processing.retry_delay", 5*time.Second)
	v.SetDefault("processing.max_file_size_mb", 100)
	v.SetDefault("processing.lookback_days", 7)
	v.SetDefault("processing.request_timeout", 60*time.Second)
	v.SetDefault("deepgram.base_url", "https://api.deepgram.com")
	v.SetDefault("deepgram.model", "nova")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("aws.sync_enabled", false)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.sync_interval", 5*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.model", "OPENAI_MODEL")
	v.BindEnv("aws.access_key", "AWS_ACCESS_KEY_ID")
	v.BindEnv("aws.secret_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("aws.bucket", "AWS_BUCKET_NAME")
	v.BindEnv("aws.prefix", "AWS_PREFIX")
	v.BindEnv("aws.region", "AWS_REGION")
	v.BindEnv("aws.sync_enabled", "ENABLE_S3_SYNC")
	v.BindEnv("paths.intake_dir", "AUDIO_FOLDER")
	v.BindEnv("paths.processed_dir", "PROCESSED_FOLDER")
	v.BindEnv("storage.csv_path", "CSV_FILE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required settings are present. All problems are
// reported in one pass so the operator can fix them together; any error
// must abort startup before a single job runs.
func (c *Config) Validate() error {
	var errs []string

	if c.Deepgram.APIKey == "" {
		errs = append(errs, "DEEPGRAM_API_KEY is required")
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required")
	}
	if c.AWS.SyncEnabled {
		if c.AWS.AccessKey == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when S3 sync is enabled")
		}
		if c.AWS.SecretKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when S3 sync is enabled")
		}
		if c.AWS.Bucket == "" {
			errs = append(errs, "AWS_BUCKET_NAME is required when S3 sync is enabled")
		}
	}
	if c.Processing.MaxRetries < 1 {
		errs = append(errs, "processing.max_retries must be at least 1")
	}
	if c.Processing.Workers < 1 {
		errs = append(errs, "processing.workers must be at least 1")
	}
	switch c.Storage.Driver {
	case "csv", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown storage.driver %q (want csv, sqlite, or postgres)", c.Storage.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// EnsureDirectories creates the intake, processed, and log directories.
// An inaccessible directory is a startup-fatal error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.IntakeDir, c.Paths.ProcessedDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SupportedAudioExtensions lists the accepted intake file extensions.
var SupportedAudioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}

// IsSupportedAudioFile reports whether the filename carries a supported
// audio extension.
func IsSupportedAudioFile(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range SupportedAudioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// MaxFileSizeBytes returns the configured file size limit in bytes.
func (c *ProcessingConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}
