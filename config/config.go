package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress   = ":8080"
	defaultLogLevel        = "info"
	defaultEventsDriver    = "none"
	defaultRabbitExchange  = "kopisort_notifications"
	defaultS3Region        = "us-east-1"
	defaultClassifierURL   = "http://localhost:5000"
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultTimeZone        = "Asia/Jakarta"
	defaultShutdownTimeout = 10 * time.Second
)

// Config is the service configuration. It is built once at start and passed explicitly.
type Config struct {
	ServerAddr      string        `yaml:"run_address"`
	DatabaseDSN     string        `yaml:"database_uri"`
	LogLevel        string        `yaml:"log_level"`
	JWTSecret       string        `yaml:"jwt_secret"`
	RedisAddr       string        `yaml:"redis_addr"`
	EventsDriver    string        `yaml:"events_driver"`
	RabbitMQURL     string        `yaml:"rabbitmq_url"`
	RabbitExchange  string        `yaml:"rabbitmq_exchange"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	S3Bucket        string        `yaml:"s3_bucket"`
	S3Region        string        `yaml:"s3_region"`
	S3Endpoint      string        `yaml:"s3_endpoint"`
	S3AccessKeyID   string        `yaml:"s3_access_key_id"`
	S3SecretKey     string        `yaml:"s3_secret_access_key"`
	ClassifierURL   string        `yaml:"classifier_url"`
	RetryAttempts   int           `yaml:"retry_max_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	TimeZone        string        `yaml:"timezone"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaults() Config {
	return Config{
		ServerAddr:      defaultServerAddress,
		LogLevel:        defaultLogLevel,
		EventsDriver:    defaultEventsDriver,
		RabbitExchange:  defaultRabbitExchange,
		S3Region:        defaultS3Region,
		ClassifierURL:   defaultClassifierURL,
		RetryAttempts:   defaultRetryAttempts,
		RetryBaseDelay:  defaultRetryBaseDelay,
		TimeZone:        defaultTimeZone,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// New builds Config from defaults, optional YAML file, command line and environment, in that order of precedence.
// Variables from .env in the working directory are loaded into the environment first.
func New(args []string) (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()

	cfg := defaults()

	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// flags default to file values so that only explicit flags override them
	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("kopisort", flag.ContinueOnError)

	fs.String("c", "", "path to YAML config file")
	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "server address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "token signing secret")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address, empty disables order cache")
	fs.StringVar(&cfg.EventsDriver, "events", cfg.EventsDriver, "events driver: none, rabbitmq or kafka")
	fs.StringVar(&cfg.ClassifierURL, "classifier", cfg.ClassifierURL, "bean classifier address")
	fs.IntVar(&cfg.RetryAttempts, "retry-attempts", cfg.RetryAttempts, "storage retry attempts")
	fs.DurationVar(&cfg.RetryBaseDelay, "retry-delay", cfg.RetryBaseDelay, "storage retry base delay")

	return fs
}

// configPath looks up -c without failing on other flags
func configPath(args []string) (string, error) {
	fs := newFlagSet(&Config{})
	fs.SetOutput(discard{})
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	return fs.Lookup("c").Value.String(), nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// if environment variable is set, then using it
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"RUN_ADDRESS":          &cfg.ServerAddr,
		"DATABASE_URI":         &cfg.DatabaseDSN,
		"LOG_LEVEL":            &cfg.LogLevel,
		"JWT_SECRET":           &cfg.JWTSecret,
		"REDIS_ADDR":           &cfg.RedisAddr,
		"EVENTS_DRIVER":        &cfg.EventsDriver,
		"RABBITMQ_URL":         &cfg.RabbitMQURL,
		"RABBITMQ_EXCHANGE":    &cfg.RabbitExchange,
		"KAFKA_TOPIC":          &cfg.KafkaTopic,
		"S3_BUCKET":            &cfg.S3Bucket,
		"S3_REGION":            &cfg.S3Region,
		"S3_ENDPOINT":          &cfg.S3Endpoint,
		"S3_ACCESS_KEY_ID":     &cfg.S3AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &cfg.S3SecretKey,
		"CLASSIFIER_URL":       &cfg.ClassifierURL,
		"TIMEZONE":             &cfg.TimeZone,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RETRY_MAX_ATTEMPTS: %w", err)
		}
		cfg.RetryAttempts = n
	}
	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}

	return nil
}

func (c *Config) validate() error {
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay must not be negative")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("unknown time zone %q: %w", c.TimeZone, err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
