package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location relative to the working
// directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	OracleBaseURL string `yaml:"oracleBaseURL"`
	OracleAPIKey  string `yaml:"oracleApiKey"`
	OracleModel   string `yaml:"oracleModel"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	EmailAddress string `yaml:"emailAddress"`
	EmailPass    string `yaml:"emailPassword"`

	ChatRateLimitPerMinute int `yaml:"chatRateLimitPerMinute"`
	HistoryLimit           int `yaml:"historyLimit"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.OracleBaseURL = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.OracleAPIKey = v
	}
	if v := os.Getenv("ORACLE_MODEL"); v != "" {
		cfg.OracleModel = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMTPPort = n
		}
	}
	if v := os.Getenv("EMAIL_ADDRESS"); v != "" {
		cfg.EmailAddress = v
	}
	if v := os.Getenv("EMAIL_PASSWORD"); v != "" {
		cfg.EmailPass = v
	}
	if v := os.Getenv("CHAT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChatRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("CHAT_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
	if cfg.ChatRateLimitPerMinute == 0 {
		cfg.ChatRateLimitPerMinute = 30
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 40
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.OracleBaseURL == "" {
		return errors.New("config: oracleBaseURL is required (set in config.yaml or ORACLE_BASE_URL)")
	}
	if cfg.OracleModel == "" {
		return errors.New("config: oracleModel is required (set in config.yaml or ORACLE_MODEL)")
	}
	if cfg.ChatRateLimitPerMinute < 0 {
		return errors.New("config: chatRateLimitPerMinute must be >= 0")
	}
	if cfg.HistoryLimit < 0 {
		return errors.New("config: historyLimit must be >= 0")
	}
	if (cfg.EmailAddress != "") != (cfg.EmailPass != "") {
		return errors.New("config: emailAddress and emailPassword must be set together")
	}
	return nil
}
