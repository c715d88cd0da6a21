package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr string `toml:"http_addr"`

	DBDriver   string `toml:"db_driver"`
	DBHost     string `toml:"db_host"`
	DBPort     int    `toml:"db_port"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBName     string `toml:"db_name"`
	DBSSLMode  string `toml:"db_sslmode"`
	SQLitePath string `toml:"sqlite_path"`

	JWTSecret string `toml:"jwt_secret"`

	OpenAIKey                string `toml:"openai_api_key"`
	OpenAIModel              string `toml:"openai_model"`
	OpenAIBaseURL            string `toml:"openai_base_url"`
	OpenAITranscriptionModel string `toml:"openai_transcription_model"`
	TranscriptionLanguage    string `toml:"transcription_language"`
	AIMaxRetries             int    `toml:"ai_max_retries"`
	AITimeoutSeconds         int    `toml:"ai_timeout_seconds"`

	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`

	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",

		DBDriver:   "postgres",
		DBHost:     "localhost",
		DBPort:     5432,
		DBSSLMode:  "disable",
		SQLitePath: "data/todos.db",

		OpenAIModel:              "gpt-4o-mini",
		OpenAIBaseURL:            "https://api.openai.com/v1",
		OpenAITranscriptionModel: "whisper-1",
		TranscriptionLanguage:    "en",
		AIMaxRetries:             2,
		AITimeoutSeconds:         60,

		CORSAllowedOrigins: []string{"*"},

		LogMaxSizeMB:  50,
		LogMaxBackups: 5,
		LogMaxAgeDays: 28,
	}
}

// Load applies defaults, then the TOML file at path (if any), then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"HTTP_ADDR":                  &c.HTTPAddr,
		"DB_DRIVER":                  &c.DBDriver,
		"DB_HOST":                    &c.DBHost,
		"DB_USER":                    &c.DBUser,
		"DB_PASSWORD":                &c.DBPassword,
		"DB_NAME":                    &c.DBName,
		"DB_SSLMODE":                 &c.DBSSLMode,
		"SQLITE_PATH":                &c.SQLitePath,
		"JWT_SECRET":                 &c.JWTSecret,
		"OPENAI_API_KEY":             &c.OpenAIKey,
		"OPENAI_MODEL":               &c.OpenAIModel,
		"OPENAI_BASE_URL":            &c.OpenAIBaseURL,
		"OPENAI_TRANSCRIPTION_MODEL": &c.OpenAITranscriptionModel,
		"TRANSCRIPTION_LANGUAGE":     &c.TranscriptionLanguage,
		"LOG_FILE":                   &c.LogFile,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DB_PORT":            &c.DBPort,
		"AI_MAX_RETRIES":     &c.AIMaxRetries,
		"AI_TIMEOUT_SECONDS": &c.AITimeoutSeconds,
		"LOG_MAX_SIZE_MB":    &c.LogMaxSizeMB,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", name, v)
		}
		*dst = n
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSAllowedOrigins = origins
	}
	return nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DBDriver) {
	case "postgres", "postgresql", "pg", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("unknown db_driver %q", c.DBDriver))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.AIMaxRetries < 0 {
		errs = append(errs, errors.New("ai_max_retries must not be negative"))
	}
	if c.AITimeoutSeconds <= 0 {
		errs = append(errs, errors.New("ai_timeout_seconds must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsSQLite() bool {
	d := strings.ToLower(c.DBDriver)
	return d == "sqlite" || d == "sqlite3"
}

// ConnString returns the DSN for the configured driver.
func (c *Config) ConnString() string {
	if c.IsSQLite() {
		return c.SQLitePath
	}
	sslmode := c.DBSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslmode,
	)
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}
