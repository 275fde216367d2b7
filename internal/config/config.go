package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "SmartATM"
	defaultAppEnv        = "development"
	defaultPort          = "5000"
	defaultLogLevel      = "info"
	defaultAPIBaseURL    = "http://127.0.0.1:5000"
	defaultDataFile      = "users.json"
	defaultHTTPTimeout   = 15 * time.Second
	defaultStatusTTL     = 4500 * time.Millisecond
	defaultShutdownDelay = 10 * time.Second
	defaultOTPTTL        = 5 * time.Minute

	httpTimeoutSecondsEnvVar = "HTTP_TIMEOUT_SECONDS"
	httpTimeoutDurEnvVar     = "HTTP_TIMEOUT"
	statusTTLEnvVar          = "STATUS_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
	otpTTLEnvVar             = "OTP_TTL"
)

// Config captures runtime configuration for both the terminal client and the
// stub account service, loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	APIBaseURL     string
	RedisURL       string
	DataFile       string
	HTTPTimeout    time.Duration
	StatusTTL      time.Duration
	OTPTTL         time.Duration
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. RedisURL is optional: when empty the stub service keeps OTP state
// in memory.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", defaultAPIBaseURL), "/"),
		RedisURL:       os.Getenv("REDIS_URL"),
		DataFile:       getEnv("DATA_FILE", defaultDataFile),
		HTTPTimeout:    defaultHTTPTimeout,
		StatusTTL:      defaultStatusTTL,
		OTPTTL:         defaultOTPTTL,
		ShutdownPeriod: defaultShutdownDelay,
	}

	if v := os.Getenv(httpTimeoutSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", httpTimeoutSecondsEnvVar, err)
		}
		cfg.HTTPTimeout = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(httpTimeoutDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", httpTimeoutDurEnvVar, err)
		}
		cfg.HTTPTimeout = d
	}

	if v := os.Getenv(statusTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", statusTTLEnvVar, err)
		}
		cfg.StatusTTL = d
	}

	if v := os.Getenv(otpTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", otpTTLEnvVar, err)
		}
		cfg.OTPTTL = d
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("API_BASE_URL must not be empty")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
