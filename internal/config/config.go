package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	Environment       string `mapstructure:"ENVIRONMENT"`
	HTTPServerAddress string `mapstructure:"HTTP_SERVER_ADDRESS"`

	// Web UI login
	LoginUser     string `mapstructure:"LOGIN_USER"`
	LoginPass     string `mapstructure:"LOGIN_PASS"`
	SessionSecret string `mapstructure:"SESSION_SECRET"`

	UploadDir string `mapstructure:"UPLOAD_DIR"`
	OutputDir string `mapstructure:"OUTPUT_DIR"`

	// Geocoding proxy
	GeocodeEndpoint  string        `mapstructure:"GEOCODE_ENDPOINT"`
	GeocodeTimeout   time.Duration `mapstructure:"GEOCODE_TIMEOUT"`
	GeocodeRateLimit float64       `mapstructure:"GEOCODE_RATE_LIMIT"` // requests per second, 0 = unlimited

	// Optional shared geocode cache
	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Drop points outside [-90,90] x [-180,180]
	StrictCoordinates bool `mapstructure:"STRICT_COORDINATES"`
}

var defaults = map[string]interface{}{
	"ENVIRONMENT":         "production",
	"HTTP_SERVER_ADDRESS": ":9595",
	"LOGIN_USER":          "user",
	"LOGIN_PASS":          "",
	"SESSION_SECRET":      "",
	"UPLOAD_DIR":          "uploads",
	"OUTPUT_DIR":          "output",
	"GEOCODE_ENDPOINT":    "",
	"GEOCODE_TIMEOUT":     "10s",
	"GEOCODE_RATE_LIMIT":  5.0,
	"REDIS_ADDRESS":       "",
	"REDIS_PASSWORD":      "",
	"STRICT_COORDINATES":  false,
}

// LoadConfig reads configuration from app.env in path, then environment
// variables. A missing app.env is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	config.RedisPassword = trimOptionalQuotes(config.RedisPassword)
	config.LoginPass = trimOptionalQuotes(config.LoginPass)
	return
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func trimOptionalQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}
