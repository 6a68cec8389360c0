package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	Lookup    LookupConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProvidersConfig holds settings for the upstream nutrition providers.
// API keys are optional: a provider without a key is skipped at lookup
// time rather than failing startup.
type ProvidersConfig struct {
	OpenFoodFacts ProviderConfig `mapstructure:"openfoodfacts"`
	USDA          ProviderConfig `mapstructure:"usda"`
	APINinjas     ProviderConfig `mapstructure:"apininjas"`
	CNF           ProviderConfig `mapstructure:"cnf"`
}

// ProviderConfig holds one provider's endpoint and credentials
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LookupConfig holds lookup orchestration configuration
type LookupConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	BatchMax      int           `mapstructure:"batch_max"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutricam/")

	// NUTRICAM_PROVIDERS_USDA_API_KEY etc.
	v.SetEnvPrefix("NUTRICAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("providers.openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("providers.usda.base_url", "https://api.nal.usda.gov/fdc")
	// Empty defaults register the keys so env-only values unmarshal.
	v.SetDefault("providers.usda.api_key", "")
	v.SetDefault("providers.apininjas.base_url", "https://api.api-ninjas.com")
	v.SetDefault("providers.apininjas.api_key", "")
	v.SetDefault("providers.cnf.base_url", "https://food-nutrition.canada.ca/api/canadian-nutrient-file")

	v.SetDefault("cache.ttl", "168h") // 7 days

	v.SetDefault("lookup.timeout", "10s")
	v.SetDefault("lookup.max_concurrent", 5)
	v.SetDefault("lookup.batch_max", 50)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Environment != "development" && config.Server.Environment != "production" {
		return fmt.Errorf("environment must be 'development' or 'production', got: %s", config.Server.Environment)
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", config.Cache.TTL)
	}

	if config.Lookup.Timeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive, got: %s", config.Lookup.Timeout)
	}

	if config.Lookup.MaxConcurrent <= 0 {
		return fmt.Errorf("lookup max_concurrent must be positive, got: %d", config.Lookup.MaxConcurrent)
	}

	if config.Lookup.BatchMax <= 0 {
		return fmt.Errorf("lookup batch_max must be positive, got: %d", config.Lookup.BatchMax)
	}

	return nil
}
