package config

import (
	"errors"
	"fmt"
	"os"

	"pawbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Engine     EngineConfig     `yaml:"engine"`
	Exports    ExportConfig     `yaml:"exports"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// EngineConfig tunes slot generation and listing.
type EngineConfig struct {
	StepMinutes         int `yaml:"step_minutes"`
	MaxRangeDays        int `yaml:"max_range_days"`
	SlotCacheTTLSeconds int `yaml:"slot_cache_ttl_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig is the seed data loaded at startup: providers, their
// services and resources, and the availability rules.
type CatalogConfig struct {
	Providers []models.Provider         `yaml:"providers"`
	Services  []models.Service          `yaml:"services"`
	Resources []models.Resource         `yaml:"resources"`
	Rules     []models.AvailabilityRule `yaml:"rules"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment wins when both define a variable.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Engine.StepMinutes < 0 {
		return errors.New("engine step must not be negative")
	}
	return ValidateCatalog(&c.Catalog)
}

func ValidateCatalog(catalog *CatalogConfig) error {
	providerIDs := make(map[string]bool)
	for _, p := range catalog.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %q has no ID", p.Name)
		}
		if providerIDs[p.ID] {
			return fmt.Errorf("duplicate provider ID: %s", p.ID)
		}
		providerIDs[p.ID] = true
		if p.Timezone == "" {
			return fmt.Errorf("provider %s has no timezone", p.ID)
		}
	}

	serviceIDs := make(map[string]bool)
	for _, s := range catalog.Services {
		if s.ID == "" {
			return fmt.Errorf("service %q has no ID", s.Name)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("duplicate service ID: %s", s.ID)
		}
		serviceIDs[s.ID] = true
		if !providerIDs[s.ProviderID] {
			return fmt.Errorf("service %s references unknown provider %s", s.ID, s.ProviderID)
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service %s has non-positive duration", s.ID)
		}
	}

	resourceKeys := make(map[string]bool)
	for _, r := range catalog.Resources {
		if !providerIDs[r.ProviderID] {
			return fmt.Errorf("resource %s references unknown provider %s", r.Type, r.ProviderID)
		}
		key := r.ProviderID + "/" + r.Type
		if resourceKeys[key] {
			return fmt.Errorf("duplicate resource: %s", key)
		}
		resourceKeys[key] = true
		if r.Capacity < 1 {
			return fmt.Errorf("resource %s has capacity below 1", key)
		}
	}

	for _, s := range catalog.Services {
		if s.ResourceType != "" && !resourceKeys[s.ProviderID+"/"+s.ResourceType] {
			return fmt.Errorf("service %s requires undeclared resource %s", s.ID, s.ResourceType)
		}
	}

	for i, r := range catalog.Rules {
		if !providerIDs[r.ProviderID] {
			return fmt.Errorf("rule %d references unknown provider %s", i, r.ProviderID)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Engine.StepMinutes == 0 {
		c.Engine.StepMinutes = models.DefaultStepMinutes
	}
	if c.Engine.MaxRangeDays == 0 {
		c.Engine.MaxRangeDays = models.DefaultMaxRangeDays
	}
	if c.Engine.SlotCacheTTLSeconds == 0 {
		c.Engine.SlotCacheTTLSeconds = models.DefaultSlotCacheTTL
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
