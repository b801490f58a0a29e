package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Agent      AgentConfig      `json:"agent"`
	Population PopulationConfig `json:"population"`
	Providers  []ProviderConfig `json:"providers"`
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
	Embedding  EmbeddingConfig  `json:"embedding"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type AgentConfig struct {
	SnapshotPath       string `json:"snapshot_path"`
	StatsPath          string `json:"stats_path"`
	StrategiesPath     string `json:"strategies_path"`
	ReflectionInterval string `json:"reflection_interval"`
}

// ReflectionEvery parses the reflection interval, defaulting to 20 seconds.
func (a AgentConfig) ReflectionEvery() time.Duration {
	d, err := time.ParseDuration(a.ReflectionInterval)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

type PopulationConfig struct {
	MaxSize            int `json:"max_size"`
	EvolveEveryTicks   int `json:"evolve_every_ticks"`
	StrategyEveryTicks int `json:"strategy_every_ticks"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
	Persona PersonaConfig        `json:"persona"`
}

// PersonaConfig sets how the agent appears on chat platforms. An empty name
// disables persona decoration.
type PersonaConfig struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Emoji   string `json:"emoji"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string  `json:"uri"`
	User     string  `json:"user"`
	Password string  `json:"password"`
	Decay    float64 `json:"decay"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
