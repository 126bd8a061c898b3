package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/NarrativeEngine/internal/logger"
)

// EnvPrefix prefixes every environment override (NARRATIVE_LISTEN_ADDR, ...).
const EnvPrefix = "NARRATIVE"

var validate = validator.New()

type EngineConfig struct {
	Version int `yaml:"version"`
	Engine  struct {
		ID   string `yaml:"id" default:"narrative-engine"`
		Name string `yaml:"name"`
	} `yaml:"engine"`
	Story   StoryConfig   `yaml:"story"`
	Server  ServerConfig  `yaml:"server"`
	Log     logger.Config `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type StoryConfig struct {
	Path    string `yaml:"path" validate:"required"`
	Entry   string `yaml:"entry"`
	Catalog string `yaml:"catalog"` // optional item catalog document
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" default:":8080" validate:"required"`
	// TLS is served when both are set.
	TLSCert      string `yaml:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey       string `yaml:"tls_key" validate:"required_with=TLSCert"`
	AlertWebhook string `yaml:"alert_webhook" validate:"omitempty,url"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver" default:"memory" validate:"oneof=memory sqlite postgres redis"`
	DSN       string `yaml:"dsn" validate:"required_unless=Driver memory"`
	KeyPrefix string `yaml:"key_prefix" default:"narrative:save:"`
	Journal   bool   `yaml:"journal"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker" validate:"required_if=Enabled true"`
	ClientID    string `yaml:"client_id" default:"narrative-engine"`
	TopicPrefix string `yaml:"topic_prefix" default:"narrative"`
}

// overrides are read from the environment and win over the file.
type overrides struct {
	StoryPath     string `envconfig:"STORY_PATH"`
	StoryEntry    string `envconfig:"STORY_ENTRY"`
	ListenAddr    string `envconfig:"LISTEN_ADDR"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	MQTTBroker    string `envconfig:"MQTT_BROKER"`
	TLSCert       string `envconfig:"TLS_CERT"`
	TLSKey        string `envconfig:"TLS_KEY"`
	AlertWebhook  string `envconfig:"ALERT_WEBHOOK_URL"`
}

// LoadEngineConfig reads path, fills defaults, applies NARRATIVE_* overrides
// and validates the result.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEngineConfig(b)
}

// ParseEngineConfig is LoadEngineConfig for in-memory YAML.
func ParseEngineConfig(b []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid engine.yaml: %w", err)
	}
	return &cfg, nil
}

func (c *EngineConfig) applyEnv() error {
	var env overrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Story.Path, env.StoryPath)
	set(&c.Story.Entry, env.StoryEntry)
	set(&c.Server.ListenAddr, env.ListenAddr)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Storage.Driver, env.StorageDriver)
	set(&c.Server.TLSCert, env.TLSCert)
	set(&c.Server.TLSKey, env.TLSKey)
	set(&c.Server.AlertWebhook, env.AlertWebhook)
	// NARRATIVE_STORAGE_DSN_FILE is honoured as well
	dsn, err := ResolveSecret(EnvPrefix + "_STORAGE_DSN")
	if err != nil {
		return err
	}
	set(&c.Storage.DSN, dsn)
	if env.MQTTBroker != "" {
		c.MQTT.Enabled = true
		c.MQTT.Broker = env.MQTTBroker
	}
	return nil
}
