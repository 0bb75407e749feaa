package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/iriscam/internal/lens"
)

// CameraConfig describes the camera driver.
// Type selects a concrete implementation ("nikon_d90_gpio" or "mock").
type CameraConfig struct {
	Type           string `yaml:"type" toml:"type"`                         // e.g., "nikon_d90_gpio"
	FocusPin       int    `yaml:"focus_pin" toml:"focus_pin"`               // GPIO pin for FOCUS line
	ShutterPin     int    `yaml:"shutter_pin" toml:"shutter_pin"`           // GPIO pin for SHUTTER line
	FocusDelayMs   int    `yaml:"focus_delay_ms" toml:"focus_delay_ms"`     // autofocus delay (ms)
	ShutterDelayMs int    `yaml:"shutter_delay_ms" toml:"shutter_delay_ms"` // shutter hold time (ms)
}

// DeviceConfig is one enumerated camera input reported by the driver.
type DeviceConfig struct {
	ID         string `yaml:"id" toml:"id"`
	Name       string `yaml:"name" toml:"name"`
	Position   string `yaml:"position" toml:"position"`       // front, back, unspecified
	DeviceType string `yaml:"device_type" toml:"device_type"` // e.g., "builtInWideAngleCamera"
}

// ClassificationConfig overrides the device-type → category table.
type ClassificationConfig struct {
	Categories map[string]string `yaml:"categories" toml:"categories"`
}

// TallyConfig drives an optional GPIO lamp that mirrors the lifecycle channel.
type TallyConfig struct {
	Pin int `yaml:"pin" toml:"pin"` // 0 = no tally lamp
}

// WebConfig configures the HTTP transport.
type WebConfig struct {
	Port           int      `yaml:"port" toml:"port"` // 0 = disabled
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port"`
	TLS         bool   `yaml:"tls" toml:"tls"`
	ClientID    string `yaml:"client_id" toml:"client_id"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	QoS         int    `yaml:"qos" toml:"qos"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel   int   `yaml:"debug_level" toml:"debug_level"`     // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO     bool  `yaml:"mock_gpio" toml:"mock_gpio"`         // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	IncludeFront *bool `yaml:"include_front" toml:"include_front"` // default for lens listing (true when unset)
}

// Config aggregates all application configuration.
type Config struct {
	Camera         CameraConfig         `yaml:"camera" toml:"camera"`
	Devices        []DeviceConfig       `yaml:"devices" toml:"devices"`
	Classification ClassificationConfig `yaml:"classification" toml:"classification"`
	Tally          TallyConfig          `yaml:"tally" toml:"tally"`
	Web            WebConfig            `yaml:"web" toml:"web"`
	MQTT           MQTTConfig           `yaml:"mqtt" toml:"mqtt"`
	Defaults       DefaultsConfig       `yaml:"defaults" toml:"defaults"`
}

// Load reads a YAML or TOML file (chosen by extension) and returns the
// validated configuration with defaults applied.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Camera.Type == "" {
		return fmt.Errorf("camera.type is required")
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	// Repeated ids are kept; lens listings report every configured entry.
	for i, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("devices[%d].id is required", i)
		}
		switch strings.ToLower(d.Position) {
		case "", "front", "back", "unspecified":
		default:
			return fmt.Errorf("devices[%d].position must be front, back or unspecified, got %q", i, d.Position)
		}
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 0-65535, got %d", c.Web.Port)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			return fmt.Errorf("mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	// Default values for camera delays
	if c.Camera.FocusDelayMs <= 0 {
		c.Camera.FocusDelayMs = 500 // 500ms for autofocus
	}
	if c.Camera.ShutterDelayMs <= 0 {
		c.Camera.ShutterDelayMs = 200 // 200ms shutter hold
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "iriscam"
	}
	c.MQTT.TopicPrefix = strings.TrimSuffix(c.MQTT.TopicPrefix, "/")
	if c.Defaults.IncludeFront == nil {
		include := true
		c.Defaults.IncludeFront = &include
	}
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// IncludeFront returns the default front-camera inclusion for lens listings.
func (c *Config) IncludeFront() bool {
	return c.Defaults.IncludeFront == nil || *c.Defaults.IncludeFront
}

// Descriptors converts the configured devices to lens descriptors, in order.
func (c *Config) Descriptors() []lens.Descriptor {
	out := make([]lens.Descriptor, 0, len(c.Devices))
	for _, d := range c.Devices {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		out = append(out, lens.Descriptor{
			ID:         d.ID,
			Name:       name,
			Position:   lens.ParsePosition(d.Position),
			DeviceType: lens.DeviceType(d.DeviceType),
		})
	}
	return out
}

// Classifier builds the lens classifier, layering the configured category
// table over the default one.
func (c *Config) Classifier() lens.Classifier {
	if len(c.Classification.Categories) == 0 {
		return lens.Classifier{}
	}
	return lens.Classifier{Category: lens.TableCategory(c.Classification.Categories, nil)}
}
