package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/FairForge/containerdispatch/internal/crypto"
	"github.com/FairForge/containerdispatch/internal/dispatch"
	"github.com/FairForge/containerdispatch/internal/logging"
	"github.com/FairForge/containerdispatch/internal/transport"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Keys       KeysConfig       `yaml:"keys"`
	Transports TransportsConfig `yaml:"transports"`
	Server     ServerConfig     `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DispatchConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"` // sends per second, 0 = unlimited
	Burst      int           `yaml:"burst"`
	Transport  string        `yaml:"transport"`
	Format     string        `yaml:"format"`
	Encryption string        `yaml:"encryption"`
}

// KeysConfig holds one key file path per algorithm
type KeysConfig struct {
	AES256GCM        string `yaml:"aes256gcm"`
	ChaCha20Poly1305 string `yaml:"chacha20poly1305"`
}

type TransportsConfig struct {
	REST  transport.RESTTarget  `yaml:"rest"`
	MQTT  transport.MQTTTarget  `yaml:"mqtt"`
	Queue transport.QueueTarget `yaml:"mqueue"`
	DBus  transport.DBusTarget  `yaml:"dbus"`
}

type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	ReceiverAddr string `yaml:"receiver_addr"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// DefaultPath is $XDG_CONFIG_HOME/containerctl/config.yaml
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "containerctl", "config.yaml")
}

// Load reads path and fills in defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Dispatch.Timeout <= 0 {
		c.Dispatch.Timeout = dispatch.DefaultTimeout
	}
	if c.Dispatch.Burst <= 0 {
		c.Dispatch.Burst = 1
	}
	if c.Dispatch.Transport == "" {
		c.Dispatch.Transport = string(transport.KindREST)
	}
	if c.Dispatch.Format == "" {
		c.Dispatch.Format = "json"
	}
	if c.Dispatch.Encryption == "" {
		c.Dispatch.Encryption = string(crypto.AlgorithmNone)
	}

	rest := &c.Transports.REST
	if rest.Host == "" {
		rest.Host = "localhost"
	}
	if rest.Port == 0 {
		rest.Port = transport.DefaultRESTPort
	}
	if rest.Path == "" {
		rest.Path = transport.DefaultRESTPath
	}

	mqtt := &c.Transports.MQTT
	if mqtt.Broker == "" {
		mqtt.Broker = "localhost"
	}
	if mqtt.Port == 0 {
		mqtt.Port = transport.DefaultMQTTPort
	}
	if mqtt.Topic == "" {
		mqtt.Topic = transport.DefaultMQTTTopic
	}

	queue := &c.Transports.Queue
	if queue.Name == "" {
		queue.Name = transport.DefaultQueueName
	}
	if queue.MaxMessages == 0 {
		queue.MaxMessages = transport.DefaultQueueMaxMessages
	}
	if queue.MessageSize == 0 {
		queue.MessageSize = transport.DefaultQueueMessageSize
	}

	bus := &c.Transports.DBus
	if bus.BusName == "" {
		bus.BusName = "org.container.Manager"
	}
	if bus.ObjectPath == "" {
		bus.ObjectPath = "/org/container/Manager"
	}
	if bus.Interface == "" {
		bus.Interface = "org.container.Manager"
	}
	if bus.Method == "" {
		bus.Method = transport.DefaultDBusMethod
	}
	if bus.Encoding == "" {
		bus.Encoding = transport.DBusBase64Always
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.ReceiverAddr == "" {
		c.Server.ReceiverAddr = ":5000"
	}
}

// Validate checks every section, including all transport targets
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Log.Level) {
		return common.ErrInvalid("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return common.ErrInvalid("log.format", "must be json or console, got %q", c.Log.Format)
	}
	if c.Dispatch.Timeout <= 0 {
		return common.ErrInvalid("dispatch.timeout", "must be positive")
	}
	if c.Dispatch.RateLimit < 0 {
		return common.ErrInvalid("dispatch.rate_limit", "must not be negative")
	}
	if _, err := transport.ParseKind(c.Dispatch.Transport); err != nil {
		return err
	}
	if _, err := c.Framing(); err != nil {
		return err
	}
	for _, kind := range transport.Kinds {
		target, err := c.Target(kind)
		if err != nil {
			return err
		}
		if err := target.Validate(); err != nil {
			return fmt.Errorf("transports.%s: %w", kind, err)
		}
	}
	return nil
}

// Target returns the configured target for kind
func (c *Config) Target(kind transport.Kind) (transport.Target, error) {
	switch kind {
	case transport.KindREST:
		return c.Transports.REST, nil
	case transport.KindMQTT:
		return c.Transports.MQTT, nil
	case transport.KindQueue:
		return c.Transports.Queue, nil
	case transport.KindDBus:
		return c.Transports.DBus, nil
	default:
		return nil, common.ErrInvalid("transport", "unsupported transport %q", kind)
	}
}

// DefaultTarget is the target of dispatch.transport
func (c *Config) DefaultTarget() (transport.Target, error) {
	kind, err := transport.ParseKind(c.Dispatch.Transport)
	if err != nil {
		return nil, err
	}
	return c.Target(kind)
}

func (c *Config) Framing() (dispatch.Framing, error) {
	return dispatch.ParseFraming(c.Dispatch.Format, c.Dispatch.Encryption)
}

// KeyPaths maps each algorithm to its configured key file
func (c *Config) KeyPaths() map[crypto.Algorithm]string {
	paths := make(map[crypto.Algorithm]string, 2)
	if c.Keys.AES256GCM != "" {
		paths[crypto.AlgorithmAES256GCM] = c.Keys.AES256GCM
	}
	if c.Keys.ChaCha20Poly1305 != "" {
		paths[crypto.AlgorithmChaCha20Poly1305] = c.Keys.ChaCha20Poly1305
	}
	return paths
}

func (c *Config) DispatchOptions(metrics *dispatch.Metrics) dispatch.Options {
	return dispatch.Options{
		Timeout:   c.Dispatch.Timeout,
		RateLimit: c.Dispatch.RateLimit,
		Burst:     c.Dispatch.Burst,
		Metrics:   metrics,
	}
}
