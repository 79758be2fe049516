// Package config reads the lorahal command's settings from a JSON5 file.
package config

import (
	"os"

	"github.com/NV4RE/lorahal"
	"github.com/NV4RE/lorahal/internal/beacon"
	"github.com/flynn/json5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Board lorahal.BoardConfig `json:"board"`

	// Credentials are MSB first hex strings.
	AppKey  string `json:"appKey"`
	DevEUI  string `json:"devEUI"`
	JoinEUI string `json:"joinEUI"`

	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"` // "text" or "json"

	Port    uint8  `json:"port"`
	Payload string `json:"payload"`

	// Beacon starts from beacon.DefaultConfig; fields present in the file
	// override it.
	Beacon beacon.Config `json:"beacon"`
	Redis  Redis         `json:"redis"`
}

// Redis enables the redis store when Address is set. Otherwise state only
// lives for the process lifetime.
type Redis struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

const (
	DefaultSPIDevice = "/dev/spidev0.0"
	DefaultSPIHz     = 8000000
	DefaultPort      = 1
	DefaultPayload   = "hello world"
	DefaultPrefix    = "lorahal:"
)

// Load decodes path and fills in defaults for anything left out.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{Beacon: beacon.DefaultConfig()}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.applyDefaults()
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, errors.Wrap(err, "logLevel")
	}
	if _, err := cfg.Credentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	b := &c.Board
	if b.SPIDevice == "" {
		b.SPIDevice = DefaultSPIDevice
	}
	if b.SPIHz == 0 {
		b.SPIHz = DefaultSPIHz
	}
	if b.Reset == "" {
		b.Reset = "GPIO6"
	}
	if b.NSS == "" {
		b.NSS = "GPIO7"
	}
	if b.DIO0 == "" {
		b.DIO0 = "GPIO8"
	}
	if b.DIO1 == "" {
		b.DIO1 = "GPIO9"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Payload == "" {
		c.Payload = DefaultPayload
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultPrefix
	}
}

func (c *Config) Credentials() (lorahal.Credentials, error) {
	cred, err := lorahal.ParseCredentials(c.AppKey, c.DevEUI, c.JoinEUI)
	return cred, errors.Wrap(err, "credentials")
}

// Logger builds the process logger from the log settings.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if c.LogFormat == "json" {
		log.Formatter = new(logrus.JSONFormatter)
	} else {
		log.Formatter = new(logrus.TextFormatter)
	}
	log.Out = os.Stdout
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.Level = lvl
	}
	return log
}
