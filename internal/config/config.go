// Package config provides Viper-based configuration loading for the coordination server.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the endpoint settings of the coordination server.
type ServerConfig struct {
	// Host is the bind address for both endpoints.
	Host string `mapstructure:"host" yaml:"host"`
	// ReplyPort is the TCP port of the request/reply endpoint.
	ReplyPort int `mapstructure:"reply_port" yaml:"reply_port"`
	// PublishPort is the TCP port of the broadcast endpoint.
	PublishPort int `mapstructure:"publish_port" yaml:"publish_port"`
	// IdleInterval is how often the server wakes to check for a stop request.
	IdleInterval time.Duration `mapstructure:"idle_interval" yaml:"idle_interval"`
}

// ReplyEndpoint returns the "tcp://host:port" address of the request/reply endpoint.
//
// Postcondition: Returns a non-empty ZeroMQ TCP endpoint string.
func (s ServerConfig) ReplyEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", s.Host, s.ReplyPort)
}

// PublishEndpoint returns the "tcp://host:port" address of the broadcast endpoint.
//
// Postcondition: Returns a non-empty ZeroMQ TCP endpoint string.
func (s ServerConfig) PublishEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", s.Host, s.PublishPort)
}

// GameConfig holds the rules of a room.
type GameConfig struct {
	// MaxPlayers is the room capacity.
	MaxPlayers int `mapstructure:"max_players" yaml:"max_players"`
	// Word is the placeholder secret word used for every round.
	Word string `mapstructure:"word" yaml:"word"`
	// Workers is the handler pool size; zero derives it from MaxPlayers.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// PoolSize returns the number of concurrent handler tasks.
//
// Postcondition: Returns Workers when positive, otherwise 2 + 2*MaxPlayers.
func (g GameConfig) PoolSize() int {
	if g.Workers > 0 {
		return g.Workers
	}
	return 2 + 2*g.MaxPlayers
}

// GatewayConfig holds the optional gRPC gateway settings.
type GatewayConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level" yaml:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Game    GameConfig    `mapstructure:"game" yaml:"game"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGateway(c.Gateway); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Gateway.Enabled && c.Gateway.Port != 0 &&
		(c.Gateway.Port == c.Server.ReplyPort || c.Gateway.Port == c.Server.PublishPort) {
		errs = append(errs, "gateway.port must differ from the server ports")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if !validPort(s.ReplyPort) {
		errs = append(errs, fmt.Sprintf("server.reply_port must be 1-65535, got %d", s.ReplyPort))
	}
	if !validPort(s.PublishPort) {
		errs = append(errs, fmt.Sprintf("server.publish_port must be 1-65535, got %d", s.PublishPort))
	}
	if s.ReplyPort == s.PublishPort {
		errs = append(errs, "server.reply_port and server.publish_port must differ")
	}
	if s.IdleInterval <= 0 {
		errs = append(errs, fmt.Sprintf("server.idle_interval must be > 0, got %s", s.IdleInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 1, got %d", g.MaxPlayers))
	}
	if g.Word == "" {
		errs = append(errs, "game.word must not be empty")
	}
	if strings.ContainsAny(g.Word, "@%|") {
		errs = append(errs, fmt.Sprintf("game.word must not contain a frame delimiter, got %q", g.Word))
	}
	if g.Workers < 0 {
		errs = append(errs, fmt.Sprintf("game.workers must be >= 0, got %d", g.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGateway(g GatewayConfig) error {
	if !g.Enabled {
		return nil
	}
	var errs []string
	if g.Host == "" {
		errs = append(errs, "gateway.host must not be empty")
	}
	if !validPort(g.Port) {
		errs = append(errs, fmt.Sprintf("gateway.port must be 1-65535, got %d", g.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("viper instance must not be nil")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Dump writes cfg to w as YAML.
//
// Postcondition: The output can be read back by Load.
func Dump(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

func newViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with DRAW_ prefix
	v.SetEnvPrefix("DRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.reply_port", 5555)
	v.SetDefault("server.publish_port", 5556)
	v.SetDefault("server.idle_interval", "1s")

	v.SetDefault("game.max_players", 5)
	v.SetDefault("game.word", "FindMeUnays")
	v.SetDefault("game.workers", 0)

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 50051)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
