package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds relay server configuration values.
type Config struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            string        `mapstructure:"port" yaml:"port"`
	MaxClients      int           `mapstructure:"max_clients" yaml:"max_clients"`
	MaxNicknameLen  int           `mapstructure:"max_nickname_len" yaml:"max_nickname_len"`
	MaxLineBytes    int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	OnlinePageSize  int           `mapstructure:"online_page_size" yaml:"online_page_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	HelpFile        string        `mapstructure:"help_file" yaml:"help_file"`
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	AuditDBPath     string        `mapstructure:"audit_db_path" yaml:"audit_db_path"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:            "5000",
		MaxClients:      7,
		MaxNicknameLen:  19,
		MaxLineBytes:    500,
		OnlinePageSize:  20,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != "" {
		c.Port = other.Port
	}
	if other.MaxClients != 0 {
		c.MaxClients = other.MaxClients
	}
	if other.MaxNicknameLen != 0 {
		c.MaxNicknameLen = other.MaxNicknameLen
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.OnlinePageSize != 0 {
		c.OnlinePageSize = other.OnlinePageSize
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.HelpFile != "" {
		c.HelpFile = other.HelpFile
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.AuditDBPath != "" {
		c.AuditDBPath = other.AuditDBPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// ListenAddr is the TCP address the relay binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate reports the first setting that cannot run a server.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.MaxClients <= 0 {
		return errors.New("max_clients must be positive")
	}
	if c.MaxNicknameLen <= 0 {
		return errors.New("max_nickname_len must be positive")
	}
	if c.MaxLineBytes < 16 {
		return errors.New("max_line_bytes must be at least 16")
	}
	if c.OnlinePageSize <= 0 {
		return errors.New("online_page_size must be positive")
	}
	return nil
}
