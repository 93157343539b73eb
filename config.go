package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// config is fixed at startup. Sources apply in order: defaults, YAML
	// file, environment (after loading the dotenv file), explicit flags.
	config struct {
		Addr           string        `yaml:"addr" env:"RELAY_ADDR"`
		Namespaces     []string      `yaml:"namespaces" env:"RELAY_NAMESPACES"` // env: semicolon separated
		Origin         string        `yaml:"origin" env:"RELAY_ORIGIN"`
		PingPeriod     time.Duration `yaml:"ping_period" env:"RELAY_PING_PERIOD"`
		WriteWait      time.Duration `yaml:"write_wait" env:"RELAY_WRITE_WAIT"`
		MaxMessageSize int64         `yaml:"max_message_size" env:"RELAY_MAX_MESSAGE_SIZE"`
		StopTimeout    time.Duration `yaml:"stop_timeout" env:"RELAY_STOP_TIMEOUT"`
		KillTimeout    time.Duration `yaml:"kill_timeout" env:"RELAY_KILL_TIMEOUT"`
		MetricsTick    time.Duration `yaml:"metrics_tick" env:"RELAY_METRICS_TICK"`
		Logger         loggerConfig  `yaml:"logger"`
	}

	loggerConfig struct {
		Level      string `yaml:"level" env:"RELAY_LOG_LEVEL"`       // debug, info, warn, error
		Format     string `yaml:"format" env:"RELAY_LOG_FORMAT"`     // json, console
		Output     string `yaml:"output" env:"RELAY_LOG_OUTPUT"`     // stdout, file
		FilePath   string `yaml:"file_path" env:"RELAY_LOG_FILE"`    // used when output is file
		MaxSize    int    `yaml:"max_size" env:"RELAY_LOG_MAX_SIZE"` // MB
		MaxBackups int    `yaml:"max_backups" env:"RELAY_LOG_MAX_BACKUPS"`
		MaxAge     int    `yaml:"max_age" env:"RELAY_LOG_MAX_AGE"` // days
		Compress   bool   `yaml:"compress" env:"RELAY_LOG_COMPRESS"`
	}
)

func defaultConfig() *config {
	return &config{
		Addr:           "127.0.0.1:3001",
		PingPeriod:     pingPeriod,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
		StopTimeout:    10 * time.Second,
		KillTimeout:    1 * time.Second,
		MetricsTick:    60 * time.Second,
		Logger: loggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	flags := flag.NewFlagSet("overlayrelay", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded into the environment when present")
	addr := flags.String("addr", cfg.Addr, "http service address")
	namespaces := flags.String("namespaces", "", "comma separated namespace allow-list")
	origin := flags.String("origin", "", "websocket server checks Origin headers against this scheme://host[:port]")
	ping := flags.Duration("ping-period", cfg.PingPeriod, "liveness sweep period")
	stopTimeout := flags.Duration("stop-timeout", cfg.StopTimeout, "stop timeout")
	killTimeout := flags.Duration("kill-timeout", cfg.KillTimeout, "kill timeout")
	metricsTick := flags.Duration("metrics.tick", cfg.MetricsTick, "metrics: duration between reports")
	logLevel := flags.String("log-level", cfg.Logger.Level, "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "namespaces":
			cfg.Namespaces = strings.Split(*namespaces, ",")
		case "origin":
			cfg.Origin = *origin
		case "ping-period":
			cfg.PingPeriod = *ping
		case "stop-timeout":
			cfg.StopTimeout = *stopTimeout
		case "kill-timeout":
			cfg.KillTimeout = *killTimeout
		case "metrics.tick":
			cfg.MetricsTick = *metricsTick
		case "log-level":
			cfg.Logger.Level = *logLevel
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// validate normalizes the namespace list and rejects unusable settings.
func (c *config) validate() error {
	seen := make(map[string]bool, len(c.Namespaces))
	namespaces := c.Namespaces[:0]
	for _, name := range c.Namespaces {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if strings.Contains(name, "/") {
			return fmt.Errorf("namespace %q must not contain '/'", name)
		}
		seen[name] = true
		namespaces = append(namespaces, name)
	}
	c.Namespaces = namespaces
	if len(c.Namespaces) == 0 {
		return errors.New("at least one namespace is required")
	}
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping period must be positive, got %s", c.PingPeriod)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("write wait must be positive, got %s", c.WriteWait)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.MetricsTick <= 0 {
		return fmt.Errorf("metrics tick must be positive, got %s", c.MetricsTick)
	}
	return nil
}
