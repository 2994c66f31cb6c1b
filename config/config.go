package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRICING_SYNC"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Log     LogConfig     `mapstructure:"log"`
	Hub     HubConfig     `mapstructure:"hub"`
	Export  ExportConfig  `mapstructure:"export"`
	Tracing TracingConfig `mapstructure:"tracing"`

	v *viper.Viper
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address of the relay endpoint.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type GRPCConfig struct {
	// Address of the gRPC health endpoint; empty disables it.
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type HubConfig struct {
	SendBuffer      int           `mapstructure:"send_buffer"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SnapshotCache   int           `mapstructure:"snapshot_cache"`
}

type ExportConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	Buffer   int    `mapstructure:"buffer"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	// Exporter is one of none, stdout, otlp.
	Exporter string `mapstructure:"exporter"`
	// Endpoint is the OTLP/gRPC collector address (host:port), used with exporter otlp.
	Endpoint string `mapstructure:"endpoint"`
}

const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3001)
	v.SetDefault("grpc.address", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("hub.send_buffer", 256)
	v.SetDefault("hub.write_timeout", 5*time.Second)
	v.SetDefault("hub.ping_interval", 30*time.Second)
	v.SetDefault("hub.pong_timeout", 60*time.Second)
	v.SetDefault("hub.max_message_bytes", 1<<20)
	v.SetDefault("hub.allowed_origins", []string{})
	v.SetDefault("hub.snapshot_cache", 8)
	v.SetDefault("export.amqp_url", "")
	v.SetDefault("export.exchange", "pricing_sync.events")
	v.SetDefault("export.buffer", 1024)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.exporter", TraceExporterNone)
	v.SetDefault("tracing.endpoint", "")
}

// Flags returns the command-line overrides understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.Int("server.port", 3001, "relay listen port")
	fs.String("log.level", "info", "log level (debug|info|warn|error)")
	return fs
}

// LoadConfig resolves configuration from defaults, .env, an optional file,
// PRICING_SYNC_* environment variables and explicitly set flags, in
// increasing precedence.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.v = v
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Hub.SendBuffer <= 0 {
		errs = append(errs, errors.New("hub.send_buffer must be positive"))
	}
	if c.Hub.WriteTimeout <= 0 || c.Hub.PingInterval <= 0 || c.Hub.PongTimeout <= 0 {
		errs = append(errs, errors.New("hub timeouts must be positive"))
	}
	if c.Hub.PongTimeout <= c.Hub.PingInterval {
		errs = append(errs, errors.New("hub.pong_timeout must exceed hub.ping_interval"))
	}
	if c.Hub.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("hub.max_message_bytes must be positive"))
	}
	if c.Hub.SnapshotCache <= 0 {
		errs = append(errs, errors.New("hub.snapshot_cache must be positive"))
	}
	if c.Export.AMQPURL != "" && c.Export.Exchange == "" {
		errs = append(errs, errors.New("export.exchange is required with export.amqp_url"))
	}
	if c.Export.Buffer <= 0 {
		errs = append(errs, errors.New("export.buffer must be positive"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be within [0,1]"))
	}
	switch c.Tracing.Exporter {
	case TraceExporterNone, TraceExporterStdout:
	case TraceExporterOTLP:
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint is required with tracing.exporter otlp"))
		}
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %q", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a config string onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// OnLogLevelChange watches the config file and reports a new level whenever
// it changes. Only the level is hot-reloaded; everything else needs a restart.
func (c *Config) OnLogLevelChange(fn func(slog.Level)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lvl, err := ParseLevel(c.v.GetString("log.level"))
		if err != nil {
			slog.Warn("CONFIG_RELOAD_IGNORED", "file", e.Name, "err", err)
			return
		}
		fn(lvl)
	})
	c.v.WatchConfig()
}
