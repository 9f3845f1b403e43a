package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "AUDIO_ANALYZER"
	ConfigName = "audio-analyzer"

	ExportBackendLocal = "local"
	ExportBackendS3    = "s3"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Export   ExportConfig   `mapstructure:"export"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type PipelineConfig struct {
	Workers           int           `mapstructure:"workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
}

type StorageConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type ExportConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type AnalysisConfig struct {
	FrameLength int `mapstructure:"frame_length"`
	HopLength   int `mapstructure:"hop_length"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type UIConfig struct {
	Brand    string `mapstructure:"brand"`
	LogoPath string `mapstructure:"logo_path"`
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.max_upload_bytes", 32<<20)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 100)
	v.SetDefault("pipeline.processing_timeout", "5m")

	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.in_memory", false)

	v.SetDefault("export.backend", ExportBackendLocal)
	v.SetDefault("export.dir", "./data/exports")
	v.SetDefault("export.s3.bucket", "")
	v.SetDefault("export.s3.prefix", "exports")
	v.SetDefault("export.s3.region", "us-east-1")
	v.SetDefault("export.s3.endpoint", "")

	v.SetDefault("analysis.frame_length", 2048)
	v.SetDefault("analysis.hop_length", 512)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ui.brand", "SBA Info Solutions")
	v.SetDefault("ui.logo_path", "")
}

// NewViper returns a viper instance with defaults, environment binding and
// the config file (explicit path, or audio-analyzer.yaml in the usual
// places). A .env file in the working directory is loaded first.
func NewViper(configFile string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, errors.New("pipeline.workers must be positive"))
	}
	if c.Pipeline.QueueSize <= 0 {
		errs = append(errs, errors.New("pipeline.queue_size must be positive"))
	}
	if c.Analysis.FrameLength < 2 {
		errs = append(errs, errors.New("analysis.frame_length must be at least 2"))
	}
	if c.Analysis.HopLength <= 0 || c.Analysis.HopLength > c.Analysis.FrameLength {
		errs = append(errs, errors.New("analysis.hop_length must be in [1, frame_length]"))
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required unless storage.in_memory is set"))
	}
	switch c.Export.Backend {
	case ExportBackendLocal:
		if c.Export.Dir == "" {
			errs = append(errs, errors.New("export.dir is required for the local backend"))
		}
	case ExportBackendS3:
		if c.Export.S3.Bucket == "" {
			errs = append(errs, errors.New("export.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown export.backend %q", c.Export.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
