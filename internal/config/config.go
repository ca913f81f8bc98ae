package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Models     []ModelConfig    `mapstructure:"models"`
}

type CorpusConfig struct {
	Root      string `mapstructure:"root"`
	ImageSize int    `mapstructure:"image_size"`
	Workers   int    `mapstructure:"workers"`
}

type RuntimeConfig struct {
	SharedLibrary       string `mapstructure:"shared_library"`
	DisableAcceleration bool   `mapstructure:"disable_acceleration"`
	CUDADevice          int    `mapstructure:"cuda_device"`
	IntraOpThreads      int    `mapstructure:"intra_op_threads"`
}

type EvaluationConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	Parallelism int `mapstructure:"parallelism"`
}

type ModelConfig struct {
	Name        string `mapstructure:"name"`
	Kind        string `mapstructure:"kind"`
	Path        string `mapstructure:"path"`
	Metadata    string `mapstructure:"metadata"`
	BatchSize   int    `mapstructure:"batch_size"`
	LabelScheme string `mapstructure:"label_scheme"`
}

const envPrefix = "TRAFFICEVAL"

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"corpus":               "corpus.root",
	"image-size":           "corpus.image_size",
	"workers":              "corpus.workers",
	"batch-size":           "evaluation.batch_size",
	"parallelism":          "evaluation.parallelism",
	"disable-acceleration": "runtime.disable_acceleration",
	"onnxruntime":          "runtime.shared_library",
	"log-level":            "log_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("corpus.root", "gtsrb")
	v.SetDefault("corpus.image_size", 0)
	v.SetDefault("corpus.workers", 4)
	v.SetDefault("runtime.shared_library", "")
	v.SetDefault("runtime.disable_acceleration", true)
	v.SetDefault("runtime.cuda_device", 0)
	v.SetDefault("runtime.intra_op_threads", 0)
	v.SetDefault("evaluation.batch_size", 32)
	v.SetDefault("evaluation.parallelism", 1)
}

// Load reads configuration with precedence flags > environment
// (TRAFFICEVAL_CORPUS_ROOT, ...) > file > defaults. An empty file looks for
// trafficeval.yaml in the working directory and tolerates its absence.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("trafficeval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to run an evaluation.
func (c *Config) Validate() error {
	if c.Corpus.Root == "" {
		return fmt.Errorf("corpus.root is required")
	}
	if c.Corpus.ImageSize < 0 {
		return fmt.Errorf("corpus.image_size must not be negative")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if m.Path == "" {
			return fmt.Errorf("model %s: path is required", m.Name)
		}
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("model %s is configured twice", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Select keeps only the named models, in configuration order.
func (c *Config) Select(names []string) error {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = false
	}
	var kept []ModelConfig
	for _, m := range c.Models {
		if _, ok := want[m.Name]; ok {
			want[m.Name] = true
			kept = append(kept, m)
		}
	}
	for n, found := range want {
		if !found {
			return fmt.Errorf("model %s is not configured", n)
		}
	}
	c.Models = kept
	return nil
}
