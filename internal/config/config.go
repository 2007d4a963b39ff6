// Package config layers defaults, config files, environment variables and
// command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fim/internal/baseline"
	"fim/internal/digest"
	"fim/internal/events"
	"fim/internal/log"
)

// EnvPrefix prefixes every environment variable, e.g. FIM_ALGORITHM.
const EnvPrefix = "FIM"

// FileName is the config file looked up in the working directory, with a
// .yaml, .yml or .json extension.
const FileName = "fim"

// Config is the resolved configuration of one invocation.
type Config struct {
	Root           string   `mapstructure:"root"`
	Baseline       string   `mapstructure:"baseline"`
	LogDir         string   `mapstructure:"log_dir"`
	Algorithm      string   `mapstructure:"algorithm"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks"`
	SkipUnreadable bool     `mapstructure:"skip_unreadable"`
	Exclude        []string `mapstructure:"exclude"`
	Workers        int      `mapstructure:"workers"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Root:      ".",
		Baseline:  baseline.DefaultPath,
		LogDir:    events.DefaultDir,
		Algorithm: string(digest.Default),
		Exclude:   []string{},
		Workers:   runtime.NumCPU(),
		LogLevel:  log.LevelWarn.String(),
		LogFormat: "text",
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"root":            "root",
	"baseline":        "baseline",
	"log-dir":         "log_dir",
	"algorithm":       "algorithm",
	"follow-symlinks": "follow_symlinks",
	"skip-unreadable": "skip_unreadable",
	"exclude":         "exclude",
	"workers":         "workers",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "config file (YAML or JSON); defaults to ./fim.yaml or ./fim.json")
	fs.String("root", d.Root, "directory to monitor when no DIR argument is given")
	fs.StringP("baseline", "b", d.Baseline, "baseline file")
	fs.String("log-dir", d.LogDir, "directory for daily event logs")
	fs.StringP("algorithm", "a", d.Algorithm, "digest algorithm for new baselines: "+algorithmNames())
	fs.Bool("follow-symlinks", d.FollowSymlinks, "hash symlink targets and descend into symlinked directories")
	fs.Bool("skip-unreadable", d.SkipUnreadable, "skip unreadable files instead of aborting the scan")
	fs.StringSlice("exclude", d.Exclude, "glob pattern to exclude, matched against relative path and base name (repeatable)")
	fs.IntP("workers", "j", d.Workers, "number of files hashed concurrently")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
}

func algorithmNames() string {
	names := make([]string, len(digest.Algorithms))
	for i, a := range digest.Algorithms {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

// Load resolves the configuration. Precedence, lowest first: defaults, the
// config file (--config, or fim.{yaml,yml,json} in dir), FIM_* environment
// variables, flags set on fs. fs may be nil.
func Load(fs *pflag.FlagSet, dir string) (Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("baseline", d.Baseline)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("algorithm", d.Algorithm)
	v.SetDefault("follow_symlinks", d.FollowSymlinks)
	v.SetDefault("skip_unreadable", d.SkipUnreadable)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var file string
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			file = f.Value.String()
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can use.
func (c Config) Validate() error {
	if _, err := digest.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if strings.TrimSpace(c.Baseline) == "" {
		return errors.New("baseline path must not be empty")
	}
	if strings.TrimSpace(c.LogDir) == "" {
		return errors.New("log directory must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// LogConfig returns the logger settings described by c.
func (c Config) LogConfig() log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.LogLevel)
	cfg.Format = log.ParseFormat(c.LogFormat)
	return cfg
}
