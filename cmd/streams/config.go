package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"xdao.co/streams/model"
	"xdao.co/streams/storage"
	"xdao.co/streams/storage/localfs"
	"xdao.co/streams/streamid"
)

// Config is the optional YAML configuration. Flags override it.
type Config struct {
	CASDirs   []string          `yaml:"cas_dirs"`
	Replicate bool              `yaml:"replicate"`
	KeysDir   string            `yaml:"keys_dir"`
	LogLevel  string            `yaml:"log_level"`
	LogFormat string            `yaml:"log_format"`
	Models    map[string]string `yaml:"models"`
}

func defaultConfig() *Config {
	return &Config{LogLevel: "info", LogFormat: "auto"}
}

// loadConfig reads path into a Config. A missing file at the default path
// is not an error.
func loadConfig(path string, explicit bool) (*Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	// Relative paths are relative to the config file.
	base := filepath.Dir(path)
	for i, d := range cfg.CASDirs {
		cfg.CASDirs[i] = resolvePath(base, d)
	}
	for k, v := range cfg.Models {
		cfg.Models[k] = resolvePath(base, v)
	}
	if cfg.KeysDir != "" {
		cfg.KeysDir = resolvePath(base, cfg.KeysDir)
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "streams.yaml"
	}
	return filepath.Join(home, ".xdao", "streams", "config.yaml")
}

func defaultCASDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".xdao", "streams", "blocks"), nil
}

// newLogger builds the slog logger for level and format. Format "auto"
// selects text on a terminal and JSON otherwise.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "auto":
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Errorf("invalid log format %q: must be one of auto, text, json", format)
	}
}

// openCAS opens the configured block stores in order.
func openCAS(cfg *Config) (storage.CAS, error) {
	dirs := cfg.CASDirs
	if len(dirs) == 0 {
		d, err := defaultCASDir()
		if err != nil {
			return nil, err
		}
		dirs = []string{d}
	}
	adapters := make([]storage.CAS, 0, len(dirs))
	for _, d := range dirs {
		cas, err := localfs.New(d)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, cas)
	}
	if len(adapters) == 1 {
		return adapters[0], nil
	}
	return storage.MultiCAS{Adapters: adapters, Replicate: cfg.Replicate}, nil
}

// loadModels parses the model definition files named in models.
func loadModels(models map[string]string) (map[string]*model.Definition, error) {
	out := make(map[string]*model.Definition, len(models))
	for id, path := range models {
		if _, err := streamid.FromString(id); err != nil {
			return nil, errors.Wrapf(err, "model %s", id)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read model %s", id)
		}
		def, err := model.ParseDefinition(b)
		if err != nil {
			return nil, errors.Wrapf(err, "parse model %s", id)
		}
		out[id] = def
	}
	return out, nil
}
