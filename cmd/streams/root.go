package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	casDirs    []string
	keysDir    string

	cfg    *Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "streams",
		Short: "Inspect, sign and replay model instance document commits",
		Long: `streams works with content-addressed commit logs of model instance
documents: it decodes stream ids, signs commits with did:key identities,
moves blocks between local block stores and replays logs into document state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath(), "path to YAML config")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (auto|text|json)")
	flags.StringSliceVar(&opts.casDirs, "cas-dir", nil, "block store directory, repeatable; read in order")
	flags.StringVar(&opts.keysDir, "keys-dir", "", "key store directory")

	cmd.AddCommand(newIDCommand(opts))
	cmd.AddCommand(newKeyCommand(opts))
	cmd.AddCommand(newBlockCommand(opts))
	cmd.AddCommand(newCommitCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := loadConfig(o.configPath, flags.Changed("config"))
	if err != nil {
		return usageError("%v", err)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("cas-dir") {
		cfg.CASDirs = o.casDirs
	}
	if flags.Changed("keys-dir") {
		cfg.KeysDir = o.keysDir
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return usageError("%v", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}
