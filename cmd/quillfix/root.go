package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/quillfix/internal/config"
)

// cli holds the state shared by all subcommands.
type cli struct {
	cfgFile    string
	jsonOutput bool

	cfg      *config.Config
	logLevel *slog.LevelVar
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logLevel: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "quillfix",
		Short: "Self-learning typo correction for transcriptions",
		Long: `quillfix watches how users edit transcriptions, learns which words the
transcriber keeps getting wrong, and fixes them automatically once a
correction has been seen often enough.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: built-in defaults)")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddCommand(
		c.serveCmd(),
		c.learnCmd(),
		c.applyCmd(),
		c.listCmd(),
		c.forgetCmd(),
		versionCmd(),
	)
	return root
}

// setup loads the configuration and installs the logger.
func (c *cli) setup(logOut io.Writer) error {
	if c.cfgFile == "" {
		c.cfg = config.Default()
	} else {
		cfg, err := config.Load(c.cfgFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file %q not found", c.cfgFile)
			}
			return err
		}
		c.cfg = cfg
	}

	c.logLevel.Set(slogLevel(c.cfg.Server.LogLevel))
	c.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: c.logLevel}))
	slog.SetDefault(c.logger)
	return nil
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
