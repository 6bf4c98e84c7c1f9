package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/worklog-cli/worklog/config"
	"github.com/worklog-cli/worklog/transport"
	"github.com/worklog-cli/worklog/worklog"
)

var (
	configPath    string
	workspaceFlag int64
	logLevelFlag  string

	appConfig  *config.Config
	appSession *worklog.Session
)

var rootCmd = &cobra.Command{
	Use:           "worklog",
	Short:         "Track time from the command line",
	Long:          "Worklog tracks time entries, projects, clients and tags against a remote time-tracking account.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ~/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().Int64VarP(&workspaceFlag, "workspace", "w", 0, "workspace id to operate in")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (trace, debug, info, warn, error, fatal)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(nowCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(resourceCommand("clients", worklog.Client, []string{"name", "notes"}))
	rootCmd.AddCommand(resourceCommand("projects", worklog.Project, []string{"name", "active", "color"}))
	rootCmd.AddCommand(resourceCommand("tasks", worklog.Task, []string{"name", "active", "estimated_seconds"}))
	rootCmd.AddCommand(resourceCommand("tags", worklog.Tag, []string{"name"}))
	rootCmd.AddCommand(resourceCommand("workspaces", worklog.Workspace, []string{"name", "premium", "admin"}))
}

// setup builds the config, logger, transport and session shared by every
// command.
func setup() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevelFlag != "" {
		cfg.Set(config.KeyLogLevel, logLevelFlag)
	}
	if workspaceFlag != 0 {
		cfg.Set(config.KeyDefaultWorkspaceID, workspaceFlag)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	tr := transport.New(transport.Config{
		BaseURL:  cfg.String(config.KeyBaseURL),
		APIToken: cfg.String(config.KeyAPIToken),
		Username: cfg.String(config.KeyUsername),
		Password: cfg.String(config.KeyPassword),
		Logger:   logger,
	})

	appConfig = cfg
	appSession = worklog.NewSession(cfg, tr, logger)
	return nil
}

func buildLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.String(config.KeyLogLevel))
	if err != nil {
		level = zerolog.WarnLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if path := cfg.String(config.KeyLogFile); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("opening log file: %w", err)
		}
		out = file
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
