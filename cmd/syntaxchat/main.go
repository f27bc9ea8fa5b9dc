package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/config"
	"github.com/syntaxhq/syntax-chat/internal/log"
)

type rootFlags struct {
	configPath string
	serverURL  string
	logLevel   string
	username   string
	password   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "syntaxchat",
		Short:         "Chat client and development server for the SYNTAX platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.serverURL, "server", "", "chat server base URL")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&flags.username, "username", "u", "", "account username")
	root.PersistentFlags().StringVarP(&flags.password, "password", "p", "", "account password")

	root.AddCommand(serveCmd(flags))
	root.AddCommand(registerCmd(flags))
	root.AddCommand(roomsCmd(flags))
	root.AddCommand(chatCmd(flags))
	return root
}

// loadConfig resolves configuration, letting explicit flags win over the
// config file and environment.
func (f *rootFlags) loadConfig() (config.Config, *zerolog.Logger, error) {
	level := f.logLevel
	if level == "" {
		level = config.Default().LogLevel
	}
	logger := log.New(level)

	cfg, _, err := config.Load(logger, f.configPath)
	if err != nil {
		return cfg, logger, err
	}

	if f.serverURL != "" {
		cfg.ServerURL = f.serverURL
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	logger = log.New(cfg.LogLevel)
	return cfg, logger, nil
}

// login authenticates with the flags' credentials and returns a client
// holding the session.
func (f *rootFlags) login(ctx context.Context, cfg config.Config) (*api.Client, error) {
	if f.username == "" || f.password == "" {
		return nil, fmt.Errorf("username and password are required (use -u and -p)")
	}
	client, err := api.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if _, err := client.Login(ctx, f.username, f.password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return client, nil
}
