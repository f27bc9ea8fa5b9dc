package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syntaxhq/syntax-chat/internal/api"
)

func registerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account on the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if flags.username == "" || flags.password == "" {
				return fmt.Errorf("username and password are required (use -u and -p)")
			}

			client, err := api.New(cfg.ServerURL)
			if err != nil {
				return err
			}
			profile, err := client.Register(cmd.Context(), flags.username, flags.password)
			if err != nil {
				return err
			}

			fmt.Printf("registered %s (id %d)\n", profile.Username, profile.ID)
			return nil
		},
	}
}
