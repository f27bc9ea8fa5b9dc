package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syntaxhq/syntax-chat/internal/chat"
	"github.com/syntaxhq/syntax-chat/internal/proto"
)

func roomsCmd(flags *rootFlags) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List your chat rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.loadConfig()
			if err != nil {
				return err
			}
			client, err := flags.login(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			dir := chat.NewDirectory(client, logger)
			if err := dir.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load rooms: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			direct := dir.Direct(filter)
			if len(direct) > 0 {
				fmt.Fprintln(w, "DIRECT\tROOM\tUNREAD\tLAST MESSAGE")
				for _, room := range direct {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
						room.OtherUser.Username, room.ID, room.UnreadCount, lastMessagePreview(room))
				}
			}

			groups := dir.Groups(filter)
			if len(groups) > 0 {
				fmt.Fprintln(w, "GROUP\tROOM\tMEMBERS\tUNREAD\tLAST MESSAGE")
				for _, room := range groups {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
						room.GroupName, room.ID, room.MemberCount, room.UnreadCount, lastMessagePreview(room))
				}
			}

			if len(direct) == 0 && len(groups) == 0 {
				fmt.Fprintln(w, "no rooms")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only show rooms matching this name")
	return cmd
}

func lastMessagePreview(room proto.ChatRoom) string {
	if room.LastMessage == nil {
		return "-"
	}
	text := *room.LastMessage
	if len(text) > 40 {
		text = text[:37] + "..."
	}
	return text
}
