package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syntaxhq/syntax-chat/internal/chat"
)

func chatCmd(flags *rootFlags) *cobra.Command {
	var (
		withUser int64
		roomID   int64
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a chat room and talk",
		Long: `Open a chat room and talk. Use --user to start or resume a direct
conversation, or --room to join a group room you are a member of.

Inside the chat:
  /typing        signal that you are typing
  /delete <id>   delete one of your own messages
  /quit          leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (withUser == 0) == (roomID == 0) {
				return fmt.Errorf("exactly one of --user or --room is required")
			}

			cfg, logger, err := flags.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := flags.login(ctx, cfg)
			if err != nil {
				return err
			}

			dir := chat.NewDirectory(client, logger)
			if err := dir.Load(ctx); err != nil {
				return fmt.Errorf("load rooms: %w", err)
			}

			session := chat.NewSession(client, dir, logger)
			if err := session.Start(ctx); err != nil {
				return err
			}
			defer session.Close()

			notifier := chat.NewNotifier(client, dir, cfg.RefreshDebounce, logger)
			if err := notifier.Start(ctx); err != nil {
				return fmt.Errorf("notification socket: %w", err)
			}
			defer notifier.Close()

			var ch *chat.Channel
			if withUser != 0 {
				ch, err = session.OpenDirect(ctx, withUser)
			} else {
				ch, err = session.OpenGroup(ctx, roomID)
			}
			if err != nil {
				return err
			}

			fmt.Printf("connected to room %d as user %d\n", ch.RoomID(), session.UserID())
			fmt.Println("type a message and press Enter; /quit to leave")

			printer := newFramePrinter(session.UserID())
			ch.OnUpdate(func() { printer.flush(ch) })
			printer.flush(ch)

			inputLoop(ctx, ch)

			if err := ch.Err(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&withUser, "user", 0, "user id to chat with directly")
	cmd.Flags().Int64Var(&roomID, "room", 0, "group room id to join")
	return cmd
}

func inputLoop(ctx context.Context, ch *chat.Channel) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			ch.Close()
			return
		case line, ok := <-lines:
			if !ok {
				ch.Close()
				return
			}
			switch {
			case line == "/quit":
				ch.Close()
				return
			case line == "/typing":
				ch.SendTyping(true)
			case strings.HasPrefix(line, "/delete "):
				id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/delete ")), 10, 64)
				if err != nil {
					fmt.Println("usage: /delete <message id>")
					continue
				}
				ch.SendDelete(id)
			default:
				ch.Send(line)
			}
		}
		if ch.State() == chat.ChannelClosed {
			return
		}
	}
}

// framePrinter prints messages as they arrive, tracking how many have
// been shown so far.
type framePrinter struct {
	selfID int64

	mu         sync.Mutex
	shown      map[int64]bool
	lastNotice string
	wasTyping  bool
}

func newFramePrinter(selfID int64) *framePrinter {
	return &framePrinter{selfID: selfID, shown: make(map[int64]bool)}
}

func (p *framePrinter) flush(ch *chat.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, msg := range ch.Messages() {
		if p.shown[msg.ID] {
			continue
		}
		p.shown[msg.ID] = true
		who := fmt.Sprintf("user %d", msg.SenderID)
		if msg.Mine {
			who = "you"
		}
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), who, msg.Text)
	}

	if notice := ch.Notice(); notice != "" && notice != p.lastNotice {
		p.lastNotice = notice
		fmt.Printf("! %s\n", notice)
	}

	typing, by := ch.Typing()
	if typing && !p.wasTyping {
		fmt.Printf("... user %d is typing\n", by)
	}
	p.wasTyping = typing
}
