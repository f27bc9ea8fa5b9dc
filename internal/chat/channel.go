package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/proto"
)

// ChannelState is the lifecycle state of a room channel.
type ChannelState int32

const (
	ChannelConnecting ChannelState = iota
	ChannelOpen
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Message is one chat message held by a room channel, in arrival order.
// The server replays room history as ordinary messages on connect, so
// history and live traffic land in the same slice.
type Message struct {
	ID        int64
	SenderID  int64
	Text      string
	Timestamp time.Time
	Mine      bool
}

// Channel is a live connection to one chat room. All server frames are
// consumed by a single read loop, which keeps message order exactly as
// sent. Sends that cannot be delivered meaningfully (blank text, channel
// not open, unresolved user id) are dropped without error.
type Channel struct {
	client *api.Client
	roomID int64
	selfID int64
	log    *zerolog.Logger

	state   atomic.Int32
	conn    *websocket.Conn
	sendCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	closing atomic.Bool

	mu       sync.Mutex
	messages []Message
	notice   string
	typing   bool
	typingBy int64
	err      error
	onUpdate func()
}

// NewChannel builds a channel for one room. selfID is the session user's
// id; frames from that sender are marked Mine and never flip the typing
// indicator.
func NewChannel(client *api.Client, roomID, selfID int64, logger *zerolog.Logger) *Channel {
	c := &Channel{
		client: client,
		roomID: roomID,
		selfID: selfID,
		log:    logger,
		done:   make(chan struct{}),
	}
	c.state.Store(int32(ChannelConnecting))
	return c
}

// RoomID returns the room this channel is bound to.
func (c *Channel) RoomID() int64 { return c.roomID }

// State returns the channel lifecycle state.
func (c *Channel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// OnUpdate registers a callback invoked after every state-changing frame.
// It runs on the read loop goroutine and must not block.
func (c *Channel) OnUpdate(fn func()) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Open dials the room socket and starts consuming frames. History frames
// arrive first, already ordered.
func (c *Channel) Open(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.client.SocketURL(fmt.Sprintf("/ws/chat/%d/", c.roomID)), &websocket.DialOptions{
		HTTPClient: c.client.HTTPClient(),
	})
	if err != nil {
		c.state.Store(int32(ChannelClosed))
		close(c.done)
		return fmt.Errorf("chat: open room %d: %w", c.roomID, err)
	}

	c.conn = conn
	c.sendCtx, c.cancel = context.WithCancel(context.Background())
	c.state.Store(int32(ChannelOpen))

	go func() {
		defer close(c.done)
		c.readLoop(c.sendCtx)
	}()
	return nil
}

func (c *Channel) readLoop(ctx context.Context) {
	for {
		var frame proto.RoomFrame
		if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
			c.recordClose(err)
			return
		}
		c.apply(&frame)
	}
}

// apply folds one server frame into channel state.
func (c *Channel) apply(frame *proto.RoomFrame) {
	c.mu.Lock()
	switch {
	case frame.Error != "":
		// Channel-level notice. The socket stays open.
		c.notice = frame.Error
	case frame.Type == proto.FrameTypeTyping:
		if frame.SenderID != c.selfID {
			c.typing = frame.IsTyping
			c.typingBy = frame.SenderID
		}
	case frame.Type == proto.FrameTypeDelete:
		for i, msg := range c.messages {
			if msg.ID == frame.MessageID {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				break
			}
		}
	default:
		ts, _ := proto.ParseTimestamp(frame.Timestamp)
		c.messages = append(c.messages, Message{
			ID:        frame.MessageID,
			SenderID:  frame.SenderID,
			Text:      frame.Message,
			Timestamp: ts,
			Mine:      frame.SenderID == c.selfID,
		})
	}
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Send delivers a chat message. Blank text, a channel that is not open,
// and an unresolved sender id are all silent no-ops.
func (c *Channel) Send(text string) {
	if c.State() != ChannelOpen || c.selfID == 0 {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	c.write(proto.RoomSend{Message: text, SenderID: c.selfID})
}

// SendTyping signals the typing indicator to other room members.
func (c *Channel) SendTyping(isTyping bool) {
	if c.State() != ChannelOpen || c.selfID == 0 {
		return
	}
	t := isTyping
	c.write(proto.RoomSend{SenderID: c.selfID, Typing: &t})
}

// SendDelete asks the server to delete one of the caller's own messages.
func (c *Channel) SendDelete(messageID int64) {
	if c.State() != ChannelOpen || c.selfID == 0 || messageID <= 0 {
		return
	}
	c.write(proto.RoomSend{SenderID: c.selfID, DeleteID: messageID})
}

func (c *Channel) write(send proto.RoomSend) {
	if err := wsjson.Write(c.sendCtx, c.conn, send); err != nil {
		// The read loop observes the broken socket and records the error.
		c.log.Debug().Err(err).Int64("room_id", c.roomID).Msg("room send failed")
	}
}

// Messages returns the messages seen so far, oldest first.
func (c *Channel) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Notice returns the latest channel-level notice from the server, empty
// when there is none.
func (c *Channel) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// Typing reports whether another member is currently typing, and who.
func (c *Channel) Typing() (bool, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing, c.typingBy
}

// Err reports an abnormal closure. A deliberate Close or a normal server
// closure leaves it nil.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) recordClose(err error) {
	c.state.Store(int32(ChannelClosed))

	if c.closing.Load() || errors.Is(err, context.Canceled) {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return
	}

	c.mu.Lock()
	if status != -1 {
		c.err = &CloseError{Status: status}
	} else {
		c.err = err
	}
	fn := c.onUpdate
	c.mu.Unlock()

	c.log.Warn().Int64("room_id", c.roomID).Err(err).Msg("room socket closed abnormally")
	if fn != nil {
		fn()
	}
}

// Close shuts the channel down cleanly and waits for the read loop. Safe
// to call more than once.
func (c *Channel) Close() {
	if c.closing.Swap(true) {
		return
	}
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		<-c.done
	}
	c.state.Store(int32(ChannelClosed))
}
