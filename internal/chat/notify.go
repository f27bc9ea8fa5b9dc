package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/api"
	"github.com/syntaxhq/syntax-chat/internal/proto"
)

// defaultRefreshDebounce coalesces refresh triggers from a burst of
// notifications into a single directory re-pull.
const defaultRefreshDebounce = 100 * time.Millisecond

// Notifier owns the per-user notification socket. Every event on it is
// advisory: the notifier highlights the affected room and schedules a
// debounced directory refresh instead of mutating the snapshot in place.
//
// The notifier does not reconnect. When the socket drops abnormally the
// error is surfaced through Err and the owner decides whether to build a
// new notifier.
type Notifier struct {
	client   *api.Client
	dir      *Directory
	log      *zerolog.Logger
	debounce time.Duration

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}

	mu      sync.Mutex
	err     error
	closing bool
}

// NewNotifier builds a notifier feeding the given directory. A debounce
// of zero selects the default.
func NewNotifier(client *api.Client, dir *Directory, debounce time.Duration, logger *zerolog.Logger) *Notifier {
	if debounce <= 0 {
		debounce = defaultRefreshDebounce
	}
	return &Notifier{
		client:   client,
		dir:      dir,
		log:      logger,
		debounce: debounce,
		done:     make(chan struct{}),
		kick:     make(chan struct{}, 1),
	}
}

// Start dials the notification socket and begins consuming events. The
// dial uses the API client's HTTP client so the session cookie rides
// along.
func (n *Notifier) Start(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, n.client.SocketURL("/ws/notifications/"), &websocket.DialOptions{
		HTTPClient: n.client.HTTPClient(),
	})
	if err != nil {
		return err
	}
	n.conn = conn

	loopCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	go n.refreshLoop(loopCtx)
	go func() {
		defer close(n.done)
		n.readLoop(loopCtx)
	}()
	return nil
}

func (n *Notifier) readLoop(ctx context.Context) {
	for {
		var note proto.Notification
		if err := wsjson.Read(ctx, n.conn, &note); err != nil {
			n.recordClose(err)
			return
		}

		switch note.Type {
		case proto.NotificationNewMessage:
			n.dir.Highlight(note.ChatroomID)
			n.scheduleRefresh()
		case proto.NotificationNewGroup:
			n.scheduleRefresh()
		default:
			n.log.Debug().Str("type", note.Type).Msg("ignoring unknown notification")
		}
	}
}

func (n *Notifier) scheduleRefresh() {
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

// refreshLoop debounces refresh triggers: the timer restarts on every
// trigger and the directory is re-pulled once it fires.
func (n *Notifier) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-n.kick:
		case <-ctx.Done():
			return
		}

		timer := time.NewTimer(n.debounce)
	wait:
		for {
			select {
			case <-n.kick:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(n.debounce)
			case <-timer.C:
				n.dir.Refresh(ctx)
				break wait
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}
}

func (n *Notifier) recordClose(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closing || errors.Is(err, context.Canceled) {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return
	}
	if status != -1 {
		n.err = &CloseError{Status: status}
	} else {
		n.err = err
	}
	n.log.Warn().Err(n.err).Msg("notification socket closed abnormally")
}

// Err reports an abnormal socket closure, nil while healthy or after a
// deliberate Close.
func (n *Notifier) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Close shuts the socket down cleanly and waits for the read loop.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closing {
		n.mu.Unlock()
		return
	}
	n.closing = true
	n.mu.Unlock()

	if n.cancel == nil {
		return
	}
	if n.conn != nil {
		n.conn.Close(websocket.StatusNormalClosure, "closing")
	}
	if n.cancel != nil {
		n.cancel()
	}
	<-n.done
}
