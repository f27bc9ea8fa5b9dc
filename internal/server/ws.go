package server

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/proto"
	"github.com/syntaxhq/syntax-chat/internal/store"
	"github.com/syntaxhq/syntax-chat/internal/utils"
)

// WSHandlers upgrades HTTP connections and bridges them to the hub.
type WSHandlers struct {
	hub   *hub.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewWSHandlers builds the websocket handler set.
func NewWSHandlers(h *hub.Hub, st store.Store, logger *zerolog.Logger) *WSHandlers {
	return &WSHandlers{hub: h, store: st, log: logger}
}

// ChatRoom serves one room socket: history replay on connect, then
// bidirectional message traffic scoped to that room.
// GET /ws/chat/:room_id/
func (h *WSHandlers) ChatRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(401, ErrorResponse{Error: "authentication required"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(400, ErrorResponse{Error: "invalid room id"})
		return
	}

	if h.store != nil {
		member, err := h.store.IsMember(c.Request.Context(), userID, roomID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("membership check failed")
			c.JSON(500, ErrorResponse{Error: "internal server error"})
			return
		}
		if !member {
			c.JSON(403, ErrorResponse{Error: "not a member of this room"})
			return
		}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Register before the history read so messages arriving during replay
	// queue on the client instead of being lost. Anything that lands in
	// both the snapshot and the queue is deduplicated by the write loop.
	client := hub.NewRoomClient(utils.NewID(), userID, roomID)
	h.hub.RegisterRoomClient(client)
	defer h.hub.UnregisterRoomClient(client)

	// Replay the room history as plain message frames before going live.
	replayed := make(map[int64]struct{})
	if h.store != nil {
		msgs, err := h.store.ListMessages(ctx, roomID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("history load failed")
			conn.Close(websocket.StatusInternalError, "history load failed")
			return
		}
		for _, msg := range msgs {
			replayed[msg.ID] = struct{}{}
			if err := wsjson.Write(ctx, conn, messageFrame(msg)); err != nil {
				return
			}
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.roomReadLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.roomWriteLoop(ctx, conn, client, replayed)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	h.closeConn(conn, client.ID, err)
}

func (h *WSHandlers) roomReadLoop(ctx context.Context, conn *websocket.Conn, client *hub.RoomClient) error {
	for {
		var send proto.RoomSend
		if err := wsjson.Read(ctx, conn, &send); err != nil {
			return err
		}

		switch {
		case send.Typing != nil:
			h.hub.SendTyping(client, send.SenderID, *send.Typing)
		case send.DeleteID > 0:
			h.hub.DeleteMessage(client, send.SenderID, send.DeleteID)
		default:
			h.hub.SendMessage(client, send.SenderID, send.Message)
		}
	}
}

func (h *WSHandlers) roomWriteLoop(ctx context.Context, conn *websocket.Conn, client *hub.RoomClient, replayed map[int64]struct{}) error {
	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return nil
			}
			// A message can be both in the history snapshot and queued as
			// an event when it was sent mid-replay. Deliver it once.
			if ev.Kind == hub.EventMessage {
				if _, dup := replayed[ev.MessageID]; dup {
					delete(replayed, ev.MessageID)
					continue
				}
			}
			frame, ok := frameFromEvent(ev)
			if !ok {
				continue
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Notifications serves the per-user notification socket. Server to client
// only; inbound traffic is discarded.
// GET /ws/notifications/
func (h *WSHandlers) Notifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(401, ErrorResponse{Error: "authentication required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx := conn.CloseRead(c.Request.Context())

	client := hub.NewNotifyClient(utils.NewID(), userID)
	h.hub.RegisterNotifyClient(client)
	defer h.hub.UnregisterNotifyClient(client)

	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			frame, ok := notificationFromEvent(ev)
			if !ok {
				continue
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Debug().Err(err).Int64("user_id", userID).Msg("notify write failed")
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		}
	}
}

func (h *WSHandlers) closeConn(conn *websocket.Conn, clientID string, err error) {
	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("client_id", clientID).Msg("ws connection closed with error")
		}
	}
	conn.Close(status, reason)
}
