package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/auth"
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/store"
)

// Handlers provides the chat REST endpoints.
type Handlers struct {
	store       store.Store
	hub         *hub.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewHandlers creates the REST handler set.
func NewHandlers(st store.Store, h *hub.Hub, authService *auth.Service, logger *zerolog.Logger) *Handlers {
	return &Handlers{
		store:       st,
		hub:         h,
		authService: authService,
		log:         logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CredentialsRequest is the register/login request body.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ProfileResponse is the session user's identity.
type ProfileResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
}

// CreateOrGetRoomRequest asks for the canonical direct room with one user.
type CreateOrGetRoomRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreateOrGetRoomResponse carries the resolved room id.
type CreateOrGetRoomResponse struct {
	RoomID int64 `json:"room_id"`
}

// MarkAsReadRequest acknowledges all messages in one room.
type MarkAsReadRequest struct {
	ChatroomID int64 `json:"chatroom_id" binding:"required"`
}

// CreateGroupRequest creates a group chat room.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MemberLimit int     `json:"member_limit"`
	IsPrivate   bool    `json:"is_private"`
	MemberIDs   []int64 `json:"member_ids"`
}

// CreateGroupResponse carries the new group and room ids.
type CreateGroupResponse struct {
	Message    string `json:"message"`
	GroupID    int64  `json:"group_id"`
	ChatroomID int64  `json:"chatroom_id"`
}

// Health reports liveness.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Register creates a user and starts a session.
// POST /auth/register/
func (h *Handlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("register failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.setSessionCookie(c, token)
	h.log.Info().Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, ProfileResponse{ID: user.ID, Username: user.Username})
}

// Login validates credentials and starts a session.
// POST /auth/login/
func (h *Handlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, ProfileResponse{
		ID:              user.ID,
		Username:        user.Username,
		ProfilePhotoURL: user.ProfilePhotoURL,
	})
}

// Profile returns the session user. Clients resolve current_user_id here
// once per session before opening any room socket.
// GET /profile/
func (h *Handlers) Profile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("profile lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		ID:              user.ID,
		Username:        user.Username,
		ProfilePhotoURL: user.ProfilePhotoURL,
	})
}

// ListChatRooms returns the caller's room directory.
// GET /chat/chatroomlist/
func (h *Handlers) ListChatRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	listings, err := h.store.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list rooms failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, chatRoomsFromListings(listings))
}

// CreateOrGetRoom resolves the canonical direct room for a user pair,
// creating it on first contact. Idempotent.
// POST /chat/create-or-get-room/
func (h *Handlers) CreateOrGetRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req CreateOrGetRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.store.GetUserByID(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found"})
			return
		}
		h.log.Error().Err(err).Int64("target_id", req.UserID).Msg("target lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	room, created, err := h.store.CreateOrGetDirectRoom(c.Request.Context(), userID, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("target_id", req.UserID).Msg("create-or-get room failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if created {
		h.log.Info().Int64("room_id", room.ID).Int64("user_id", userID).Int64("target_id", req.UserID).Msg("direct room created")
	}
	c.JSON(http.StatusOK, CreateOrGetRoomResponse{RoomID: room.ID})
}

// MarkAsRead acknowledges all messages in a room for the caller and is
// safe to repeat.
// POST /chat/mark-as-read/
func (h *Handlers) MarkAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req MarkAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	// Only members may change a room's read state.
	member, err := h.store.IsMember(c.Request.Context(), userID, req.ChatroomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", req.ChatroomID).Msg("membership check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return
	}

	if err := h.store.MarkRead(c.Request.Context(), req.ChatroomID, userID); err != nil {
		h.log.Error().Err(err).Int64("room_id", req.ChatroomID).Msg("mark read failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateGroup creates a group chat room and announces it to the members'
// notification sockets.
// POST /chat/create-group/
func (h *Handlers) CreateGroup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "group name is required"})
		return
	}
	if req.MemberLimit <= 0 {
		req.MemberLimit = 10
	}
	// The creator occupies one slot.
	if len(req.MemberIDs) > req.MemberLimit-1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "member limit exceeded"})
		return
	}

	group := &store.Group{
		Name:        req.Name,
		Description: req.Description,
		MemberLimit: req.MemberLimit,
		IsPrivate:   req.IsPrivate,
		CreatorID:   userID,
	}
	room, err := h.store.CreateGroupRoom(c.Request.Context(), group, req.MemberIDs)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("create group failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.AnnounceGroup(room.ID, group.Name, req.MemberIDs)

	h.log.Info().Int64("group_id", group.ID).Int64("room_id", room.ID).Msg("group created")
	c.JSON(http.StatusCreated, CreateGroupResponse{
		Message:    "Group created successfully",
		GroupID:    group.ID,
		ChatroomID: room.ID,
	})
}

func (h *Handlers) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(auth.SessionCookie, token, h.authService.SessionTTLSeconds(), "/", "", false, true)
}
