package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/proto"
)

// RoomHandlers provides HTTP handlers for the room lifecycle endpoints and
// the request/response message fallback.
type RoomHandlers struct {
	rooms    *core.RoomService
	messages *core.MessageService
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(rooms *core.RoomService, messages *core.MessageService, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms:    rooms,
		messages: messages,
		log:      logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// SendMessageRequest represents the fallback send request body.
type SendMessageRequest struct {
	Sender      string `json:"sender" binding:"required"`
	Content     string `json:"content"`
	MessageTime string `json:"messageTime,omitempty"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID       string              `json:"id"`
	RoomID   string              `json:"roomId"`
	Messages []proto.MessageData `json:"messages"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateRoom handles room creation.
// POST /api/v1/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req.RoomID)
	if err != nil {
		h.writeDomainError(c, err, "create room")
		return
	}

	c.JSON(http.StatusCreated, roomResponse(room))
}

// GetRoom handles room lookup (join).
// GET /api/v1/rooms/:roomId
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		h.writeDomainError(c, err, "get room")
		return
	}

	c.JSON(http.StatusOK, roomResponse(room))
}

// ListRooms handles listing all rooms.
// GET /api/v1/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		h.writeDomainError(c, err, "list rooms")
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, RoomResponse{
			ID:       room.ID,
			RoomID:   room.RoomID,
			Messages: []proto.MessageData{},
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListMessages handles fetching a room's message history.
// GET /api/v1/rooms/:roomId/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	messages, err := h.rooms.ListMessages(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		h.writeDomainError(c, err, "list messages")
		return
	}

	c.JSON(http.StatusOK, messagesResponse(messages))
}

// SendMessage handles the fallback send path. The message is persisted and
// fanned out exactly as it would be over the websocket gateway.
// POST /api/v1/rooms/:roomId/messages
func (h *RoomHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.messages.SendMessage(c.Request.Context(), c.Param("roomId"), core.SendRequest{
		Sender:    req.Sender,
		Content:   req.Content,
		Timestamp: parseMessageTime(req.MessageTime),
	})
	if err != nil {
		h.writeDomainError(c, err, "send message")
		return
	}

	c.JSON(http.StatusCreated, messageData(*msg))
}

// writeDomainError maps domain errors onto the client contract: room
// lifecycle failures are 400s with a reason string, everything else is a
// generic server error.
func (h *RoomHandlers) writeDomainError(c *gin.Context, err error, op string) {
	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr.Code != core.ErrCodeStorageUnavailable {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: domErr.Message})
		return
	}
	h.log.Error().Err(err).Str("op", op).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func roomResponse(room *core.Room) RoomResponse {
	return RoomResponse{
		ID:       room.ID,
		RoomID:   room.RoomID,
		Messages: messagesResponse(room.Messages),
	}
}

func messagesResponse(messages []core.Message) []proto.MessageData {
	out := make([]proto.MessageData, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageData(msg))
	}
	return out
}

func messageData(msg core.Message) proto.MessageData {
	return proto.MessageData{
		Sender:    msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
	}
}
