package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const chatHeartbeat = 15 * time.Second

type ChatHandler struct {
	chatService services.ChatServiceInterface
	heartbeat   time.Duration
}

func NewChatHandler(chatService services.ChatServiceInterface) *ChatHandler {
	return &ChatHandler{chatService: chatService, heartbeat: chatHeartbeat}
}

type StartConversationRequest struct {
	ProfileID uuid.UUID `json:"profile_id" validate:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type ConversationResponse struct {
	Conversation *models.Conversation `json:"conversation"`
}

type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

type ChatMessageResponse struct {
	Message *models.Message `json:"message"`
}

func writeChatError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, services.ErrCannotMessageSelf):
		writeError(w, http.StatusBadRequest, "Cannot start a conversation with yourself")
	case errors.Is(err, services.ErrNotConnected):
		writeError(w, http.StatusForbidden, "You can only message connections or mentoring partners")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
	case errors.Is(err, services.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Message must be at most %d characters", models.MaxMessageLength))
	default:
		internalError(w, action, err)
	}
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req StartConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, err := h.chatService.StartConversation(r.Context(), user.ID, req.ProfileID)
	if err != nil {
		writeChatError(w, err, "starting conversation")
		return
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Conversation: conv})
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	convs, err := h.chatService.ListConversations(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: convs})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "conversation")
	if !ok {
		return
	}
	before, ok := parseBefore(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid before timestamp")
		return
	}
	limit, ok := parseLimit(r, models.DefaultMessagePage, models.MaxMessagePage)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), user.ID, id, before, limit)
	if err != nil {
		writeChatError(w, err, "listing messages")
		return
	}
	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.chatService.Send(r.Context(), user.ID, id, req.Content)
	if err != nil {
		writeChatError(w, err, "sending message")
		return
	}
	writeJSON(w, http.StatusCreated, ChatMessageResponse{Message: msg})
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	if err := h.chatService.MarkRead(r.Context(), user.ID, id); err != nil {
		writeChatError(w, err, "marking conversation read")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Conversation marked as read"})
}

// sseWriter sends the event-stream headers on the first write so that a
// rejected stream can still answer with a JSON error.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) write(chunk string) error {
	s.start()
	if _, err := fmt.Fprint(s.w, chunk); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Stream pushes new messages in a conversation as server-sent events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	sse := &sseWriter{w: w, rc: http.NewResponseController(w)}
	err := h.chatService.Stream(r.Context(), user.ID, id, h.heartbeat,
		func(payload string) error {
			return sse.write("event: message\ndata: " + payload + "\n\n")
		},
		func() error {
			return sse.write(": ping\n\n")
		},
	)
	if err == nil {
		return
	}
	if !sse.started {
		writeChatError(w, err, "streaming conversation")
		return
	}
	logging.Warn("Chat stream ended", map[string]interface{}{
		"conversation_id": id.String(),
		"error":           err.Error(),
	})
}
