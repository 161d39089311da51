package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/middleware"
	"github.com/benvon/soonish/internal/services/ai"
	"github.com/benvon/soonish/internal/validation"
)

// MaxChatMessageLength bounds a single user utterance
const MaxChatMessageLength = 2000

// ChatHandler drives conversations that turn free text into plans
type ChatHandler struct {
	chats  *ai.ChatService
	now    func() time.Time
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chats *ai.ChatService, now func() time.Time, logger *zap.Logger) *ChatHandler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chats: chats, now: now, logger: logger}
}

// RegisterRoutes registers conversation routes
// Router should be a subrouter with /api/v1/conversations prefix
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.StartConversation).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetConversation).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.CloseConversation).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/messages", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/{id}/confirm", h.Confirm).Methods(http.MethodPost)
	r.HandleFunc("/{id}/reject", h.Reject).Methods(http.MethodPost)
}

// ChatMessageRequest is the body of POST /conversations/{id}/messages
type ChatMessageRequest struct {
	Message string `json:"message" validate:"notblank,max=2000"`
}

// TurnResponse is the outcome of one turn together with the new state
type TurnResponse struct {
	Reply        *ai.Reply            `json:"reply"`
	Conversation ai.ConversationState `json:"conversation"`
}

// ConfirmResponse carries the plan created from the pending suggestion
type ConfirmResponse struct {
	Plan         PlanView             `json:"plan"`
	Conversation ai.ConversationState `json:"conversation"`
}

// StartConversation handles POST /conversations. The transcript starts with
// the assistant greeting.
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	conv := h.chats.Start()
	respondJSON(w, http.StatusCreated, conv.State())
}

// GetConversation handles GET /conversations/{id}
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, conv.State())
}

// CloseConversation handles DELETE /conversations/{id}
func (h *ChatHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "conversation")
	if !ok {
		return
	}
	if err := h.chats.Close(id); err != nil {
		respondError(w, h.logger, err, "Failed to close conversation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id})
}

// SendMessage handles POST /conversations/{id}/messages, running one
// extraction turn. A failed turn keeps the user message in the transcript.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req ChatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = validation.SanitizeText(req.Message)
	if err := validation.Struct(req); err != nil {
		respondError(w, h.logger, err, "Invalid message")
		return
	}

	ctx := ai.WithRequestID(r.Context(), middleware.RequestIDFromContext(r.Context()))
	reply, err := conv.Send(ctx, req.Message)
	if err != nil {
		respondError(w, h.logger.With(zap.String("conversation_id", conv.ID.String())), err, "Failed to process message")
		return
	}

	h.logger.Debug("conversation_turn_completed",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("reply_type", string(reply.Kind)),
	)
	respondJSON(w, http.StatusOK, TurnResponse{Reply: reply, Conversation: conv.State()})
}

// Confirm handles POST /conversations/{id}/confirm, converting and saving
// the pending suggestion. On failure the suggestion stays pending.
func (h *ChatHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	plan, err := conv.Confirm(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to create plan")
		return
	}

	h.logger.Info("plan_created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("time_mode", string(plan.Kind())),
		zap.String("title", logpkg.SanitizeTitle(plan.Title)),
	)
	respondJSON(w, http.StatusCreated, ConfirmResponse{
		Plan:         PlanView{PlanRecord: plan.Record(), Display: Display(plan, h.now())},
		Conversation: conv.State(),
	})
}

// Reject handles POST /conversations/{id}/reject
func (h *ChatHandler) Reject(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := conv.Reject(); err != nil {
		respondError(w, h.logger, err, "Failed to reject suggestion")
		return
	}
	respondJSON(w, http.StatusOK, conv.State())
}

func (h *ChatHandler) conversation(w http.ResponseWriter, r *http.Request) (*ai.Conversation, bool) {
	id, ok := pathID(w, r, "conversation")
	if !ok {
		return nil, false
	}
	conv, err := h.chats.Get(id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to load conversation")
		return nil, false
	}
	return conv, true
}
