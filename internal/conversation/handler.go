package conversation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/njwalker/meetingbot/pkg/logging"
)

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// TurnRequest is one user utterance. ConversationID is optional; a fresh
// conversation is opened when it is absent.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// TurnResponse carries the reply and the state after the turn.
type TurnResponse struct {
	ConversationID string       `json:"conversation_id"`
	Reply          string       `json:"reply"`
	State          MeetingState `json:"meeting_state"`
}

// Turn handles POST /turns.
func (h *Handler) Turn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode turn request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "No message provided", http.StatusBadRequest)
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	reply, state, err := h.engine.HandleTurn(r.Context(), conversationID, req.Message)
	if err != nil {
		h.logger.Error("failed to handle turn", "conversation_id", conversationID, "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, TurnResponse{
		ConversationID: conversationID,
		Reply:          reply,
		State:          state,
	})
}

// State handles GET /conversations/{conversationID}/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	state, err := h.engine.Snapshot(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("failed to load state", "conversation_id", conversationID, "error", err)
		http.Error(w, "Failed to load state", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"meeting_state":   state,
	})
}

// Reset handles POST /conversations/{conversationID}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := h.engine.Reset(r.Context(), conversationID); err != nil {
		h.logger.Error("failed to reset state", "conversation_id", conversationID, "error", err)
		http.Error(w, "Failed to reset state", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"reply":           "Meeting state has been reset.",
		"meeting_state":   MeetingState{},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
