package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/log"
)

// maxChatBodyBytes bounds chat request bodies.
const maxChatBodyBytes = 64 * 1024

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Message   string `json:"message"`
	Answer    string `json:"answer"`
	SessionID string `json:"sessionId"`
}

type chatHandler struct {
	assistant Assistant
	logger    log.Logger
}

// send runs one chat turn. A missing sessionId gets a fresh UUID which is
// echoed back so the client can continue the conversation.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message cannot be empty", h.logger)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	answer, err := h.assistant.Ask(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeAskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:   req.Message,
		Answer:    answer,
		SessionID: sessionID,
	}, h.logger)
}

// writeAskError maps domain errors to HTTP statuses. Internal failures
// never leak detail to the client.
func (h *chatHandler) writeAskError(w http.ResponseWriter, err error) {
	if errors.Is(err, document.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}
	h.logger.Error("chat turn failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
}

type reindexResponse struct {
	Chunks int `json:"chunks"`
}

type reindexHandler struct {
	indexer Indexer
	secret  string
	logger  log.Logger
}

// reindex rebuilds the whole index. Guarded by a shared secret passed as
// a bearer token; comparison is constant-time. An unset secret disables
// the endpoint entirely.
func (h *reindexHandler) reindex(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" || !authorized(r, h.secret) {
		writeError(w, http.StatusUnauthorized, "unauthorized", h.logger)
		return
	}

	count, err := h.indexer.Reindex(r.Context())
	if err != nil {
		h.logger.Error("reindex failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}

	h.logger.Info("reindex complete", "chunks", count)
	writeJSON(w, http.StatusOK, reindexResponse{Chunks: count}, h.logger)
}

func authorized(r *http.Request, secret string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
