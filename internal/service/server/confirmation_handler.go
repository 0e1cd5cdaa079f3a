package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/adapter/prompt"
)

// ConfirmationHandler serves the pending-confirmation endpoints
type ConfirmationHandler struct {
	prompts *prompt.Center
	logger  *zap.Logger
}

// NewConfirmationHandler creates a new ConfirmationHandler
func NewConfirmationHandler(prompts *prompt.Center, logger *zap.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		prompts: prompts,
		logger:  logger,
	}
}

// HandlePending returns the outstanding confirmation requests
func (h *ConfirmationHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prompts.Pending())
}

// HandleConfirm approves a pending eviction
func (h *ConfirmationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// HandleCancel declines a pending eviction
func (h *ConfirmationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *ConfirmationHandler) decide(w http.ResponseWriter, r *http.Request, confirmed bool) {
	id := r.PathValue("id")
	if err := h.prompts.Decide(id, confirmed); err != nil {
		writeError(w, http.StatusNotFound, "no such pending confirmation")
		return
	}

	h.logger.Info("confirmation decided",
		zap.String("confirmation", id),
		zap.Bool("confirmed", confirmed))
	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": confirmed})
}

// HandleNotices returns recorded error notices
func (h *ConfirmationHandler) HandleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prompts.Notices())
}
