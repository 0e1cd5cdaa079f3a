package port

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CandidateSummary describes one transfer proposed for removal, for
// display in a confirmation.
type CandidateSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// ConfirmationRequest is a pending delete-confirmation. It is handed to
// the Presenter and resolved asynchronously, possibly much later, by
// whatever surface shows it. Confirm and Cancel are safe to call from any
// goroutine; only the first call has effect.
type ConfirmationRequest struct {
	ID         string             `json:"id"`
	TransferID string             `json:"transfer_id"`
	Title      string             `json:"title"`
	Message    string             `json:"message"`
	Candidates []CandidateSummary `json:"candidates"`
	FreedBytes uint64             `json:"freed_bytes"`
	Deficit    uint64             `json:"deficit"`
	CreatedAt  time.Time          `json:"created_at"`

	once   sync.Once
	decide func(confirmed bool)
}

// NewConfirmationRequest creates a request whose decision is delivered to
// decide exactly once.
func NewConfirmationRequest(transferID, title, message string, candidates []CandidateSummary, freed, deficit uint64, decide func(confirmed bool)) *ConfirmationRequest {
	return &ConfirmationRequest{
		ID:         uuid.NewString(),
		TransferID: transferID,
		Title:      title,
		Message:    message,
		Candidates: candidates,
		FreedBytes: freed,
		Deficit:    deficit,
		CreatedAt:  time.Now(),
		decide:     decide,
	}
}

// Confirm resolves the request positively.
func (r *ConfirmationRequest) Confirm() {
	r.once.Do(func() { r.decide(true) })
}

// Cancel resolves the request negatively.
func (r *ConfirmationRequest) Cancel() {
	r.once.Do(func() { r.decide(false) })
}

// Presenter is the external UI collaborator. Both methods must be safe to
// call from background goroutines and must not block on the user: errors
// are acknowledge-only, confirmations resolve later through the request.
type Presenter interface {
	ShowError(title, message string)
	ShowConfirmation(req *ConfirmationRequest)
}
