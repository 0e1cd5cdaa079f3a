package prompt

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
)

// Notice is an acknowledge-only error shown to the operator.
type Notice struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

const maxNotices = 50

// Center is the Presenter for a headless deployment: errors land in a
// bounded notice list and confirmations stay pending until an operator
// decides them over the API. Decisions route back into the request's
// closures, so the requesting cycle resumes whenever they arrive.
type Center struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*port.ConfirmationRequest
	order   []string
	notices []Notice
}

// Ensure Center implements port.Presenter
var _ port.Presenter = (*Center)(nil)

// NewCenter creates a new Center
func NewCenter(logger *zap.Logger) *Center {
	return &Center{
		logger:  logger,
		pending: make(map[string]*port.ConfirmationRequest),
	}
}

// ShowError records an acknowledge-only error notice.
func (c *Center) ShowError(title, message string) {
	c.mu.Lock()
	c.notices = append(c.notices, Notice{Title: title, Message: message, CreatedAt: time.Now()})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	c.mu.Unlock()

	c.logger.Warn("user-facing error", zap.String("title", title), zap.String("message", message))
}

// ShowConfirmation parks the request until an operator decides it.
func (c *Center) ShowConfirmation(req *port.ConfirmationRequest) {
	c.mu.Lock()
	c.pending[req.ID] = req
	c.order = append(c.order, req.ID)
	c.mu.Unlock()

	c.logger.Info("confirmation pending",
		zap.String("confirmation", req.ID),
		zap.String("transfer", req.TransferID),
		zap.String("title", req.Title))
}

// Pending returns the outstanding confirmation requests, oldest first.
func (c *Center) Pending() []*port.ConfirmationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*port.ConfirmationRequest, 0, len(c.pending))
	for _, id := range c.order {
		if req, ok := c.pending[id]; ok {
			out = append(out, req)
		}
	}
	return out
}

// Notices returns the recorded error notices, oldest first.
func (c *Center) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Decide resolves a pending confirmation. Unknown or already decided ids
// return domain.ErrInvalidInput.
func (c *Center) Decide(id string, confirmed bool) error {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		for i, oid := range c.order {
			if oid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if !ok {
		return domain.ErrInvalidInput
	}

	if confirmed {
		req.Confirm()
	} else {
		req.Cancel()
	}
	return nil
}
