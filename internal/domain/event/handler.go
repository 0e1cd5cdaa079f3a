package event

import (
	"sync"

	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case TransferPausedForSpace:
		h.logger.Warn("transfer paused for disk space",
			zap.String("transfer", e.TransferID),
			zap.String("download_dir", e.DownloadDir),
			zap.Uint64("available_bytes", e.AvailableBytes),
		)
	case TransferResumed:
		h.logger.Info("transfer resumed",
			zap.String("transfer", e.TransferID),
			zap.Uint64("needed_bytes", e.NeededBytes),
			zap.Uint64("available_bytes", e.AvailableBytes),
			zap.Bool("after_eviction", e.AfterEviction),
		)
	case EvictionPerformed:
		h.logger.Info("eviction performed",
			zap.String("target", e.TargetID),
			zap.Strings("removed", e.RemovedIDs),
			zap.Uint64("reclaimed_bytes", e.ReclaimedBytes),
		)
	case EvictionFailed:
		h.logger.Error("eviction failed",
			zap.String("target", e.TargetID),
			zap.String("error", e.Error),
		)
	case SpaceInsufficient:
		h.logger.Warn("insufficient space and candidates",
			zap.String("transfer", e.TransferID),
			zap.String("group", e.Group),
			zap.Uint64("needed_bytes", e.NeededBytes),
			zap.Uint64("reclaimable_bytes", e.ReclaimableBytes),
			zap.Int("candidates", e.Candidates),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"} // Handle all events
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	mu              sync.Mutex
	pausedForSpace  int64
	resumed         int64
	evictions       int64
	evictionsFailed int64
	insufficient    int64
	bytesReclaimed  int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case TransferPausedForSpace:
		h.pausedForSpace++
	case TransferResumed:
		h.resumed++
	case EvictionPerformed:
		h.evictions++
		h.bytesReclaimed += int64(e.ReclaimedBytes)
	case EvictionFailed:
		h.evictionsFailed++
	case SpaceInsufficient:
		h.insufficient++
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		"transfer.paused_for_space",
		"transfer.resumed",
		"eviction.performed",
		"eviction.failed",
		"space.insufficient",
	}
}

// GetMetrics returns current counters
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return map[string]int64{
		"transfers_paused_for_space": h.pausedForSpace,
		"transfers_resumed":          h.resumed,
		"evictions_performed":        h.evictions,
		"evictions_failed":           h.evictionsFailed,
		"space_insufficient":         h.insufficient,
		"bytes_reclaimed":            h.bytesReclaimed,
	}
}
