package admission

import (
	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
)

// ResumeRequest asks for a transfer to run. A transfer that is not paused
// for disk space starts directly. One that is enters an admission cycle:
// always when bypassThrottle is set (explicit user action), otherwise only
// if the transfer has not been probed within the throttle window, so the
// periodic refresh tick does not hammer the filesystem.
//
// Returns domain.ErrCheckInProgress when a cycle for the transfer is
// already outstanding; callers treat that as a no-op.
func (c *Coordinator) ResumeRequest(id string, bypassThrottle bool) error {
	t, ok := c.registry.Get(id)
	if !ok {
		return domain.ErrTransferNotFound
	}

	if !t.PausedForDiskSpace {
		return c.engine.StartTransfer(c.ctx, id)
	}

	if !bypassThrottle {
		if allowed, wait := c.throttle.Allow(id); !allowed {
			c.logger.Debug("probe throttled",
				zap.String("transfer", id),
				zap.Duration("retry_in", wait))
			return nil
		}
	}

	return c.CheckDiskSpace(id)
}
