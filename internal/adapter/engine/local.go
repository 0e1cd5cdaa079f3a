package engine

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
)

// Local is an Engine backed by the registry and the local filesystem. It
// tracks activity state and removes transfer payloads, which is all the
// admission subsystem needs from the engine side; the piece-level transfer
// machinery lives elsewhere.
type Local struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// Ensure Local implements port.Engine
var _ port.Engine = (*Local)(nil)

// NewLocal creates a new Local engine
func NewLocal(reg *registry.Registry, logger *zap.Logger) *Local {
	return &Local{
		registry: reg,
		logger:   logger,
	}
}

// StartTransfer begins or resumes a transfer. Idempotent.
func (e *Local) StartTransfer(ctx context.Context, id string) error {
	t, ok := e.registry.Get(id)
	if !ok {
		return domain.ErrTransferNotFound
	}

	status := domain.StatusDownloading
	if t.SizeLeft == 0 {
		status = domain.StatusSeeding
	}
	e.registry.SetStatus(id, status)
	e.logger.Info("transfer started", zap.String("transfer", id), zap.String("status", status.String()))
	return nil
}

// StopTransfer pauses a transfer. Idempotent.
func (e *Local) StopTransfer(ctx context.Context, id string) error {
	if _, ok := e.registry.Get(id); !ok {
		return domain.ErrTransferNotFound
	}
	e.registry.SetStatus(id, domain.StatusStopped)
	e.logger.Info("transfer stopped", zap.String("transfer", id))
	return nil
}

// RemoveTransfers removes transfers and, when deleteData is set, their
// payloads. It stops at the first failure so a partly removed batch is
// reported rather than papered over.
func (e *Local) RemoveTransfers(ctx context.Context, ids []string, deleteData bool) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, ok := e.registry.Get(id)
		if !ok {
			// Already gone; removal is idempotent per transfer.
			continue
		}

		e.registry.SetStatus(id, domain.StatusStopped)

		if deleteData {
			if err := os.RemoveAll(t.DataPath()); err != nil {
				return fmt.Errorf("%w: remove data for %s: %v", domain.ErrDeletionIncomplete, id, err)
			}
		}

		e.registry.Remove(id)
		e.logger.Info("transfer removed",
			zap.String("transfer", id),
			zap.Bool("with_data", deleteData),
			zap.Uint64("size", t.SizeWhenDone))
	}
	return nil
}

// TotalDiskNeeded reports in-flight byte reservations on a volume.
func (e *Local) TotalDiskNeeded(vol domain.VolumeID, groupID, excludingGroup int) uint64 {
	return e.registry.TotalDiskNeeded(vol, groupID, excludingGroup)
}
