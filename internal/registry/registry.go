package registry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
)

// Registry is the shared collection of transfers. All reads hand out
// copies, so callers iterate stable snapshots while deletions and flag
// changes land concurrently. Disk-admission state changes are written
// through to the repository when one is configured.
type Registry struct {
	mu        sync.RWMutex
	transfers map[string]*domain.Transfer
	order     []string

	repo   port.TransferRepository
	logger *zap.Logger
}

// New creates a new Registry. repo may be nil for a purely in-memory
// collection.
func New(repo port.TransferRepository, logger *zap.Logger) *Registry {
	return &Registry{
		transfers: make(map[string]*domain.Transfer),
		repo:      repo,
		logger:    logger,
	}
}

// Load hydrates the registry from the repository. Transfers come back
// stopped: whether they were downloading before shutdown is the engine's
// business, but paused-for-disk-space survives so admission picks them
// back up.
func (r *Registry) Load() error {
	if r.repo == nil {
		return nil
	}

	stored, err := r.repo.List()
	if err != nil {
		return fmt.Errorf("load transfers: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range stored {
		cp := *t
		cp.Status = domain.StatusStopped
		cp.DiskDialogShown = false
		r.transfers[cp.ID] = &cp
		r.order = append(r.order, cp.ID)
	}

	r.logger.Info("transfers loaded", zap.Int("count", len(stored)))
	return nil
}

// Add registers a new transfer.
func (r *Registry) Add(t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transfers[t.ID]; ok {
		return domain.ErrTransferExists
	}

	cp := *t
	r.transfers[cp.ID] = &cp
	r.order = append(r.order, cp.ID)
	if err := r.persist(&cp); err != nil {
		r.logger.Warn("failed to persist new transfer", zap.String("transfer", cp.ID), zap.Error(err))
	}
	return nil
}

// Remove drops a transfer from the collection and the repository.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transfers[id]; !ok {
		return
	}
	delete(r.transfers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.repo != nil {
		if err := r.repo.Delete(id); err != nil {
			r.logger.Warn("failed to delete stored transfer", zap.String("transfer", id), zap.Error(err))
		}
	}
}

// Get returns a copy of the transfer with the given id.
func (r *Registry) Get(id string) (domain.Transfer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transfers[id]
	if !ok {
		return domain.Transfer{}, false
	}
	return *t, true
}

// Snapshot returns copies of all transfers in insertion order. The result
// is safe to iterate while the live collection keeps changing.
func (r *Registry) Snapshot() []domain.Transfer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Transfer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.transfers[id])
	}
	return out
}

// SetStatus updates the engine-side activity state.
func (r *Registry) SetStatus(id string, status domain.Status) {
	r.update(id, func(t *domain.Transfer) {
		t.Status = status
		if status == domain.StatusDownloading || status == domain.StatusSeeding {
			t.LastActivityAt = time.Now()
		}
	})
}

// SetPausedForDiskSpace flips the disk-space pause flag.
func (r *Registry) SetPausedForDiskSpace(id string, paused bool) {
	r.update(id, func(t *domain.Transfer) {
		t.PausedForDiskSpace = paused
	})
}

// SetDialogShown flips the outstanding-dialog guard.
func (r *Registry) SetDialogShown(id string, shown bool) {
	r.update(id, func(t *domain.Transfer) {
		t.DiskDialogShown = shown
	})
}

// RecordProbe stores the figures from a capacity probe on the transfer.
func (r *Registry) RecordProbe(id string, needed, available, total uint64, at time.Time) {
	r.update(id, func(t *domain.Transfer) {
		t.LastProbeAt = at
		t.DiskSpaceNeeded = needed
		t.DiskSpaceAvailable = available
		t.DiskSpaceTotal = total
	})
}

// SetVolume records the volume identity learned from a probe.
func (r *Registry) SetVolume(id string, vol domain.VolumeID) {
	r.update(id, func(t *domain.Transfer) {
		t.Volume = vol
	})
}

// TotalDiskNeeded sums SizeLeft over actively downloading transfers on the
// volume. groupID, when not domain.NoGroup, restricts the sum to that
// group; excludingGroup, when not domain.NoGroup, skips that group.
// Paused transfers reserve nothing.
func (r *Registry) TotalDiskNeeded(vol domain.VolumeID, groupID, excludingGroup int) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total uint64
	for _, t := range r.transfers {
		if t.Volume != vol || t.Status != domain.StatusDownloading {
			continue
		}
		if groupID != domain.NoGroup && t.GroupID != groupID {
			continue
		}
		if excludingGroup != domain.NoGroup && t.GroupID == excludingGroup {
			continue
		}
		total += t.SizeLeft
	}
	return total
}

// TotalDiskUsage sums the on-disk footprint of all transfers on the
// volume.
func (r *Registry) TotalDiskUsage(vol domain.VolumeID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total uint64
	for _, t := range r.transfers {
		if t.Volume != vol {
			continue
		}
		total += t.SizeWhenDone - t.SizeLeft
	}
	return total
}

// update applies fn to the live transfer under the lock and persists the
// result.
func (r *Registry) update(id string, fn func(*domain.Transfer)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[id]
	if !ok {
		return
	}
	fn(t)
	if err := r.persist(t); err != nil {
		r.logger.Warn("failed to persist transfer state", zap.String("transfer", id), zap.Error(err))
	}
}

func (r *Registry) persist(t *domain.Transfer) error {
	if r.repo == nil {
		return nil
	}
	cp := *t
	return r.repo.Upsert(&cp)
}
