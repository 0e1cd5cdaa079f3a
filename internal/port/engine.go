package port

import (
	"context"

	"github.com/adrianov/diskadmit/internal/domain"
)

// Engine is the transfer engine this subsystem sits in front of. Start and
// stop are idempotent; removal is the only destructive call and blocks
// until the whole batch is handled, so callers run it off their hot path.
type Engine interface {
	// StartTransfer begins or resumes a transfer.
	StartTransfer(ctx context.Context, id string) error

	// StopTransfer pauses a transfer.
	StopTransfer(ctx context.Context, id string) error

	// RemoveTransfers removes a batch of transfers, with their downloaded
	// data when deleteData is set. An error means the batch did not fully
	// complete; some transfers may already be gone.
	RemoveTransfers(ctx context.Context, ids []string, deleteData bool) error

	// TotalDiskNeeded returns the bytes still reserved by actively
	// downloading transfers on the volume. When groupID is not
	// domain.NoGroup only that group is counted; when excludingGroup is
	// not domain.NoGroup that group is skipped.
	TotalDiskNeeded(vol domain.VolumeID, groupID, excludingGroup int) uint64
}
