package port

import (
	"context"

	"github.com/adrianov/diskadmit/internal/domain"
)

// CapacityReport is a best-effort snapshot of a volume's capacity. The
// figures race with other processes writing to the same filesystem, so
// callers must not treat them as reservations.
type CapacityReport struct {
	AvailableBytes uint64
	TotalBytes     uint64
	Volume         domain.VolumeID
}

// CapacityProber reads free space, total space and a volume identity token
// for a filesystem path. Pure query, no side effects. An error means the
// capacity could not be determined this cycle; callers skip eviction
// rather than assume either outcome.
type CapacityProber interface {
	Probe(ctx context.Context, path string) (*CapacityReport, error)
}
