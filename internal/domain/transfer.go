package domain

import (
	"path/filepath"
	"time"
)

// VolumeID is an opaque token identifying the filesystem a transfer
// downloads to. Two transfers share a VolumeID exactly when they live on
// the same mount. The zero value means the volume is not yet known.
type VolumeID uint64

// NoGroup is the group ID of transfers that have not been assigned to a
// group. It is also accepted by aggregate queries to disable group
// exclusion.
const NoGroup = -1

// Status is the engine-side activity state of a transfer.
type Status int

const (
	StatusStopped Status = iota
	StatusDownloading
	StatusSeeding
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusDownloading:
		return "downloading"
	case StatusSeeding:
		return "seeding"
	default:
		return "unknown"
	}
}

// Transfer is a managed download tracked by the engine. The admission
// subsystem holds a non-owning view of it; the only fields it mutates are
// the disk-space ones (PausedForDiskSpace, DiskDialogShown, LastProbeAt
// and the cached probe figures).
type Transfer struct {
	ID          string
	Name        string
	DownloadDir string
	Volume      VolumeID
	GroupID     int
	Status      Status

	// SizeWhenDone is the total bytes the transfer occupies at completion.
	// SizeLeft is the portion still to download.
	SizeWhenDone uint64
	SizeLeft     uint64

	AddedAt        time.Time
	LastActivityAt time.Time

	// PausedForDiskSpace marks a transfer the admission subsystem stopped
	// because its volume lacked space. It is the sole trigger for eviction
	// probing; transfers paused for any other reason never enter the flow.
	PausedForDiskSpace bool

	// DiskDialogShown guards against concurrent confirmation dialogs for
	// the same transfer. It must be cleared on every exit path of a check,
	// and it is deliberately not persisted: a restart has no dialog open.
	DiskDialogShown bool

	LastProbeAt time.Time

	// Figures cached from the most recent capacity probe.
	DiskSpaceNeeded    uint64
	DiskSpaceAvailable uint64
	DiskSpaceTotal     uint64
}

// EffectiveActivity returns the timestamp used for eviction recency
// ordering: the later of last activity and the time the transfer was
// added. The zero time means no recorded activity at all, which sorts as
// oldest.
func (t *Transfer) EffectiveActivity() time.Time {
	if t.LastActivityAt.After(t.AddedAt) {
		return t.LastActivityAt
	}
	return t.AddedAt
}

// DataPath returns where the transfer's payload lives on disk.
func (t *Transfer) DataPath() string {
	return filepath.Join(t.DownloadDir, t.Name)
}
