package event

import (
	"time"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// TransferPausedForSpace is raised when the low-space watchdog or the
// admission flow stops a transfer because its volume lacks free space.
type TransferPausedForSpace struct {
	BaseEvent
	TransferID     string
	DownloadDir    string
	AvailableBytes uint64
}

// EventName returns the event name
func (e TransferPausedForSpace) EventName() string {
	return "transfer.paused_for_space"
}

// NewTransferPausedForSpace creates a new TransferPausedForSpace event
func NewTransferPausedForSpace(transferID, downloadDir string, availableBytes uint64) TransferPausedForSpace {
	return TransferPausedForSpace{
		BaseEvent:      BaseEvent{Timestamp: time.Now()},
		TransferID:     transferID,
		DownloadDir:    downloadDir,
		AvailableBytes: availableBytes,
	}
}

// TransferResumed is raised when an admission check finds enough space and
// restarts a transfer that was paused for disk space.
type TransferResumed struct {
	BaseEvent
	TransferID     string
	NeededBytes    uint64
	AvailableBytes uint64
	AfterEviction  bool
}

// EventName returns the event name
func (e TransferResumed) EventName() string {
	return "transfer.resumed"
}

// NewTransferResumed creates a new TransferResumed event
func NewTransferResumed(transferID string, needed, available uint64, afterEviction bool) TransferResumed {
	return TransferResumed{
		BaseEvent:      BaseEvent{Timestamp: time.Now()},
		TransferID:     transferID,
		NeededBytes:    needed,
		AvailableBytes: available,
		AfterEviction:  afterEviction,
	}
}

// EvictionPerformed is raised after the user confirmed an eviction plan and
// every candidate was removed.
type EvictionPerformed struct {
	BaseEvent
	TargetID       string
	RemovedIDs     []string
	ReclaimedBytes uint64
}

// EventName returns the event name
func (e EvictionPerformed) EventName() string {
	return "eviction.performed"
}

// NewEvictionPerformed creates a new EvictionPerformed event
func NewEvictionPerformed(targetID string, removedIDs []string, reclaimedBytes uint64) EvictionPerformed {
	return EvictionPerformed{
		BaseEvent:      BaseEvent{Timestamp: time.Now()},
		TargetID:       targetID,
		RemovedIDs:     removedIDs,
		ReclaimedBytes: reclaimedBytes,
	}
}

// EvictionFailed is raised when a confirmed eviction could not remove all
// of its candidates. The target transfer stays paused.
type EvictionFailed struct {
	BaseEvent
	TargetID string
	Error    string
}

// EventName returns the event name
func (e EvictionFailed) EventName() string {
	return "eviction.failed"
}

// NewEvictionFailed creates a new EvictionFailed event
func NewEvictionFailed(targetID, errMsg string) EvictionFailed {
	return EvictionFailed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		TargetID:  targetID,
		Error:     errMsg,
	}
}

// SpaceInsufficient is raised when a volume lacks space and no eviction
// plan can cover the deficit.
type SpaceInsufficient struct {
	BaseEvent
	TransferID       string
	Group            string
	NeededBytes      uint64
	ReclaimableBytes uint64
	Candidates       int
}

// EventName returns the event name
func (e SpaceInsufficient) EventName() string {
	return "space.insufficient"
}

// NewSpaceInsufficient creates a new SpaceInsufficient event
func NewSpaceInsufficient(transferID, group string, needed, reclaimable uint64, candidates int) SpaceInsufficient {
	return SpaceInsufficient{
		BaseEvent:        BaseEvent{Timestamp: time.Now()},
		TransferID:       transferID,
		Group:            group,
		NeededBytes:      needed,
		ReclaimableBytes: reclaimable,
		Candidates:       candidates,
	}
}
