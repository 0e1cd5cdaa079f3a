package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/domain/event"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
	"github.com/adrianov/diskadmit/internal/util/throttle"
)

// Config contains admission configuration
type Config struct {
	// ThrottleWindow bounds how often a paused transfer is re-probed by
	// periodic triggers. Explicit user actions always bypass it.
	ThrottleWindow time.Duration

	// Groups maps group ids to display names for user-facing text.
	Groups map[int]string
}

// DefaultConfig returns default admission configuration
func DefaultConfig() *Config {
	return &Config{
		ThrottleWindow: 5 * time.Second,
	}
}

// cycleStage is the state of one transfer's admission cycle. A transfer
// with no entry in the cycle map is idle; the map entry doubles as the
// mutual-exclusion guard, so a second trigger while any stage is live is a
// no-op.
type cycleStage int

const (
	stageProbing cycleStage = iota
	stageAwaitingDecision
	stageDeleting
	stageReprobing
)

// Coordinator drives disk-space admission checks. Each paused-for-space
// transfer gets at most one cycle at a time: probe the volume, resume if
// it fits, otherwise select eviction candidates and route the decision
// through the presenter. Probing and deletion run on background
// goroutines; all flag and stage mutation goes through the registry and
// the cycle map.
type Coordinator struct {
	cfg       *Config
	registry  *registry.Registry
	engine    port.Engine
	prober    port.CapacityProber
	presenter port.Presenter
	events    event.EventDispatcher
	logger    *zap.Logger
	throttle  *throttle.Keyed

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	cycles map[string]cycleStage
}

// New creates a new Coordinator
func New(cfg *Config, reg *registry.Registry, engine port.Engine, prober port.CapacityProber, presenter port.Presenter, events event.EventDispatcher, logger *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ThrottleWindow == 0 {
		cfg.ThrottleWindow = 5 * time.Second
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:       cfg,
		registry:  reg,
		engine:    engine,
		prober:    prober,
		presenter: presenter,
		events:    events,
		logger:    logger,
		throttle:  throttle.NewKeyed(cfg.ThrottleWindow),
		ctx:       ctx,
		cancel:    cancel,
		cycles:    make(map[string]cycleStage),
	}
}

// Close abandons in-flight cycles and waits for their goroutines. Cycles
// blocked on a user decision stay unresolved; no disk state is held, so
// dropping them is safe.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// CheckDiskSpace runs one admission cycle for a transfer that is paused
// for disk space. Returns domain.ErrCheckInProgress if a cycle is already
// outstanding for it (callers treat that as a no-op) and nil immediately
// otherwise; the cycle itself proceeds in the background.
func (c *Coordinator) CheckDiskSpace(id string) error {
	t, ok := c.registry.Get(id)
	if !ok {
		return domain.ErrTransferNotFound
	}
	if !t.PausedForDiskSpace {
		return nil
	}

	if err := c.beginCycle(id); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runCycle(t)
	}()
	return nil
}

// beginCycle claims the per-transfer cycle slot.
func (c *Coordinator) beginCycle(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.cycles[id]; busy {
		return domain.ErrCheckInProgress
	}
	c.cycles[id] = stageProbing
	return nil
}

// endCycle releases the cycle slot. Every cycle exit path funnels through
// here, which is what keeps the dialog guard from leaking.
func (c *Coordinator) endCycle(id string) {
	c.registry.SetDialogShown(id, false)
	c.mu.Lock()
	delete(c.cycles, id)
	c.mu.Unlock()
}

func (c *Coordinator) setStage(id string, stage cycleStage) {
	c.mu.Lock()
	if _, ok := c.cycles[id]; ok {
		c.cycles[id] = stage
	}
	c.mu.Unlock()
}

// runCycle performs the probe and drives one of the three outcomes:
// sufficient space, insufficient candidates, or needs confirmation.
func (c *Coordinator) runCycle(t domain.Transfer) {
	c.throttle.Force(t.ID)

	rep, err := c.prober.Probe(c.ctx, t.DownloadDir)
	if err != nil {
		// Cannot determine capacity this cycle. Leave the transfer paused;
		// the next timer tick or explicit resume retries.
		c.logger.Warn("capacity probe failed",
			zap.String("transfer", t.ID),
			zap.String("download_dir", t.DownloadDir),
			zap.Error(err))
		c.endCycle(t.ID)
		return
	}
	c.registry.SetVolume(t.ID, rep.Volume)

	needed := t.SizeLeft + c.engine.TotalDiskNeeded(rep.Volume, t.GroupID, domain.NoGroup)
	c.registry.RecordProbe(t.ID, needed, rep.AvailableBytes, rep.TotalBytes, time.Now())

	if rep.AvailableBytes >= needed {
		c.admit(t.ID, needed, rep.AvailableBytes, false)
		c.endCycle(t.ID)
		return
	}

	deficit := needed - rep.AvailableBytes
	plan := SelectCandidates(c.registry.Snapshot(), t.ID, rep.Volume, t.GroupID, deficit)
	group := c.groupName(t.GroupID)

	c.logger.Debug("disk space deficit",
		zap.String("transfer", t.ID),
		zap.Uint64("needed_bytes", needed),
		zap.Uint64("available_bytes", rep.AvailableBytes),
		zap.Uint64("deficit_bytes", deficit),
		zap.Int("candidates", len(plan.Candidates)))

	if len(plan.Candidates) == 0 || !plan.Sufficient() {
		spaceErr := domain.NewInsufficientSpaceError(group,
			domain.ByteSize(deficit), domain.ByteSize(plan.TotalReclaimable), len(plan.Candidates))
		c.events.Dispatch(event.NewSpaceInsufficient(t.ID, group, deficit, plan.TotalReclaimable, len(plan.Candidates)))
		c.presenter.ShowError(
			fmt.Sprintf("Not enough space to download %q", t.Name),
			spaceErr.Error())
		c.endCycle(t.ID)
		return
	}

	c.setStage(t.ID, stageAwaitingDecision)
	c.registry.SetDialogShown(t.ID, true)

	req := c.buildConfirmation(t, plan, deficit, group)
	c.logger.Info("eviction confirmation requested",
		zap.String("transfer", t.ID),
		zap.String("confirmation", req.ID),
		zap.Int("candidates", len(plan.Candidates)),
		zap.Uint64("freed_bytes", plan.TotalReclaimable))
	c.presenter.ShowConfirmation(req)
}

func (c *Coordinator) buildConfirmation(t domain.Transfer, plan *EvictionPlan, deficit uint64, group string) *port.ConfirmationRequest {
	summaries := make([]port.CandidateSummary, len(plan.Candidates))
	for i, cand := range plan.Candidates {
		summaries[i] = port.CandidateSummary{ID: cand.ID, Name: cand.Name, Size: cand.SizeWhenDone}
	}

	message := fmt.Sprintf(
		"%s more is needed in %s. Removing the %d least recently used transfer(s) there frees %s. The downloaded data will be deleted and cannot be recovered.",
		domain.ByteSize(deficit), group, len(plan.Candidates), domain.ByteSize(plan.TotalReclaimable))

	return port.NewConfirmationRequest(
		t.ID,
		fmt.Sprintf("Not enough space to download %q", t.Name),
		message,
		summaries,
		plan.TotalReclaimable,
		deficit,
		func(confirmed bool) { c.onDecision(t, plan, confirmed) },
	)
}

// onDecision resumes the cycle when the asynchronous user decision
// arrives, however much later that is.
func (c *Coordinator) onDecision(t domain.Transfer, plan *EvictionPlan, confirmed bool) {
	c.registry.SetDialogShown(t.ID, false)

	if !confirmed {
		c.logger.Debug("eviction declined", zap.String("transfer", t.ID))
		c.endCycle(t.ID)
		return
	}

	c.setStage(t.ID, stageDeleting)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.deleteAndReprobe(t, plan)
	}()
}

// deleteAndReprobe removes the confirmed candidates, then re-probes the
// volume once. The removals are assumed to have freed the computed
// deficit, so there is no retry loop.
func (c *Coordinator) deleteAndReprobe(t domain.Transfer, plan *EvictionPlan) {
	ids := plan.CandidateIDs()
	if err := c.engine.RemoveTransfers(c.ctx, ids, true); err != nil {
		// Do not resume the target and do not retry: another automatic
		// destructive prompt is worse than waiting for an explicit resume.
		c.logger.Error("eviction incomplete, transfer stays paused",
			zap.String("transfer", t.ID),
			zap.Strings("candidates", ids),
			zap.Error(err))
		c.events.Dispatch(event.NewEvictionFailed(t.ID, err.Error()))
		c.endCycle(t.ID)
		return
	}
	c.events.Dispatch(event.NewEvictionPerformed(t.ID, ids, plan.TotalReclaimable))

	c.setStage(t.ID, stageReprobing)
	c.throttle.Force(t.ID)

	rep, err := c.prober.Probe(c.ctx, t.DownloadDir)
	if err != nil {
		c.logger.Warn("re-probe after eviction failed",
			zap.String("transfer", t.ID),
			zap.Error(err))
		c.endCycle(t.ID)
		return
	}

	cur, ok := c.registry.Get(t.ID)
	if !ok {
		c.endCycle(t.ID)
		return
	}
	needed := cur.SizeLeft + c.engine.TotalDiskNeeded(rep.Volume, cur.GroupID, domain.NoGroup)
	c.registry.RecordProbe(t.ID, needed, rep.AvailableBytes, rep.TotalBytes, time.Now())

	if rep.AvailableBytes >= needed {
		c.admit(t.ID, needed, rep.AvailableBytes, true)
	} else {
		c.logger.Warn("volume still short after eviction, transfer stays paused",
			zap.String("transfer", t.ID),
			zap.Uint64("needed_bytes", needed),
			zap.Uint64("available_bytes", rep.AvailableBytes))
	}
	c.endCycle(t.ID)
}

// admit clears the disk-space pause and restarts the transfer.
func (c *Coordinator) admit(id string, needed, available uint64, afterEviction bool) {
	c.registry.SetPausedForDiskSpace(id, false)
	if err := c.engine.StartTransfer(c.ctx, id); err != nil {
		c.logger.Error("failed to start transfer", zap.String("transfer", id), zap.Error(err))
		return
	}
	c.events.Dispatch(event.NewTransferResumed(id, needed, available, afterEviction))
}

func (c *Coordinator) groupName(id int) string {
	if name, ok := c.cfg.Groups[id]; ok {
		return name
	}
	if id == domain.NoGroup {
		return "the default group"
	}
	return fmt.Sprintf("group %d", id)
}
