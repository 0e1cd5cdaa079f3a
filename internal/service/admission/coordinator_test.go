package admission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
)

// mockEngine implements port.Engine for testing
type mockEngine struct {
	mu         sync.Mutex
	reg        *registry.Registry
	started    []string
	stopped    []string
	removed    []string
	removeErr  error
	diskNeeded uint64
}

func (m *mockEngine) StartTransfer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, id)
	return nil
}

func (m *mockEngine) StopTransfer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, id)
	return nil
}

func (m *mockEngine) RemoveTransfers(ctx context.Context, ids []string, deleteData bool) error {
	m.mu.Lock()
	if m.removeErr != nil {
		err := m.removeErr
		m.mu.Unlock()
		return err
	}
	m.removed = append(m.removed, ids...)
	m.mu.Unlock()

	if m.reg != nil {
		for _, id := range ids {
			m.reg.Remove(id)
		}
	}
	return nil
}

func (m *mockEngine) TotalDiskNeeded(vol domain.VolumeID, groupID, excludingGroup int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diskNeeded
}

func (m *mockEngine) startedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

func (m *mockEngine) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

// mockProber implements port.CapacityProber; each probe consumes the next
// queued report, the last one is sticky.
type mockProber struct {
	mu      sync.Mutex
	reports []*port.CapacityReport
	err     error
	probes  int
}

func (m *mockProber) Probe(ctx context.Context, path string) (*port.CapacityReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.err != nil {
		return nil, m.err
	}
	rep := m.reports[0]
	if len(m.reports) > 1 {
		m.reports = m.reports[1:]
	}
	return rep, nil
}

func (m *mockProber) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// mockPresenter implements port.Presenter; presentations arrive on
// buffered channels.
type mockPresenter struct {
	errors        chan string
	confirmations chan *port.ConfirmationRequest
}

func newMockPresenter() *mockPresenter {
	return &mockPresenter{
		errors:        make(chan string, 8),
		confirmations: make(chan *port.ConfirmationRequest, 8),
	}
}

func (m *mockPresenter) ShowError(title, message string) {
	m.errors <- message
}

func (m *mockPresenter) ShowConfirmation(req *port.ConfirmationRequest) {
	m.confirmations <- req
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fixture struct {
	reg         *registry.Registry
	engine      *mockEngine
	prober      *mockProber
	presenter   *mockPresenter
	coordinator *Coordinator
}

func newFixture(t *testing.T, prober *mockProber) *fixture {
	t.Helper()
	reg := registry.New(nil, zap.NewNop())
	eng := &mockEngine{reg: reg}
	presenter := newMockPresenter()
	cfg := &Config{
		ThrottleWindow: 150 * time.Millisecond,
		Groups:         map[int]string{7: "TV Shows"},
	}
	c := New(cfg, reg, eng, prober, presenter, nil, zap.NewNop())
	t.Cleanup(c.Close)
	return &fixture{reg: reg, engine: eng, prober: prober, presenter: presenter, coordinator: c}
}

func pausedTransfer(id string, group int, sizeLeft uint64) *domain.Transfer {
	return &domain.Transfer{
		ID:                 id,
		Name:               id,
		DownloadDir:        "/downloads",
		GroupID:            group,
		SizeWhenDone:       sizeLeft,
		SizeLeft:           sizeLeft,
		AddedAt:            time.Now(),
		PausedForDiskSpace: true,
	}
}

func addCandidate(t *testing.T, f *fixture, id string, group int, size uint64, activity time.Time) {
	t.Helper()
	if err := f.reg.Add(&domain.Transfer{
		ID:             id,
		Name:           id,
		DownloadDir:    "/downloads",
		Volume:         5,
		GroupID:        group,
		SizeWhenDone:   size,
		LastActivityAt: activity,
	}); err != nil {
		t.Fatalf("add candidate %s: %v", id, err)
	}
}

func TestCoordinator_SufficientSpaceResumes(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 20 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatalf("CheckDiskSpace() error = %v", err)
	}

	waitFor(t, "transfer to start", func() bool {
		return len(f.engine.startedIDs()) == 1
	})

	got, _ := f.reg.Get("t1")
	if got.PausedForDiskSpace {
		t.Error("transfer still paused for disk space after admit")
	}
	if got.DiskSpaceAvailable != 20*gb || got.DiskSpaceNeeded != 10*gb {
		t.Errorf("cached probe figures = %d/%d, want 20GiB available, 10GiB needed",
			got.DiskSpaceAvailable, got.DiskSpaceNeeded)
	}
}

func TestCoordinator_Dedup(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}
	base := time.Now()
	addCandidate(t, f, "a", 7, 3*gb, base.Add(-3*time.Hour))
	addCandidate(t, f, "b", 7, 5*gb, base.Add(-2*time.Hour))

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatalf("first CheckDiskSpace() error = %v", err)
	}

	// Wait until the first cycle is parked on its confirmation, then hit
	// the coordinator again: the second call must be an outright no-op.
	var req *port.ConfirmationRequest
	select {
	case req = <-f.presenter.confirmations:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation presented")
	}

	if err := f.coordinator.CheckDiskSpace("t1"); !errors.Is(err, domain.ErrCheckInProgress) {
		t.Fatalf("second CheckDiskSpace() error = %v, want ErrCheckInProgress", err)
	}
	if err := f.coordinator.ResumeRequest("t1", true); !errors.Is(err, domain.ErrCheckInProgress) {
		t.Fatalf("ResumeRequest during cycle error = %v, want ErrCheckInProgress", err)
	}

	select {
	case <-f.presenter.confirmations:
		t.Fatal("second confirmation presented for the same transfer")
	case <-time.After(100 * time.Millisecond):
	}

	req.Cancel()
}

func TestCoordinator_InsufficientCandidates(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}
	addCandidate(t, f, "d", 7, 1*gb, time.Now().Add(-time.Hour))

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatalf("CheckDiskSpace() error = %v", err)
	}

	var msg string
	select {
	case msg = <-f.presenter.errors:
	case <-time.After(2 * time.Second):
		t.Fatal("no error presented")
	}

	// The message carries the group name and both byte quantities.
	for _, want := range []string{"TV Shows", "6.0 GiB", "1.0 GiB"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q does not mention %q", msg, want)
		}
	}

	got, _ := f.reg.Get("t1")
	if !got.PausedForDiskSpace {
		t.Error("transfer no longer paused after insufficient candidates")
	}
	if got.DiskDialogShown {
		t.Error("dialog guard left set")
	}
	if len(f.engine.removedIDs()) != 0 {
		t.Error("deletion offered despite insufficient candidates")
	}
}

func TestCoordinator_NoCandidatesErrorText(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatal(err)
	}

	var msg string
	select {
	case msg = <-f.presenter.errors:
	case <-time.After(2 * time.Second):
		t.Fatal("no error presented")
	}

	if !strings.Contains(msg, "no other transfers") {
		t.Errorf("zero-candidate error %q should differ from the not-enough case", msg)
	}
}

func TestCoordinator_ConfirmEvictsAndResumes(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
		{AvailableBytes: 12 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}
	base := time.Now()
	addCandidate(t, f, "a", 7, 3*gb, base.Add(-3*time.Hour))
	addCandidate(t, f, "b", 7, 5*gb, base.Add(-2*time.Hour))
	addCandidate(t, f, "c", 7, 2*gb, base.Add(-1*time.Hour))

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatal(err)
	}

	var req *port.ConfirmationRequest
	select {
	case req = <-f.presenter.confirmations:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation presented")
	}

	// Greedy selection stops after b; c stays out of the plan.
	wantCandidates := []string{"a", "b"}
	if len(req.Candidates) != len(wantCandidates) {
		t.Fatalf("candidates = %v, want %v", req.Candidates, wantCandidates)
	}
	for i, want := range wantCandidates {
		if req.Candidates[i].ID != want {
			t.Errorf("candidate %d = %s, want %s", i, req.Candidates[i].ID, want)
		}
	}
	if req.FreedBytes != 8*gb || req.Deficit != 6*gb {
		t.Errorf("freed/deficit = %d/%d, want 8GiB/6GiB", req.FreedBytes, req.Deficit)
	}

	req.Confirm()

	waitFor(t, "target to resume after eviction", func() bool {
		return len(f.engine.startedIDs()) == 1
	})

	removed := f.engine.removedIDs()
	if len(removed) != 2 || removed[0] != "a" || removed[1] != "b" {
		t.Errorf("removed = %v, want [a b]", removed)
	}
	if _, ok := f.reg.Get("c"); !ok {
		t.Error("transfer c was removed but was not in the plan")
	}

	got, _ := f.reg.Get("t1")
	if got.PausedForDiskSpace || got.DiskDialogShown {
		t.Errorf("after resume: paused=%v dialog=%v, want both false", got.PausedForDiskSpace, got.DiskDialogShown)
	}
	if prober.probeCount() != 2 {
		t.Errorf("probes = %d, want exactly one re-probe after deletion", prober.probeCount())
	}
}

func TestCoordinator_CancelLeavesPausedAndReentrant(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}
	addCandidate(t, f, "a", 7, 8*gb, time.Now().Add(-time.Hour))

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatal(err)
	}

	var req *port.ConfirmationRequest
	select {
	case req = <-f.presenter.confirmations:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation presented")
	}

	req.Cancel()

	waitFor(t, "dialog guard to clear", func() bool {
		got, _ := f.reg.Get("t1")
		return !got.DiskDialogShown
	})

	got, _ := f.reg.Get("t1")
	if !got.PausedForDiskSpace {
		t.Error("cancel should leave the transfer paused")
	}
	if len(f.engine.removedIDs()) != 0 {
		t.Error("cancel must not delete anything")
	}

	// An explicit resume re-enters admission from scratch.
	if err := f.coordinator.ResumeRequest("t1", true); err != nil {
		t.Fatalf("ResumeRequest after cancel error = %v", err)
	}
	select {
	case <-f.presenter.confirmations:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation after re-entry")
	}
}

func TestCoordinator_ProbeFailureSilent(t *testing.T) {
	prober := &mockProber{err: errors.New("statfs: no such file or directory")}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatal(err)
	}

	// The cycle must end without presenting anything and without touching
	// the pause flag; a later trigger is free to run.
	waitFor(t, "cycle to clear", func() bool {
		err := f.coordinator.CheckDiskSpace("t1")
		return !errors.Is(err, domain.ErrCheckInProgress)
	})

	select {
	case msg := <-f.presenter.errors:
		t.Fatalf("probe failure surfaced to the user: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}

	got, _ := f.reg.Get("t1")
	if !got.PausedForDiskSpace || got.DiskDialogShown {
		t.Errorf("after probe failure: paused=%v dialog=%v, want true/false", got.PausedForDiskSpace, got.DiskDialogShown)
	}
}

func TestCoordinator_DeletionFailureLeavesPaused(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)
	f.engine.removeErr = domain.ErrDeletionIncomplete

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}
	addCandidate(t, f, "a", 7, 8*gb, time.Now().Add(-time.Hour))

	if err := f.coordinator.CheckDiskSpace("t1"); err != nil {
		t.Fatal(err)
	}

	var req *port.ConfirmationRequest
	select {
	case req = <-f.presenter.confirmations:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation presented")
	}
	req.Confirm()

	waitFor(t, "cycle to clear after failed deletion", func() bool {
		err := f.coordinator.CheckDiskSpace("t1")
		if errors.Is(err, domain.ErrCheckInProgress) {
			return false
		}
		// Drain whatever that extra check presented.
		select {
		case r := <-f.presenter.confirmations:
			r.Cancel()
		default:
		}
		return true
	})

	got, _ := f.reg.Get("t1")
	if !got.PausedForDiskSpace {
		t.Error("transfer resumed despite incomplete deletion")
	}
	if len(f.engine.startedIDs()) != 0 {
		t.Error("transfer started despite incomplete deletion")
	}
}

func TestCoordinator_ResumeThrottle(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	if err := f.reg.Add(pausedTransfer("t1", 7, 10*gb)); err != nil {
		t.Fatal(err)
	}

	// First periodic resume probes; draining the error marks cycle end.
	if err := f.coordinator.ResumeRequest("t1", false); err != nil {
		t.Fatalf("first ResumeRequest error = %v", err)
	}
	select {
	case <-f.presenter.errors:
	case <-time.After(2 * time.Second):
		t.Fatal("first resume did not probe")
	}

	// Second periodic resume inside the window leaves state untouched.
	if err := f.coordinator.ResumeRequest("t1", false); err != nil {
		t.Fatalf("throttled ResumeRequest error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := prober.probeCount(); got != 1 {
		t.Fatalf("probes after throttled resume = %d, want 1", got)
	}

	// Explicit user action probes regardless of the window. The previous
	// cycle may still be winding down, so retry past ErrCheckInProgress.
	waitFor(t, "bypass resume to probe", func() bool {
		if err := f.coordinator.ResumeRequest("t1", true); err != nil && !errors.Is(err, domain.ErrCheckInProgress) {
			t.Fatalf("bypass ResumeRequest error = %v", err)
		}
		return prober.probeCount() >= 2
	})
}

func TestCoordinator_ResumeStartsUnpausedDirectly(t *testing.T) {
	prober := &mockProber{reports: []*port.CapacityReport{
		{AvailableBytes: 4 * gb, TotalBytes: 100 * gb, Volume: 5},
	}}
	f := newFixture(t, prober)

	tr := pausedTransfer("t1", 7, 10*gb)
	tr.PausedForDiskSpace = false
	if err := f.reg.Add(tr); err != nil {
		t.Fatal(err)
	}

	if err := f.coordinator.ResumeRequest("t1", false); err != nil {
		t.Fatalf("ResumeRequest error = %v", err)
	}

	if got := f.engine.startedIDs(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("started = %v, want [t1]", got)
	}
	if prober.probeCount() != 0 {
		t.Errorf("probes = %d, want 0 for a transfer not paused for space", prober.probeCount())
	}
}
