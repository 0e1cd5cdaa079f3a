package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/domain/event"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
	"github.com/adrianov/diskadmit/internal/service/admission"
)

// Config contains monitor service configuration
type Config struct {
	// RefreshInterval is how often paused-for-space transfers are re-driven
	// through the throttled resume path.
	RefreshInterval time.Duration

	// WatchdogInterval is how often active downloads are swept for
	// low-space volumes.
	WatchdogInterval time.Duration

	// MinFreeBytes is the free-space floor below which active downloads on
	// a volume are paused.
	MinFreeBytes uint64
}

// DefaultConfig returns default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:  10 * time.Second,
		WatchdogInterval: time.Minute,
		MinFreeBytes:     domain.GiB.Bytes(),
	}
}

// Service runs the periodic disk-space loops: the refresh tick that keeps
// nudging paused transfers back through admission, and the watchdog that
// pauses active downloads when their volume runs low.
type Service struct {
	config      *Config
	registry    *registry.Registry
	coordinator *admission.Coordinator
	engine      port.Engine
	prober      port.CapacityProber
	events      event.EventDispatcher
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new monitor Service
func New(cfg *Config, reg *registry.Registry, coordinator *admission.Coordinator, eng port.Engine, prober port.CapacityProber, events event.EventDispatcher, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = time.Minute
	}
	if cfg.MinFreeBytes == 0 {
		cfg.MinFreeBytes = domain.GiB.Bytes()
	}
	if events == nil {
		events = event.NewNullDispatcher()
	}

	return &Service{
		config:      cfg,
		registry:    reg,
		coordinator: coordinator,
		engine:      eng,
		prober:      prober,
		events:      events,
		logger:      logger,
	}
}

// Start starts the monitor service
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("monitor service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("monitor service started",
		zap.Duration("refresh_interval", s.config.RefreshInterval),
		zap.Duration("watchdog_interval", s.config.WatchdogInterval),
		zap.Uint64("min_free_bytes", s.config.MinFreeBytes))

	s.wg.Add(1)
	go s.loop(ctx)

	<-ctx.Done()
	return ctx.Err()
}

// Stop stops the monitor service
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("monitor service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	refresh := time.NewTicker(s.config.RefreshInterval)
	defer refresh.Stop()
	watchdog := time.NewTicker(s.config.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			s.redrivePaused()
		case <-watchdog.C:
			s.pauseLowSpaceDownloads(ctx)
		}
	}
}

// redrivePaused pushes every paused-for-space transfer through the
// throttled resume path. The throttle keeps this from probing any volume
// more than once per window no matter how short the refresh interval is.
func (s *Service) redrivePaused() {
	for _, t := range s.registry.Snapshot() {
		if !t.PausedForDiskSpace {
			continue
		}
		err := s.coordinator.ResumeRequest(t.ID, false)
		if err != nil && !errors.Is(err, domain.ErrCheckInProgress) {
			s.logger.Warn("periodic resume failed", zap.String("transfer", t.ID), zap.Error(err))
		}
	}
}

// pauseLowSpaceDownloads probes each download directory with active
// downloads once and pauses everything on volumes below the free-space
// floor. Paused transfers re-enter through the normal admission path.
func (s *Service) pauseLowSpaceDownloads(ctx context.Context) {
	byDir := make(map[string][]domain.Transfer)
	for _, t := range s.registry.Snapshot() {
		if t.Status != domain.StatusDownloading || t.DownloadDir == "" {
			continue
		}
		byDir[t.DownloadDir] = append(byDir[t.DownloadDir], t)
	}

	for dir, transfers := range byDir {
		rep, err := s.prober.Probe(ctx, dir)
		if err != nil {
			s.logger.Warn("watchdog probe failed", zap.String("download_dir", dir), zap.Error(err))
			continue
		}
		if rep.AvailableBytes >= s.config.MinFreeBytes {
			continue
		}

		s.logger.Warn("volume low on space, pausing downloads",
			zap.String("download_dir", dir),
			zap.Uint64("available_bytes", rep.AvailableBytes),
			zap.Int("transfers", len(transfers)))

		for _, t := range transfers {
			if err := s.engine.StopTransfer(ctx, t.ID); err != nil {
				s.logger.Warn("failed to stop transfer", zap.String("transfer", t.ID), zap.Error(err))
				continue
			}
			s.registry.SetPausedForDiskSpace(t.ID, true)
			s.registry.SetVolume(t.ID, rep.Volume)
			s.events.Dispatch(event.NewTransferPausedForSpace(t.ID, dir, rep.AvailableBytes))
		}
	}
}
