package filesystem

import (
	"github.com/adrianov/diskadmit/internal/port"
)

// Prober reads volume capacity directly from the filesystem. It is
// stateless and safe for concurrent use.
// Platform-specific Probe implementations in prober_unix.go and
// prober_windows.go.
type Prober struct{}

// NewProber creates a new Prober
func NewProber() *Prober {
	return &Prober{}
}

// Ensure Prober implements port.CapacityProber
var _ port.CapacityProber = (*Prober)(nil)
