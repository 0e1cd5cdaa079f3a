//go:build !windows
// +build !windows

package filesystem

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
)

// Probe returns free space, total space and the volume identity for path.
// The identity is the filesystem id packed into a uint64, so paths on the
// same mount always report the same token.
func (p *Prober) Probe(ctx context.Context, path string) (*port.CapacityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(st.Bsize)
	return &port.CapacityReport{
		AvailableBytes: uint64(st.Bavail) * bsize,
		TotalBytes:     uint64(st.Blocks) * bsize,
		Volume:         volumeID(&st),
	}, nil
}

func volumeID(st *unix.Statfs_t) domain.VolumeID {
	return domain.VolumeID(uint64(uint32(st.Fsid.Val[0]))<<32 | uint64(uint32(st.Fsid.Val[1])))
}
