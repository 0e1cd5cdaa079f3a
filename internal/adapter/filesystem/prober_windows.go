//go:build windows
// +build windows

package filesystem

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
)

// Probe returns free space, total space and the volume identity for path.
// The identity is the volume serial number of the drive holding path.
func (p *Prober) Probe(ctx context.Context, path string) (*port.CapacityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("convert path %s: %w", path, err)
	}

	var freeAvailable, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeAvailable, &total, &totalFree); err != nil {
		return nil, fmt.Errorf("get disk free space for %s: %w", path, err)
	}

	root := filepath.VolumeName(path) + `\`
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return nil, fmt.Errorf("convert volume root %s: %w", root, err)
	}

	var serial uint32
	if err := windows.GetVolumeInformation(rootPtr, nil, 0, &serial, nil, nil, nil, 0); err != nil {
		return nil, fmt.Errorf("get volume information for %s: %w", root, err)
	}

	return &port.CapacityReport{
		AvailableBytes: freeAvailable,
		TotalBytes:     total,
		Volume:         domain.VolumeID(serial),
	}, nil
}
