package domain

import "github.com/dustin/go-humanize"

// ByteSize is a byte quantity that renders human-readable in user-facing
// text and logs.
type ByteSize uint64

const GiB ByteSize = 1 << 30

// String formats the size in binary units (KiB, MiB, GiB).
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Bytes returns the raw byte count.
func (b ByteSize) Bytes() uint64 {
	return uint64(b)
}
