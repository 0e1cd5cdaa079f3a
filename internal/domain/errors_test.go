package domain

import (
	"strings"
	"testing"
)

func TestInsufficientSpaceError_Error(t *testing.T) {
	tests := []struct {
		name        string
		group       string
		needed      ByteSize
		reclaimable ByteSize
		candidates  int
		want        []string
	}{
		{
			name:       "no candidates",
			group:      "TV Shows",
			needed:     6 * GiB,
			candidates: 0,
			want:       []string{"6.0 GiB", "TV Shows", "no other transfers"},
		},
		{
			name:        "candidates cannot cover",
			group:       "the default group",
			needed:      6 * GiB,
			reclaimable: 1 * GiB,
			candidates:  1,
			want:        []string{"6.0 GiB", "the default group", "frees only 1.0 GiB"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewInsufficientSpaceError(tt.group, tt.needed, tt.reclaimable, tt.candidates)
			got := e.Error()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Error() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1 << 20, "1.0 MiB"},
		{GiB, "1.0 GiB"},
		{5*GiB + GiB/2, "5.5 GiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}
