//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import (
	"fmt"

	"github.com/momentics/tsrelay/api"
)

func setAffinityPlatform(cpuID int) (func(), error) {
	return nil, fmt.Errorf("affinity: %w", api.ErrNotSupported)
}

func current() ([]int, error) {
	return nil, api.ErrNotSupported
}
