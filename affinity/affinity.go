// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Pins the relay loop to one logical CPU. Platform implementations live in
// affinity_linux.go and affinity_stub.go.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/tsrelay/api"
)

// Pin locks the calling goroutine to its OS thread and binds that thread to
// cpuID. Threads the runtime starts while the lock is held come from its
// template thread, so they keep the process mask. The returned function
// restores the thread's previous mask before releasing the lock. A negative
// cpuID is a no-op.
func Pin(cpuID int) (unpin func(), err error) {
	if cpuID < 0 {
		return func() {}, nil
	}
	if cpuID >= runtime.NumCPU() {
		return nil, fmt.Errorf("affinity: cpu %d of %d: %w", cpuID, runtime.NumCPU(), api.ErrInvalidArgument)
	}
	runtime.LockOSThread()
	restore, err := setAffinityPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}
