// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP listeners and connections over raw descriptors, strictly
// separated by build tags. Every call returns immediately: a full or empty
// kernel buffer surfaces as api.ErrWouldBlock, never as a stalled goroutine.

package transport
