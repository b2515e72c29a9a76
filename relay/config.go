// File: relay/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"fmt"
	"time"

	"github.com/momentics/tsrelay/api"
)

// Defaults mirror a common MPEG-TS over IP grouping: seven 188-byte TS
// packets per 1316-byte payload.
const (
	DefaultPacketSize       = 1316
	DefaultFragmentFactor   = 10
	DefaultQueueDepth       = 1024
	DefaultMaxClients       = 512
	DefaultPollTimeout      = 100 * time.Millisecond
	DefaultIdlePause        = time.Millisecond
	DefaultStatsInterval    = 2 * time.Second
	DefaultSocketBuffer     = 16 * 1024 * 1024
	DefaultMaxWaitFailures  = 100
	defaultSourceReadsPerEv = 16
)

// Config holds the startup parameters of a Hub. It is not mutated after New.
type Config struct {
	PacketSize     int           // bytes per packet
	FragmentFactor int           // reassembly buffer holds PacketSize*FragmentFactor bytes
	QueueDepth     int           // packets buffered per client before drop-oldest
	MaxClients     int           // concurrent client ceiling
	PollTimeout    time.Duration // readiness wait bound
	IdlePause      time.Duration // pause after each iteration, 0 disables
	StatsInterval  time.Duration // metrics publication period, 0 disables

	// MaxWaitFailures is the number of consecutive readiness-wait failures
	// after which the hub gives up. 0 retries forever.
	MaxWaitFailures int

	// Conn is applied to the source and to every admitted client.
	Conn api.ConnOptions
}

// DefaultConfig returns the stock relay parameters.
func DefaultConfig() Config {
	return Config{
		PacketSize:      DefaultPacketSize,
		FragmentFactor:  DefaultFragmentFactor,
		QueueDepth:      DefaultQueueDepth,
		MaxClients:      DefaultMaxClients,
		PollTimeout:     DefaultPollTimeout,
		IdlePause:       DefaultIdlePause,
		StatsInterval:   DefaultStatsInterval,
		MaxWaitFailures: DefaultMaxWaitFailures,
		Conn: api.ConnOptions{
			SendBuffer: DefaultSocketBuffer,
			RecvBuffer: DefaultSocketBuffer,
		},
	}
}

// Validate checks the structural parameters.
func (c Config) Validate() error {
	switch {
	case c.PacketSize <= 0:
		return fmt.Errorf("packet size %d: %w", c.PacketSize, api.ErrInvalidArgument)
	case c.FragmentFactor < 2:
		return fmt.Errorf("fragment factor %d must be at least 2: %w", c.FragmentFactor, api.ErrInvalidArgument)
	case c.QueueDepth <= 0:
		return fmt.Errorf("queue depth %d: %w", c.QueueDepth, api.ErrInvalidArgument)
	case c.MaxClients <= 0:
		return fmt.Errorf("max clients %d: %w", c.MaxClients, api.ErrInvalidArgument)
	case c.PollTimeout < 0, c.IdlePause < 0, c.StatsInterval < 0, c.MaxWaitFailures < 0:
		return fmt.Errorf("negative timing parameter: %w", api.ErrInvalidArgument)
	}
	return nil
}
