// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control plane of the relay: configuration loading, metrics,
// debug probes and the optional stats surface.
//
// Provides concurrent-safe state handling primitives including:
//   - YAML configuration with environment overrides and validation
//   - A metrics registry the hub publishes its counters into
//   - Debug probes, including process probes backed by gopsutil
//   - A periodic reporter and an HTTP stats endpoint reading both
//
// Nothing in this package touches hub state directly; it only reads what
// the hub publishes.
package control
