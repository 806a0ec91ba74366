// Package queue provides a four-level priority queue with a batch
// processor in front of the generation pipeline.
//
// High-priority submissions bypass the queue entirely and are dispatched
// as soon as a concurrency slot frees up. Everything else waits in its
// priority level until the batch loop drains it: each tick takes a batch
// from the highest non-empty level, so a medium task never runs while a
// high task waits, and background work only moves on an otherwise idle
// tick.
package queue

import (
	"context"
	"errors"
	"time"
)

// Priority orders tasks relative to each other. Lower values drain first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
	PriorityBackground

	numPriorities = 4
)

// String returns the priority's wire name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	}
	return "unknown"
}

// ParsePriority maps a wire name to a Priority. Unknown names fall back
// to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	case "background":
		return PriorityBackground
	}
	return PriorityMedium
}

// ErrQueueFull is returned by Submit when the queued backlog is at
// capacity. High-priority tasks never hit it since they skip the queue.
var ErrQueueFull = errors.New("queue: backlog full")

// ErrStopped is returned for tasks still queued when the processor shuts
// down.
var ErrStopped = errors.New("queue: processor stopped")

// Task is the unit of work the processor runs.
type Task func(ctx context.Context) (any, error)

// Result carries a finished task's outcome back to the submitter.
type Result struct {
	Value any
	Err   error

	// Waited is the time between submission and dispatch; Processed is
	// the task's own run time.
	Waited    time.Duration
	Processed time.Duration
}

type item struct {
	task     Task
	priority Priority
	enqueued time.Time
	result   chan Result
}

// Config tunes the processor.
type Config struct {
	// MaxConcurrency caps tasks running at once across all priorities.
	MaxConcurrency int
	// MaxQueueSize caps the queued backlog across the three non-high
	// levels.
	MaxQueueSize int
	// BatchSize is how many tasks one tick drains.
	BatchSize int
	// PollInterval is the drain tick period.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 256
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
}
