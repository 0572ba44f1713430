// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package idgen

import (
	"runtime"
	"sync"
	"time"
)

const (
	// Epoch is 2020-01-01T00:00:00Z in milliseconds since the Unix epoch.
	// It must never change for a deployment: IDs issued against a different
	// epoch do not sort against each other.
	//
	// The 41-bit timestamp field runs out about 69 years after Epoch (2089).
	Epoch int64 = 1577836800000

	timestampBits  = 41
	dataCenterBits = 5
	workerBits     = 5
	sequenceBits   = 12

	workerShift     = sequenceBits
	dataCenterShift = sequenceBits + workerBits
	timestampShift  = sequenceBits + workerBits + dataCenterBits

	MaxWorkerID     int64 = -1 ^ (-1 << workerBits)
	MaxDataCenterID int64 = -1 ^ (-1 << dataCenterBits)
	MaxSequence     int64 = -1 ^ (-1 << sequenceBits)
	MaxTimestamp    int64 = -1 ^ (-1 << timestampBits)

	noTimestamp int64 = -1
)

// Clock returns the current time in whole milliseconds since the Unix epoch.
type Clock func() int64

// SystemClock reads the wall clock as an exact integer millisecond count.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock. Tests use it to drive the generator
// through same-millisecond bursts and rollbacks.
func WithClock(c Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.now = c
		}
	}
}

// Stats counts what a Generator has done since it was created.
type Stats struct {
	Issued            int64
	Rollbacks         int64
	SequenceExhausted int64
}

// Generator issues IDs for one (datacenter, worker) pair. It is safe for
// concurrent use; all callers share one critical section.
type Generator struct {
	workerID     int64
	dataCenterID int64
	now          Clock

	mu            sync.Mutex
	lastTimestamp int64
	sequence      int64
	stats         Stats
}

// New validates the identity pair and returns a Generator that has not yet
// issued any ID.
func New(workerID, dataCenterID int64, opts ...Option) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, &ConfigurationError{Field: "worker id", Value: workerID, Max: MaxWorkerID}
	}
	if dataCenterID < 0 || dataCenterID > MaxDataCenterID {
		return nil, &ConfigurationError{Field: "data center id", Value: dataCenterID, Max: MaxDataCenterID}
	}

	g := &Generator{
		workerID:      workerID,
		dataCenterID:  dataCenterID,
		now:           SystemClock,
		lastTimestamp: noTimestamp,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) WorkerID() int64     { return g.workerID }
func (g *Generator) DataCenterID() int64 { return g.dataCenterID }

// NextID returns a new ID, or a *ClockRollbackError if the clock reads
// earlier than the previous call. A failed call does not change any state.
//
// When 4096 IDs have already been issued in the current millisecond, NextID
// spins until the clock advances.
func (g *Generator) NextID() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.now()
	if timestamp < g.lastTimestamp {
		g.stats.Rollbacks++
		return 0, newClockRollbackError(g.lastTimestamp, timestamp)
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & MaxSequence
		if g.sequence == 0 {
			g.stats.SequenceExhausted++
			timestamp = g.waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp
	g.stats.Issued++

	return g.pack(timestamp), nil
}

func (g *Generator) pack(timestamp int64) ID {
	delta := uint64(timestamp-Epoch) & uint64(MaxTimestamp)
	return ID(delta<<timestampShift |
		uint64(g.dataCenterID)<<dataCenterShift |
		uint64(g.workerID)<<workerShift |
		uint64(g.sequence))
}

// waitNextMillis spins until the clock is strictly past last. Must be
// called with mu held.
func (g *Generator) waitNextMillis(last int64) int64 {
	timestamp := g.now()
	for timestamp <= last {
		runtime.Gosched()
		timestamp = g.now()
	}
	return timestamp
}

// Stats returns a snapshot of the generator's counters.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// ClockBehind reports how far the clock currently reads before the last
// millisecond an ID was issued for. NextID fails while it is non-zero.
func (g *Generator) ClockBehind() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastTimestamp == noTimestamp {
		return 0
	}
	return time.Duration(max(0, g.lastTimestamp-g.now())) * time.Millisecond
}

// lastUsed returns the last millisecond an ID was issued for, or -1.
func (g *Generator) lastUsed() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTimestamp
}
