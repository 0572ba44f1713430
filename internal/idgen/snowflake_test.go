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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// scriptedClock returns its readings in order, then repeats the last one.
type scriptedClock struct {
	mu       sync.Mutex
	readings []int64
	reads    int
}

func (c *scriptedClock) now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.reads
	if i >= len(c.readings) {
		i = len(c.readings) - 1
	}
	c.reads++
	return c.readings[i]
}

func repeat(v int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// base is an arbitrary millisecond well after Epoch.
const base = Epoch + 123_456_789

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name         string
		workerID     int64
		dataCenterID int64
		wantField    string
	}{
		{"min values", 0, 0, ""},
		{"max values", 31, 31, ""},
		{"worker 0", 0, 7, ""},
		{"worker 31", 31, 7, ""},
		{"worker too large", 32, 0, "worker id"},
		{"worker negative", -1, 0, "worker id"},
		{"datacenter too large", 0, 32, "data center id"},
		{"datacenter negative", 0, -1, "data center id"},
		{"both bad reports worker first", 99, -1, "worker id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.workerID, tt.dataCenterID)
			if tt.wantField == "" {
				require.NoError(t, err)
				require.NotNil(t, g)
				assert.Equal(t, tt.workerID, g.WorkerID())
				assert.Equal(t, tt.dataCenterID, g.DataCenterID())
				assert.Equal(t, int64(-1), g.lastUsed())
				return
			}
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestNextID_FirstCallUsesSequenceZero(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base}}
	g, err := New(3, 5, WithClock(clock.now))
	require.NoError(t, err)

	id, err := g.NextID()
	require.NoError(t, err)

	assert.Equal(t, base, id.Timestamp())
	assert.Equal(t, int64(5), id.DataCenterID())
	assert.Equal(t, int64(3), id.WorkerID())
	assert.Equal(t, int64(0), id.Sequence())
	assert.Equal(t, ID(uint64(base-Epoch)<<22|5<<17|3<<12), id)
}

func TestNextID_SameMillisecondIncrementsSequence(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base}}
	g, err := New(1, 1, WithClock(clock.now))
	require.NoError(t, err)

	for want := int64(0); want < 10; want++ {
		id, err := g.NextID()
		require.NoError(t, err)
		assert.Equal(t, want, id.Sequence())
		assert.Equal(t, base, id.Timestamp())
	}
}

func TestNextID_NewMillisecondResetsSequence(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base, base, base, base + 1}}
	g, err := New(1, 1, WithClock(clock.now))
	require.NoError(t, err)

	for range 3 {
		_, err := g.NextID()
		require.NoError(t, err)
	}
	id, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, base+1, id.Timestamp())
	assert.Equal(t, int64(0), id.Sequence())
}

func TestNextID_SequenceExhaustion(t *testing.T) {
	readings := append(repeat(base, 4096), base+1)
	clock := &scriptedClock{readings: readings}
	g, err := New(2, 4, WithClock(clock.now))
	require.NoError(t, err)

	ids := make([]ID, 0, 4097)
	for range 4097 {
		id, err := g.NextID()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i, id := range ids[:4096] {
		assert.Equal(t, base, id.Timestamp())
		assert.Equal(t, int64(i), id.Sequence())
	}
	last := ids[4096]
	assert.Greater(t, last.Timestamp(), ids[4095].Timestamp())
	assert.Equal(t, int64(0), last.Sequence())
}

func TestNextID_SequenceOverflowWaitsForNextMillisecond(t *testing.T) {
	// 4097 reads land in one millisecond, the wait loop sees it three more
	// times, then the clock ticks.
	readings := append(repeat(base, 4097+3), base+1)
	clock := &scriptedClock{readings: readings}
	g, err := New(2, 4, WithClock(clock.now))
	require.NoError(t, err)

	var prev ID
	for i := range 4097 {
		id, err := g.NextID()
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, id, prev)
		}
		prev = id
	}

	assert.Equal(t, base+1, prev.Timestamp())
	assert.Equal(t, int64(0), prev.Sequence())
	assert.Equal(t, base+1, g.lastUsed())
	assert.Equal(t, 4097+3+1, clock.reads)

	stats := g.Stats()
	assert.Equal(t, int64(1), stats.SequenceExhausted)
	assert.Equal(t, int64(4097), stats.Issued)
}

func TestNextID_WaitIgnoresRegressionWhileSpinning(t *testing.T) {
	readings := append(repeat(base, 4097), base-2, base, base+1)
	clock := &scriptedClock{readings: readings}
	g, err := New(0, 0, WithClock(clock.now))
	require.NoError(t, err)

	var last ID
	for range 4097 {
		last, err = g.NextID()
		require.NoError(t, err)
	}
	assert.Equal(t, base+1, last.Timestamp())
	assert.Equal(t, int64(0), g.Stats().Rollbacks)
}

func TestNextID_ClockRollback(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base, base - 5}}
	g, err := New(1, 2, WithClock(clock.now))
	require.NoError(t, err)

	first, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, base, first.Timestamp())

	id, err := g.NextID()
	require.Error(t, err)
	assert.Equal(t, ID(0), id)
	assert.ErrorIs(t, err, ErrClockRollback)

	var rbErr *ClockRollbackError
	require.True(t, errors.As(err, &rbErr))
	assert.Equal(t, 5*time.Millisecond, rbErr.Rollback)
	assert.Equal(t, base, rbErr.Last)
	assert.Equal(t, base-5, rbErr.Now)
	assert.Contains(t, err.Error(), "5 milliseconds")

	assert.Equal(t, base, g.lastUsed(), "failed call must not move lastTimestamp")
	assert.Equal(t, int64(1), g.Stats().Rollbacks)
	assert.Equal(t, int64(1), g.Stats().Issued)
}

func TestNextID_RecoversAfterRollback(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base, base, base - 5, base}}
	g, err := New(1, 2, WithClock(clock.now))
	require.NoError(t, err)

	_, err = g.NextID()
	require.NoError(t, err)
	second, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Sequence())

	_, err = g.NextID()
	require.ErrorIs(t, err, ErrClockRollback)

	// The rollback left the sequence alone, so the same millisecond
	// continues where it stopped.
	third, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, base, third.Timestamp())
	assert.Equal(t, int64(2), third.Sequence())
	assert.Greater(t, third, second)
}

func TestClockBehind(t *testing.T) {
	clock := &scriptedClock{readings: []int64{base, base - 40, base - 1, base, base + 3}}
	g, err := New(1, 2, WithClock(clock.now))
	require.NoError(t, err)

	// Nothing issued yet, so there is nothing to be behind. The clock is not read.
	assert.Equal(t, time.Duration(0), g.ClockBehind())
	assert.Equal(t, 0, clock.reads)

	_, err = g.NextID()
	require.NoError(t, err)

	assert.Equal(t, 40*time.Millisecond, g.ClockBehind())
	assert.Equal(t, time.Millisecond, g.ClockBehind())
	assert.Equal(t, time.Duration(0), g.ClockBehind())
	assert.Equal(t, time.Duration(0), g.ClockBehind())
	assert.Equal(t, base, g.lastUsed())
}

func TestNextID_FieldRoundTrip(t *testing.T) {
	for dc := int64(0); dc <= MaxDataCenterID; dc++ {
		for w := int64(0); w <= MaxWorkerID; w++ {
			g, err := New(w, dc)
			require.NoError(t, err)

			before := time.Now().UnixMilli()
			id, err := g.NextID()
			require.NoError(t, err)
			after := time.Now().UnixMilli()

			parts := id.Decompose()
			require.Equal(t, dc, parts.DataCenterID)
			require.Equal(t, w, parts.WorkerID)
			require.Equal(t, int64(0), parts.Sequence)
			require.GreaterOrEqual(t, parts.Timestamp, before)
			require.LessOrEqual(t, parts.Timestamp, after)
			require.GreaterOrEqual(t, id.Int64(), int64(0))
		}
	}
}

func TestNextID_UniqueAndIncreasing(t *testing.T) {
	g, err := New(31, 31)
	require.NoError(t, err)

	const n = 50_000
	seen := make(map[ID]struct{}, n)
	var prev ID
	for i := range n {
		id, err := g.NextID()
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, id, prev)
		}
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNextID_Concurrent(t *testing.T) {
	const (
		goroutines = 16
		perRoutine = 2_000
	)

	for round := range 5 {
		g, err := New(int64(round), 9)
		require.NoError(t, err)

		results := make([][]ID, goroutines)
		var eg errgroup.Group
		for i := range goroutines {
			eg.Go(func() error {
				ids := make([]ID, 0, perRoutine)
				for range perRoutine {
					id, err := g.NextID()
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				results[i] = ids
				return nil
			})
		}
		require.NoError(t, eg.Wait())

		seen := make(map[ID]struct{}, goroutines*perRoutine)
		for _, ids := range results {
			for _, id := range ids {
				_, dup := seen[id]
				require.False(t, dup, "duplicate id %d in round %d", id, round)
				seen[id] = struct{}{}
			}
		}
		assert.Len(t, seen, goroutines*perRoutine)
		assert.Equal(t, int64(goroutines*perRoutine), g.Stats().Issued)
	}
}

func TestNextID_ConcurrentExhaustionFixedClock(t *testing.T) {
	// The clock stands still long enough for the sequence to wrap and the
	// wait loop to spin, then advances one ms per read.
	var (
		mu    sync.Mutex
		reads int64
	)
	clock := func() int64 {
		mu.Lock()
		defer mu.Unlock()
		reads++
		if reads <= 5000 {
			return base
		}
		return base + reads - 5000
	}

	g, err := New(1, 1, WithClock(clock))
	require.NoError(t, err)

	const goroutines, perRoutine = 8, 1_000
	var (
		eg      errgroup.Group
		seenMu  sync.Mutex
		seen    = make(map[ID]struct{})
		dupSeen bool
	)
	for range goroutines {
		eg.Go(func() error {
			for range perRoutine {
				id, err := g.NextID()
				if err != nil {
					return err
				}
				seenMu.Lock()
				if _, ok := seen[id]; ok {
					dupSeen = true
				}
				seen[id] = struct{}{}
				seenMu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.False(t, dupSeen)
	assert.Len(t, seen, goroutines*perRoutine)
}

func TestWithClock_NilKeepsSystemClock(t *testing.T) {
	g, err := New(0, 0, WithClock(nil))
	require.NoError(t, err)

	id, err := g.NextID()
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), id.Timestamp(), 1000)
}

func BenchmarkNextID(b *testing.B) {
	g, err := New(1, 1)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.NextID()
	}
}

func BenchmarkNextID_Parallel(b *testing.B) {
	g, err := New(1, 1)
	require.NoError(b, err)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = g.NextID()
		}
	})
}
