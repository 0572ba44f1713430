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

// Package idgen generates 64-bit, time-ordered identifiers without any
// coordination between the nodes that issue them.
//
// # Layout
//
// An ID packs four fields, high to low:
//
//	 63   62 ............ 22   21 .. 17   16 .. 12   11 ...... 0
//	[ 0 ][ ms since Epoch  ][ datacenter ][  worker  ][ sequence ]
//	  1          41               5           5           12
//
// The sign bit is always zero so the value is also a valid positive int64.
//
// # Uniqueness
//
// A Generator issues at most 4096 IDs per millisecond. When that budget is
// spent, NextID blocks until the wall clock reaches the next millisecond.
// Uniqueness across a fleet depends entirely on every running Generator
// having a distinct (datacenter, worker) pair; that assignment is the
// caller's job.
//
// # Clock rollback
//
// If the wall clock reads earlier than the last millisecond used, NextID
// returns a *ClockRollbackError and leaves the generator untouched. It never
// borrows the old timestamp, since that could produce a duplicate.
//
// The last-used millisecond lives only in memory. A process that restarts
// right after its clock was stepped back can reissue IDs it handed out before
// the restart. There is no persisted high-water mark.
package idgen
