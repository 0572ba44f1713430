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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a generated identifier. The top bit is always zero.
type ID uint64

// base36Width is the length of the largest 63-bit value in base 36.
const base36Width = 13

// Parts is an ID split into its fields.
type Parts struct {
	Timestamp    int64 `json:"timestamp"` // ms since the Unix epoch
	DataCenterID int64 `json:"datacenterId"`
	WorkerID     int64 `json:"workerId"`
	Sequence     int64 `json:"sequence"`
}

func (id ID) Int64() int64 { return int64(id) }

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Base36 returns the ID as a fixed-width, lower case base36 string. The
// fixed width keeps lexical and numeric order the same.
func (id ID) Base36() string {
	s := strconv.FormatUint(uint64(id), 36)
	if len(s) < base36Width {
		s = strings.Repeat("0", base36Width-len(s)) + s
	}
	return s
}

// Timestamp returns the millisecond (since the Unix epoch) the ID was issued in.
func (id ID) Timestamp() int64 {
	return int64(uint64(id)>>timestampShift&uint64(MaxTimestamp)) + Epoch
}

func (id ID) Time() time.Time { return time.UnixMilli(id.Timestamp()).UTC() }

func (id ID) DataCenterID() int64 {
	return int64(uint64(id) >> dataCenterShift & uint64(MaxDataCenterID))
}

func (id ID) WorkerID() int64 {
	return int64(uint64(id) >> workerShift & uint64(MaxWorkerID))
}

func (id ID) Sequence() int64 {
	return int64(uint64(id) & uint64(MaxSequence))
}

func (id ID) Decompose() Parts {
	return Parts{
		Timestamp:    id.Timestamp(),
		DataCenterID: id.DataCenterID(),
		WorkerID:     id.WorkerID(),
		Sequence:     id.Sequence(),
	}
}

var errSignBit = errors.New("sign bit is set")

// ParseID parses a decimal ID.
func ParseID(s string) (ID, error) {
	return parse(s, 10)
}

// ParseBase36 parses an ID produced by ID.Base36. Case is ignored.
func ParseBase36(s string) (ID, error) {
	return parse(strings.ToLower(s), 36)
}

func parse(s string, base int) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if v>>63 != 0 {
		return 0, fmt.Errorf("invalid id %q: %w", s, errSignBit)
	}
	return ID(v), nil
}
