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
	"time"
)

var (
	// ErrConfiguration matches any *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("invalid generator configuration")

	// ErrClockRollback matches any *ClockRollbackError via errors.Is.
	ErrClockRollback = errors.New("clock moved backwards")
)

// ConfigurationError reports an identity field outside its allowed range.
// It is only returned by New and is not retryable.
type ConfigurationError struct {
	Field string
	Value int64
	Max   int64
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s out of range: %d (must be between 0 and %d)", e.Field, e.Value, e.Max)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ClockRollbackError is returned by NextID when the clock reads earlier
// than the last millisecond the generator used.
type ClockRollbackError struct {
	// Last is the last millisecond (since the Unix epoch) an ID was issued for.
	Last int64
	// Now is the clock reading that triggered the error.
	Now int64
	// Rollback is Last - Now.
	Rollback time.Duration
}

func newClockRollbackError(last, now int64) *ClockRollbackError {
	return &ClockRollbackError{
		Last:     last,
		Now:      now,
		Rollback: time.Duration(last-now) * time.Millisecond,
	}
}

func (e *ClockRollbackError) Error() string {
	return fmt.Sprintf("clock moved backwards, refusing to generate id for %d milliseconds", e.Rollback.Milliseconds())
}

func (e *ClockRollbackError) Is(target error) bool {
	return target == ErrClockRollback
}
