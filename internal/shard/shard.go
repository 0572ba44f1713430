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

// Package shard spreads rows keyed by generated IDs (or any string key)
// across a fixed set of numbered tables named "<base>_<n>", n in [1, tables].
package shard

import (
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/cardinalhq/flakeid/internal/idgen"
)

var ErrNoTables = errors.New("shard table count must be at least 1")

type Sharder struct {
	tables uint64
}

func New(tables int) (*Sharder, error) {
	if tables < 1 {
		return nil, ErrNoTables
	}
	return &Sharder{tables: uint64(tables)}, nil
}

func (s *Sharder) Tables() int { return int(s.tables) }

// Index hashes key to a 1-based table number. The hash is stable across
// processes and releases, so the same key always lands in the same table.
func (s *Sharder) Index(key string) int {
	return 1 + int(xxhash.Sum64String(key)%s.tables)
}

// IndexForID places an ID by plain modulo.
func (s *Sharder) IndexForID(id idgen.ID) int {
	return 1 + int(uint64(id)%s.tables)
}

func (s *Sharder) Table(base, key string) string {
	return tableName(base, s.Index(key))
}

func (s *Sharder) TableForID(base string, id idgen.ID) string {
	return tableName(base, s.IndexForID(id))
}

func tableName(base string, n int) string {
	return base + "_" + strconv.Itoa(n)
}
