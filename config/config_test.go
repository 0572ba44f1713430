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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so a stray config.yaml
// cannot leak in.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int64("worker-id", 0, "")
	fs.Int64("datacenter-id", 0, "")
	fs.Int("shard-tables", DefaultShardTables, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	inTempDir(t)
	t.Setenv("FLAKEID_GENERATOR_WORKER_ID", "17")
	t.Setenv("FLAKEID_GENERATOR_DATACENTER_ID", "4")
	t.Setenv("FLAKEID_SHARD_TABLES", "16")
	t.Setenv("FLAKEID_SERVER_PORT", "9000")
	t.Setenv("FLAKEID_HEALTH_PORT", "9001")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, int64(17), cfg.Generator.WorkerID)
	assert.Equal(t, int64(4), cfg.Generator.DataCenterID)
	assert.Equal(t, 16, cfg.Shard.Tables)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 9001, cfg.Health.Port)
}

func TestLoadPprofPort(t *testing.T) {
	inTempDir(t)
	t.Setenv("FLAKEID_DEBUG_PPROF_PORT", "6060")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Debug.PprofPort)
}

func TestLoadConfigFile(t *testing.T) {
	dir := inTempDir(t)
	yaml := "generator:\n  worker_id: 3\n  datacenter_id: 30\nshard:\n  tables: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, GeneratorConfig{WorkerID: 3, DataCenterID: 30}, cfg.Generator)
	assert.Equal(t, 8, cfg.Shard.Tables)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)

	// Environment wins over the file.
	t.Setenv("FLAKEID_GENERATOR_WORKER_ID", "5")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.Generator.WorkerID)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("FLAKEID_GENERATOR_WORKER_ID", "17")
	t.Setenv("FLAKEID_GENERATOR_DATACENTER_ID", "4")

	cfg, err := Load(testFlags(t, "--worker-id=9"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), cfg.Generator.WorkerID)
	assert.Equal(t, int64(4), cfg.Generator.DataCenterID, "unset flags must not mask the environment")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero tables", map[string]string{"FLAKEID_SHARD_TABLES": "0"}},
		{"negative port", map[string]string{"FLAKEID_SERVER_PORT": "-1"}},
		{"huge health port", map[string]string{"FLAKEID_HEALTH_PORT": "70000"}},
		{"negative pprof port", map[string]string{"FLAKEID_DEBUG_PPROF_PORT": "-2"}},
		{"not a number", map[string]string{"FLAKEID_GENERATOR_WORKER_ID": "seven"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadKeepsOutOfRangeIdentity(t *testing.T) {
	// Identity ranges are the generator's to enforce.
	inTempDir(t)
	t.Setenv("FLAKEID_GENERATOR_WORKER_ID", "99")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Generator.WorkerID)
}
