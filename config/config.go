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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cardinalhq/flakeid/internal/healthcheck"
)

// Config aggregates configuration for the application.
type Config struct {
	Generator GeneratorConfig    `mapstructure:"generator"`
	Shard     ShardConfig        `mapstructure:"shard"`
	Server    ServerConfig       `mapstructure:"server"`
	Health    healthcheck.Config `mapstructure:"health"`
	Debug     DebugConfig        `mapstructure:"debug"`
}

// GeneratorConfig is this node's identity. Every generator running at the
// same time must have a distinct pair; nothing here can check that.
type GeneratorConfig struct {
	WorkerID     int64 `mapstructure:"worker_id"`
	DataCenterID int64 `mapstructure:"datacenter_id"`
}

type ShardConfig struct {
	Tables int `mapstructure:"tables"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DebugConfig controls the pprof listener. Zero disables it.
type DebugConfig struct {
	PprofPort int `mapstructure:"pprof_port"`
}

const (
	DefaultServerPort  = 8080
	DefaultShardTables = 1
)

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"worker-id":     "generator.worker_id",
	"datacenter-id": "generator.datacenter_id",
	"shard-tables":  "shard.tables",
	"port":          "server.port",
	"health-port":   "health.port",
	"pprof-port":    "debug.pprof_port",
}

func DefaultConfig() *Config {
	return &Config{
		Shard:  ShardConfig{Tables: DefaultShardTables},
		Server: ServerConfig{Port: DefaultServerPort},
		Health: healthcheck.Config{Port: healthcheck.DefaultPort},
	}
}

// Load reads configuration from an optional config.yaml in the working
// directory, environment variables and, when given, command line flags.
// Environment variables use the prefix "FLAKEID" and the dot character in
// keys is replaced by an underscore. For example, "generator.worker_id"
// becomes "FLAKEID_GENERATOR_WORKER_ID".
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("FLAKEID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything except the generator identity, which
// idgen.New validates when the generator is built.
func (c *Config) Validate() error {
	if c.Shard.Tables < 1 {
		return fmt.Errorf("shard.tables must be at least 1, got %d", c.Shard.Tables)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port out of range: %d", c.Health.Port)
	}
	if c.Debug.PprofPort < 0 || c.Debug.PprofPort > 65535 {
		return fmt.Errorf("debug.pprof_port out of range: %d", c.Debug.PprofPort)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
