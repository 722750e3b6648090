// =============================================================================
// pkg/datastore/config.go - Connection and Engine Configuration Files
// =============================================================================
//
// CONNECTION FILE (-c):
//   A TOML document naming the backend and its settings. Only the table of
//   the selected backend is read:
//
//	backend = "redis"
//
//	[serialization]
//	compression = "zstd"   # or "none"
//	level = 3
//
//	[redis]
//	address = "10.0.0.5:6379"
//	db = 0
//
// ENGINE FILE (-m, optional):
//
//	queue_depth = 64
//	max_ops_per_second = 0   # 0 disables throttling
//	burst = 1
//
// =============================================================================

package datastore

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// ConnectionConfig is the decoded connection file.
type ConnectionConfig struct {
	Backend       string              `toml:"backend"`
	Serialization SerializationConfig `toml:"serialization"`

	Memory    MemoryConfig    `toml:"memory"`
	MDBX      MDBXConfig      `toml:"mdbx"`
	RocksDB   RocksDBConfig   `toml:"rocksdb"`
	Redis     RedisConfig     `toml:"redis"`
	ZooKeeper ZooKeeperConfig `toml:"zookeeper"`
	OCI       OCIConfig       `toml:"oci"`
	S3        S3Config        `toml:"s3"`
	Rados     RadosConfig     `toml:"rados"`
}

// SerializationConfig selects the product encoding.
type SerializationConfig struct {
	// Compression is "none" (default) or "zstd".
	Compression string `toml:"compression"`

	// Level is the zstd level (1-22). 0 selects the library default.
	Level int `toml:"level"`
}

// MemoryConfig names a process-wide in-memory namespace.
type MemoryConfig struct {
	Name string `toml:"name"`
}

// MDBXConfig is an MDBX environment shared by every rank on one host.
type MDBXConfig struct {
	Path      string `toml:"path"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// RocksDBConfig is a RocksDB database. RocksDB locks the directory, so only
// ranks of one process (--local-ranks) can share it.
type RocksDBConfig struct {
	Path             string `toml:"path"`
	WriteBufferMB    int    `toml:"write_buffer_mb"`
	DisableWAL       bool   `toml:"disable_wal"`
	DestroyOnConnect bool   `toml:"destroy_on_connect"`
}

// RedisConfig is a Redis server.
type RedisConfig struct {
	Address            string `toml:"address"`
	Password           string `toml:"password"`
	DB                 int    `toml:"db"`
	KeyPrefix          string `toml:"key_prefix"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// ZooKeeperConfig is a ZooKeeper ensemble.
type ZooKeeperConfig struct {
	Servers        []string `toml:"servers"`
	Root           string   `toml:"root"`
	SessionTimeout string   `toml:"session_timeout"`
}

// OCIConfig is an Oracle Cloud object storage bucket.
type OCIConfig struct {
	ConfigFile string `toml:"config_file"`
	Profile    string `toml:"profile"`
	Namespace  string `toml:"namespace"`
	Bucket     string `toml:"bucket"`
	Region     string `toml:"region"`
	Prefix     string `toml:"prefix"`
}

// S3Config is an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
}

// RadosConfig is a Ceph pool.
type RadosConfig struct {
	User       string `toml:"user"`
	Monitors   string `toml:"monitors"`
	Key        string `toml:"key"`
	ConfigFile string `toml:"config_file"`
	Pool       string `toml:"pool"`
	Prefix     string `toml:"prefix"`
}

// LoadConnectionConfig decodes a connection file. Unknown keys are rejected.
func LoadConnectionConfig(path string) (*ConnectionConfig, error) {
	var cfg ConnectionConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse connection file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.Errorf("connection file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if cfg.Backend == "" {
		return nil, errors.Errorf("connection file %s: missing backend", path)
	}
	return &cfg, nil
}

// EngineConfig tunes the async engine.
type EngineConfig struct {
	// QueueDepth is the capacity of the task queue feeding the workers.
	QueueDepth int `toml:"queue_depth"`

	// MaxOpsPerSecond throttles store and load calls. 0 disables it.
	MaxOpsPerSecond float64 `toml:"max_ops_per_second"`

	// Burst is the limiter bucket size.
	Burst int `toml:"burst"`
}

// DefaultEngineConfig returns the settings used without an engine file.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{QueueDepth: 64, Burst: 1}
}

// LoadEngineConfig decodes an engine file. An empty path yields the defaults.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse engine config %s", path)
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultEngineConfig().QueueDepth
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxOpsPerSecond < 0 {
		return cfg, errors.Errorf("engine config %s: max_ops_per_second must be >= 0", path)
	}
	return cfg, nil
}
