package datastore

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// Backend is the flat key-value service the hierarchy is mapped onto.
//
// Keys are '/'-separated paths of escaped components. Get returns
// types.ErrNotFound for absent keys. PutIfAbsent reports whether it created
// the key; when it did not, the existing value is left untouched.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, value []byte) error
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Shutdown makes stored state durable and stops the service where the
	// backend owns it. Issued by a single rank after every rank is done.
	Shutdown(ctx context.Context) error

	// Close releases this process's connection.
	Close() error
}

type backendFactory struct {
	protocols []string
	open      func(ctx context.Context, cfg *ConnectionConfig, protocol string) (Backend, error)
}

var backends = map[string]backendFactory{
	"memory":    {protocols: []string{"local", "sm"}, open: openMemory},
	"mdbx":      {protocols: []string{"local", "sm"}, open: openMDBX},
	"rocksdb":   {protocols: []string{"local"}, open: openRocksDB},
	"redis":     {protocols: []string{"tcp", "tls"}, open: openRedis},
	"zookeeper": {protocols: []string{"tcp"}, open: openZooKeeper},
	"oci":       {protocols: []string{"https"}, open: openOCI},
	"s3":        {protocols: []string{"http", "https"}, open: openS3},
	"rados":     {protocols: []string{"tcp", "msgr2"}, open: openRados},
}

// BackendNames returns the supported backend names, sorted.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenBackend opens the backend named by cfg over protocol.
func OpenBackend(ctx context.Context, cfg *ConnectionConfig, protocol string) (Backend, error) {
	f, ok := backends[cfg.Backend]
	if !ok {
		return nil, errors.Errorf("unknown backend %q (supported: %s)", cfg.Backend, strings.Join(BackendNames(), ", "))
	}
	supported := false
	for _, p := range f.protocols {
		if p == protocol {
			supported = true
			break
		}
	}
	if !supported {
		return nil, errors.Errorf("backend %s does not support protocol %q (supported: %s)",
			cfg.Backend, protocol, strings.Join(f.protocols, ", "))
	}
	return f.open(ctx, cfg, protocol)
}

// notFound wraps types.ErrNotFound with the key.
func notFound(key string) error {
	return errors.Wrapf(types.ErrNotFound, "key %s", key)
}

// marker is the value of hierarchy nodes that carry no payload.
var marker = []byte{1}
