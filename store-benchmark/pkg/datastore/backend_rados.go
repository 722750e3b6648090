package datastore

import (
	"context"

	"github.com/ceph/go-ceph/rados"
	"github.com/pkg/errors"
)

// RadosBackend stores every key as a RADOS object of one pool.
type RadosBackend struct {
	conn   *rados.Conn
	ioctx  *rados.IOContext
	prefix string
}

func openRados(_ context.Context, cfg *ConnectionConfig, protocol string) (Backend, error) {
	c := cfg.Rados
	if c.Pool == "" {
		return nil, errors.New("rados: pool is required")
	}
	user := c.User
	if user == "" {
		user = "admin"
	}

	conn, err := rados.NewConnWithUser(user)
	if err != nil {
		return nil, errors.Wrapf(err, "rados: failed to create connection as %s", user)
	}
	if c.ConfigFile != "" {
		err = conn.ReadConfigFile(c.ConfigFile)
	} else {
		err = conn.ReadDefaultConfigFile()
	}
	if err != nil && c.Monitors == "" {
		return nil, errors.Wrap(err, "rados: failed to read ceph config")
	}
	settings := map[string]string{"mon_host": c.Monitors, "key": c.Key}
	if protocol == "msgr2" {
		settings["ms_mon_client_mode"] = "secure"
	}
	for name, value := range settings {
		if value == "" {
			continue
		}
		if err := conn.SetConfigOption(name, value); err != nil {
			return nil, errors.Wrapf(err, "rados: failed to set %s", name)
		}
	}
	if err := conn.Connect(); err != nil {
		return nil, errors.Wrap(err, "rados: failed to connect")
	}

	ioctx, err := conn.OpenIOContext(c.Pool)
	if err != nil {
		conn.Shutdown()
		return nil, errors.Wrapf(err, "rados: no such pool %s", c.Pool)
	}
	return &RadosBackend{conn: conn, ioctx: ioctx, prefix: c.Prefix}, nil
}

func (b *RadosBackend) Name() string { return "rados" }

func (b *RadosBackend) Put(_ context.Context, key string, value []byte) error {
	return errors.Wrapf(b.ioctx.WriteFull(b.prefix+key, value), "rados: failed to write %s", key)
}

// PutIfAbsent creates the object exclusively, then writes its content.
func (b *RadosBackend) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	err := b.ioctx.Create(b.prefix+key, rados.CreateExclusive, "")
	if errors.Is(err, rados.ErrObjectExists) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "rados: failed to create %s", key)
	}
	if err := b.ioctx.WriteFull(b.prefix+key, value); err != nil {
		return true, errors.Wrapf(err, "rados: failed to write %s", key)
	}
	return true, nil
}

func (b *RadosBackend) Get(_ context.Context, key string) ([]byte, error) {
	oid := b.prefix + key
	stat, err := b.ioctx.Stat(oid)
	if errors.Is(err, rados.ErrNotFound) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "rados: failed to stat %s", key)
	}

	buffer := make([]byte, stat.Size)
	if stat.Size == 0 {
		return buffer, nil
	}
	n, err := b.ioctx.Read(oid, buffer, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "rados: failed to read %s", key)
	}
	if uint64(n) != stat.Size {
		return nil, errors.Errorf("rados: short read of %s: wanted %d bytes, got %d", key, stat.Size, n)
	}
	return buffer, nil
}

func (b *RadosBackend) Exists(_ context.Context, key string) (bool, error) {
	_, err := b.ioctx.Stat(b.prefix + key)
	if errors.Is(err, rados.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "rados: failed to stat %s", key)
	}
	return true, nil
}

// Shutdown is a no-op; the pool outlives the benchmark.
func (b *RadosBackend) Shutdown(context.Context) error { return nil }

func (b *RadosBackend) Close() error {
	b.ioctx.Destroy()
	b.conn.Shutdown()
	return nil
}
