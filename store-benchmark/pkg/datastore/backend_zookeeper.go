package datastore

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"
)

const defaultZooKeeperRoot = "/hepnos"

// ZooKeeperBackend maps each key onto a znode under a root path. Parents are
// created on demand, so the key hierarchy is browsable with zkCli.
type ZooKeeperBackend struct {
	conn *zk.Conn
	root string
	acl  []zk.ACL
}

func openZooKeeper(_ context.Context, cfg *ConnectionConfig, _ string) (Backend, error) {
	c := cfg.ZooKeeper
	if len(c.Servers) == 0 {
		return nil, errors.New("zookeeper: servers are required")
	}
	timeout := 10 * time.Second
	if c.SessionTimeout != "" {
		d, err := time.ParseDuration(c.SessionTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "zookeeper: invalid session_timeout %q", c.SessionTimeout)
		}
		timeout = d
	}
	root := c.Root
	if root == "" {
		root = defaultZooKeeperRoot
	}

	conn, _, err := zk.Connect(c.Servers, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "zookeeper: failed to connect to %s", strings.Join(c.Servers, ","))
	}
	b := &ZooKeeperBackend{conn: conn, root: path.Clean("/" + root), acl: zk.WorldACL(zk.PermAll)}
	if err := b.ensure(b.root); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *ZooKeeperBackend) Name() string { return "zookeeper" }

func (b *ZooKeeperBackend) znode(key string) string {
	return b.root + "/" + key
}

// ensure creates p and its missing parents with empty data.
func (b *ZooKeeperBackend) ensure(p string) error {
	if p == "/" {
		return nil
	}
	exists, _, err := b.conn.Exists(p)
	if err != nil {
		return errors.Wrapf(err, "zookeeper: failed to check %s", p)
	}
	if exists {
		return nil
	}
	if err := b.ensure(path.Dir(p)); err != nil {
		return err
	}
	_, err = b.conn.Create(p, nil, 0, b.acl)
	if err != nil && err != zk.ErrNodeExists {
		return errors.Wrapf(err, "zookeeper: failed to create %s", p)
	}
	return nil
}

func (b *ZooKeeperBackend) Put(ctx context.Context, key string, value []byte) error {
	created, err := b.PutIfAbsent(ctx, key, value)
	if err != nil || created {
		return err
	}
	_, err = b.conn.Set(b.znode(key), value, -1)
	return errors.Wrapf(err, "zookeeper: failed to set %s", key)
}

func (b *ZooKeeperBackend) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	p := b.znode(key)
	if err := b.ensure(path.Dir(p)); err != nil {
		return false, err
	}
	_, err := b.conn.Create(p, value, 0, b.acl)
	if err == zk.ErrNodeExists {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "zookeeper: failed to create %s", p)
	}
	return true, nil
}

func (b *ZooKeeperBackend) Get(_ context.Context, key string) ([]byte, error) {
	value, _, err := b.conn.Get(b.znode(key))
	if err == zk.ErrNoNode {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "zookeeper: failed to get %s", key)
	}
	return value, nil
}

func (b *ZooKeeperBackend) Exists(_ context.Context, key string) (bool, error) {
	exists, _, err := b.conn.Exists(b.znode(key))
	if err != nil {
		return false, errors.Wrapf(err, "zookeeper: failed to check %s", key)
	}
	return exists, nil
}

// Shutdown issues a sync on the root so every write is visible ensemble-wide.
func (b *ZooKeeperBackend) Shutdown(context.Context) error {
	_, err := b.conn.Sync(b.root)
	return errors.Wrap(err, "zookeeper: failed to sync")
}

func (b *ZooKeeperBackend) Close() error {
	b.conn.Close()
	return nil
}
