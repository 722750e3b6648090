package datastore

import (
	"context"
	"sync"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// RocksDB holds an exclusive lock on its directory, so goroutine ranks of one
// process share a single handle, reference counted by path.
var (
	rocksMu   sync.Mutex
	rocksOpen = map[string]*RocksDBBackend{}
)

// RocksDBBackend maps keys onto the default column family.
type RocksDBBackend struct {
	path string
	refs int

	db *grocksdb.DB
	ro *grocksdb.ReadOptions
	wo *grocksdb.WriteOptions
	// serialises PutIfAbsent's read-then-write
	createMu sync.Mutex
}

func openRocksDB(_ context.Context, cfg *ConnectionConfig, _ string) (Backend, error) {
	c := cfg.RocksDB
	if c.Path == "" {
		return nil, errors.New("rocksdb: path is required")
	}

	rocksMu.Lock()
	defer rocksMu.Unlock()
	if b, ok := rocksOpen[c.Path]; ok {
		b.refs++
		return b, nil
	}

	opts := grocksdb.NewDefaultOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)
	if c.WriteBufferMB > 0 {
		opts.SetWriteBufferSize(uint64(c.WriteBufferMB * types.MB))
	}

	if c.DestroyOnConnect {
		if err := grocksdb.DestroyDb(c.Path, opts); err != nil {
			return nil, errors.Wrapf(err, "rocksdb: failed to destroy %s", c.Path)
		}
	}

	db, err := grocksdb.OpenDb(opts, c.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "rocksdb: failed to open %s", c.Path)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(false)
	wo.DisableWAL(c.DisableWAL)

	b := &RocksDBBackend{
		path: c.Path,
		refs: 1,
		db:   db,
		ro:   grocksdb.NewDefaultReadOptions(),
		wo:   wo,
	}
	rocksOpen[c.Path] = b
	return b, nil
}

func (b *RocksDBBackend) Name() string { return "rocksdb" }

func (b *RocksDBBackend) Put(_ context.Context, key string, value []byte) error {
	return errors.Wrapf(b.db.Put(b.wo, []byte(key), value), "rocksdb: failed to put %s", key)
}

func (b *RocksDBBackend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	b.createMu.Lock()
	defer b.createMu.Unlock()

	exists, err := b.Exists(ctx, key)
	if err != nil || exists {
		return false, err
	}
	if err := b.Put(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *RocksDBBackend) Get(_ context.Context, key string) ([]byte, error) {
	slice, err := b.db.Get(b.ro, []byte(key))
	if err != nil {
		return nil, errors.Wrapf(err, "rocksdb: failed to get %s", key)
	}
	defer slice.Free()

	if !slice.Exists() {
		return nil, notFound(key)
	}
	value := make([]byte, slice.Size())
	copy(value, slice.Data())
	return value, nil
}

func (b *RocksDBBackend) Exists(_ context.Context, key string) (bool, error) {
	slice, err := b.db.Get(b.ro, []byte(key))
	if err != nil {
		return false, errors.Wrapf(err, "rocksdb: failed to get %s", key)
	}
	defer slice.Free()
	return slice.Exists(), nil
}

// Shutdown flushes memtables so the data survives without WAL replay.
func (b *RocksDBBackend) Shutdown(context.Context) error {
	fo := grocksdb.NewDefaultFlushOptions()
	defer fo.Destroy()
	fo.SetWait(true)
	return errors.Wrap(b.db.Flush(fo), "rocksdb: failed to flush")
}

// Close drops one reference; the last one closes the database.
func (b *RocksDBBackend) Close() error {
	rocksMu.Lock()
	defer rocksMu.Unlock()

	b.refs--
	if b.refs > 0 {
		return nil
	}
	delete(rocksOpen, b.path)
	b.ro.Destroy()
	b.wo.Destroy()
	b.db.Close()
	return nil
}
