package datastore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

const mdbxTableName = "hepnos"

// MDBXBackend maps keys onto one MDBX table. MDBX serialises write
// transactions across processes, so every rank on a host can open the same
// file concurrently.
type MDBXBackend struct {
	env *mdbx.Env
	dbi mdbx.DBI
}

func openMDBX(_ context.Context, cfg *ConnectionConfig, _ string) (Backend, error) {
	c := cfg.MDBX
	if c.Path == "" {
		return nil, errors.New("mdbx: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "mdbx: failed to create directory")
	}

	env, err := mdbx.NewEnv(mdbx.Label(mdbxTableName))
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: failed to create environment")
	}
	if c.MaxSizeMB > 0 {
		if err := env.SetGeometry(-1, -1, c.MaxSizeMB*types.MB, -1, -1, -1); err != nil {
			env.Close()
			return nil, errors.Wrap(err, "mdbx: failed to set geometry")
		}
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(1)); err != nil {
		env.Close()
		return nil, errors.Wrap(err, "mdbx: failed to set max dbs")
	}
	if err := env.Open(c.Path, mdbx.NoSubdir|mdbx.LifoReclaim, 0644); err != nil {
		env.Close()
		return nil, errors.Wrapf(err, "mdbx: failed to open %s", c.Path)
	}

	var dbi mdbx.DBI
	err = env.Update(func(txn *mdbx.Txn) error {
		var err error
		dbi, err = txn.OpenDBI(mdbxTableName, mdbx.Create, nil, nil)
		return err
	})
	if err != nil {
		env.Close()
		return nil, errors.Wrap(err, "mdbx: failed to open table")
	}
	return &MDBXBackend{env: env, dbi: dbi}, nil
}

func (b *MDBXBackend) Name() string { return "mdbx" }

func (b *MDBXBackend) Put(_ context.Context, key string, value []byte) error {
	err := b.env.Update(func(txn *mdbx.Txn) error {
		return txn.Put(b.dbi, []byte(key), value, mdbx.Upsert)
	})
	return errors.Wrapf(err, "mdbx: failed to put %s", key)
}

func (b *MDBXBackend) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	created := false
	err := b.env.Update(func(txn *mdbx.Txn) error {
		_, err := txn.Get(b.dbi, []byte(key))
		if err == nil {
			return nil
		}
		if !mdbx.IsNotFound(err) {
			return err
		}
		created = true
		return txn.Put(b.dbi, []byte(key), value, mdbx.Upsert)
	})
	if err != nil {
		return false, errors.Wrapf(err, "mdbx: failed to create %s", key)
	}
	return created, nil
}

func (b *MDBXBackend) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.env.View(func(txn *mdbx.Txn) error {
		v, err := txn.Get(b.dbi, []byte(key))
		if err != nil {
			return err
		}
		// v points into the memory map and is only valid inside the txn.
		value = append([]byte(nil), v...)
		return nil
	})
	if mdbx.IsNotFound(err) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "mdbx: failed to get %s", key)
	}
	return value, nil
}

func (b *MDBXBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.Get(ctx, key)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Shutdown flushes the environment to disk.
func (b *MDBXBackend) Shutdown(context.Context) error {
	return errors.Wrap(b.env.Sync(true, false), "mdbx: failed to sync")
}

func (b *MDBXBackend) Close() error {
	b.env.Close()
	return nil
}
