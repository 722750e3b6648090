package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

func TestMDBXBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &ConnectionConfig{Backend: "mdbx", MDBX: MDBXConfig{Path: filepath.Join(t.TempDir(), "db", "hepnos.mdbx")}}

	b, err := OpenBackend(ctx, cfg, "local")
	require.NoError(t, err)
	backend := b.(*MDBXBackend)
	assert.Equal(t, "mdbx", backend.Name())
	assert.EqualValues(t, mdbxTableName, backend.env.Label())

	created, err := b.PutIfAbsent(ctx, "test/run", marker)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = b.PutIfAbsent(ctx, "test/run", []byte("other"))
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, b.Put(ctx, "test/run/0/0/prod", []byte("payload")))
	v, err := b.Get(ctx, "test/run/0/0/prod")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), v)
	v, err = b.Get(ctx, "test/run")
	require.NoError(t, err)
	assert.Equal(t, marker, v)

	_, err = b.Get(ctx, "absent")
	assert.ErrorIs(t, err, types.ErrNotFound)
	ok, err := b.Exists(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Shutdown(ctx))
	require.NoError(t, b.Close())

	// reopening sees the synced data
	b, err = OpenBackend(ctx, cfg, "sm")
	require.NoError(t, err)
	defer b.Close()
	ok, err = b.Exists(ctx, "test/run/0/0/prod")
	require.NoError(t, err)
	assert.True(t, ok)
}
