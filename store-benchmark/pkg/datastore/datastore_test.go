package datastore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/logging"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/product"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

func newMemoryStore(t *testing.T, threads int, compression string) (*DataStore, *MemoryBackend) {
	t.Helper()
	serializer, err := NewSerializer(SerializationConfig{Compression: compression})
	require.NoError(t, err)
	backend := NewMemoryBackend()
	ds := New(backend, serializer, NewAsyncEngine(threads, DefaultEngineConfig()), nil)
	t.Cleanup(func() { ds.Close() })
	return ds, backend
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCreateDataSetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ds, _ := newMemoryStore(t, 0, "")

	first, err := ds.Root().CreateDataSet(ctx, "test")
	require.NoError(t, err)
	second, err := ds.Root().CreateDataSet(ctx, "test")
	require.NoError(t, err)

	assert.Equal(t, "test", first.FullName())
	assert.Equal(t, first.(*DataSet).ID(), second.(*DataSet).ID())

	r1, err := first.CreateRun(ctx, 0)
	require.NoError(t, err)
	r2, err := second.CreateRun(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, r1.Descriptor(), r2.Descriptor())
}

func TestCreateDataSetPath(t *testing.T) {
	ctx := context.Background()
	ds, _ := newMemoryStore(t, 0, "")

	nested, err := CreateDataSetPath(ctx, ds.Root(), "/experiment/calibration")
	require.NoError(t, err)
	assert.Equal(t, "experiment/calibration", nested.FullName())

	_, err = ds.Root().CreateDataSet(ctx, "bad/name")
	assert.ErrorIs(t, err, types.ErrStore)
	_, err = ds.Root().CreateDataSet(ctx, "")
	assert.ErrorIs(t, err, types.ErrStore)
}

func TestOpenRunDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	ds, backend := newMemoryStore(t, 0, "")

	dataset, err := ds.Root().CreateDataSet(ctx, "test")
	require.NoError(t, err)
	run, err := dataset.CreateRun(ctx, 0)
	require.NoError(t, err)
	desc := run.Descriptor()

	before := backend.keyCount()
	for i := 0; i < 5; i++ {
		opened, err := ds.OpenRun(ctx, desc, false)
		require.NoError(t, err)
		assert.Equal(t, desc, opened.Descriptor())
	}
	assert.Equal(t, before, backend.keyCount())

	// an unknown run only fails when validated
	missing := types.NewRunDescriptor(dataset.(*DataSet).ID(), 42)
	_, err = ds.OpenRun(ctx, missing, false)
	require.NoError(t, err)
	_, err = ds.OpenRun(ctx, missing, true)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = ds.OpenRun(ctx, types.RunDescriptor{}, false)
	assert.Error(t, err)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name        string
		threads     int
		compression string
	}{
		{"inline", 0, "none"},
		{"workers", 4, "none"},
		{"zstd", 2, "zstd"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			ds, _ := newMemoryStore(t, tc.threads, tc.compression)

			dataset, err := ds.Root().CreateDataSet(ctx, "test")
			require.NoError(t, err)
			run, err := dataset.CreateRun(ctx, 0)
			require.NoError(t, err)
			subrun, err := run.CreateSubRun(ctx, 3)
			require.NoError(t, err)

			for i, p := range product.Generate([]uint64{0, 128, 4096}) {
				event, err := subrun.CreateEvent(ctx, uint64(i))
				require.NoError(t, err)
				stats, err := event.Store(ctx, "dummy", p.Data)
				require.NoError(t, err)
				assert.Equal(t, 1, stats.RawStorageTime.Num)
				assert.Equal(t, 1, stats.SerializationTime.Num)

				loadedEvent, err := subrun.Event(ctx, uint64(i))
				require.NoError(t, err)
				data, lstats, err := loadedEvent.Load(ctx, "dummy")
				require.NoError(t, err)
				assert.True(t, p.Equal(data), "product %d differs after round trip", i)
				assert.Equal(t, 1, lstats.RawLoadingTime.Num)
				assert.Equal(t, 1, lstats.DeserializationTime.Num)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	ctx := context.Background()
	ds, _ := newMemoryStore(t, 0, "")

	dataset, err := ds.Root().CreateDataSet(ctx, "test")
	require.NoError(t, err)
	run, err := dataset.CreateRun(ctx, 0)
	require.NoError(t, err)
	subrun, err := run.CreateSubRun(ctx, 0)
	require.NoError(t, err)

	_, err = subrun.Event(ctx, 7)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, err, types.ErrLoad)

	event, err := subrun.CreateEvent(ctx, 7)
	require.NoError(t, err)
	_, _, err = event.Load(ctx, "absent")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestConnectMemory(t *testing.T) {
	ctx := context.Background()
	conn := writeFile(t, "connection.toml", `
backend = "memory"

[memory]
name = "connect-test"

[serialization]
compression = "zstd"
level = 3
`)
	engine := writeFile(t, "engine.toml", "queue_depth = 8\n")

	var trace bytes.Buffer
	logger, err := logging.New(logging.Options{Level: types.VerbosityTrace, Console: &trace})
	require.NoError(t, err)
	a, err := Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: conn, EngineConfigFile: engine, Threads: 2, Logger: logger})
	require.NoError(t, err)
	defer a.Close()
	assert.Contains(t, trace.String(), "over local (threads=2, compression=zstd)")
	b, err := Connect(ctx, ConnectOptions{Protocol: "sm", ConnectionFile: conn})
	require.NoError(t, err)
	defer b.Close()

	// both handles see one namespace
	ds, err := a.Root().CreateDataSet(ctx, "shared")
	require.NoError(t, err)
	run, err := ds.CreateRun(ctx, 0)
	require.NoError(t, err)
	_, err = b.OpenRun(ctx, run.Descriptor(), true)
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(ctx))
	c, err := Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: conn})
	require.NoError(t, err)
	defer c.Close()
	_, err = c.OpenRun(ctx, run.Descriptor(), true)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()

	memory := writeFile(t, "memory.toml", "backend = \"memory\"\n")
	_, err := Connect(ctx, ConnectOptions{Protocol: "tcp", ConnectionFile: memory})
	assert.ErrorIs(t, err, types.ErrConnect)
	assert.Contains(t, err.Error(), "does not support protocol")

	unknown := writeFile(t, "unknown.toml", "backend = \"tape\"\n")
	_, err = Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: unknown})
	assert.ErrorIs(t, err, types.ErrConnect)

	typo := writeFile(t, "typo.toml", "backend = \"memory\"\n[memroy]\nname = \"x\"\n")
	_, err = Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: typo})
	assert.ErrorIs(t, err, types.ErrConnect)
	assert.Contains(t, err.Error(), "unknown keys")

	badCompression := writeFile(t, "bad.toml", "backend = \"memory\"\n[serialization]\ncompression = \"lz4\"\n")
	_, err = Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: badCompression})
	assert.ErrorIs(t, err, types.ErrConnect)

	_, err = Connect(ctx, ConnectOptions{Protocol: "local", ConnectionFile: filepath.Join(t.TempDir(), "absent.toml")})
	assert.ErrorIs(t, err, types.ErrConnect)
}

func TestEngineRateLimit(t *testing.T) {
	e := NewAsyncEngine(1, EngineConfig{QueueDepth: 1, MaxOpsPerSecond: 1000, Burst: 1})
	defer e.Close()

	calls := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Do(context.Background(), func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, e.Threads())
}
