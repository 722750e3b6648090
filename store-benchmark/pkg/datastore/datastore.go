// =============================================================================
// pkg/datastore/datastore.go - Hierarchical Object Store Client
// =============================================================================
//
// The store exposes a DataSet → Run → SubRun → Event hierarchy of labelled
// products over a flat key-value Backend.
//
// NAMESPACE RULES:
//   - Create* calls are idempotent: creating an existing node returns it
//   - OpenRun decodes a RunDescriptor and never creates anything
//   - Event.Store overwrites a product stored under the same label
//
// TIMING:
//   Store and Load time the serializer and the backend call separately and
//   return them as StoreStatistics / LoadStatistics.
//
// =============================================================================

package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// ConnectOptions are the inputs of Connect.
type ConnectOptions struct {
	// Protocol is the transport the backend is reached over.
	Protocol string

	// ConnectionFile is the TOML connection descriptor.
	ConnectionFile string

	// EngineConfigFile optionally tunes the async engine.
	EngineConfigFile string

	// Threads is the number of async engine workers. 0 runs calls inline.
	Threads int

	// Logger receives trace-level namespace events. Optional.
	Logger interfaces.Logger
}

// DataStore implements interfaces.DataStore.
type DataStore struct {
	backend    Backend
	serializer *Serializer
	engine     *AsyncEngine
	logger     interfaces.Logger
	root       *DataSet
}

var _ interfaces.DataStore = (*DataStore)(nil)

// Connect opens the backend named by the connection file. Every error wraps
// types.ErrConnect.
func Connect(ctx context.Context, opts ConnectOptions) (*DataStore, error) {
	cfg, err := LoadConnectionConfig(opts.ConnectionFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnect, err)
	}
	engineCfg, err := LoadEngineConfig(opts.EngineConfigFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnect, err)
	}
	serializer, err := NewSerializer(cfg.Serialization)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnect, err)
	}
	backend, err := OpenBackend(ctx, cfg, opts.Protocol)
	if err != nil {
		serializer.Close()
		return nil, fmt.Errorf("%w: %w", types.ErrConnect, err)
	}

	ds := New(backend, serializer, NewAsyncEngine(opts.Threads, engineCfg), opts.Logger)
	ds.trace("connected to %s over %s (threads=%d, compression=%s)",
		backend.Name(), opts.Protocol, ds.engine.Threads(), serializer.Compression())
	return ds, nil
}

// New assembles a DataStore from its parts.
func New(backend Backend, serializer *Serializer, engine *AsyncEngine, logger interfaces.Logger) *DataStore {
	ds := &DataStore{backend: backend, serializer: serializer, engine: engine, logger: logger}
	ds.root = &DataSet{store: ds}
	return ds
}

// Backend returns the underlying backend.
func (ds *DataStore) Backend() Backend {
	return ds.backend
}

// Root returns the unnamed root dataset.
func (ds *DataStore) Root() interfaces.DataSet {
	return ds.root
}

// OpenRun resolves desc into a run handle.
func (ds *DataStore) OpenRun(ctx context.Context, desc types.RunDescriptor, validate bool) (interfaces.Run, error) {
	if !desc.Valid() {
		return nil, errors.New("invalid run descriptor")
	}
	r := &Run{store: ds, datasetID: desc.DatasetID(), number: desc.RunNumber()}
	r.key = runKey(r.datasetID, r.number)
	if validate {
		exists, err := ds.backend.Exists(ctx, r.key)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.Wrapf(types.ErrNotFound, "run %d of dataset %x", r.number, r.datasetID)
		}
	}
	ds.trace("opened run %d from descriptor", r.number)
	return r, nil
}

// Shutdown asks the backend to make state durable and stop where it owns the
// service.
func (ds *DataStore) Shutdown(ctx context.Context) error {
	return ds.backend.Shutdown(ctx)
}

// Close stops the engine and releases the backend.
func (ds *DataStore) Close() error {
	ds.engine.Close()
	ds.serializer.Close()
	return ds.backend.Close()
}

func (ds *DataStore) trace(format string, args ...interface{}) {
	if ds.logger != nil {
		ds.logger.Trace(format, args...)
	}
}

// createNode creates a payload-free hierarchy node through the engine.
func (ds *DataStore) createNode(ctx context.Context, key string) error {
	err := ds.engine.Do(ctx, func() error {
		_, err := ds.backend.PutIfAbsent(ctx, key, marker)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	return nil
}

// =============================================================================
// DataSet
// =============================================================================

// DataSet implements interfaces.DataSet.
type DataSet struct {
	store    *DataStore
	id       [16]byte
	fullName string
}

// ID returns the dataset identifier embedded in run descriptors.
func (d *DataSet) ID() [16]byte { return d.id }

func (d *DataSet) FullName() string { return d.fullName }

// CreateDataSet creates (or opens) a child dataset.
func (d *DataSet) CreateDataSet(ctx context.Context, name string) (interfaces.DataSet, error) {
	if err := validateName("dataset", name); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	fullName := name
	if d.fullName != "" {
		fullName = d.fullName + "/" + name
	}

	id := uuid.New()
	key := datasetKey(fullName)
	var existing []byte
	err := d.store.engine.Do(ctx, func() error {
		created, err := d.store.backend.PutIfAbsent(ctx, key, id[:])
		if err != nil {
			return err
		}
		if !created {
			existing, err = d.store.backend.Get(ctx, key)
			return err
		}
		return d.store.backend.Put(ctx, datasetIDKey(id), []byte(fullName))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %w", types.ErrStore, fullName, err)
	}

	child := &DataSet{store: d.store, id: id, fullName: fullName}
	if existing != nil {
		if len(existing) != len(child.id) {
			return nil, fmt.Errorf("%w: dataset %s has a corrupted identifier", types.ErrStore, fullName)
		}
		copy(child.id[:], existing)
		d.store.trace("opened existing dataset %s", fullName)
	} else {
		d.store.trace("created dataset %s", fullName)
	}
	return child, nil
}

// CreateDataSetPath creates every level of a '/'-separated dataset path.
func CreateDataSetPath(ctx context.Context, root interfaces.DataSet, path string) (interfaces.DataSet, error) {
	ds := root
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		var err error
		if ds, err = ds.CreateDataSet(ctx, name); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// CreateRun creates (or opens) a run of the dataset.
func (d *DataSet) CreateRun(ctx context.Context, number uint64) (interfaces.Run, error) {
	if d.fullName == "" {
		return nil, fmt.Errorf("%w: runs cannot be created in the root dataset", types.ErrStore)
	}
	r := &Run{store: d.store, datasetID: d.id, number: number, key: runKey(d.id, number)}
	if err := d.store.createNode(ctx, r.key); err != nil {
		return nil, err
	}
	d.store.trace("created run %d in %s", number, d.fullName)
	return r, nil
}

// =============================================================================
// Run
// =============================================================================

// Run implements interfaces.Run.
type Run struct {
	store     *DataStore
	datasetID [16]byte
	number    uint64
	key       string
}

func (r *Run) Number() uint64 { return r.number }

// Descriptor encodes the run as a fixed-size locator.
func (r *Run) Descriptor() types.RunDescriptor {
	return types.NewRunDescriptor(r.datasetID, r.number)
}

func (r *Run) CreateSubRun(ctx context.Context, number uint64) (interfaces.SubRun, error) {
	s := &SubRun{store: r.store, number: number, key: subRunKey(r.key, number)}
	if err := r.store.createNode(ctx, s.key); err != nil {
		return nil, err
	}
	r.store.trace("created subrun %d in run %d", number, r.number)
	return s, nil
}

// =============================================================================
// SubRun
// =============================================================================

// SubRun implements interfaces.SubRun.
type SubRun struct {
	store  *DataStore
	number uint64
	key    string
}

func (s *SubRun) Number() uint64 { return s.number }

func (s *SubRun) CreateEvent(ctx context.Context, number uint64) (interfaces.Event, error) {
	e := &Event{store: s.store, number: number, key: eventKey(s.key, number)}
	if err := s.store.createNode(ctx, e.key); err != nil {
		return nil, err
	}
	return e, nil
}

// Event opens an existing event. Absent events wrap types.ErrNotFound.
func (s *SubRun) Event(ctx context.Context, number uint64) (interfaces.Event, error) {
	e := &Event{store: s.store, number: number, key: eventKey(s.key, number)}
	var exists bool
	err := s.store.engine.Do(ctx, func() error {
		var err error
		exists, err = s.store.backend.Exists(ctx, e.key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: event %d: %w", types.ErrLoad, number, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: event %d: %w", types.ErrLoad, number, types.ErrNotFound)
	}
	return e, nil
}

// =============================================================================
// Event
// =============================================================================

// Event implements interfaces.Event.
type Event struct {
	store  *DataStore
	number uint64
	key    string
}

func (e *Event) Number() uint64 { return e.number }

// Store serializes data and writes it under label.
func (e *Event) Store(ctx context.Context, label string, data []byte) (types.StoreStatistics, error) {
	var stats types.StoreStatistics

	start := time.Now()
	value, err := e.store.serializer.Marshal(data)
	stats.SerializationTime.PushDuration(time.Since(start))
	if err != nil {
		return stats, fmt.Errorf("%w: event %d label %s: %w", types.ErrStore, e.number, label, err)
	}

	key := productKey(e.key, label)
	err = e.store.engine.Do(ctx, func() error {
		start := time.Now()
		err := e.store.backend.Put(ctx, key, value)
		stats.RawStorageTime.PushDuration(time.Since(start))
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("%w: event %d label %s: %w", types.ErrStore, e.number, label, err)
	}
	return stats, nil
}

// Load reads and deserializes the product stored under label.
func (e *Event) Load(ctx context.Context, label string) ([]byte, types.LoadStatistics, error) {
	var stats types.LoadStatistics

	key := productKey(e.key, label)
	var value []byte
	err := e.store.engine.Do(ctx, func() error {
		start := time.Now()
		var err error
		value, err = e.store.backend.Get(ctx, key)
		stats.RawLoadingTime.PushDuration(time.Since(start))
		return err
	})
	if err != nil {
		return nil, stats, fmt.Errorf("%w: event %d label %s: %w", types.ErrLoad, e.number, label, err)
	}

	start := time.Now()
	data, err := e.store.serializer.Unmarshal(value)
	stats.DeserializationTime.PushDuration(time.Since(start))
	if err != nil {
		return nil, stats, fmt.Errorf("%w: event %d label %s: %w", types.ErrLoad, e.number, label, err)
	}
	return data, stats, nil
}
