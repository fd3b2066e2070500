package pebbleengine

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// typeRegistry interns event type names as stable uint32 ids so records store
// a few bytes instead of the full name. The mapping is persisted in the same
// batch as the records that introduce it; ids are never reused or reassigned.
//
// Mutation only happens inside the append critical section (under Stream.mu),
// and only after the batch committed; the RWMutex protects concurrent readers.
type typeRegistry struct {
	mu     sync.RWMutex
	byName map[string]uint32
	byID   map[uint32]string
	nextID uint32
}

// typeAllocation is an id assignment staged into an append batch, applied to
// the in-memory maps once the batch commits.
type typeAllocation struct {
	name string
	id   uint32
}

func loadTypeRegistry(db *pebble.DB) (*typeRegistry, error) {
	registry := &typeRegistry{
		byName: make(map[string]uint32),
		byID:   make(map[uint32]string),
	}

	prefix := records.TypeNamePrefix()
	iter, iterErr := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: records.PrefixUpperBound(prefix),
	})
	if iterErr != nil {
		return nil, iterErr
	}

	for iter.First(); iter.Valid(); iter.Next() {
		name := records.NameFromTypeNameKey(iter.Key())
		id := binary.BigEndian.Uint32(iter.Value())
		registry.byName[name] = id
		registry.byID[id] = name
	}

	if iterCloseErr := iter.Close(); iterCloseErr != nil {
		return nil, iterCloseErr
	}

	raw, closer, getErr := db.Get(records.NextTypeIDKey())
	switch {
	case getErr == nil:
		registry.nextID = binary.BigEndian.Uint32(raw)
		if closeErr := closer.Close(); closeErr != nil {
			return nil, closeErr
		}
	case !errors.Is(getErr, pebble.ErrNotFound):
		return nil, getErr
	}

	return registry, nil
}

func (r *typeRegistry) idOf(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]

	return id, ok
}

func (r *typeRegistry) nameOf(id uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byID[id]

	return name, ok
}

func (r *typeRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]string, 0, len(r.byName))
	for name := range r.byName {
		all = append(all, name)
	}
	slices.Sort(all)

	return all
}

// stage resolves a name to its id, allocating a new one into the batch when
// the name is unseen. Allocations become visible only via apply after commit.
func (r *typeRegistry) stage(
	batch *pebble.Batch,
	name string,
	pending []typeAllocation,
) (uint32, []typeAllocation, error) {

	if id, ok := r.idOf(name); ok {
		return id, pending, nil
	}

	for _, allocation := range pending {
		if allocation.name == name {
			return allocation.id, pending, nil
		}
	}

	r.mu.RLock()
	nextID := r.nextID
	r.mu.RUnlock()

	if uint64(nextID)+uint64(len(pending)) >= math.MaxUint32 {
		return 0, pending, eventstore.ErrTypeRegistryExhausted
	}
	id := nextID + uint32(len(pending))

	var idValue [4]byte
	binary.BigEndian.PutUint32(idValue[:], id)
	if setErr := batch.Set(records.TypeNameKey(name), idValue[:], nil); setErr != nil {
		return 0, pending, setErr
	}
	if setErr := batch.Set(records.TypeIDKey(id), []byte(name), nil); setErr != nil {
		return 0, pending, setErr
	}

	var nextValue [4]byte
	binary.BigEndian.PutUint32(nextValue[:], id+1)
	if setErr := batch.Set(records.NextTypeIDKey(), nextValue[:], nil); setErr != nil {
		return 0, pending, setErr
	}

	return id, append(pending, typeAllocation{name: name, id: id}), nil
}

// apply publishes staged allocations after their batch committed.
func (r *typeRegistry) apply(pending []typeAllocation) {
	if len(pending) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, allocation := range pending {
		r.byName[allocation.name] = allocation.id
		r.byID[allocation.id] = allocation.name
		if allocation.id >= r.nextID {
			r.nextID = allocation.id + 1
		}
	}
}
