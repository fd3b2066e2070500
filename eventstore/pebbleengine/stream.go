package pebbleengine

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// Stream is an embedded event store on top of a single Pebble database.
//
// All events live in one totally ordered log; there are no named streams.
// Appends are serialized by a single writer lock which is held across the
// consistency boundary scan and the atomic batch commit. Readers never take
// that lock: they iterate Pebble snapshots of committed state and observe
// either the pre-append or the post-append tail, never a partial batch.
type Stream struct {
	db   *pebble.DB
	path string

	temporary  bool
	syncWrites bool
	clock      func() time.Time

	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector

	// mu serializes appends: boundary scan, type resolution and batch commit
	// happen inside one critical section.
	mu     sync.Mutex
	tail   atomic.Uint64
	closed atomic.Bool

	registry *typeRegistry

	checkpointMu sync.Mutex

	notifyMu sync.Mutex
	notifyCh chan struct{}
	done     chan struct{}
}

// open is called by StreamBuilder.Open after the configuration is complete.
func open(config *StreamBuilder) (*Stream, error) {
	db, openErr := pebble.Open(config.path, &pebble.Options{})
	if openErr != nil {
		return nil, errors.Join(eventstore.ErrOpeningStreamFailed, openErr)
	}

	s := &Stream{
		db:               db,
		path:             config.path,
		temporary:        config.temporary,
		syncWrites:       config.syncWrites,
		clock:            config.clock,
		logger:           config.logger,
		contextualLogger: config.contextualLogger,
		metricsCollector: config.metricsCollector,
		tracingCollector: config.tracingCollector,
		notifyCh:         make(chan struct{}),
		done:             make(chan struct{}),
	}

	registry, registryErr := loadTypeRegistry(db)
	if registryErr != nil {
		_ = db.Close()
		return nil, errors.Join(eventstore.ErrOpeningStreamFailed, registryErr)
	}
	s.registry = registry

	tail, recoverErr := s.recoverTail()
	if recoverErr != nil {
		_ = db.Close()
		return nil, errors.Join(eventstore.ErrOpeningStreamFailed, recoverErr)
	}
	s.tail.Store(tail)

	s.logOperation(logMsgStreamOpened, logAttrPath, s.path, logAttrTail, tail)

	return s, nil
}

// recoverTail establishes the true tail of the log after an unclean shutdown.
//
// The tail checkpoint is written in the same batch as the records it covers,
// so records above the stored tail can only be leftovers of a torn write and
// are dropped. Records at or below the stored tail are validated from the top
// down; corrupt or missing ones are truncated until a valid record (or the
// empty log) is reached.
func (s *Stream) recoverTail() (uint64, error) {
	storedTail, _, readErr := s.readUint64(records.TailKey())
	if readErr != nil {
		return 0, readErr
	}

	if dropErr := s.dropOrphanRecords(storedTail); dropErr != nil {
		return 0, dropErr
	}

	tail := storedTail
	for tail >= 1 {
		value, closer, getErr := s.db.Get(records.EventKey(tail))
		if errors.Is(getErr, pebble.ErrNotFound) {
			s.logWarn(logMsgTruncatedRecord, logAttrPosition, tail)
			tail--
			continue
		}
		if getErr != nil {
			return 0, getErr
		}

		_, _, decodeErr := records.DecodeRecord(value)
		closeErr := closer.Close()
		if decodeErr != nil {
			s.logWarn(logMsgTruncatedRecord, logAttrPosition, tail, logAttrError, decodeErr.Error())

			if deleteErr := s.db.Delete(records.EventKey(tail), pebble.Sync); deleteErr != nil {
				return 0, deleteErr
			}
			tail--
			continue
		}
		if closeErr != nil {
			return 0, closeErr
		}

		break
	}

	if tail != storedTail {
		var value [8]byte
		binary.BigEndian.PutUint64(value[:], tail)
		if setErr := s.db.Set(records.TailKey(), value[:], pebble.Sync); setErr != nil {
			return 0, setErr
		}
	}

	return tail, nil
}

// dropOrphanRecords deletes records beyond the stored tail checkpoint.
func (s *Stream) dropOrphanRecords(storedTail uint64) error {
	iter, iterErr := s.db.NewIter(&pebble.IterOptions{
		LowerBound: records.EventKey(storedTail + 1),
		UpperBound: records.EventKeyUpperBound(),
	})
	if iterErr != nil {
		return iterErr
	}

	for iter.First(); iter.Valid(); iter.Next() {
		position := records.PositionFromEventKey(iter.Key())
		s.logWarn(logMsgOrphanRecord, logAttrPosition, position)

		if deleteErr := s.db.Delete(records.EventKey(position), pebble.Sync); deleteErr != nil {
			_ = iter.Close()
			return deleteErr
		}
	}

	if iterCloseErr := iter.Close(); iterCloseErr != nil {
		return iterCloseErr
	}

	return nil
}

// Tail returns the position of the last committed event, or ZeroPosition for
// an empty stream. It never blocks.
func (s *Stream) Tail() eventstore.Position {
	return s.tail.Load()
}

// IsEmpty reports whether no event has ever been committed.
func (s *Stream) IsEmpty() bool {
	return s.tail.Load() == eventstore.ZeroPosition
}

// Len returns the number of committed events. Positions are gap-free, so this
// equals the tail.
func (s *Stream) Len() uint64 {
	return s.tail.Load()
}

// RegisteredEventTypes returns all event type names that have ever been
// appended, in lexical order. The mapping is persistent: a name keeps its
// internal id across restarts.
func (s *Stream) RegisteredEventTypes() []string {
	return s.registry.names()
}

// Close flushes and releases the underlying storage. Temporary storage is
// removed. Close is idempotent; operations on a closed stream fail with
// ErrStreamClosed.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.done)

	// Drain in-flight writers before closing the database. New operations
	// observe closed under the same locks and fail with ErrStreamClosed.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()

	if closeErr := s.db.Close(); closeErr != nil {
		return errors.Join(eventstore.ErrClosingStreamFailed, closeErr)
	}

	if s.temporary {
		if removeErr := os.RemoveAll(s.path); removeErr != nil {
			return errors.Join(eventstore.ErrClosingStreamFailed, removeErr)
		}
	}

	s.logOperation(logMsgStreamClosed, logAttrPath, s.path)

	return nil
}

// writeOptions resolves the durability level for a commit: an explicit level
// on the context wins, otherwise the builder's sync-writes default applies.
func (s *Stream) writeOptions(ctx context.Context) *pebble.WriteOptions {
	if level, ok := ctx.Value(eventstore.DurabilityLevelKey).(eventstore.DurabilityLevel); ok {
		if level == eventstore.SyncDurability {
			return pebble.Sync
		}

		return pebble.NoSync
	}

	if s.syncWrites {
		return pebble.Sync
	}

	return pebble.NoSync
}

// readUint64 reads an 8-byte big-endian value; ok is false when the key is absent.
func (s *Stream) readUint64(key []byte) (value uint64, ok bool, err error) {
	raw, closer, getErr := s.db.Get(key)
	if errors.Is(getErr, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if getErr != nil {
		return 0, false, getErr
	}

	if len(raw) >= 8 {
		value = binary.BigEndian.Uint64(raw[:8])
		ok = true
	}

	if closeErr := closer.Close(); closeErr != nil {
		return 0, false, closeErr
	}

	return value, ok, nil
}

// notifyAppend wakes all goroutines blocked in WaitForAppend.
func (s *Stream) notifyAppend() {
	s.notifyMu.Lock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	s.notifyMu.Unlock()
}

// appendNotified returns the channel closed by the next append.
func (s *Stream) appendNotified() <-chan struct{} {
	s.notifyMu.Lock()
	ch := s.notifyCh
	s.notifyMu.Unlock()

	return ch
}

// sequencedEventFromRecord decodes a stored record into a SequencedEvent.
// With withPayload false the payload is left nil, so filter matching (which is
// structural over type and tags) never copies payload bytes of events that end
// up filtered out.
func (s *Stream) sequencedEventFromRecord(key, value []byte, withPayload bool) (eventstore.SequencedEvent, error) {
	position := records.PositionFromEventKey(key)

	header, payload, decodeErr := records.DecodeRecord(value)
	if decodeErr != nil {
		return eventstore.SequencedEvent{}, errors.Join(eventstore.ErrCorruptRecord, decodeErr)
	}

	eventType, known := s.registry.nameOf(header.TypeID)
	if !known {
		return eventstore.SequencedEvent{}, errors.Join(eventstore.ErrCorruptRecord, errUnknownTypeID)
	}

	tags := make([]eventstore.Tag, 0, len(header.Tags))
	for _, raw := range header.Tags {
		tag, tagErr := eventstore.NewTag(raw)
		if tagErr != nil {
			return eventstore.SequencedEvent{}, errors.Join(eventstore.ErrCorruptRecord, tagErr)
		}
		tags = append(tags, tag)
	}

	event := eventstore.SequencedEvent{
		Position:   position,
		EventType:  eventType,
		Tags:       tags,
		RecordedAt: time.Unix(0, header.RecordedAt).UTC(),
	}

	if withPayload {
		event.Payload = append([]byte(nil), payload...)
	}

	return event, nil
}

var errUnknownTypeID = errors.New("record references an unregistered event type id")
