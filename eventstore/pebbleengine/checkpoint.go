package pebbleengine

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// ErrEmptyCheckpointName is returned when a checkpoint operation is called
// with an empty consumer name.
var ErrEmptyCheckpointName = errors.New("checkpoint name must not be empty")

// CommitCheckpoint durably stores the last processed position for a named
// consumer. Commits are monotonic: a position lower than or equal to the
// stored one is ignored, so replays and races between workers cannot move a
// checkpoint backwards.
func (s *Stream) CommitCheckpoint(ctx context.Context, name string, position eventstore.Position) error {
	if name == "" {
		return ErrEmptyCheckpointName
	}

	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()

	// Checked under the lock: Close drains checkpoint writers holding it
	// before it closes the database.
	if s.closed.Load() {
		return eventstore.ErrStreamClosed
	}

	key := records.CheckpointKey(name)

	stored, found, readErr := s.readUint64(key)
	if readErr != nil {
		return readErr
	}

	if found && position <= stored {
		return nil
	}

	var value [8]byte
	binary.BigEndian.PutUint64(value[:], position)

	return s.db.Set(key, value[:], s.writeOptions(ctx))
}

// Checkpoint loads the stored position for a named consumer. An unknown name
// yields ZeroPosition, meaning "start from the beginning".
func (s *Stream) Checkpoint(_ context.Context, name string) (eventstore.Position, error) {
	if name == "" {
		return eventstore.ZeroPosition, ErrEmptyCheckpointName
	}

	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()

	if s.closed.Load() {
		return eventstore.ZeroPosition, eventstore.ErrStreamClosed
	}

	stored, _, readErr := s.readUint64(records.CheckpointKey(name))
	if readErr != nil {
		return eventstore.ZeroPosition, readErr
	}

	return stored, nil
}
