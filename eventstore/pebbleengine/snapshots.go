package pebbleengine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	jsoniter "github.com/json-iterator/go"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// snapshotEnvelope is the stored JSON form of an eventstore.Snapshot.
type snapshotEnvelope struct {
	ProjectionType string          `json:"projection_type"`
	FilterHash     string          `json:"filter_hash"`
	Position       uint64          `json:"position"`
	Data           json.RawMessage `json:"data"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaveSnapshot stores a projection snapshot, replacing any previous snapshot
// for the same projection type and filter hash.
func (s *Stream) SaveSnapshot(ctx context.Context, snapshot eventstore.Snapshot) error {
	if s.closed.Load() {
		return eventstore.ErrStreamClosed
	}

	if validateErr := snapshot.Validate(); validateErr != nil {
		return validateErr
	}

	envelope := snapshotEnvelope{
		ProjectionType: snapshot.ProjectionType,
		FilterHash:     snapshot.FilterHash,
		Position:       snapshot.Position,
		Data:           snapshot.Data,
		CreatedAt:      snapshot.CreatedAt,
	}

	value, marshalErr := jsoniter.ConfigFastest.Marshal(envelope)
	if marshalErr != nil {
		return errors.Join(eventstore.ErrSavingSnapshotFailed, marshalErr)
	}

	key := records.SnapshotKey(snapshot.ProjectionType, snapshot.FilterHash)
	if setErr := s.db.Set(key, value, s.writeOptions(ctx)); setErr != nil {
		return errors.Join(eventstore.ErrSavingSnapshotFailed, setErr)
	}

	return nil
}

// LoadSnapshot retrieves the stored snapshot for a projection type and the
// given filter. It returns nil without error when no snapshot exists.
func (s *Stream) LoadSnapshot(
	_ context.Context,
	projectionType string,
	filter eventstore.Filter,
) (*eventstore.Snapshot, error) {

	if s.closed.Load() {
		return nil, eventstore.ErrStreamClosed
	}

	if projectionType == "" {
		return nil, eventstore.ErrEmptyProjectionType
	}

	key := records.SnapshotKey(projectionType, filter.Hash())

	value, closer, getErr := s.db.Get(key)
	if errors.Is(getErr, pebble.ErrNotFound) {
		return nil, nil //nolint:nilnil // no snapshot is a regular outcome, not an error
	}
	if getErr != nil {
		return nil, errors.Join(eventstore.ErrLoadingSnapshotFailed, getErr)
	}

	var envelope snapshotEnvelope
	unmarshalErr := jsoniter.ConfigFastest.Unmarshal(value, &envelope)
	closeErr := closer.Close()

	if joined := errors.Join(unmarshalErr, closeErr); joined != nil {
		return nil, errors.Join(eventstore.ErrLoadingSnapshotFailed, joined)
	}

	return &eventstore.Snapshot{
		ProjectionType: envelope.ProjectionType,
		FilterHash:     envelope.FilterHash,
		Position:       envelope.Position,
		Data:           envelope.Data,
		CreatedAt:      envelope.CreatedAt,
	}, nil
}

// DeleteSnapshot removes the stored snapshot for a projection type and the
// given filter. Deleting a snapshot that does not exist is not an error.
func (s *Stream) DeleteSnapshot(
	ctx context.Context,
	projectionType string,
	filter eventstore.Filter,
) error {

	if s.closed.Load() {
		return eventstore.ErrStreamClosed
	}

	if projectionType == "" {
		return eventstore.ErrEmptyProjectionType
	}

	key := records.SnapshotKey(projectionType, filter.Hash())
	if deleteErr := s.db.Delete(key, s.writeOptions(ctx)); deleteErr != nil {
		return errors.Join(eventstore.ErrDeletingSnapshotFailed, deleteErr)
	}

	return nil
}
