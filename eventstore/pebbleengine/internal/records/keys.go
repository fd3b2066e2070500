package records

import (
	"encoding/binary"
)

// Keyspace layout (byte-wise, lexicographically sortable):
//
//	e/{position_be8}            event record
//	m/tail                      last committed position (be8)
//	m/nextid                    next event type id (be4)
//	r/n/{name}                  event type name -> id (be4)
//	r/i/{id_be4}                event type id -> name
//	c/{name}                    consumer checkpoint position (be8)
//	s/{projectionType}/{hash}   projection snapshot (json envelope)

var (
	eventPrefix      = []byte("e/")
	tailKey          = []byte("m/tail")
	nextTypeIDKey    = []byte("m/nextid")
	typeNamePrefix   = []byte("r/n/")
	typeIDPrefix     = []byte("r/i/")
	checkpointPrefix = []byte("c/")
	snapshotPrefix   = []byte("s/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)

	return append(dst, b[:]...)
}

// EventKey builds the record key with a big-endian position for proper ordering.
func EventKey(position uint64) []byte {
	k := make([]byte, 0, len(eventPrefix)+8)
	k = append(k, eventPrefix...)

	return appendBE8(k, position)
}

// EventKeyUpperBound is the exclusive upper bound of the event keyspace.
func EventKeyUpperBound() []byte {
	k := EventKey(^uint64(0))

	return append(k, 0x00)
}

// PositionFromEventKey extracts the position from an event key.
func PositionFromEventKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(eventPrefix):])
}

// TailKey is the checkpoint key holding the last committed position.
func TailKey() []byte {
	return tailKey
}

// NextTypeIDKey holds the next unassigned event type id.
func NextTypeIDKey() []byte {
	return nextTypeIDKey
}

// TypeNameKey maps an event type name to its id.
func TypeNameKey(name string) []byte {
	k := make([]byte, 0, len(typeNamePrefix)+len(name))
	k = append(k, typeNamePrefix...)

	return append(k, name...)
}

// TypeNamePrefix is the range prefix to scan all registered type names.
func TypeNamePrefix() []byte {
	return typeNamePrefix
}

// NameFromTypeNameKey extracts the type name from a name mapping key.
func NameFromTypeNameKey(key []byte) string {
	return string(key[len(typeNamePrefix):])
}

// TypeIDKey maps an event type id to its name.
func TypeIDKey(id uint32) []byte {
	k := make([]byte, 0, len(typeIDPrefix)+4)
	k = append(k, typeIDPrefix...)

	return appendBE4(k, id)
}

// CheckpointKey builds the durable checkpoint key for a named consumer.
func CheckpointKey(name string) []byte {
	k := make([]byte, 0, len(checkpointPrefix)+len(name))
	k = append(k, checkpointPrefix...)

	return append(k, name...)
}

// SnapshotKey builds the snapshot key for a projection type and filter hash.
func SnapshotKey(projectionType, filterHash string) []byte {
	k := make([]byte, 0, len(snapshotPrefix)+len(projectionType)+1+len(filterHash))
	k = append(k, snapshotPrefix...)
	k = append(k, projectionType...)
	k = append(k, '/')

	return append(k, filterHash...)
}

// PrefixUpperBound returns the exclusive upper bound for scanning all keys
// with the given prefix.
func PrefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil
}
