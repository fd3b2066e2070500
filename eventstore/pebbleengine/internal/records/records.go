// Package records implements the durable on-disk format of the event log:
// the record codec and the keyspace layout.
package records

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)
//
// Header encoding: uvarint typeID | uvarint recordedAt (unix nanos) |
// uvarint tagCount | tagCount x (uvarint len | bytes)
//
// The header is self-describing: type, tags, and timestamp are decodable
// without parsing the payload, so query matching never touches payload bytes
// of events it filters out.

var (
	ErrTruncatedRecord  = errors.New("record is truncated")
	ErrChecksumMismatch = errors.New("record checksum mismatch")
	ErrMalformedHeader  = errors.New("record header is malformed")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Header is the decoded record header.
type Header struct {
	TypeID     uint32
	RecordedAt int64 // unix nanos
	Tags       []string
}

// EncodeRecord serializes a record for storage.
func EncodeRecord(header Header, payload []byte) []byte {
	h := encodeHeader(header)

	out := make([]byte, 0, 10+len(h)+len(payload)+4)

	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(h)))
	out = append(out, tmp[:n]...)
	out = append(out, h...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, h)
	crc = crc32.Update(crc, castagnoli, payload)

	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)

	return out
}

// DecodeRecord validates the checksum and decodes the header. The returned
// payload aliases the input buffer; callers keeping it beyond the buffer's
// lifetime must copy it.
func DecodeRecord(b []byte) (Header, []byte, error) {
	if len(b) < 1+4 {
		return Header{}, nil, ErrTruncatedRecord
	}

	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return Header{}, nil, ErrMalformedHeader
	}

	// Compare in uint64 so an absurd header length from a corrupt record
	// cannot wrap the bounds check when converted to int.
	rest := len(b) - n - 4
	if rest < 0 || hlen > uint64(rest) {
		return Header{}, nil, ErrTruncatedRecord
	}

	rawHeader := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]

	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, rawHeader)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return Header{}, nil, ErrChecksumMismatch
	}

	header, decodeErr := decodeHeader(rawHeader)
	if decodeErr != nil {
		return Header{}, nil, decodeErr
	}

	return header, payload, nil
}

func encodeHeader(h Header) []byte {
	var tmp [10]byte

	out := make([]byte, 0, 24)

	n := binary.PutUvarint(tmp[:], uint64(h.TypeID))
	out = append(out, tmp[:n]...)

	n = binary.PutUvarint(tmp[:], uint64(h.RecordedAt))
	out = append(out, tmp[:n]...)

	n = binary.PutUvarint(tmp[:], uint64(len(h.Tags)))
	out = append(out, tmp[:n]...)

	for _, tag := range h.Tags {
		n = binary.PutUvarint(tmp[:], uint64(len(tag)))
		out = append(out, tmp[:n]...)
		out = append(out, tag...)
	}

	return out
}

func decodeHeader(b []byte) (Header, error) {
	typeID, n := binary.Uvarint(b)
	if n <= 0 || typeID > uint64(^uint32(0)) {
		return Header{}, ErrMalformedHeader
	}
	b = b[n:]

	recordedAt, n := binary.Uvarint(b)
	if n <= 0 {
		return Header{}, ErrMalformedHeader
	}
	b = b[n:]

	tagCount, n := binary.Uvarint(b)
	if n <= 0 {
		return Header{}, ErrMalformedHeader
	}
	b = b[n:]

	tags := make([]string, 0, tagCount)
	for range tagCount {
		tagLen, tn := binary.Uvarint(b)
		if tn <= 0 || tagLen > uint64(len(b)-tn) {
			return Header{}, ErrMalformedHeader
		}
		tags = append(tags, string(b[tn:tn+int(tagLen)]))
		b = b[tn+int(tagLen):]
	}

	if len(b) != 0 {
		return Header{}, ErrMalformedHeader
	}

	return Header{
		TypeID:     uint32(typeID),
		RecordedAt: int64(recordedAt),
		Tags:       tags,
	}, nil
}
