package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TypeRegistry resolves UUID-declared item types. It is injected by the
// domain layer and never owned by the codec.
type TypeRegistry interface {
	// LookupUUID returns the application type id for u, or the registry's
	// unknown sentinel.
	LookupUUID(u uuid.UUID) int32
	// UUID returns the UUID registered for an application type id.
	UUID(id int32) (uuid.UUID, bool)
}

// Snapshot is a read-only, zero-copy view over a packed snapshot blob. It is
// valid for as long as the underlying buffer is.
type Snapshot struct {
	buf      []byte
	numItems int
	dataSize int
}

var emptySnap = make([]byte, headerBytes)

// Empty returns a view of the canonical zero-item snapshot.
func Empty() Snapshot {
	return Snapshot{buf: emptySnap}
}

// FromBytes validates buf against the snapshot invariants and returns a view
// over it. The view aliases buf; it does not copy.
func FromBytes(buf []byte) (Snapshot, error) {
	if len(buf) < headerBytes {
		return Snapshot{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(buf))
	}
	dataSize := int(readI32(buf[0:]))
	numItems := int(readI32(buf[4:]))
	if numItems < 0 || numItems > MaxItems {
		return Snapshot{}, fmt.Errorf("%w: numItems=%d", ErrBadHeader, numItems)
	}
	if dataSize < numItems*itemHeaderBytes || dataSize > MaxSize {
		return Snapshot{}, fmt.Errorf("%w: dataSize=%d numItems=%d", ErrBadHeader, dataSize, numItems)
	}
	total := headerBytes + numItems*4 + dataSize
	if len(buf) < total {
		return Snapshot{}, fmt.Errorf("%w: want %d bytes, have %d", ErrBadHeader, total, len(buf))
	}

	s := Snapshot{buf: buf[:total], numItems: numItems, dataSize: dataSize}
	prev := -1
	for i := 0; i < numItems; i++ {
		off := s.offset(i)
		if i == 0 && off != 0 {
			return Snapshot{}, fmt.Errorf("%w: first offset %d", ErrBadOffsets, off)
		}
		if off <= prev || off%4 != 0 {
			return Snapshot{}, fmt.Errorf("%w: offset[%d]=%d", ErrBadOffsets, i, off)
		}
		end := dataSize
		if i+1 < numItems {
			end = s.offset(i + 1)
		}
		span := end - off
		if span < itemHeaderBytes || span%4 != 0 {
			return Snapshot{}, fmt.Errorf("%w: item %d spans %d bytes", ErrBadOffsets, i, span)
		}
		prev = off
	}
	return s, nil
}

func (s Snapshot) offset(i int) int {
	return int(readI32(s.buf[headerBytes+4*i:]))
}

func (s Snapshot) dataStart() int {
	return headerBytes + 4*s.numItems
}

// NumItems reports the item count.
func (s Snapshot) NumItems() int {
	return s.numItems
}

// DataSize reports the byte length of the data region.
func (s Snapshot) DataSize() int {
	return s.dataSize
}

// Bytes returns the packed blob the view was constructed over.
func (s Snapshot) Bytes() []byte {
	return s.buf
}

// Item returns the i-th item view. i must be in [0, NumItems()); out of
// range panics, as with any slice index.
func (s Snapshot) Item(i int) Item {
	off := s.offset(i)
	end := s.dataSize
	if i+1 < s.numItems {
		end = s.offset(i + 1)
	}
	start := s.dataStart() + off
	return Item{b: s.buf[start : start+(end-off)]}
}

// ItemSize reports the payload byte length of the i-th item.
func (s Snapshot) ItemSize(i int) int {
	return s.Item(i).Size()
}

// ItemType resolves the application type of the i-th item. Raw types below
// OffsetUUIDType are returned as-is. Synthetic slot types are resolved via
// their declaration item and reg; if the declaration is missing or
// undersized, or reg is nil, the raw type is returned.
func (s Snapshot) ItemType(i int, reg TypeRegistry) int32 {
	raw := s.Item(i).Type()
	if raw < OffsetUUIDType {
		return raw
	}
	ti := s.IndexOfKey(MakeKey(TypeEx, raw))
	if ti == -1 || s.ItemSize(ti) < uuidItemBytes || reg == nil {
		return raw
	}
	return reg.LookupUUID(declaredUUID(s.Item(ti)))
}

// IndexOfKey returns the index of the item with the given key, or -1. The
// scan is linear. CreateDelta indexes keys through its own hash;
// UnpackDelta finds each update's prior item through this scan.
func (s Snapshot) IndexOfKey(key int32) int {
	for i := 0; i < s.numItems; i++ {
		if s.Item(i).Key() == key {
			return i
		}
	}
	return -1
}

// Crc returns the wrapping 32-bit sum of every item's payload words. It is
// an integrity tag for logging and assertions, not a security measure.
func (s Snapshot) Crc() uint32 {
	var crc uint32
	for i := 0; i < s.numItems; i++ {
		it := s.Item(i)
		for k := 0; k < it.Words(); k++ {
			crc += uint32(it.Word(k))
		}
	}
	return crc
}

// DebugDump logs the snapshot's layout and every item's words.
func (s Snapshot) DebugDump(log *zap.Logger) {
	if log == nil {
		return
	}
	log.Debug("snapshot",
		zap.Int("dataSize", s.dataSize),
		zap.Int("numItems", s.numItems),
		zap.Uint32("crc", s.Crc()),
	)
	for i := 0; i < s.numItems; i++ {
		it := s.Item(i)
		words := make([]int32, it.Words())
		for k := range words {
			words[k] = it.Word(k)
		}
		log.Debug("snapshot item",
			zap.Int32("type", it.Type()),
			zap.Int32("id", it.ID()),
			zap.Int32s("words", words),
		)
	}
}

// Item is a view over one item: its 4-byte header word and payload.
type Item struct {
	b []byte
}

// Key returns the item's identity, (type<<16)|id.
func (it Item) Key() int32 {
	return readI32(it.b)
}

// Type returns the wire type. The shift is arithmetic so sentinel negative
// types, emitted when a legacy translation has no equivalent, survive.
func (it Item) Type() int32 {
	return it.Key() >> 16
}

// ID returns the item id.
func (it Item) ID() int32 {
	return it.Key() & 0xffff
}

// Size reports the payload length in bytes.
func (it Item) Size() int {
	return len(it.b) - itemHeaderBytes
}

// Words reports the payload length in 32-bit words.
func (it Item) Words() int {
	return it.Size() / 4
}

// Word returns the k-th payload word.
func (it Item) Word(k int) int32 {
	return readI32(it.b[itemHeaderBytes+4*k:])
}

// Payload returns the raw payload bytes.
func (it Item) Payload() []byte {
	return it.b[itemHeaderBytes:]
}

// declaredUUID decodes a declaration item's payload: four words, each
// holding four UUID bytes big-endian.
func declaredUUID(it Item) uuid.UUID {
	var u uuid.UUID
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(u[i*4:], uint32(it.Word(i)))
	}
	return u
}
