package snapshot

import (
	"encoding/binary"
	"fmt"
)

// Builder accumulates items into preallocated staging buffers and finalises
// them into a packed snapshot. A builder is created once per flow and reused
// across ticks via Init; its extended-type slot table deliberately survives
// Init so the declaration items a peer has already seen keep their slots for
// the whole session.
type Builder struct {
	data     []byte // staging data region, capacity MaxSize
	offsets  []int32
	numItems int
	dataSize int

	reg       TypeRegistry
	translate TypeTranslator

	// extended maps slot -> application type id, append-only.
	extended []int32
}

// NewBuilder returns a builder emitting through tr. reg supplies the UUIDs
// for declaration items; it may be nil if no extended types are used. A nil
// tr means IdentityTranslator.
func NewBuilder(reg TypeRegistry, tr TypeTranslator) *Builder {
	if tr == nil {
		tr = IdentityTranslator
	}
	return &Builder{
		data:      make([]byte, MaxSize),
		offsets:   make([]int32, 0, MaxItems),
		reg:       reg,
		translate: tr,
		extended:  make([]int32, 0, MaxExtendedItemTypes),
	}
}

// Init resets the staging buffers for a new snapshot and re-emits one
// declaration item per already-known extended type, in slot order.
func (b *Builder) Init() {
	b.dataSize = 0
	b.numItems = 0
	b.offsets = b.offsets[:0]
	for slot := range b.extended {
		b.addDeclarationItem(slot)
	}
}

// NumItems reports the staged item count.
func (b *Builder) NumItems() int {
	return b.numItems
}

// DataSize reports the staged data region length in bytes.
func (b *Builder) DataSize() int {
	return b.dataSize
}

// NewItem reserves an item of the given type, id and payload byte size,
// zero-initialised, and returns the payload window for the caller to fill.
// size must be a non-negative multiple of 4. Types at or above OffsetUUID
// are mapped to a synthetic slot type, emitting the UUID declaration item on
// first encounter; all other types pass through the builder's translator.
// A capacity failure is fatal oversubscription on the caller's part.
func (b *Builder) NewItem(typ, id int32, size int) ([]byte, error) {
	if typ >= OffsetUUID {
		slot, err := b.extendedSlot(typ)
		if err != nil {
			return nil, err
		}
		return b.newItemRaw(typeFromSlot(slot), id, size)
	}
	return b.newItemRaw(b.translate.TranslateType(typ), id, size)
}

// newItemRaw reserves an item with the wire type given verbatim. The delta
// decoder uses it to reconstruct wire types without re-translation.
func (b *Builder) newItemRaw(typ, id int32, size int) ([]byte, error) {
	if size < 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadItemSize, size)
	}
	if b.dataSize+itemHeaderBytes+size > MaxSize {
		return nil, fmt.Errorf("%w: %d items, %d data bytes", ErrCapacity, b.numItems, b.dataSize)
	}
	if b.numItems+1 > MaxItems {
		return nil, fmt.Errorf("%w: %d items", ErrCapacity, b.numItems)
	}

	off := b.dataSize
	writeI32(b.data[off:], MakeKey(typ, id))
	payload := b.data[off+itemHeaderBytes : off+itemHeaderBytes+size]
	clear(payload)

	b.offsets = append(b.offsets, int32(off))
	b.numItems++
	b.dataSize += itemHeaderBytes + size
	return payload, nil
}

// extendedSlot returns the slot for an application type, registering it and
// emitting its declaration item on first encounter.
func (b *Builder) extendedSlot(typ int32) (int, error) {
	for slot, known := range b.extended {
		if known == typ {
			return slot, nil
		}
	}
	if len(b.extended) == MaxExtendedItemTypes {
		return 0, fmt.Errorf("%w: type %d", ErrExtendedFull, typ)
	}
	slot := len(b.extended)
	b.extended = append(b.extended, typ)
	b.addDeclarationItem(slot)
	return slot, nil
}

// addDeclarationItem emits the (TypeEx, slot type) item carrying the UUID of
// the extended type registered at slot. Declaration items bypass the
// translator; type TypeEx is protocol-reserved. An unregistered UUID leaves
// the payload zeroed.
func (b *Builder) addDeclarationItem(slot int) {
	payload, err := b.newItemRaw(TypeEx, typeFromSlot(slot), uuidItemBytes)
	if err != nil {
		return
	}
	if b.reg == nil {
		return
	}
	u, ok := b.reg.UUID(b.extended[slot])
	if !ok {
		return
	}
	for i := 0; i < 4; i++ {
		writeI32(payload[i*4:], int32(binary.BigEndian.Uint32(u[i*4:])))
	}
}

// GetItemData returns the payload window of the staged item with the given
// key, or nil. The delta decoder targets items staged by the keep phase
// through it.
func (b *Builder) GetItemData(key int32) []byte {
	for i := 0; i < b.numItems; i++ {
		off := int(b.offsets[i])
		if readI32(b.data[off:]) == key {
			return b.data[off+itemHeaderBytes : off+b.itemSpan(i)]
		}
	}
	return nil
}

// itemSpan returns the header+payload byte length of staged item i.
func (b *Builder) itemSpan(i int) int {
	end := b.dataSize
	if i+1 < b.numItems {
		end = int(b.offsets[i+1])
	}
	return end - int(b.offsets[i])
}

// Finish writes the packed snapshot into out and returns its byte length,
// headerBytes + 4*NumItems() + DataSize(). The builder stays valid; call
// Init before staging the next snapshot.
func (b *Builder) Finish(out []byte) (int, error) {
	total := headerBytes + 4*b.numItems + b.dataSize
	if len(out) < total {
		return 0, fmt.Errorf("%w: want %d bytes, have %d", ErrShortBuffer, total, len(out))
	}
	writeI32(out[0:], int32(b.dataSize))
	writeI32(out[4:], int32(b.numItems))
	for i, off := range b.offsets {
		writeI32(out[headerBytes+4*i:], off)
	}
	copy(out[headerBytes+4*b.numItems:], b.data[:b.dataSize])
	return total, nil
}
