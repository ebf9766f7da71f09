package snapshot

// Wire-visible constants. Both peers must use the same values.
const (
	// MaxSize bounds the data region of a single snapshot in bytes.
	MaxSize = 65536
	// MaxItems bounds the item count of a single snapshot.
	MaxItems = 1024
	// MaxNetObjSizes is the extent of the static-size table. Types at or
	// above it always carry their size on the wire.
	MaxNetObjSizes = 64
	// MaxExtendedItemTypes bounds a builder's UUID-declared type table.
	MaxExtendedItemTypes = 64
	// MaxType is the largest wire type number; extended-type slots count
	// down from here.
	MaxType = 0x7fff
	// OffsetUUIDType partitions the wire type space: numbers at or above it
	// are synthetic slot types resolved through a declaration item.
	OffsetUUIDType = 0x4000
	// OffsetUUID partitions the application type space: application types at
	// or above it are UUID-declared and never appear on the wire directly.
	OffsetUUID = 1 << 16
	// TypeEx is the reserved type of declaration items.
	TypeEx = 0

	headerBytes      = 8  // dataSize, numItems
	itemHeaderBytes  = 4  // (type<<16)|id
	uuidItemBytes    = 16 // declaration item payload
	deltaHeaderBytes = 12 // numDeleted, numUpdates, numTemp

	// maxTypeSpace spans every value the wire type field admits; the
	// per-type statistics arrays are indexed by it.
	maxTypeSpace = 1 << 16
)

// MakeKey packs a 16-bit type and id into an item key.
func MakeKey(typ, id int32) int32 {
	return typ<<16 | id&0xffff
}

// KeyType unpacks the type half of a key. The shift is arithmetic, so
// sentinel negative types survive.
func KeyType(key int32) int32 {
	return key >> 16
}

// KeyID unpacks the id half of a key.
func KeyID(key int32) int32 {
	return key & 0xffff
}

// typeFromSlot returns the synthetic wire type for an extended-type slot.
func typeFromSlot(slot int) int32 {
	return MaxType - int32(slot)
}
