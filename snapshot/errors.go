package snapshot

import "errors"

// Snapshot parse and builder errors.
var (
	ErrShortBuffer  = errors.New("snapshot: destination buffer too small")
	ErrBadHeader    = errors.New("snapshot: malformed snapshot header")
	ErrBadOffsets   = errors.New("snapshot: item offsets invalid")
	ErrBadItemSize  = errors.New("snapshot: item size must be a non-negative multiple of 4")
	ErrCapacity     = errors.New("snapshot: builder capacity exceeded")
	ErrExtendedFull = errors.New("snapshot: extended item type table full")
)

// Delta decode errors. Each failure mode of the legacy protocol's numeric
// codes maps to exactly one of these, so callers can still discriminate.
var (
	// ErrDeltaTruncated: the delta is shorter than its declared counts
	// require. Legacy code -1.
	ErrDeltaTruncated = errors.New("snapshot: delta truncated")
	// ErrDeltaBadType: an update record carried a negative type. Legacy
	// code -3, the type half of the malformed type-or-size failure.
	ErrDeltaBadType = errors.New("snapshot: update record type negative")
	// ErrDeltaWantSize: an update record lacked its size word. Legacy
	// code -2.
	ErrDeltaWantSize = errors.New("snapshot: update record missing size word")
	// ErrDeltaBadSize: a type or size value is out of range or would overrun
	// the buffer. Legacy code -3.
	ErrDeltaBadSize = errors.New("snapshot: update record type or size out of range")
	// ErrDeltaCapacity: the staging builder refused an item. Legacy code -4.
	ErrDeltaCapacity = errors.New("snapshot: delta exceeds builder capacity")
	// ErrTempItems: the reserved temp-item count was non-zero. The field
	// stays on the wire for compatibility and is asserted zero on read.
	ErrTempItems = errors.New("snapshot: nonzero temp item count")
	// ErrItemSizeChanged: an update record addressed an already-staged item
	// of a different size; applying it would corrupt the staging buffer.
	ErrItemSizeChanged = errors.New("snapshot: update size differs from staged item")
)

// ErrTickNotFound is returned by Storage.Get for ticks outside the retained
// window. It replaces the legacy -1 length sentinel.
var ErrTickNotFound = errors.New("snapshot: tick not in storage")
