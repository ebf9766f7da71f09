package snapshot

/*

# Snapshot codec primitives (packed, delta-compressed world state)

This package implements the tick-snapshot wire codec: building compact
self-describing snapshots of world items, diffing two snapshots into a
per-word delta, reconstructing a snapshot from a delta against a known prior,
and retaining a sliding window of recent snapshots indexed by tick.

It follows a primitives style:

- explicit little-endian byte layouts
- zero-copy views over packed buffers
- fixed-capacity, preallocated staging in the builder
- a burden of knowledge on the caller for hot paths

## Snapshot layout

A finished snapshot is a single packed blob:

	+-----------------------+  8B header
	| dataSize i32          |
	| numItems i32          |
	+-----------------------+  numItems * 4B
	| offsets[numItems] i32 |  byte offsets into the data region
	+-----------------------+  dataSize bytes
	| item | item | ...     |  tight concatenation, each 4B aligned
	+-----------------------+

Each item is a 4-byte header word `(type<<16)|id` followed by the payload,
whose byte length is always a multiple of 4. An item's identity within a
snapshot is its header word, the key.

## Extended types

Type numbers at or above OffsetUUID belong to the UUID-declared space. The
builder assigns such a type a synthetic slot number counting down from
MaxType and emits a declaration item of key (TypeEx, slot type) whose 16-byte
payload is the type's UUID, big-endian per 32-bit word. Readers resolve the
synthetic number back through the declaration item and an injected
TypeRegistry. Slot numbering is append-only per builder and survives Init so
a session's declaration items stay stable.

## Delta layout

	+-----------------------+  12B header
	| numDeleted i32        |
	| numUpdates i32        |
	| numTemp    i32        |  reserved, always zero
	+-----------------------+
	| deleted keys i32...   |
	| update records ...    |
	+-----------------------+

An update record is `type, id, [sizeWords], payload words`. The size word is
omitted when the type has a static-size table entry. Payload words are the
per-word difference new-old when the prior snapshot holds the same key at the
same size, else the literal new words.

The delta payload stores raw i32 words; the varint package is applied by the
outer framing layer, and is used here only to account per-type transfer
statistics in bit units.

All components are single-threaded by contract. Each logical flow (server
tick, client receive) owns its Builder, Delta and Storage.

*/
