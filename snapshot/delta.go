package snapshot

import (
	"fmt"

	"github.com/tickwire/go-snapnet/varint"
)

// Delta computes and applies the per-item difference between two snapshots.
// It carries the per-type static-size table and per-type transfer statistics
// for the lifetime of a session; one engine per logical flow.
type Delta struct {
	// itemSizes holds static payload byte sizes indexed by type. A zero
	// entry means the size travels on the wire.
	itemSizes [MaxNetObjSizes]int32

	// dataRate accounts decoded payload per wire type in bit units: a zero
	// diff word costs 1 bit, a non-zero word 8 bits per varint byte. The
	// sub-byte unit is intentional; do not round to bytes. Observational
	// only, never consulted by the decoder.
	dataRate    [maxTypeSpace]int64
	dataUpdates [maxTypeSpace]int64
}

func NewDelta() *Delta {
	return &Delta{}
}

// SetStaticSize registers a static payload byte size for typ. Types outside
// the table, or sizes that are negative or not multiples of 4, are ignored. A
// zero size clears the entry so the size travels on the wire again.
func (d *Delta) SetStaticSize(typ int32, size int) {
	if typ < 0 || typ >= MaxNetObjSizes {
		return
	}
	if size < 0 || size%4 != 0 {
		return
	}
	d.itemSizes[typ] = int32(size)
}

// StaticSize returns the static payload byte size for typ, zero if the size
// travels on the wire.
func (d *Delta) StaticSize(typ int32) int {
	if typ < 0 || typ >= MaxNetObjSizes {
		return 0
	}
	return int(d.itemSizes[typ])
}

// DataRate reports the accumulated decode cost for a wire type, in bits.
func (d *Delta) DataRate(typ int32) int64 {
	if typ < 0 || typ >= maxTypeSpace {
		return 0
	}
	return d.dataRate[typ]
}

// DataUpdates reports the number of update records decoded for a wire type.
func (d *Delta) DataUpdates(typ int32) int64 {
	if typ < 0 || typ >= maxTypeSpace {
		return 0
	}
	return d.dataUpdates[typ]
}

// EmptyDelta returns the canonical delta carrying no changes: all three
// header counts zero.
func (d *Delta) EmptyDelta() []byte {
	return make([]byte, deltaHeaderBytes)
}

// wantsWireSize reports whether update records for typ carry an explicit
// size word.
func (d *Delta) wantsWireSize(typ int32) bool {
	return typ < 0 || typ >= MaxNetObjSizes || d.itemSizes[typ] == 0
}

// CreateDelta encodes the difference from -> to into out and returns the
// encoded byte length, or 0 when the delta is empty and nothing should be
// sent. The updates section preserves to's item order.
func (d *Delta) CreateDelta(from, to Snapshot, out []byte) (int, error) {
	if len(out) < deltaHeaderBytes {
		return 0, fmt.Errorf("%w: delta header", ErrShortBuffer)
	}
	w := wordWriter{buf: out, off: deltaHeaderBytes}
	numDeleted, numUpdates := 0, 0

	var hash [hashListSize]keyList

	// Pass 1: items of from absent in to are deletions.
	generateHash(&hash, to)
	for i := 0; i < from.NumItems(); i++ {
		key := from.Item(i).Key()
		index := hashedIndexOf(key, &hash)
		if index == -1 && hash[hashKey(key)].num == hashBucketCap {
			// A full bucket may have dropped the key; scan instead.
			index = int32(to.IndexOfKey(key))
		}
		if index == -1 {
			if !w.write(key) {
				return 0, fmt.Errorf("%w: deleted keys", ErrShortBuffer)
			}
			numDeleted++
		}
	}

	// Resolve prior indices as a separate pass; it helps the cache.
	generateHash(&hash, from)
	var pastIndices [MaxItems]int32
	numItems := to.NumItems()
	for i := 0; i < numItems; i++ {
		key := to.Item(i).Key()
		pastIndices[i] = hashedIndexOf(key, &hash)
		if pastIndices[i] == -1 && hash[hashKey(key)].num == hashBucketCap {
			pastIndices[i] = int32(from.IndexOfKey(key))
		}
	}

	// Pass 2: changed and new items become update records.
	for i := 0; i < numItems; i++ {
		cur := to.Item(i)
		itemSize := cur.Size()
		typ := cur.Type()
		includeSize := d.wantsWireSize(typ)

		pastIndex := pastIndices[i]
		// A prior item of a different size cannot be diffed word-for-word;
		// it falls through to the new-item branch and ships literal words.
		diffable := pastIndex != -1 && from.ItemSize(int(pastIndex)) == itemSize

		if diffable {
			past := from.Item(int(pastIndex))
			if !itemsDiffer(past, cur) {
				continue
			}
			if !w.write(typ) || !w.write(cur.ID()) {
				return 0, fmt.Errorf("%w: update record", ErrShortBuffer)
			}
			if includeSize && !w.write(int32(itemSize/4)) {
				return 0, fmt.Errorf("%w: update record", ErrShortBuffer)
			}
			for k := 0; k < cur.Words(); k++ {
				if !w.write(cur.Word(k) - past.Word(k)) {
					return 0, fmt.Errorf("%w: diff words", ErrShortBuffer)
				}
			}
		} else {
			if !w.write(typ) || !w.write(cur.ID()) {
				return 0, fmt.Errorf("%w: update record", ErrShortBuffer)
			}
			if includeSize && !w.write(int32(itemSize/4)) {
				return 0, fmt.Errorf("%w: update record", ErrShortBuffer)
			}
			if !w.copyBytes(cur.Payload()) {
				return 0, fmt.Errorf("%w: item payload", ErrShortBuffer)
			}
		}
		numUpdates++
	}

	if numDeleted == 0 && numUpdates == 0 {
		return 0, nil
	}

	writeI32(out[0:], int32(numDeleted))
	writeI32(out[4:], int32(numUpdates))
	writeI32(out[8:], 0) // temp items, reserved
	return w.off, nil
}

func itemsDiffer(past, cur Item) bool {
	for k := 0; k < cur.Words(); k++ {
		if cur.Word(k) != past.Word(k) {
			return true
		}
	}
	return false
}

// UnpackDelta reconstructs the successor of from by applying the delta in
// src, staging through b and finishing into out. It returns the packed byte
// length of the new snapshot.
//
// b is re-initialised here and must be a builder dedicated to decoding (its
// translator is bypassed: wire types are reconstructed verbatim). On error
// the staged state is indeterminate and the caller must discard it; the
// statistics counters may retain partial increments, which is acceptable as
// they are observational.
//
// A zero-length delta is rejected as truncated. By convention the caller
// short-circuits before calling: a zero-length CreateDelta result means the
// prior snapshot is carried forward unchanged.
func (d *Delta) UnpackDelta(from Snapshot, b *Builder, src, out []byte) (int, error) {
	if len(src) < deltaHeaderBytes {
		return 0, fmt.Errorf("%w: %d byte header", ErrDeltaTruncated, len(src))
	}
	numDeleted := readI32(src[0:])
	numUpdates := readI32(src[4:])
	numTemp := readI32(src[8:])
	if numDeleted < 0 || numUpdates < 0 {
		return 0, fmt.Errorf("%w: negative counts", ErrDeltaTruncated)
	}
	if numTemp != 0 {
		return 0, fmt.Errorf("%w: %d", ErrTempItems, numTemp)
	}

	r := wordReader{buf: src, off: deltaHeaderBytes}
	deleted, ok := r.window(int(numDeleted) * 4)
	if !ok {
		return 0, fmt.Errorf("%w: %d deleted keys", ErrDeltaTruncated, numDeleted)
	}

	b.Init()

	// Copy everything from the prior snapshot that was not deleted.
	for i := 0; i < from.NumItems(); i++ {
		it := from.Item(i)
		if keyDeleted(deleted, it.Key()) {
			continue
		}
		dst, err := b.newItemRaw(it.Type(), it.ID(), it.Size())
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrDeltaCapacity, err)
		}
		copy(dst, it.Payload())
	}

	for u := int32(0); u < numUpdates; u++ {
		typ, ok := r.read()
		if !ok {
			return 0, fmt.Errorf("%w: update %d", ErrDeltaTruncated, u)
		}
		if typ < 0 {
			return 0, fmt.Errorf("%w: %d", ErrDeltaBadType, typ)
		}
		id, ok := r.read()
		if !ok {
			return 0, fmt.Errorf("%w: update %d", ErrDeltaTruncated, u)
		}

		var itemSize int32
		if !d.wantsWireSize(typ) {
			itemSize = d.itemSizes[typ]
		} else {
			sizeWords, ok := r.read()
			if !ok {
				return 0, fmt.Errorf("%w: update %d", ErrDeltaWantSize, u)
			}
			if sizeWords < 0 || sizeWords > MaxSize/4 {
				return 0, fmt.Errorf("%w: %d size words", ErrDeltaBadSize, sizeWords)
			}
			itemSize = sizeWords * 4
		}
		if typ > 0xffff {
			return 0, fmt.Errorf("%w: type %d", ErrDeltaBadSize, typ)
		}
		if r.remainingWords() < int(itemSize)/4 {
			return 0, fmt.Errorf("%w: %d byte payload", ErrDeltaBadSize, itemSize)
		}

		key := MakeKey(typ, id)
		dst := b.GetItemData(key)
		if dst == nil {
			var err error
			dst, err = b.newItemRaw(typ, id&0xffff, int(itemSize))
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrDeltaCapacity, err)
			}
		} else if len(dst) != int(itemSize) {
			return 0, fmt.Errorf("%w: staged %d, wire %d", ErrItemSizeChanged, len(dst), itemSize)
		}

		fromIndex := from.IndexOfKey(key)
		if fromIndex != -1 && from.ItemSize(fromIndex) == int(itemSize) {
			// The prior item matches; un-diff word by word.
			past := from.Item(fromIndex)
			for k := 0; k < int(itemSize)/4; k++ {
				diff, _ := r.read()
				writeI32(dst[k*4:], past.Word(k)+diff)
				if diff == 0 {
					d.dataRate[typ]++
				} else {
					d.dataRate[typ] += int64(varint.Len(diff)) * 8
				}
			}
		} else {
			wire, _ := r.window(int(itemSize))
			copy(dst, wire)
			d.dataRate[typ] += int64(itemSize) * 8
		}
		d.dataUpdates[typ]++
	}

	return b.Finish(out)
}

func keyDeleted(deleted []byte, key int32) bool {
	for off := 0; off < len(deleted); off += 4 {
		if readI32(deleted[off:]) == key {
			return true
		}
	}
	return false
}
