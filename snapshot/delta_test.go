package snapshot

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tickwire/go-snapnet/registry"
)

// deltaWords encodes an i32 stream into a delta blob for hand-built wires.
func deltaWords(words ...int32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		writeI32(buf[i*4:], w)
	}
	return buf
}

// encode runs CreateDelta into a fresh buffer and returns the blob.
func encode(t *testing.T, d *Delta, from, to Snapshot) []byte {
	t.Helper()
	out := make([]byte, MaxSize*2)
	n, err := d.CreateDelta(from, to, out)
	require.NoError(t, err)
	return out[:n]
}

// decode applies a delta through a dedicated decode builder.
func decode(t *testing.T, d *Delta, from Snapshot, src []byte) Snapshot {
	t.Helper()
	out := make([]byte, headerBytes+4*MaxItems+MaxSize)
	n, err := d.UnpackDelta(from, NewBuilder(nil, nil), src, out)
	require.NoError(t, err)
	s, err := FromBytes(out[:n])
	require.NoError(t, err)
	return s
}

func TestCreateDeltaEmptyOnEmpty(t *testing.T) {
	d := NewDelta()
	n, err := d.CreateDelta(Empty(), Empty(), make([]byte, MaxSize))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCreateDeltaIdenticalIsEmpty(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) {
		addWords(t, b, 5, 1, 10, 20)
		addWords(t, b, 6, 2, 30)
	})
	n, err := d.CreateDelta(a, a, make([]byte, MaxSize))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeltaUpdateStaticSize(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(5, 8)

	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 10, 20) })
	to := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 11, 22) })

	// Static type: no size word, payload is the per-word difference.
	blob := encode(t, d, a, to)
	require.Equal(t, deltaWords(0, 1, 0, 5, 1, 1, 2), blob)

	got := decode(t, d, a, blob)
	require.Equal(t, to.Bytes(), got.Bytes())
	require.Equal(t, to.Crc(), got.Crc())
}

func TestDeltaDeleteOnly(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 0, 0) })

	blob := encode(t, d, a, Empty())
	require.Equal(t, deltaWords(1, 0, 0, MakeKey(5, 1)), blob)

	got := decode(t, d, a, blob)
	require.Equal(t, 0, got.NumItems())
	require.Equal(t, Empty().Bytes(), got.Bytes())
}

func TestDeltaNewOnly(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(5, 8)

	b := NewBuilder(nil, nil)
	to := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 7, 8) })

	// New item: literal words, no size word for the static type.
	blob := encode(t, d, Empty(), to)
	require.Equal(t, deltaWords(0, 1, 0, 5, 1, 7, 8), blob)

	got := decode(t, d, Empty(), blob)
	require.Equal(t, to.Bytes(), got.Bytes())
}

func TestDeltaWireSizeForDynamicTypes(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	to := buildSnap(t, b, func(b *Builder) { addWords(t, b, 9, 1, 7) })

	blob := encode(t, d, Empty(), to)
	require.Equal(t, deltaWords(0, 1, 0, 9, 1, 1, 7), blob)

	got := decode(t, d, Empty(), blob)
	require.Equal(t, to.Bytes(), got.Bytes())
}

func TestDeltaRoundTripMixed(t *testing.T) {
	appType := int32(OffsetUUID + 3)
	reg := registry.New()
	require.NoError(t, reg.Register(appType, uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")))

	d := NewDelta()
	d.SetStaticSize(5, 8)

	// One server-side builder across ticks keeps declaration slots stable.
	// Warm the slot table so every tick, including the first one diffed,
	// carries the declaration at the head and kept-item order lines up.
	b := NewBuilder(reg, nil)
	buildSnap(t, b, func(b *Builder) { addWords(t, b, appType, 3, 0) })
	a := buildSnap(t, b, func(b *Builder) {
		addWords(t, b, 5, 1, 10, 20)
		addWords(t, b, 9, 5, 1, 2, 3)
		addWords(t, b, appType, 3, 99)
	})
	to := buildSnap(t, b, func(b *Builder) {
		addWords(t, b, 5, 1, 10, 21)
		addWords(t, b, 9, 5, 1, 2, 3) // unchanged, must be omitted
		addWords(t, b, appType, 3, 100)
		addWords(t, b, 9, 6, 4)
	})

	blob := encode(t, d, a, to)
	require.Equal(t, int32(0), readI32(blob[0:]))
	require.Equal(t, int32(3), readI32(blob[4:]))
	require.Equal(t, int32(0), readI32(blob[8:]))

	got := decode(t, d, a, blob)
	require.Equal(t, to.Bytes(), got.Bytes())
	require.Equal(t, to.Crc(), got.Crc())
	require.Equal(t, appType, got.ItemType(got.IndexOfKey(MakeKey(MaxType, 3)), reg))
}

func TestDeltaSizeMismatchFallsThroughToLiteral(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 9, 1, 1, 2) })
	to := buildSnap(t, b, func(b *Builder) { addWords(t, b, 9, 1, 1, 2, 3) })

	// Same key, different size: per-word diff is undefined, the encoder
	// takes the new-item branch and ships literal words.
	blob := encode(t, d, a, to)
	require.Equal(t, deltaWords(0, 1, 0, 9, 1, 3, 1, 2, 3), blob)

	// The staged copy of the prior item cannot absorb a differently-sized
	// record in place; the decoder refuses rather than corrupt the staging.
	out := make([]byte, headerBytes+4*MaxItems+MaxSize)
	_, err := d.UnpackDelta(a, NewBuilder(nil, nil), blob, out)
	require.ErrorIs(t, err, ErrItemSizeChanged)
}

func TestUnpackSizeChangeViaDeleteAndReAdd(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 9, 1, 5) })

	// A hand-built wire that deletes the key and re-adds it at a new size
	// applies cleanly; the prior item is gone before the update lands, and
	// the un-diff guard sees the size mismatch and copies literally.
	blob := deltaWords(1, 1, 0, MakeKey(9, 1), 9, 1, 2, 7, 8)
	got := decode(t, d, a, blob)
	require.Equal(t, 1, got.NumItems())
	require.Equal(t, int32(7), got.Item(0).Word(0))
	require.Equal(t, int32(8), got.Item(0).Word(1))
}

func TestUnpackEmptyDeltaBlobKeepsEverything(t *testing.T) {
	d := NewDelta()
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) {
		addWords(t, b, 5, 1, 10, 20)
		addWords(t, b, 9, 5, 1)
	})

	got := decode(t, d, a, d.EmptyDelta())
	require.Equal(t, a.Bytes(), got.Bytes())
}

func TestUnpackDeltaErrors(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(5, 8)
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 10, 20) })
	out := make([]byte, headerBytes+4*MaxItems+MaxSize)

	cases := []struct {
		name string
		src  []byte
		want error
	}{
		{"zero length", nil, ErrDeltaTruncated},
		{"short header", deltaWords(0, 0), ErrDeltaTruncated},
		{"deleted keys truncated", deltaWords(2, 0, 0, MakeKey(5, 1)), ErrDeltaTruncated},
		{"negative deleted count", deltaWords(-1, 0, 0), ErrDeltaTruncated},
		{"negative update count", deltaWords(0, -1, 0), ErrDeltaTruncated},
		{"temp items", deltaWords(0, 0, 1), ErrTempItems},
		{"missing update type", deltaWords(0, 1, 0), ErrDeltaTruncated},
		{"negative type", deltaWords(0, 1, 0, -5, 1), ErrDeltaBadType},
		{"missing id", deltaWords(0, 1, 0, 9), ErrDeltaTruncated},
		{"missing size word", deltaWords(0, 1, 0, 9, 1), ErrDeltaWantSize},
		{"negative size", deltaWords(0, 1, 0, 9, 1, -1), ErrDeltaBadSize},
		{"oversized size", deltaWords(0, 1, 0, 9, 1, MaxSize/4+1), ErrDeltaBadSize},
		{"type out of range", deltaWords(0, 1, 0, 0x10000, 1, 1), ErrDeltaBadSize},
		{"payload overrun", deltaWords(0, 1, 0, 9, 1, 5, 1), ErrDeltaBadSize},
		{"static payload truncated", deltaWords(0, 1, 0, 5, 1, 1), ErrDeltaBadSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.UnpackDelta(a, NewBuilder(nil, nil), tc.src, out)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnpackDeltaCapacity(t *testing.T) {
	d := NewDelta()
	words := []int32{0, MaxItems + 1, 0}
	for i := 0; i < MaxItems+1; i++ {
		words = append(words, 9, int32(i), 0)
	}
	out := make([]byte, headerBytes+4*MaxItems+MaxSize)
	_, err := d.UnpackDelta(Empty(), NewBuilder(nil, nil), deltaWords(words...), out)
	require.ErrorIs(t, err, ErrDeltaCapacity)
}

func TestUnpackStatisticsBitUnits(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(5, 8)
	b := NewBuilder(nil, nil)
	a := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 10, 20) })
	to := buildSnap(t, b, func(b *Builder) { addWords(t, b, 5, 1, 11, 20) })

	// Un-diff: one non-zero diff word (1 varint byte -> 8 bits) and one zero
	// diff word (1 bit).
	blob := encode(t, d, a, to)
	decode(t, d, a, blob)
	require.Equal(t, int64(9), d.DataRate(5))
	require.Equal(t, int64(1), d.DataUpdates(5))

	// Literal copy of a new item costs its full byte size in bits.
	fresh := NewDelta()
	fresh.SetStaticSize(5, 8)
	blob = encode(t, fresh, Empty(), to)
	decode(t, fresh, Empty(), blob)
	require.Equal(t, int64(64), fresh.DataRate(5))
	require.Equal(t, int64(1), fresh.DataUpdates(5))
}

func TestStaticSizeTableBounds(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(-1, 8)
	d.SetStaticSize(MaxNetObjSizes, 8)
	d.SetStaticSize(3, 6) // not a multiple of 4, ignored
	require.Equal(t, 0, d.StaticSize(-1))
	require.Equal(t, 0, d.StaticSize(MaxNetObjSizes))
	require.Equal(t, 0, d.StaticSize(3))

	d.SetStaticSize(3, 12)
	require.Equal(t, 12, d.StaticSize(3))
}

// TestTickFlow drives the send and receive paths together the way the outer
// engine does: author, store, ack, delta, apply.
func TestTickFlow(t *testing.T) {
	d := NewDelta()
	d.SetStaticSize(5, 8)

	server := NewBuilder(nil, nil)
	store := NewStorage(nil)

	pack := func(fill func(b *Builder)) []byte {
		server.Init()
		fill(server)
		out := make([]byte, headerBytes+4*MaxItems+MaxSize)
		n, err := server.Finish(out)
		require.NoError(t, err)
		return out[:n]
	}

	tick10 := pack(func(b *Builder) { addWords(t, b, 5, 1, 100, 200) })
	store.Add(10, 1000, tick10, false)
	tick11 := pack(func(b *Builder) {
		addWords(t, b, 5, 1, 101, 200)
		addWords(t, b, 9, 2, 7)
	})
	store.Add(11, 1050, tick11, false)

	// Client acknowledged tick 10; delta from it to the newest.
	_, ackBytes, _, err := store.Get(10)
	require.NoError(t, err)
	ack, err := FromBytes(ackBytes)
	require.NoError(t, err)
	newest, err := FromBytes(tick11)
	require.NoError(t, err)

	blob := encode(t, d, ack, newest)
	require.NotEmpty(t, blob)

	client := NewDelta()
	client.SetStaticSize(5, 8)
	got := decode(t, client, ack, blob)
	require.Equal(t, newest.Bytes(), got.Bytes())

	// The ack lets the server drop everything older.
	require.Equal(t, 1, store.PurgeUntil(11))
	_, _, _, err = store.Get(10)
	require.ErrorIs(t, err, ErrTickNotFound)
}
