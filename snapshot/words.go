package snapshot

import "encoding/binary"

func readI32(b []byte) int32     { return int32(binary.LittleEndian.Uint32(b)) }
func writeI32(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }

// wordReader consumes little-endian i32 words from a buffer. Every advance
// is bounds-checked; the delta decoder relies on this for its overflow
// discipline.
type wordReader struct {
	buf []byte
	off int
}

func (r *wordReader) remainingWords() int {
	return (len(r.buf) - r.off) / 4
}

func (r *wordReader) read() (int32, bool) {
	if r.off+4 > len(r.buf) {
		return 0, false
	}
	v := readI32(r.buf[r.off:])
	r.off += 4
	return v, true
}

// window returns the next n bytes without copying and advances past them.
func (r *wordReader) window(n int) ([]byte, bool) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, false
	}
	w := r.buf[r.off : r.off+n]
	r.off += n
	return w, true
}

// wordWriter emits little-endian i32 words into a caller-owned buffer.
type wordWriter struct {
	buf []byte
	off int
}

func (w *wordWriter) write(v int32) bool {
	if w.off+4 > len(w.buf) {
		return false
	}
	writeI32(w.buf[w.off:], v)
	w.off += 4
	return true
}

func (w *wordWriter) copyBytes(p []byte) bool {
	if w.off+len(p) > len(w.buf) {
		return false
	}
	copy(w.buf[w.off:], p)
	w.off += len(p)
	return true
}
