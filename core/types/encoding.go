package types

import "encoding/binary"

// Canonical wire encoding primitives. All integers are little-endian and all
// variable-length fields carry a u64 little-endian length prefix. Field order
// is fixed per type; there is exactly one valid encoding for any value.

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func appendBytes(b, v []byte) []byte {
	b = appendUint64(b, uint64(len(v)))
	return append(b, v...)
}

func appendString(b []byte, s string) []byte {
	return appendBytes(b, []byte(s))
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

type decoder struct {
	buf []byte
	err bool
}

func (d *decoder) uint64() uint64 {
	if d.err || len(d.buf) < 8 {
		d.err = true
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[:8])
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) bytes() []byte {
	n := d.uint64()
	if d.err || uint64(len(d.buf)) < n {
		d.err = true
		return nil
	}
	v := append([]byte(nil), d.buf[:n]...)
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) string() string { return string(d.bytes()) }

func (d *decoder) bool() bool {
	if d.err || len(d.buf) < 1 {
		d.err = true
		return false
	}
	v := d.buf[0] != 0
	d.buf = d.buf[1:]
	return v
}
