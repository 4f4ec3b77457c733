package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var errNonCanonical = errors.New("non-canonical compact size")

func writeCompactSize(w *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		w.WriteByte(byte(n))
	case n <= 0xffff:
		w.WriteByte(0xfd)
		w.Write(binary.LittleEndian.AppendUint16(nil, uint16(n)))
	case n <= 0xffffffff:
		w.WriteByte(0xfe)
		w.Write(binary.LittleEndian.AppendUint32(nil, uint32(n)))
	default:
		w.WriteByte(0xff)
		w.Write(binary.LittleEndian.AppendUint64(nil, n))
	}
}

func readCompactSize(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}
	var n, min uint64
	switch b[0] {
	case 0xfd:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return 0, err
		}
		n, min = uint64(binary.LittleEndian.Uint16(b[:2])), 0xfd
	case 0xfe:
		if _, err := io.ReadFull(r, b[:4]); err != nil {
			return 0, err
		}
		n, min = uint64(binary.LittleEndian.Uint32(b[:4])), 0x10000
	case 0xff:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return 0, err
		}
		n, min = binary.LittleEndian.Uint64(b[:8]), 0x100000000
	default:
		return uint64(b[0]), nil
	}
	if n < min {
		return 0, errNonCanonical
	}
	return n, nil
}
