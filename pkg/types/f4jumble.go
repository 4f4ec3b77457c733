package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	blake2b "github.com/minio/blake2b-simd"
)

// F4Jumble message length bounds (ZIP-316).
const (
	f4MinLen  = 48
	f4MaxLen  = 4194368
	f4HashLen = 64
)

var errF4Length = errors.New("f4jumble: message length out of range")

func f4Split(n int) (left, right int) {
	left = n / 2
	if left > f4HashLen {
		left = f4HashLen
	}
	return left, n - left
}

// f4H is BLAKE2b-(8*len(out)) personalized with "UA_F4Jumble_H" || [i, 0, 0].
func f4H(i byte, u []byte, size int) ([]byte, error) {
	person := append([]byte("UA_F4Jumble_H"), i, 0, 0)
	h, err := blake2b.New(&blake2b.Config{Size: uint8(size), Person: person})
	if err != nil {
		return nil, err
	}
	h.Write(u)
	return h.Sum(nil), nil
}

// f4G concatenates BLAKE2b-512 blocks personalized with
// "UA_F4Jumble_G" || [i] || LE16(j) and truncates to size bytes.
func f4G(i byte, u []byte, size int) ([]byte, error) {
	out := make([]byte, 0, size+f4HashLen)
	for j := 0; len(out) < size; j++ {
		person := make([]byte, 0, 16)
		person = append(person, "UA_F4Jumble_G"...)
		person = append(person, i)
		person = binary.LittleEndian.AppendUint16(person, uint16(j))
		h, err := blake2b.New(&blake2b.Config{Size: f4HashLen, Person: person})
		if err != nil {
			return nil, err
		}
		h.Write(u)
		out = h.Sum(out)
	}
	return out[:size], nil
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// F4Jumble applies the ZIP-316 unkeyed 4-round Feistel permutation.
func F4Jumble(msg []byte) ([]byte, error) {
	if len(msg) < f4MinLen || len(msg) > f4MaxLen {
		return nil, fmt.Errorf("%w: %d", errF4Length, len(msg))
	}
	left, right := f4Split(len(msg))
	a := append([]byte(nil), msg[:left]...)
	b := append([]byte(nil), msg[left:]...)

	g, err := f4G(0, a, right)
	if err != nil {
		return nil, err
	}
	xorInto(b, g) // x
	h, err := f4H(0, b, left)
	if err != nil {
		return nil, err
	}
	xorInto(a, h) // y
	if g, err = f4G(1, a, right); err != nil {
		return nil, err
	}
	xorInto(b, g) // d
	if h, err = f4H(1, b, left); err != nil {
		return nil, err
	}
	xorInto(a, h) // c
	return append(a, b...), nil
}

// F4Unjumble inverts F4Jumble.
func F4Unjumble(msg []byte) ([]byte, error) {
	if len(msg) < f4MinLen || len(msg) > f4MaxLen {
		return nil, fmt.Errorf("%w: %d", errF4Length, len(msg))
	}
	left, right := f4Split(len(msg))
	c := append([]byte(nil), msg[:left]...)
	d := append([]byte(nil), msg[left:]...)

	h, err := f4H(1, d, left)
	if err != nil {
		return nil, err
	}
	xorInto(c, h) // y
	g, err := f4G(1, c, right)
	if err != nil {
		return nil, err
	}
	xorInto(d, g) // x
	if h, err = f4H(0, d, left); err != nil {
		return nil, err
	}
	xorInto(c, h) // a
	if g, err = f4G(0, c, right); err != nil {
		return nil, err
	}
	xorInto(d, g) // b
	return append(c, d...), nil
}
