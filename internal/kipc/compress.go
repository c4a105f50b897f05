package kipc

import (
	"encoding/binary"
	"fmt"

	"github.com/tickship/tickship/internal/domain"
)

// compressThreshold is the minimum framed message size before compression is
// attempted; smaller messages never win enough to pay for the flag bytes.
const compressThreshold = 2000

// compressMessage applies q IPC compression to a complete framed message
// (header included) and returns the compressed message. The second return is
// false when the input does not compress, in which case the caller sends the
// original bytes. The algorithm is the byte-pair back-reference scheme every
// kdb+ peer implements; output layout is the original 4 header bytes with the
// compression flag set, the compressed total length, the uncompressed total
// length, then the compressed stream.
func compressMessage(msg []byte) ([]byte, bool) {
	if len(msg) <= compressThreshold {
		return nil, false
	}

	y := msg
	t := len(y)
	out := make([]byte, t/2)
	e := len(out)

	copy(out[:4], y[:4])
	out[2] = 1
	binary.BigEndian.PutUint32(out[8:12], uint32(t))

	var a [256]int
	i := 0
	f := 0
	h := 0
	h0 := 0
	p := 0
	s0 := 0
	s := 8
	cc := 12
	d := 12

	for s < t {
		if i == 0 {
			if d > e-17 {
				return nil, false
			}
			i = 1
			out[cc] = byte(f)
			cc = d
			d++
			f = 0
		}

		g := true
		if s <= t-3 {
			h = int(y[s] ^ y[s+1])
			p = a[h]
			g = p == 0 || y[s] != y[p]
		}
		if s0 > 0 {
			a[h0] = s0
			s0 = 0
		}
		if g {
			h0 = h
			s0 = s
			out[d] = y[s]
			d++
			s++
		} else {
			a[h] = s
			f |= i
			p += 2
			s += 2
			// The stored run length counts only the bytes beyond the
			// initial pair; the decoder copies the pair unconditionally.
			r := s
			q := s + 255
			if q > t {
				q = t
			}
			for s < q && y[p] == y[s] {
				p++
				s++
			}
			out[d] = byte(h)
			d++
			out[d] = byte(s - r)
			d++
		}

		i *= 2
		if i == 256 {
			i = 0
		}
	}

	out[cc] = byte(f)
	binary.BigEndian.PutUint32(out[4:8], uint32(d))
	return out[:d], true
}

// uncompressBody inflates a compressed message body (everything after the
// 8-byte header: the 4-byte uncompressed total length, then the compressed
// stream) and returns the plain payload bytes.
func uncompressBody(body []byte, little bool) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: compressed body too short", domain.ErrMalformedValue)
	}
	var total uint32
	if little {
		total = binary.LittleEndian.Uint32(body[:4])
	} else {
		total = binary.BigEndian.Uint32(body[:4])
	}
	if total < HeaderSize {
		return nil, fmt.Errorf("%w: uncompressed length %d below header size",
			domain.ErrMalformedValue, total)
	}

	src := body[4:]
	dst := make([]byte, total)
	var aa [256]int
	d := 0
	s := 8
	p := 8
	i := 0
	f := 0
	n := 0

	for s < len(dst) {
		if i == 0 {
			if d >= len(src) {
				return nil, truncatedCompressed(d)
			}
			f = int(src[d])
			d++
			i = 1
		}
		if f&i != 0 {
			if d+1 >= len(src) {
				return nil, truncatedCompressed(d)
			}
			r := aa[src[d]]
			d++
			if s+2 > len(dst) || r+2 > len(dst) {
				return nil, truncatedCompressed(d)
			}
			dst[s] = dst[r]
			s++
			r++
			dst[s] = dst[r]
			s++
			r++
			n = int(src[d])
			d++
			if s+n > len(dst) || r+n > len(dst) {
				return nil, truncatedCompressed(d)
			}
			for m := 0; m < n; m++ {
				dst[s+m] = dst[r+m]
			}
		} else {
			if d >= len(src) {
				return nil, truncatedCompressed(d)
			}
			dst[s] = src[d]
			d++
			s++
		}
		for p < s-1 {
			aa[dst[p]^dst[p+1]] = p
			p++
		}
		if f&i != 0 {
			s += n
			p = s
		}
		i *= 2
		if i == 256 {
			i = 0
		}
	}
	return dst[HeaderSize:], nil
}

func truncatedCompressed(at int) error {
	return fmt.Errorf("%w: compressed stream truncated at offset %d",
		domain.ErrMalformedValue, at)
}
