package onlineindex

import "bytes"

// PK is a primary key: an ordered tuple of scalar components, pre-encoded
// by the caller into an order-preserving byte string, plus the two
// unbounded sentinels. PKs form a total order consistent with
// byte-lexicographic comparison (see Compare).
//
// The zero value of PK is NOT a valid bound; use NegInf/PosInf/Key.
type PK struct {
	kind pkKind
	key  []byte
}

type pkKind uint8

const (
	pkNegInf pkKind = iota
	pkKey
	pkPosInf
)

// NegInf is the PK before all keys ("unbounded below").
func NegInf() PK { return PK{kind: pkNegInf} }

// PosInf is the PK after all keys ("unbounded above").
func PosInf() PK { return PK{kind: pkPosInf} }

// Key wraps a concrete, already order-preserving-encoded key.
func Key(b []byte) PK { return PK{kind: pkKey, key: b} }

func (p PK) IsNegInf() bool { return p.kind == pkNegInf }
func (p PK) IsPosInf() bool { return p.kind == pkPosInf }
func (p PK) Bytes() []byte  { return p.key }

// Compare returns -1, 0, 1 as p is less than, equal to, or greater than q.
func (p PK) Compare(q PK) int {
	if p.kind != q.kind {
		return int(p.kind) - int(q.kind)
	}
	if p.kind != pkKey {
		return 0
	}
	return bytes.Compare(p.key, q.key)
}

func (p PK) Less(q PK) bool { return p.Compare(q) < 0 }

// successor returns the smallest PK strictly greater than p, by appending
// a zero byte: byte-lexicographic order guarantees nothing sorts between
// p.key and p.key+0x00. PosInf has no successor and is returned as-is;
// NegInf's successor is the empty key, the smallest possible real key.
func (p PK) successor() PK {
	switch p.kind {
	case pkNegInf:
		return Key([]byte{})
	case pkPosInf:
		return p
	}
	key := make([]byte, len(p.key)+1)
	copy(key, p.key)
	return Key(key)
}

func (p PK) String() string {
	switch p.kind {
	case pkNegInf:
		return "-inf"
	case pkPosInf:
		return "+inf"
	default:
		return string(p.key)
	}
}

// Sentinel encoding for BRS persistence: 0x00 alone means -inf, 0xff
// alone means +inf, and any
// other value is a 0x01 tag byte followed by the raw key bytes. The tag
// byte keeps every real key sorting strictly between the two sentinels
// regardless of its own leading byte.
const (
	sentinelNegInf = 0x00
	sentinelPosInf = 0xff
	tagRealKey     = 0x01
)

// encodeBound translates a PK bound to its on-disk sentinel-tagged form.
func encodeBound(p PK) []byte {
	switch p.kind {
	case pkNegInf:
		return []byte{sentinelNegInf}
	case pkPosInf:
		return []byte{sentinelPosInf}
	default:
		out := make([]byte, 1+len(p.key))
		out[0] = tagRealKey
		copy(out[1:], p.key)
		return out
	}
}

// decodeBound translates an on-disk sentinel-tagged value back to a PK.
func decodeBound(b []byte) PK {
	if len(b) == 0 {
		return NegInf()
	}
	switch b[0] {
	case sentinelNegInf:
		return NegInf()
	case sentinelPosInf:
		return PosInf()
	default:
		key := make([]byte, len(b)-1)
		copy(key, b[1:])
		return Key(key)
	}
}
