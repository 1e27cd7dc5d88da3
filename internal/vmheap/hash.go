package vmheap

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
)

// hashValue mixes v's bits with murmur3, the same hash internal/types uses
// for its structural hashes (internal/symtab uses FNV-1a instead). Only Int,
// Float, and String values are ever used as Map keys; any other object
// hashes to one fixed value (equalValue then tells such keys apart by Obj
// pointer identity), which is never reachable through validated Matiria
// source (the validator restricts map key types) but keeps this total
// rather than panicking.
func hashValue(v Value) uint64 {
	var buf [8]byte
	switch v.Kind {
	case KindInt:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.I))
		return murmur3.Sum64(buf[:])
	case KindFloat:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.F))
		return murmur3.Sum64(buf[:])
	default:
		if s, ok := v.O.(*StringObj); ok {
			return murmur3.Sum64([]byte(s.Value))
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(uintptr(0)))
		return murmur3.Sum64(buf[:])
	}
}

// equalValue reports whether a and b are the same Map key: same Kind and
// same underlying bits, or (for strings) the same contents.
func equalValue(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	default:
		as, aok := a.O.(*StringObj)
		bs, bok := b.O.(*StringObj)
		if aok && bok {
			return as.Value == bs.Value
		}
		return a.O == b.O
	}
}
