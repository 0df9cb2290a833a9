package riakconv

import "bytes"

// VClock is an opaque causal-context token (a vector clock) attached to a
// stored record. The mapping layer never looks inside it.
type VClock interface {
	Bytes() []byte
}

// BasicVClock is the byte-slice VClock.
type BasicVClock []byte

func (vc BasicVClock) Bytes() []byte { return []byte(vc) }

func (vc BasicVClock) String() string { return hexstr(vc) }

// VClockBytes returns vc's bytes, or nil for a nil vc.
func VClockBytes(vc VClock) []byte {
	if vc == nil {
		return nil
	}
	return vc.Bytes()
}

// SameVClock reports whether a and b carry identical bytes.
func SameVClock(a, b VClock) bool {
	return bytes.Equal(VClockBytes(a), VClockBytes(b))
}
