package store

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/andreyvit/riakconv"
	"github.com/vmihailenco/msgpack/v5"
)

// VClockEntry is one actor's counter in a VectorClock.
type VClockEntry struct {
	Actor     string `msgpack:"a"`
	Counter   uint64 `msgpack:"c"`
	Timestamp int64  `msgpack:"t"` // unix seconds of the last increment
}

// VectorClock is the causal context the store hands out with every object,
// sorted by actor. Its msgpack encoding is the opaque riakconv.VClock.
type VectorClock []VClockEntry

var _ riakconv.VClock = VectorClock(nil)

// DecodeVClock parses a vclock previously returned by the store. A nil or
// empty vclock decodes to an empty clock.
func DecodeVClock(vc riakconv.VClock) (VectorClock, error) {
	raw := riakconv.VClockBytes(vc)
	if len(raw) == 0 {
		return nil, nil
	}
	var clock VectorClock
	if err := msgpack.Unmarshal(raw, &clock); err != nil {
		return nil, dataErrf(raw, 0, err, "invalid vclock")
	}
	slices.SortFunc(clock, compareEntries)
	return clock, nil
}

func compareEntries(a, b VClockEntry) int {
	return cmp.Compare(a.Actor, b.Actor)
}

// Bytes returns the msgpack encoding, nil for an empty clock.
func (vc VectorClock) Bytes() []byte {
	if len(vc) == 0 {
		return nil
	}
	return must(msgpack.Marshal([]VClockEntry(vc)))
}

func (vc VectorClock) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, e := range vc {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.Actor)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(e.Counter, 10))
	}
	buf.WriteByte('}')
	return buf.String()
}

func (vc VectorClock) find(actor string) (int, bool) {
	return slices.BinarySearchFunc(vc, actor, func(e VClockEntry, actor string) int {
		return cmp.Compare(e.Actor, actor)
	})
}

// Counter returns actor's counter, 0 if actor never wrote.
func (vc VectorClock) Counter(actor string) uint64 {
	if i, found := vc.find(actor); found {
		return vc[i].Counter
	}
	return 0
}

// Descends reports whether vc has seen every event other has seen. Every
// clock descends the empty clock.
func (vc VectorClock) Descends(other VectorClock) bool {
	for _, e := range other {
		if vc.Counter(e.Actor) < e.Counter {
			return false
		}
	}
	return true
}

// Merge returns the pairwise maximum of vc and other.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := slices.Clone(vc)
	for _, e := range other {
		i, found := out.find(e.Actor)
		switch {
		case !found:
			out = slices.Insert(out, i, e)
		case out[i].Counter < e.Counter:
			out[i] = e
		case out[i].Counter == e.Counter:
			out[i].Timestamp = max(out[i].Timestamp, e.Timestamp)
		}
	}
	return out
}

// Increment returns a copy of vc with actor's counter bumped.
func (vc VectorClock) Increment(actor string, now time.Time) VectorClock {
	out := slices.Clone(vc)
	i, found := out.find(actor)
	if !found {
		out = slices.Insert(out, i, VClockEntry{Actor: actor})
	}
	out[i].Counter++
	out[i].Timestamp = now.Unix()
	return out
}
