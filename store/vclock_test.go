package store

import (
	"testing"
	"time"

	"github.com/andreyvit/riakconv"
)

func TestVectorClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var empty VectorClock
	a := empty.Increment("a", now)
	ab := a.Increment("b", now)
	aa := a.Increment("a", now.Add(time.Second))

	deepEqual(t, empty.Bytes() == nil, true)
	deepEqual(t, ab.String(), "{a:1, b:1}")
	deepEqual(t, a.String(), "{a:1}")
	deepEqual(t, aa.Counter("a"), uint64(2))
	deepEqual(t, aa.Counter("b"), uint64(0))

	deepEqual(t, ab.Descends(a), true)
	deepEqual(t, a.Descends(ab), false)
	deepEqual(t, a.Descends(empty), true)
	deepEqual(t, aa.Descends(ab), false)
	deepEqual(t, ab.Descends(aa), false)

	m := aa.Merge(ab)
	deepEqual(t, m.String(), "{a:2, b:1}")
	deepEqual(t, m.Descends(aa) && m.Descends(ab), true)
	deepEqual(t, a.String(), "{a:1}")

	decoded, err := DecodeVClock(riakconv.BasicVClock(m.Bytes()))
	ok(t, err)
	deepEqual(t, decoded, m)

	decoded, err = DecodeVClock(nil)
	ok(t, err)
	deepEqual(t, len(decoded), 0)
}
