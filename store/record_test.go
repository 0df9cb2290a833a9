package store

import (
	"errors"
	"testing"

	"github.com/andreyvit/riakconv"
)

func TestRecordFlags_Ver(t *testing.T) {
	if (rfVer1 | rfTombstone).ver() != rfVer1 {
		t.Fatalf("recordFlags.ver returned unexpected value")
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	raw := encodeRecord(rfDefault|rfTombstone, 300, []byte{1, 2, 3}, []byte{4}, []byte{9, 8})

	var rec record
	ok(t, rec.decode(raw))
	deepEqual(t, rec.IsTombstone(), true)
	deepEqual(t, rec.ModCount, uint64(300))
	deepEqual(t, rec.Data, []byte{1, 2, 3})
	deepEqual(t, rec.Meta, []byte{4})
	deepEqual(t, rec.Index, []byte{9, 8})

	raw = encodeRecord(rfDefault, 1, nil, nil, nil)
	ok(t, rec.decode(raw))
	deepEqual(t, rec.IsTombstone(), false)
	deepEqual(t, len(rec.Data)+len(rec.Meta)+len(rec.Index), 0)
}

func TestRecord_DecodeInvalid(t *testing.T) {
	valid := encodeRecord(rfDefault, 1, []byte{1, 2, 3}, []byte{4}, nil)
	tests := map[string][]byte{
		"short":     {1, 2},
		"flags":     {0x40, 0, 0, 0, 0},
		"version":   {0x02, 0, 0, 0, 0},
		"truncated": valid[:len(valid)-1],
		"trailing":  append(append([]byte{}, valid...), 7),
	}
	for name, raw := range tests {
		var rec record
		err := rec.decode(raw)
		var de *riakconv.DataError
		if !errors.As(err, &de) {
			t.Errorf("** %s: got %v, wanted *riakconv.DataError", name, err)
		}
	}
}

func TestIndexRows(t *testing.T) {
	var ix riakconv.Indexes
	ix.AddInt("age", 3)
	ix.AddBin("email", "b")
	ix.AddBin("email", "a")
	rows := indexRowsOf("k", ix)
	if len(rows) != 3 {
		t.Fatalf("** got %d rows, wanted 3", len(rows))
	}
	deepEqual(t, rows[0].Sub, "bin:email")
	deepEqual(t, rows[0].KeyRaw, binIndexRow("email", "a", "k").KeyRaw)
	deepEqual(t, rows[1].KeyRaw, binIndexRow("email", "b", "k").KeyRaw)
	deepEqual(t, rows[2].Sub, "int:age")

	raw := appendIndexKeys(nil, rows)
	var decoded indexRows
	ok(t, decodeIndexKeys(raw, func(row indexRow) error {
		decoded = append(decoded, row)
		return nil
	}))
	deepEqual(t, decoded, rows)

	var removed []string
	newRows := indexRows{rows[1], intIndexRow("age", 4, "k")}
	ok(t, findRemovedIndexKeys(raw, newRows, func(row indexRow) error {
		removed = append(removed, row.Sub)
		return nil
	}))
	deepEqual(t, removed, []string{"bin:email", "int:age"})

	ok(t, findRemovedIndexKeys(nil, newRows, func(row indexRow) error {
		t.Errorf("** unexpected removal of %v", row)
		return nil
	}))
}
