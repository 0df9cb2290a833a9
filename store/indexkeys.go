package store

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"slices"

	"github.com/andreyvit/riakconv"
)

const (
	binPrefix = "bin:"
	intPrefix = "int:"
)

// indexRow is a single secondary index entry: a key in the Sub bucket made of
// the ordered value and the object key.
type indexRow struct {
	Sub    string
	KeyRaw []byte
}

type indexRows []indexRow

func compareIndexRows(a, b indexRow) int {
	if c := cmp.Compare(a.Sub, b.Sub); c != 0 {
		return c
	}
	return bytes.Compare(a.KeyRaw, b.KeyRaw)
}

func binIndexRow(name, value, key string) indexRow {
	elem := appendOrderedString(nil, value)
	return indexRow{binPrefix + name, tuple{elem, []byte(key)}.encode(nil)}
}

func intIndexRow(name string, value int64, key string) indexRow {
	elem := appendOrderedInt(nil, value)
	return indexRow{intPrefix + name, tuple{elem, []byte(key)}.encode(nil)}
}

// indexRowsOf returns the sorted rows to write for an object.
func indexRowsOf(key string, ix riakconv.Indexes) indexRows {
	rows := make(indexRows, 0, ix.Len())
	for name, values := range ix.BinEntries {
		for _, v := range values {
			rows = append(rows, binIndexRow(name, v, key))
		}
	}
	for name, values := range ix.IntEntries {
		for _, v := range values {
			rows = append(rows, intIndexRow(name, v, key))
		}
	}
	slices.SortFunc(rows, compareIndexRows)
	return slices.CompactFunc(rows, func(a, b indexRow) bool { return compareIndexRows(a, b) == 0 })
}

func appendIndexKeys(buf []byte, rows indexRows) []byte {
	var total = binary.MaxVarintLen32 + len(rows)*(binary.MaxVarintLen32+binary.MaxVarintLen32)
	for _, row := range rows {
		total += len(row.Sub) + len(row.KeyRaw)
	}

	w := prealloc(buf, total)
	w.AppendUvarinti(len(rows))
	for _, row := range rows {
		w.AppendVarBytes([]byte(row.Sub))
		w.AppendVarBytes(row.KeyRaw)
	}
	return w.Trimmed()
}

func decodeIndexKeys(data []byte, f func(row indexRow) error) error {
	if len(data) == 0 {
		return nil
	}
	d := makeByteDecoder(data)
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		sub, err := d.VarBytes()
		if err != nil {
			return err
		}
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		if err := f(indexRow{string(sub), key}); err != nil {
			return err
		}
	}
	return nil
}

type indexDiffer struct {
	newRows indexRows
}

func (d *indexDiffer) checkOldRow(old indexRow) bool {
	// Look for a new row that's >= old row.
	for len(d.newRows) > 0 {
		c := compareIndexRows(old, d.newRows[0])
		if c < 0 {
			return false
		} else if c == 0 {
			return true // found exact match
		}
		d.newRows = d.newRows[1:] // shift to next new row and compare again
	}
	return false // no more new rows, so remaining old rows have been deleted
}

// findRemovedIndexKeys calls removed for every row listed in oldData (sorted,
// as written by appendIndexKeys) that is absent from newRows.
func findRemovedIndexKeys(oldData []byte, newRows indexRows, removed func(row indexRow) error) error {
	d := indexDiffer{newRows}
	return decodeIndexKeys(oldData, func(row indexRow) error {
		if !d.checkOldRow(row) {
			return removed(row)
		}
		return nil
	})
}
