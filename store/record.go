package store

import (
	"encoding/binary"
	"fmt"
)

type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfVerBit2
	rfVerBit3
	rfTombstone

	rfVerMask       = (rfVerBit0 | rfVerBit1 | rfVerBit2 | rfVerBit3)
	rfVer1          = rfVerBit0
	rfSupportedMask = (rfVer1 | rfTombstone)
	rfDefault       = rfVer1

	minRecordSize       = 5
	maxRecordHeaderSize = binary.MaxVarintLen64 * 5
)

func (rf recordFlags) ver() recordFlags {
	return rf & rfVerMask
}

// record is a stored object: the payload as given by the caller, msgpack
// metadata (see recordMeta) and the index row keys written for it.
type record struct {
	Flags    recordFlags
	ModCount uint64
	Data     []byte
	Meta     []byte
	Index    []byte
}

func (rec *record) IsTombstone() bool {
	return rec.Flags&rfTombstone != 0
}

func encodeRecord(flags recordFlags, modCount uint64, data, meta, index []byte) []byte {
	buf := make([]byte, maxRecordHeaderSize, maxRecordHeaderSize+len(data)+len(meta)+len(index))
	buf = append(buf, data...)
	metaOff := len(buf)
	buf = append(buf, meta...)
	indexOff := len(buf)
	buf = append(buf, index...)
	return putRecordHeader(buf, flags, modCount, metaOff, indexOff)
}

func putRecordHeader(buf []byte, flags recordFlags, modCount uint64, metaOff, indexOff int) []byte {
	if metaOff > indexOff || indexOff > len(buf) {
		panic(fmt.Errorf("invalid metaOff=%d indexOff=%d", metaOff, indexOff)) // sanity check
	}
	if (flags &^ rfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	dataSize := metaOff - maxRecordHeaderSize
	metaSize := indexOff - metaOff
	indexSize := len(buf) - indexOff

	var off = 0
	off += binary.PutUvarint(buf[off:], uint64(flags))
	off += binary.PutUvarint(buf[off:], modCount)
	off += binary.PutUvarint(buf[off:], uint64(dataSize))
	off += binary.PutUvarint(buf[off:], uint64(metaSize))
	off += binary.PutUvarint(buf[off:], uint64(indexSize))
	headerSize := off
	if headerSize < maxRecordHeaderSize {
		// move the header closer to data
		start := maxRecordHeaderSize - headerSize
		copy(buf[start:maxRecordHeaderSize], buf[:headerSize])
		return buf[start:]
	}
	return buf
}

func (rec *record) decode(data []byte) error {
	if len(data) < minRecordSize {
		return dataErrf(data, 0, nil, "invalid record: at least %d bytes required", minRecordSize)
	}
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	if (v &^ uint64(rfSupportedMask)) != 0 {
		return dataErrf(data, 0, nil, "invalid record: unsupported flags %x", v)
	}
	rec.Flags = recordFlags(v)
	if rec.Flags.ver() != rfVer1 {
		return dataErrf(data, 0, nil, "invalid record: unsupported format version %d", rec.Flags.ver())
	}

	if rec.ModCount, err = d.Uvarint(); err != nil {
		return err
	}
	var sizes [3]int
	for i := range sizes {
		if sizes[i], err = d.Uvarinti(); err != nil {
			return err
		}
	}
	if total := uint64(sizes[0]) + uint64(sizes[1]) + uint64(sizes[2]); uint64(len(d.Buf)) != total {
		return dataErrf(data, d.Off(), nil, "invalid record: got %d bytes for data+meta+index, expected %d bytes", len(d.Buf), total)
	}
	rec.Data = must(d.Raw(sizes[0]))
	rec.Meta = must(d.Raw(sizes[1]))
	rec.Index = must(d.Raw(sizes[2]))
	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
