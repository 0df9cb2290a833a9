package store

import (
	"bytes"
	"slices"
	"strconv"
	"time"

	"github.com/andreyvit/riakconv"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// recordMeta is the msgpack-encoded part of a record describing the payload.
type recordMeta struct {
	ContentType  string            `msgpack:"ct,omitempty"`
	VClock       []byte            `msgpack:"vc,omitempty"`
	VTag         string            `msgpack:"vt,omitempty"`
	LastModified time.Time         `msgpack:"lm"`
	Usermeta     map[string]string `msgpack:"um,omitempty"`
	Indexes      riakconv.Indexes  `msgpack:"ix"`
	Links        []riakconv.Link   `msgpack:"ln,omitempty"`
}

func metaOf(o *riakconv.Object) *recordMeta {
	meta := &recordMeta{
		ContentType:  o.ContentType,
		VClock:       riakconv.VClockBytes(o.VClock),
		VTag:         o.VTag,
		LastModified: o.LastModified,
		Usermeta:     o.Usermeta,
		Links:        o.Links,
	}
	if !o.Deleted {
		meta.Indexes = o.Indexes
	}
	return meta
}

func encodeMeta(buf []byte, meta *recordMeta) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(meta)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return bb.Buf, nil
}

func decodeMeta(raw []byte, meta *recordMeta) error {
	var r bytes.Reader
	r.Reset(raw)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(meta)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(raw, 0, err, "invalid record metadata")
	}
	return nil
}

// decodeObject builds an Object out of a stored record. Nothing in the result
// aliases raw.
func decodeObject(bucket, key string, raw []byte) (*riakconv.Object, *record, error) {
	rec := new(record)
	if err := rec.decode(raw); err != nil {
		return nil, nil, err
	}
	var meta recordMeta
	if err := decodeMeta(rec.Meta, &meta); err != nil {
		return nil, nil, err
	}
	o := &riakconv.Object{
		Bucket:       bucket,
		Key:          key,
		ContentType:  meta.ContentType,
		VTag:         meta.VTag,
		LastModified: meta.LastModified,
		Deleted:      rec.IsTombstone(),
		Usermeta:     meta.Usermeta,
		Indexes:      meta.Indexes,
		Links:        meta.Links,
	}
	if len(rec.Data) > 0 {
		o.Value = slices.Clone(rec.Data)
	}
	if len(meta.VClock) > 0 {
		o.VClock = riakconv.BasicVClock(meta.VClock)
	}
	return o, rec, nil
}

// vtagOf identifies a stored revision; the vclock changes on every write, so
// does the vtag.
func vtagOf(value, vclock []byte) string {
	d := xxhash.New()
	d.Write(value)
	d.Write(vclock)
	return strconv.FormatUint(d.Sum64(), 36)
}
