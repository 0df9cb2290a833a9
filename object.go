package riakconv

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Object is the persisted record exchanged with the storage layer.
type Object struct {
	Bucket       string
	Key          string
	ContentType  string
	Value        []byte
	VClock       VClock
	VTag         string
	LastModified time.Time
	Deleted      bool
	Usermeta     map[string]string
	Indexes      Indexes
	Links        []Link
}

func (o *Object) String() string {
	return fmt.Sprintf("%s/%s", o.Bucket, o.Key)
}

func (o *Object) SetUsermeta(key, value string) {
	if o.Usermeta == nil {
		o.Usermeta = make(map[string]string)
	}
	o.Usermeta[key] = value
}

func (o *Object) AddLink(l Link) {
	o.Links = append(o.Links, l)
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	c := *o
	c.Value = slices.Clone(o.Value)
	if o.VClock != nil {
		c.VClock = BasicVClock(slices.Clone(o.VClock.Bytes()))
	}
	c.Usermeta = maps.Clone(o.Usermeta)
	c.Indexes = o.Indexes.Clone()
	c.Links = slices.Clone(o.Links)
	return &c
}

// Indexes holds secondary index entries. Binary (string) and integer values
// live in separate namespaces, so "score" may exist in both.
type Indexes struct {
	BinEntries map[string][]string `msgpack:"b,omitempty"`
	IntEntries map[string][]int64  `msgpack:"i,omitempty"`
}

func (ix *Indexes) AddBin(name, value string) {
	if ix.BinEntries == nil {
		ix.BinEntries = make(map[string][]string)
	}
	if !slices.Contains(ix.BinEntries[name], value) {
		ix.BinEntries[name] = append(ix.BinEntries[name], value)
	}
}

func (ix *Indexes) AddInt(name string, value int64) {
	if ix.IntEntries == nil {
		ix.IntEntries = make(map[string][]int64)
	}
	if !slices.Contains(ix.IntEntries[name], value) {
		ix.IntEntries[name] = append(ix.IntEntries[name], value)
	}
}

func (ix Indexes) Bin(name string) []string {
	return ix.BinEntries[name]
}

func (ix Indexes) Int(name string) []int64 {
	return ix.IntEntries[name]
}

// Names returns sorted index names of both kinds without duplicates.
func (ix Indexes) Names() []string {
	names := make([]string, 0, len(ix.BinEntries)+len(ix.IntEntries))
	for name := range ix.BinEntries {
		names = append(names, name)
	}
	for name := range ix.IntEntries {
		if _, dup := ix.BinEntries[name]; !dup {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Len returns the total number of index values.
func (ix Indexes) Len() int {
	var n int
	for _, v := range ix.BinEntries {
		n += len(v)
	}
	for _, v := range ix.IntEntries {
		n += len(v)
	}
	return n
}

func (ix Indexes) Clone() Indexes {
	var c Indexes
	if ix.BinEntries != nil {
		c.BinEntries = make(map[string][]string, len(ix.BinEntries))
		for k, v := range ix.BinEntries {
			c.BinEntries[k] = slices.Clone(v)
		}
	}
	if ix.IntEntries != nil {
		c.IntEntries = make(map[string][]int64, len(ix.IntEntries))
		for k, v := range ix.IntEntries {
			c.IntEntries[k] = slices.Clone(v)
		}
	}
	return c
}
