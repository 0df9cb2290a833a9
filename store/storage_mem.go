package store

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
)

var (
	errStorageClosed = errors.New("storage closed")
	errTxNotWritable = errors.New("tx not writable")
)

// memStorage is a transient storage for tests and Options.InMemory.
//
// Committed buckets are never modified. A write tx copies a bucket the first
// time it changes it and publishes its bucket map on commit, so readers keep
// the snapshot they started with. One writer at a time.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[memBucketID]*memBucket
	closed  bool
	writer  bool
}

type memBucketID struct {
	name, sub string
}

func newMemStorage() storage {
	s := &memStorage{buckets: make(map[memBucketID]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for writable && s.writer && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, errStorageClosed
	}
	if writable {
		s.writer = true
	}
	return &memTx{storage: s, writable: writable, buckets: s.buckets}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	storage  *memStorage
	writable bool
	done     bool
	buckets  map[memBucketID]*memBucket
	owned    map[memBucketID]bool // buckets copied by this tx
}

func (tx *memTx) mustBeOpen() {
	if tx.done {
		panic("tx is closed")
	}
}

func (tx *memTx) Bucket(name, sub string) storageBucket {
	tx.mustBeOpen()
	id := memBucketID{name, sub}
	if tx.buckets[id] == nil {
		return nil
	}
	return memBucketRef{tx, id}
}

func (tx *memTx) CreateBucket(name, sub string) (storageBucket, error) {
	tx.mustBeOpen()
	if !tx.writable {
		return nil, errTxNotWritable
	}
	tx.ensure(memBucketID{name, ""})
	id := memBucketID{name, sub}
	tx.ensure(id)
	return memBucketRef{tx, id}, nil
}

func (tx *memTx) ensure(id memBucketID) {
	if tx.buckets[id] == nil {
		tx.fork()
		tx.buckets[id] = &memBucket{}
		tx.owned[id] = true
	}
}

// fork detaches the bucket map from the committed one.
func (tx *memTx) fork() {
	if tx.owned == nil {
		tx.buckets = maps.Clone(tx.buckets)
		tx.owned = make(map[memBucketID]bool)
	}
}

// modifiable returns this tx's own copy of bucket id.
func (tx *memTx) modifiable(id memBucketID) (*memBucket, error) {
	if !tx.writable {
		return nil, errTxNotWritable
	}
	tx.fork()
	b := tx.buckets[id]
	if !tx.owned[id] {
		b = &memBucket{items: slices.Clone(b.items)}
		tx.buckets[id] = b
		tx.owned[id] = true
	}
	return b, nil
}

func (tx *memTx) Commit() error {
	s := tx.storage
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return nil
	}
	defer tx.finishLocked()
	if !tx.writable {
		return errTxNotWritable
	}
	if s.closed {
		return errStorageClosed
	}
	s.buckets = tx.buckets
	return nil
}

func (tx *memTx) Rollback() error {
	tx.storage.mu.Lock()
	defer tx.storage.mu.Unlock()
	tx.finishLocked()
	return nil
}

func (tx *memTx) finishLocked() {
	if tx.done {
		return
	}
	tx.done = true
	if tx.writable {
		tx.storage.writer = false
		tx.storage.cond.Broadcast()
	}
}

// memBucket holds items sorted by key. Item slices are never modified in
// place once stored.
type memBucket struct {
	items []memItem
}

type memItem struct {
	key, value []byte
}

func (b *memBucket) search(key []byte) (int, bool) {
	i := sort.Search(len(b.items), func(i int) bool {
		return bytes.Compare(b.items[i].key, key) >= 0
	})
	return i, i < len(b.items) && bytes.Equal(b.items[i].key, key)
}

// memBucketRef resolves its bucket on every call, since a write may replace
// it with a copy.
type memBucketRef struct {
	tx *memTx
	id memBucketID
}

func (r memBucketRef) Get(key []byte) []byte {
	b := r.tx.buckets[r.id]
	if i, found := b.search(key); found {
		return b.items[i].value
	}
	return nil
}

func (r memBucketRef) Put(key, value []byte) error {
	b, err := r.tx.modifiable(r.id)
	if err != nil {
		return err
	}
	item := memItem{bytes.Clone(key), bytes.Clone(value)}
	if item.value == nil {
		item.value = []byte{}
	}
	if i, found := b.search(key); found {
		b.items[i] = item
	} else {
		b.items = slices.Insert(b.items, i, item)
	}
	return nil
}

func (r memBucketRef) Delete(key []byte) error {
	b, err := r.tx.modifiable(r.id)
	if err != nil {
		return err
	}
	if i, found := b.search(key); found {
		b.items = slices.Delete(b.items, i, i+1)
	}
	return nil
}

// Cursor iterates over the bucket as it is when the cursor is created.
func (r memBucketRef) Cursor() storageCursor {
	return &memCursor{items: r.tx.buckets[r.id].items, pos: -1}
}

type memCursor struct {
	items []memItem
	pos   int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i >= len(c.items) {
		return nil, nil
	}
	return c.items[i].key, c.items[i].value
}

func (c *memCursor) First() ([]byte, []byte) {
	return c.at(0)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := (&memBucket{items: c.items}).search(seek)
	return c.at(i)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	return c.at(c.pos + 1)
}
