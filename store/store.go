package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/andreyvit/riakconv"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

type Options struct {
	// Path of the Bolt database file. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in a transient in-memory storage.
	InMemory bool
	// ClientID is the vclock actor incremented on every write. Defaults to a
	// random UUID.
	ClientID string
	// RejectStaleVClock refuses writes whose vclock does not descend from the
	// stored one, instead of merging the two.
	RejectStaleVClock bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics defaults to DefaultMetrics().
	Metrics *Metrics

	IsTesting bool
	MmapSize  int
}

// Store keeps Objects grouped into buckets, along with their secondary
// indexes. It is safe for concurrent use.
type Store struct {
	st          storage
	clientID    string
	rejectStale bool
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time
}

var emptyIndexValue = []byte{}

func Open(opt Options) (*Store, error) {
	var st storage
	if opt.InMemory {
		st = newMemStorage()
	} else {
		if opt.Path == "" {
			return nil, fmt.Errorf("store: no path")
		}
		bopt := *bbolt.DefaultOptions
		bopt.Timeout = 10 * time.Second
		if opt.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 1024
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if opt.MmapSize != 0 {
			bopt.InitialMmapSize = opt.MmapSize
		}
		bdb, err := bbolt.Open(opt.Path, 0666, &bopt)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		st = newBoltStorage(bdb)
	}

	s := &Store{
		st:          st,
		clientID:    opt.ClientID,
		rejectStale: opt.RejectStaleVClock,
		logger:      opt.Logger,
		metrics:     opt.Metrics,
		now:         time.Now,
	}
	if s.clientID == "" {
		s.clientID = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = defaultMetrics
	}
	return s, nil
}

// ClientID returns the vclock actor of this store.
func (s *Store) ClientID() string {
	return s.clientID
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) update(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) view(f func(tx storageTx) error) error {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func objectsBucketName(bucket string) string { return "o:" + bucket }
func indexesBucketName(bucket string) string { return "i:" + bucket }

// Put stores o and returns the stored revision: a copy of o with the key
// assigned (when o.Key is empty), a new vclock, vtag and modification time.
//
// The new vclock descends from both o.VClock and the stored one. With
// RejectStaleVClock, a write whose vclock does not descend from the stored
// one fails with ErrStaleVClock.
//
// A tombstone (o.Deleted) drops the object's index entries.
func (s *Store) Put(o *riakconv.Object) (*riakconv.Object, error) {
	if o == nil {
		return nil, &OpError{"put", "", "", riakconv.ErrUnsupportedValue}
	}
	if o.Bucket == "" {
		return nil, &OpError{"put", "", o.Key, ErrNoBucket}
	}
	stored := o.Clone()
	if stored.Key == "" {
		stored.Key = uuid.NewString()
	}
	err := s.update(func(tx storageTx) error {
		_, err := s.write(tx, stored, false)
		return err
	})
	s.metrics.observe("put", err)
	if err != nil {
		return nil, &OpError{"put", o.Bucket, stored.Key, err}
	}
	s.logger.Debug("store: put", "bucket", stored.Bucket, "key", stored.Key, "vtag", stored.VTag, "deleted", stored.Deleted)
	return stored, nil
}

// Delete replaces the object with a tombstone carrying a descendant vclock.
// Deleting a missing object is not an error.
func (s *Store) Delete(bucket, key string, vclock riakconv.VClock) error {
	if bucket == "" {
		return &OpError{"delete", "", key, ErrNoBucket}
	}
	if key == "" {
		return &OpError{"delete", bucket, "", riakconv.ErrNoKey}
	}
	tomb := &riakconv.Object{Bucket: bucket, Key: key, VClock: vclock, Deleted: true}
	var written bool
	err := s.update(func(tx storageTx) error {
		var err error
		written, err = s.write(tx, tomb, true)
		return err
	})
	s.metrics.observe("delete", err)
	if err != nil {
		return &OpError{"delete", bucket, key, err}
	}
	if written {
		s.logger.Debug("store: deleted", "bucket", bucket, "key", key, "vtag", tomb.VTag)
	}
	return nil
}

// write stores o, filling in its vclock, vtag and modification time. With
// onlyExisting, a missing object is left alone and written is false.
func (s *Store) write(tx storageTx, o *riakconv.Object, onlyExisting bool) (written bool, err error) {
	objects, err := tx.CreateBucket(objectsBucketName(o.Bucket), "")
	if err != nil {
		return false, err
	}
	keyRaw := []byte(o.Key)

	var oldClock VectorClock
	var oldModCount uint64
	var oldIndex []byte
	raw := objects.Get(keyRaw)
	if raw != nil {
		old, oldRec, err := decodeObject(o.Bucket, o.Key, raw)
		if err != nil {
			return false, err
		}
		if oldClock, err = DecodeVClock(old.VClock); err != nil {
			return false, err
		}
		oldModCount = oldRec.ModCount
		oldIndex = slices.Clone(oldRec.Index)
	} else if onlyExisting {
		return false, nil
	}

	clock, err := DecodeVClock(o.VClock)
	if err != nil {
		return false, err
	}
	if s.rejectStale && raw != nil && !clock.Descends(oldClock) {
		return false, ErrStaleVClock
	}
	now := s.now().UTC()
	clock = clock.Merge(oldClock).Increment(s.clientID, now)
	clockRaw := clock.Bytes()
	o.VClock = riakconv.BasicVClock(clockRaw)
	o.VTag = vtagOf(o.Value, clockRaw)
	o.LastModified = now

	flags := rfDefault
	var rows indexRows
	if o.Deleted {
		flags |= rfTombstone
		o.Value = nil
		o.Indexes = riakconv.Indexes{}
	} else {
		rows = indexRowsOf(o.Key, o.Indexes)
	}

	idxName := indexesBucketName(o.Bucket)
	err = findRemovedIndexKeys(oldIndex, rows, func(row indexRow) error {
		if b := tx.Bucket(idxName, row.Sub); b != nil {
			return b.Delete(row.KeyRaw)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	var sub string
	var idxBuck storageBucket
	for _, row := range rows {
		if idxBuck == nil || row.Sub != sub {
			sub = row.Sub
			if idxBuck, err = tx.CreateBucket(idxName, sub); err != nil {
				return false, err
			}
		}
		if err := idxBuck.Put(row.KeyRaw, emptyIndexValue); err != nil {
			return false, err
		}
	}

	meta, err := encodeMeta(nil, metaOf(o))
	if err != nil {
		return false, err
	}
	rec := encodeRecord(flags, oldModCount+1, o.Value, meta, appendIndexKeys(nil, rows))
	if err := objects.Put(keyRaw, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the stored object, or ErrNotFound. Tombstones are returned
// with Deleted set, so that their vclock can be used for the next write.
func (s *Store) Get(bucket, key string) (*riakconv.Object, error) {
	var o *riakconv.Object
	err := s.view(func(tx storageTx) error {
		objects := tx.Bucket(objectsBucketName(bucket), "")
		if objects == nil {
			return ErrNotFound
		}
		raw := objects.Get(unsafeBytesFromString(key))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		o, _, err = decodeObject(bucket, key, raw)
		return err
	})
	s.metrics.observe("get", err)
	if err != nil {
		return nil, &OpError{"get", bucket, key, err}
	}
	return o, nil
}

// Keys returns the sorted keys of live (not deleted) objects in bucket.
func (s *Store) Keys(bucket string) ([]string, error) {
	var keys []string
	err := s.view(func(tx storageTx) error {
		objects := tx.Bucket(objectsBucketName(bucket), "")
		if objects == nil {
			return nil
		}
		c := objects.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec record
			if err := rec.decode(v); err != nil {
				return err
			}
			if !rec.IsTombstone() {
				keys = append(keys, string(k))
			}
		}
		return nil
	})
	s.metrics.observe("keys", err)
	if err != nil {
		return nil, &OpError{"keys", bucket, "", err}
	}
	return keys, nil
}

// IndexLookup returns the sorted keys of objects having value in the named
// index. A string value queries the binary index, an integer value queries
// the integer one.
func (s *Store) IndexLookup(bucket, index string, value any) ([]string, error) {
	keys, err := s.indexRange("index", bucket, index, value, value)
	slices.Sort(keys)
	return keys, err
}

// IndexRange returns keys of objects with a value in [lo, hi] in the named
// index, ordered by value. A key is listed once, at its lowest value. Both
// bounds must be strings or both integers.
func (s *Store) IndexRange(bucket, index string, lo, hi any) ([]string, error) {
	return s.indexRange("range", bucket, index, lo, hi)
}

func (s *Store) indexRange(op, bucket, index string, lo, hi any) ([]string, error) {
	var keys []string
	err := func() error {
		loElem, sub, err := orderedIndexValue(index, lo)
		if err != nil {
			return err
		}
		hiElem, hiSub, err := orderedIndexValue(index, hi)
		if err != nil {
			return err
		}
		if sub != hiSub {
			return fmt.Errorf("%w: range bounds %T and %T", riakconv.ErrUnsupportedValue, lo, hi)
		}
		return s.view(func(tx storageTx) error {
			b := tx.Bucket(indexesBucketName(bucket), sub)
			if b == nil {
				return nil
			}
			seen := make(map[string]bool)
			c := b.Cursor()
			for k, _ := c.Seek(loElem); k != nil; k, _ = c.Next() {
				tup, err := decodeTuple(k)
				if err != nil {
					return err
				}
				if len(tup) != 2 {
					return dataErrf(k, 0, nil, "invalid index row: %d elements", len(tup))
				}
				if bytes.Compare(tup[0], hiElem) > 0 {
					break
				}
				if key := string(tup[1]); !seen[key] {
					seen[key] = true
					keys = append(keys, key)
				}
			}
			return nil
		})
	}()
	s.metrics.observe(op, err)
	if err != nil {
		return nil, &OpError{op, bucket, "", err}
	}
	return keys, nil
}

// orderedIndexValue encodes an index query value and picks the index bucket.
func orderedIndexValue(index string, v any) (elem []byte, sub string, err error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.String:
		return appendOrderedString(nil, rv.String()), binPrefix + index, nil
	case rv.CanInt():
		return appendOrderedInt(nil, rv.Int()), intPrefix + index, nil
	case rv.CanUint() && rv.Uint() <= math.MaxInt64:
		return appendOrderedInt(nil, int64(rv.Uint())), intPrefix + index, nil
	default:
		return nil, "", fmt.Errorf("%w: index value %v of type %T", riakconv.ErrUnsupportedValue, v, v)
	}
}
