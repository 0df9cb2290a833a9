package store

import (
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/andreyvit/riakconv"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func fails(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("** got error %v, wanted %v", err, target)
	}
}

func setup(t testing.TB, opt Options) *Store {
	if !opt.InMemory && opt.Path == "" {
		opt.Path = filepath.Join(t.TempDir(), "test.db")
	}
	opt.IsTesting = true
	if opt.Metrics == nil {
		opt.Metrics = NewMetrics()
	}
	s, err := Open(opt)
	ok(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func eachBackend(t *testing.T, opt Options, f func(t *testing.T, s *Store)) {
	t.Run("bolt", func(t *testing.T) {
		o := opt
		f(t, setup(t, o))
	})
	t.Run("mem", func(t *testing.T) {
		o := opt
		o.InMemory = true
		f(t, setup(t, o))
	})
}

func clockOf(t testing.TB, o *riakconv.Object) VectorClock {
	t.Helper()
	vc, err := DecodeVClock(o.VClock)
	ok(t, err)
	return vc
}

func newObject(bucket, key, value string) *riakconv.Object {
	return &riakconv.Object{Bucket: bucket, Key: key, ContentType: "text/plain", Value: []byte(value)}
}

func TestStore_PutGet(t *testing.T) {
	eachBackend(t, Options{ClientID: "c1"}, func(t *testing.T, s *Store) {
		o := newObject("users", "u1", "hello")
		o.SetUsermeta("region", "eu")
		o.Indexes.AddBin("email", "a@example.com")
		o.Indexes.AddInt("age", 42)
		o.AddLink(riakconv.NewLink("users", "u2", "friend"))

		stored, err := s.Put(o)
		ok(t, err)
		deepEqual(t, stored.Key, "u1")
		if stored.VTag == "" || stored.LastModified.IsZero() {
			t.Errorf("** got vtag %q, last modified %v", stored.VTag, stored.LastModified)
		}
		deepEqual(t, clockOf(t, stored).Counter("c1"), uint64(1))
		if o.VClock != nil || o.VTag != "" {
			t.Errorf("** Put modified its argument")
		}

		got, err := s.Get("users", "u1")
		ok(t, err)
		deepEqual(t, string(got.Value), "hello")
		deepEqual(t, got.ContentType, "text/plain")
		deepEqual(t, got.Usermeta, map[string]string{"region": "eu"})
		deepEqual(t, got.Indexes.Bin("email"), []string{"a@example.com"})
		deepEqual(t, got.Indexes.Int("age"), []int64{42})
		deepEqual(t, got.Links, o.Links)
		deepEqual(t, got.VTag, stored.VTag)
		deepEqual(t, got.Deleted, false)
		if !got.LastModified.Equal(stored.LastModified) {
			t.Errorf("** got last modified %v, wanted %v", got.LastModified, stored.LastModified)
		}
		if !riakconv.SameVClock(got.VClock, stored.VClock) {
			t.Errorf("** got vclock %v, wanted %v", got.VClock, stored.VClock)
		}

		_, err = s.Get("users", "nope")
		fails(t, err, ErrNotFound)
		_, err = s.Get("nobucket", "u1")
		fails(t, err, ErrNotFound)
	})
}

func TestStore_AssignsKey(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		stored, err := s.Put(newObject("b", "", "v"))
		ok(t, err)
		if len(stored.Key) != 36 {
			t.Fatalf("** got key %q, wanted a UUID", stored.Key)
		}
		got, err := s.Get("b", stored.Key)
		ok(t, err)
		deepEqual(t, string(got.Value), "v")
	})
}

func TestStore_VClockDescent(t *testing.T) {
	eachBackend(t, Options{ClientID: "c1"}, func(t *testing.T, s *Store) {
		first, err := s.Put(newObject("b", "k", "1"))
		ok(t, err)

		next := newObject("b", "k", "2")
		next.VClock = first.VClock
		second, err := s.Put(next)
		ok(t, err)

		c1, c2 := clockOf(t, first), clockOf(t, second)
		deepEqual(t, c2.Counter("c1"), uint64(2))
		deepEqual(t, c2.Descends(c1), true)
		deepEqual(t, c1.Descends(c2), false)
		if first.VTag == second.VTag {
			t.Errorf("** vtag did not change: %s", first.VTag)
		}

		// without RejectStaleVClock a blind write merges with the stored clock
		blind, err := s.Put(newObject("b", "k", "3"))
		ok(t, err)
		deepEqual(t, clockOf(t, blind).Counter("c1"), uint64(3))
	})
}

func TestStore_RejectStaleVClock(t *testing.T) {
	eachBackend(t, Options{ClientID: "c1", RejectStaleVClock: true}, func(t *testing.T, s *Store) {
		first, err := s.Put(newObject("b", "k", "1"))
		ok(t, err)

		_, err = s.Put(newObject("b", "k", "blind"))
		fails(t, err, ErrStaleVClock)

		a := newObject("b", "k", "a")
		a.VClock = first.VClock
		b := newObject("b", "k", "b")
		b.VClock = first.VClock

		_, err = s.Put(a)
		ok(t, err)
		_, err = s.Put(b)
		fails(t, err, ErrStaleVClock)

		err = s.Delete("b", "k", first.VClock)
		fails(t, err, ErrStaleVClock)

		got, err := s.Get("b", "k")
		ok(t, err)
		deepEqual(t, string(got.Value), "a")
	})
}

func TestStore_ClientsMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	s1 := setup(t, Options{Path: path, ClientID: "alice"})
	first, err := s1.Put(newObject("b", "k", "1"))
	ok(t, err)
	ok(t, s1.Close())

	s2 := setup(t, Options{Path: path, ClientID: "bob", RejectStaleVClock: true})
	next := newObject("b", "k", "2")
	next.VClock = first.VClock
	second, err := s2.Put(next)
	ok(t, err)

	vc := clockOf(t, second)
	deepEqual(t, vc.Counter("alice"), uint64(1))
	deepEqual(t, vc.Counter("bob"), uint64(1))
	deepEqual(t, vc.String(), "{alice:1, bob:1}")
}

func TestStore_Delete(t *testing.T) {
	eachBackend(t, Options{ClientID: "c1", RejectStaleVClock: true}, func(t *testing.T, s *Store) {
		o := newObject("b", "k", "v")
		o.Indexes.AddBin("tag", "x")
		stored, err := s.Put(o)
		ok(t, err)
		_, err = s.Put(newObject("b", "k2", "v2"))
		ok(t, err)

		ok(t, s.Delete("b", "k", stored.VClock))

		got, err := s.Get("b", "k")
		ok(t, err)
		deepEqual(t, got.Deleted, true)
		deepEqual(t, len(got.Value), 0)
		deepEqual(t, clockOf(t, got).Descends(clockOf(t, stored)), true)

		keys, err := s.Keys("b")
		ok(t, err)
		deepEqual(t, keys, []string{"k2"})

		found, err := s.IndexLookup("b", "tag", "x")
		ok(t, err)
		deepEqual(t, len(found), 0)

		// resurrect on top of the tombstone
		again := newObject("b", "k", "back")
		again.VClock = got.VClock
		_, err = s.Put(again)
		ok(t, err)
		keys, err = s.Keys("b")
		ok(t, err)
		deepEqual(t, keys, []string{"k", "k2"})

		ok(t, s.Delete("b", "missing", nil))
		_, err = s.Get("b", "missing")
		fails(t, err, ErrNotFound)
	})
}

func TestStore_Indexes(t *testing.T) {
	eachBackend(t, Options{}, func(t *testing.T, s *Store) {
		put := func(key string, email string, ages ...int64) {
			o := newObject("people", key, key)
			o.Indexes.AddBin("email", email)
			for _, age := range ages {
				o.Indexes.AddInt("age", age)
			}
			_, err := s.Put(o)
			ok(t, err)
		}
		put("p1", "a@x", 30)
		put("p2", "b@x", -5, 31)
		put("p3", "a@x", 42)
		put("p4", "a\x00b", 1<<40)

		keys, err := s.IndexLookup("people", "email", "a@x")
		ok(t, err)
		deepEqual(t, keys, []string{"p1", "p3"})

		keys, err = s.IndexLookup("people", "email", "a")
		ok(t, err)
		deepEqual(t, len(keys), 0)

		keys, err = s.IndexRange("people", "age", -10, 35)
		ok(t, err)
		deepEqual(t, keys, []string{"p2", "p1"})

		keys, err = s.IndexRange("people", "age", int32(31), uint64(1<<41))
		ok(t, err)
		deepEqual(t, keys, []string{"p2", "p3", "p4"})

		keys, err = s.IndexRange("people", "email", "a", "a@z")
		ok(t, err)
		deepEqual(t, keys, []string{"p4", "p1", "p3"})

		// replacing an object drops its old rows
		put("p1", "c@x", 99)
		keys, err = s.IndexLookup("people", "email", "a@x")
		ok(t, err)
		deepEqual(t, keys, []string{"p3"})
		keys, err = s.IndexLookup("people", "age", 30)
		ok(t, err)
		deepEqual(t, len(keys), 0)
		keys, err = s.IndexLookup("people", "age", 99)
		ok(t, err)
		deepEqual(t, keys, []string{"p1"})

		_, err = s.IndexRange("people", "age", 1, "z")
		fails(t, err, riakconv.ErrUnsupportedValue)
		_, err = s.IndexLookup("people", "age", 1.5)
		fails(t, err, riakconv.ErrUnsupportedValue)

		keys, err = s.IndexLookup("nobody", "age", 1)
		ok(t, err)
		deepEqual(t, len(keys), 0)
	})
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s := setup(t, Options{Path: path})
	o := newObject("b", "k", "v")
	o.Indexes.AddInt("n", 7)
	_, err := s.Put(o)
	ok(t, err)
	ok(t, s.Close())

	s = setup(t, Options{Path: path})
	got, err := s.Get("b", "k")
	ok(t, err)
	deepEqual(t, string(got.Value), "v")
	keys, err := s.IndexLookup("b", "n", 7)
	ok(t, err)
	deepEqual(t, keys, []string{"k"})
}

func TestStore_Errors(t *testing.T) {
	s := setup(t, Options{InMemory: true})

	_, err := s.Put(nil)
	fails(t, err, riakconv.ErrUnsupportedValue)
	_, err = s.Put(newObject("", "k", "v"))
	fails(t, err, ErrNoBucket)
	fails(t, s.Delete("", "k", nil), ErrNoBucket)
	fails(t, s.Delete("b", "", nil), riakconv.ErrNoKey)

	o := newObject("b", "k", "v")
	o.VClock = riakconv.BasicVClock{0xc1}
	_, err = s.Put(o)
	var de *riakconv.DataError
	if !errors.As(err, &de) {
		t.Fatalf("** got %v, wanted a *riakconv.DataError", err)
	}
	var oe *OpError
	if !errors.As(err, &oe) || oe.Op != "put" || oe.Key != "k" {
		t.Fatalf("** got %v, wanted a put *OpError", err)
	}

	_, err = Open(Options{})
	if err == nil {
		t.Fatalf("** Open without a path succeeded")
	}
}

func TestStore_Metrics(t *testing.T) {
	m := NewMetrics()
	s := setup(t, Options{InMemory: true, Metrics: m, RejectStaleVClock: true})

	_, err := s.Put(newObject("b", "k", "v"))
	ok(t, err)
	_, err = s.Put(newObject("b", "k", "v"))
	fails(t, err, ErrStaleVClock)
	_, err = s.Get("b", "x")
	fails(t, err, ErrNotFound)

	deepEqual(t, testutil.ToFloat64(m.Ops.WithLabelValues("put", "ok")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.Ops.WithLabelValues("put", "stale")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.Ops.WithLabelValues("get", "not_found")), 1.0)
}
