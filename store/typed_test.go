package store

import (
	"errors"
	"testing"

	"github.com/andreyvit/riakconv"
)

type Account struct {
	Email   string          `riak:"key" msgpack:"-"`
	Clock   riakconv.VClock `riak:"vclock" msgpack:"-"`
	Deleted bool            `riak:"tombstone" msgpack:"-"`
	Plan    string          `riak:"index,name=plan" msgpack:"p"`
	Name    string          `msgpack:"n"`
}

type Note struct {
	Text string `msgpack:"t"`
}

func TestTyped(t *testing.T) {
	eachBackend(t, Options{ClientID: "c1", RejectStaleVClock: true}, func(t *testing.T, s *Store) {
		accounts, err := NewTyped[Account](s, "accounts", nil)
		ok(t, err)
		deepEqual(t, accounts.Bucket(), "accounts")

		stored, err := accounts.Store(&Account{Email: "a@x", Plan: "pro", Name: "Alice"})
		ok(t, err)
		deepEqual(t, stored.Email, "a@x")
		deepEqual(t, stored.Name, "Alice")
		if stored.Clock == nil {
			t.Fatalf("** stored revision has no vclock")
		}
		_, err = accounts.Store(&Account{Email: "b@x", Plan: "free", Name: "Bob"})
		ok(t, err)
		_, err = accounts.Store(&Account{Email: "c@x", Plan: "pro", Name: "Carol"})
		ok(t, err)

		// a blind write over an existing account is stale
		_, err = accounts.Store(&Account{Email: "a@x", Plan: "free"})
		fails(t, err, ErrStaleVClock)

		a, err := accounts.Fetch("a@x")
		ok(t, err)
		deepEqual(t, a.Name, "Alice")
		a.Plan = "free"
		_, err = accounts.Store(a)
		ok(t, err)

		pro, err := accounts.Find("plan", "pro")
		ok(t, err)
		if len(pro) != 1 || pro[0].Email != "c@x" {
			t.Fatalf("** got %v, wanted only c@x", pro)
		}
		free, err := accounts.Find("plan", "free")
		ok(t, err)
		deepEqual(t, len(free), 2)

		ok(t, accounts.Delete("b@x"))
		ok(t, accounts.Delete("b@x"))
		ok(t, accounts.Delete("nobody"))
		b, err := accounts.Fetch("b@x")
		ok(t, err)
		deepEqual(t, b.Deleted, true)
		free, err = accounts.Find("plan", "free")
		ok(t, err)
		if len(free) != 1 || free[0].Email != "a@x" {
			t.Fatalf("** got %v, wanted only a@x", free)
		}

		_, err = accounts.Fetch("nobody")
		fails(t, err, ErrNotFound)

		_, err = accounts.Store(&Account{})
		fails(t, err, riakconv.ErrNoKey)
	})
}

func TestTyped_Keyless(t *testing.T) {
	s := setup(t, Options{InMemory: true})
	notes, err := NewTyped[Note](s, "notes", nil)
	ok(t, err)

	_, err = notes.Store(&Note{Text: "hi"})
	ok(t, err)
	keys, err := s.Keys("notes")
	ok(t, err)
	if len(keys) != 1 {
		t.Fatalf("** got keys %v, wanted one assigned key", keys)
	}
	n, err := notes.Fetch(keys[0])
	ok(t, err)
	deepEqual(t, n.Text, "hi")
}

func TestTyped_CustomConverter(t *testing.T) {
	s := setup(t, Options{InMemory: true})
	conv := riakconv.ConverterFuncs[Note]{
		From: func(bucket string, n *Note, vclock riakconv.VClock) (*riakconv.Object, error) {
			return &riakconv.Object{Bucket: bucket, Key: n.Text, Value: []byte(n.Text)}, nil
		},
		To: func(o *riakconv.Object) (*Note, error) {
			return &Note{Text: string(o.Value)}, nil
		},
	}
	notes, err := NewTyped[Note](s, "raw", conv)
	ok(t, err)
	_, err = notes.Store(&Note{Text: "plain"})
	ok(t, err)

	o, err := s.Get("raw", "plain")
	ok(t, err)
	deepEqual(t, string(o.Value), "plain")
}

type badClock struct {
	Clock int `riak:"vclock"`
}

func TestNewTyped_ConfigError(t *testing.T) {
	s := setup(t, Options{InMemory: true})
	_, err := NewTyped[badClock](s, "b", nil)
	var ce *riakconv.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("** got %v, wanted *riakconv.ConfigError", err)
	}
}

type Ledger struct {
	ID      string          `riak:"key"`
	Clock   riakconv.VClock `riak:"vclock"`
	Balance int
}

func TestTyped_UntaggedRoleFields(t *testing.T) {
	for _, enc := range []riakconv.Encoding{riakconv.MsgPack, riakconv.JSON, riakconv.YAML} {
		t.Run(enc.String(), func(t *testing.T) {
			eachBackend(t, Options{ClientID: "c1", RejectStaleVClock: true}, func(t *testing.T, s *Store) {
				conv := riakconv.MustConverter[Ledger](riakconv.ConverterOptions{Encoding: enc})
				ledgers, err := NewTyped[Ledger](s, "ledgers", conv)
				ok(t, err)

				l, err := ledgers.Store(&Ledger{ID: "l1", Balance: 10})
				ok(t, err)
				l.Balance = 20
				l, err = ledgers.Store(l)
				ok(t, err)
				vc, err := DecodeVClock(l.Clock)
				ok(t, err)
				deepEqual(t, vc.Counter("c1"), uint64(2))

				got, err := ledgers.Fetch("l1")
				ok(t, err)
				deepEqual(t, got.Balance, 20)
				deepEqual(t, got.ID, "l1")
			})
		})
	}
}
