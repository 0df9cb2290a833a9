package store

import (
	"errors"

	"github.com/andreyvit/riakconv"
)

// Typed binds a Store bucket to a domain type through a converter.
type Typed[T any] struct {
	store  *Store
	bucket string
	conv   riakconv.Converter[T]
}

// NewTyped returns a Typed for bucket. A nil conv means the default
// riakconv.ReflectConverter for T.
func NewTyped[T any](s *Store, bucket string, conv riakconv.Converter[T]) (*Typed[T], error) {
	if conv == nil {
		c, err := riakconv.NewConverter[T](riakconv.ConverterOptions{})
		if err != nil {
			return nil, err
		}
		conv = c
	}
	return &Typed[T]{store: s, bucket: bucket, conv: conv}, nil
}

func (t *Typed[T]) Bucket() string {
	return t.bucket
}

// Store writes obj and returns the stored revision, which carries the
// assigned key and the new vclock when T has roles for them.
func (t *Typed[T]) Store(obj *T) (*T, error) {
	o, err := t.conv.FromDomain(t.bucket, obj, nil)
	if err != nil {
		return nil, err
	}
	stored, err := t.store.Put(o)
	if err != nil {
		return nil, err
	}
	return t.conv.ToDomain(stored)
}

// Fetch returns the instance stored under key, or ErrNotFound.
func (t *Typed[T]) Fetch(key string) (*T, error) {
	o, err := t.store.Get(t.bucket, key)
	if err != nil {
		return nil, err
	}
	return t.conv.ToDomain(o)
}

// Delete tombstones key using the currently stored vclock.
func (t *Typed[T]) Delete(key string) error {
	o, err := t.store.Get(t.bucket, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	return t.store.Delete(t.bucket, key, o.VClock)
}

// Find returns the instances having value in the named index, ordered by key.
func (t *Typed[T]) Find(index string, value any) ([]*T, error) {
	keys, err := t.store.IndexLookup(t.bucket, index, value)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(keys))
	for _, key := range keys {
		obj, err := t.Fetch(key)
		if errors.Is(err, ErrNotFound) {
			continue // deleted since the lookup
		} else if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	return result, nil
}
