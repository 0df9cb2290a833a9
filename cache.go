package riakconv

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	descriptorCache sync.Map // reflect.Type -> *Descriptor
	descriptorScans singleflight.Group
)

// DescriptorOf returns the cached Descriptor of struct type T, scanning T on
// first use.
func DescriptorOf[T any]() (*Descriptor, error) {
	return DescriptorFor(reflect.TypeFor[T]())
}

// DescriptorFor is DescriptorOf for a reflect.Type. Pointer types are
// dereferenced.
//
// At most one scan runs per type: concurrent callers for an unscanned type
// wait for the same scan and share its result or error. Failed scans are not
// cached.
func DescriptorFor(typ reflect.Type) (*Descriptor, error) {
	if typ == nil {
		return nil, configErrf(nil, "", RoleNone, nil, "nil type")
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, configErrf(typ, "", RoleNone, nil, "not a struct")
	}

	if v, ok := descriptorCache.Load(typ); ok {
		defaultMetrics.CacheHits.Inc()
		return v.(*Descriptor), nil
	}

	v, err, _ := descriptorScans.Do(typeKey(typ), func() (any, error) {
		// a flight that finished between Load and Do has already stored it
		if v, ok := descriptorCache.Load(typ); ok {
			return v, nil
		}
		start := time.Now()
		desc, err := scan(typ)
		defaultMetrics.observeScan(time.Since(start), err)
		if err != nil {
			return nil, err
		}
		return publishScanned(typ, desc), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Descriptor), nil
}

// publishScanned caches desc unless a Descriptor for typ was registered while
// the scan ran, and returns whichever is cached.
func publishScanned(typ reflect.Type, desc *Descriptor) *Descriptor {
	actual, _ := descriptorCache.LoadOrStore(typ, desc)
	return actual.(*Descriptor)
}

// MustDescriptorOf is DescriptorOf that panics on configuration errors, for
// package-level variables.
func MustDescriptorOf[T any]() *Descriptor {
	return must(DescriptorOf[T]())
}

// typeKey identifies typ by its runtime type pointer; names are ambiguous for
// types declared inside functions.
func typeKey(typ reflect.Type) string {
	return fmt.Sprintf("%p", typ)
}
