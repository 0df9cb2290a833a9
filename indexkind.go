package riakconv

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// IndexKind is the value shape of a secondary index member.
type IndexKind int

const (
	IndexInvalid IndexKind = iota
	IndexString
	IndexInteger
	IndexLong
	IndexStringSet
	IndexIntegerSet
	IndexLongSet
)

var indexKindNames = [...]string{
	IndexInvalid:    "invalid",
	IndexString:     "string",
	IndexInteger:    "integer",
	IndexLong:       "long",
	IndexStringSet:  "set<string>",
	IndexIntegerSet: "set<integer>",
	IndexLongSet:    "set<long>",
}

func (k IndexKind) String() string {
	if k >= 0 && int(k) < len(indexKindNames) {
		return indexKindNames[k]
	}
	return fmt.Sprintf("IndexKind(%d)", int(k))
}

func (k IndexKind) IsSet() bool {
	return k == IndexStringSet || k == IndexIntegerSet || k == IndexLongSet
}

// IsBinary reports whether values of this kind go into the binary (string)
// index namespace.
func (k IndexKind) IsBinary() bool {
	return k == IndexString || k == IndexStringSet
}

func (k IndexKind) elem() IndexKind {
	switch k {
	case IndexStringSet:
		return IndexString
	case IndexIntegerSet:
		return IndexInteger
	case IndexLongSet:
		return IndexLong
	default:
		return k
	}
}

func scalarIndexKind(t reflect.Type) IndexKind {
	switch t.Kind() {
	case reflect.String:
		return IndexString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return IndexInteger
	case reflect.Int64:
		return IndexLong
	default:
		return IndexInvalid
	}
}

func setOf(k IndexKind) IndexKind {
	switch k {
	case IndexString:
		return IndexStringSet
	case IndexInteger:
		return IndexIntegerSet
	case IndexLong:
		return IndexLongSet
	default:
		return IndexInvalid
	}
}

// indexKindOf classifies t. Sets are slices, map[E]struct{} and map[E]bool.
// []byte is not a set of integers.
func indexKindOf(t reflect.Type) IndexKind {
	if k := scalarIndexKind(t); k != IndexInvalid {
		return k
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return IndexInvalid
		}
		return setOf(scalarIndexKind(t.Elem()))
	case reflect.Map:
		vt := t.Elem()
		if vt.Kind() == reflect.Bool || (vt.Kind() == reflect.Struct && vt.NumField() == 0) {
			return setOf(scalarIndexKind(t.Key()))
		}
	}
	return IndexInvalid
}

// appendIndexValues adds the index values held in v to ix under name. The
// kind is taken from the runtime value, so interfaces are unwrapped first.
func appendIndexValues(ix *Indexes, name string, v reflect.Value) error {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	kind := indexKindOf(v.Type())
	switch {
	case kind == IndexInvalid:
		return fmt.Errorf("%w: index %q of type %v", ErrUnsupportedValue, name, v.Type())
	case !kind.IsSet():
		addIndexScalar(ix, name, v)
	case v.Kind() == reflect.Slice:
		for i, n := 0, v.Len(); i < n; i++ {
			addIndexScalar(ix, name, v.Index(i))
		}
	default:
		keys := make([]reflect.Value, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if ev := iter.Value(); ev.Kind() == reflect.Bool && !ev.Bool() {
				continue
			}
			keys = append(keys, iter.Key())
		}
		slices.SortFunc(keys, compareScalars)
		for _, k := range keys {
			addIndexScalar(ix, name, k)
		}
	}
	return nil
}

func addIndexScalar(ix *Indexes, name string, v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		ix.AddBin(name, v.String())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		ix.AddInt(name, int64(v.Uint()))
	default:
		ix.AddInt(name, v.Int())
	}
}

func compareScalars(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return cmp.Compare(a.Uint(), b.Uint())
	default:
		return cmp.Compare(a.Int(), b.Int())
	}
}

// indexValueFrom builds a value of type t out of stored index values. Scalars
// take the first value; ok is false when there is nothing to write.
func indexValueFrom(t reflect.Type, kind IndexKind, bins []string, ints []int64) (v reflect.Value, ok bool, err error) {
	n := len(ints)
	if kind.IsBinary() {
		n = len(bins)
	}
	if n == 0 {
		return reflect.Value{}, false, nil
	}

	if !kind.IsSet() {
		v = reflect.New(t).Elem()
		return v, true, setIndexScalar(v, bins, ints, 0)
	}

	switch t.Kind() {
	case reflect.Slice:
		v = reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			if err := setIndexScalar(v.Index(i), bins, ints, i); err != nil {
				return reflect.Value{}, false, err
			}
		}
	case reflect.Map:
		v = reflect.MakeMapWithSize(t, n)
		member := reflect.New(t.Elem()).Elem()
		if member.Kind() == reflect.Bool {
			member.SetBool(true)
		}
		for i := 0; i < n; i++ {
			k := reflect.New(t.Key()).Elem()
			if err := setIndexScalar(k, bins, ints, i); err != nil {
				return reflect.Value{}, false, err
			}
			v.SetMapIndex(k, member)
		}
	default:
		return reflect.Value{}, false, fmt.Errorf("%w: %v is not a set", ErrUnsupportedValue, t)
	}
	return v, true, nil
}

func setIndexScalar(dst reflect.Value, bins []string, ints []int64, i int) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(bins[i])
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		if ints[i] < 0 || dst.OverflowUint(uint64(ints[i])) {
			return fmt.Errorf("%w: %d overflows %v", ErrUnsupportedValue, ints[i], dst.Type())
		}
		dst.SetUint(uint64(ints[i]))
	default:
		if dst.OverflowInt(ints[i]) {
			return fmt.Errorf("%w: %d overflows %v", ErrUnsupportedValue, ints[i], dst.Type())
		}
		dst.SetInt(ints[i])
	}
	return nil
}
