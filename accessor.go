package riakconv

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"unsafe"
)

// Accessor reads and writes one role value on an instance. rowVal is always
// a non-nil *T for the type the accessor was built for.
type Accessor interface {
	// Name is "Owner.Field" for fields, "Owner.Method()" for methods and
	// "Owner.role()" for builder closures.
	Name() string
	// Type is the type of the value returned by Get.
	Type() reflect.Type
	Get(rowVal reflect.Value) (reflect.Value, error)
	Set(rowVal, val reflect.Value) error
	CanSet() bool
}

type fieldAccessor struct {
	name string
	typ  reflect.Type
	path []int
}

// newFieldAccessor resolves path (as in reflect.Type.FieldByIndex) starting at
// the struct type root. Every intermediate step must be an embedded struct or
// a pointer to one; unexported steps are fine.
func newFieldAccessor(root reflect.Type, path []int) (*fieldAccessor, error) {
	t := root
	var owner reflect.Type
	var sf reflect.StructField
	for i, idx := range path {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("cannot reach field %d of %v: not a struct", idx, t)
		}
		if idx < 0 || idx >= t.NumField() {
			return nil, fmt.Errorf("field index %d out of range for %v", idx, t)
		}
		owner, sf = t, t.Field(idx)
		if i < len(path)-1 {
			t = sf.Type
		}
	}
	if owner == nil {
		return nil, fmt.Errorf("empty field path in %v", root)
	}
	return &fieldAccessor{
		name: owner.Name() + "." + sf.Name,
		typ:  sf.Type,
		path: append([]int(nil), path...),
	}, nil
}

func (fa *fieldAccessor) Name() string       { return fa.name }
func (fa *fieldAccessor) Type() reflect.Type { return fa.typ }
func (fa *fieldAccessor) CanSet() bool       { return true }

func (fa *fieldAccessor) Get(rowVal reflect.Value) (reflect.Value, error) {
	v := rowVal.Elem()
	last := len(fa.path) - 1
	for _, idx := range fa.path[:last] {
		v = v.Field(idx)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Zero(fa.typ), nil
			}
			v = v.Elem()
		}
	}
	return exposed(v.Field(fa.path[last])), nil
}

func (fa *fieldAccessor) Set(rowVal, val reflect.Value) error {
	v := rowVal.Elem()
	last := len(fa.path) - 1
	for _, idx := range fa.path[:last] {
		v = v.Field(idx)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				exposed(v).Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
	}
	f := exposed(v.Field(fa.path[last]))
	if !val.IsValid() {
		f.SetZero()
		return nil
	}
	val, err := assignableTo(val, fa.typ)
	if err != nil {
		return fmt.Errorf("%s: %w", fa.name, err)
	}
	f.Set(val)
	return nil
}

// exposed makes an addressable field value settable even when it was reached
// through unexported fields.
func exposed(f reflect.Value) reflect.Value {
	if f.CanSet() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}

// assignableTo converts val to t when both share a kind, e.g. a string into
// a named string type.
func assignableTo(val reflect.Value, t reflect.Type) (reflect.Value, error) {
	vt := val.Type()
	if vt.AssignableTo(t) {
		return val, nil
	}
	if vt.Kind() == t.Kind() && vt.ConvertibleTo(t) {
		return val.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot assign %v to %v", ErrUnsupportedValue, vt, t)
}

// methodAccessor is backed by a getter and optionally a setter from the
// method set of *T.
type methodAccessor struct {
	name   string
	typ    reflect.Type
	getter reflect.Value // func(*T) V, may be invalid
	setter reflect.Value // func(*T, V), may be invalid
}

func newMethodAccessor(owner reflect.Type, getter, setter *reflect.Method) *methodAccessor {
	ma := &methodAccessor{}
	if getter != nil {
		ma.name = owner.Name() + "." + getter.Name + "()"
		ma.typ = getter.Type.Out(0)
		ma.getter = getter.Func
	}
	if setter != nil {
		if ma.name == "" {
			ma.name = owner.Name() + "." + setter.Name + "()"
			ma.typ = setter.Type.In(1)
		}
		ma.setter = setter.Func
	}
	return ma
}

func (ma *methodAccessor) Name() string       { return ma.name }
func (ma *methodAccessor) Type() reflect.Type { return ma.typ }
func (ma *methodAccessor) CanSet() bool       { return ma.setter.IsValid() }

func (ma *methodAccessor) Get(rowVal reflect.Value) (result reflect.Value, err error) {
	if !ma.getter.IsValid() {
		return reflect.Value{}, fmt.Errorf("%s: %w", ma.name, ErrWriteOnly)
	}
	err = safelyCall(ma.name, func() {
		result = ma.getter.Call([]reflect.Value{rowVal})[0]
	})
	return result, err
}

func (ma *methodAccessor) Set(rowVal, val reflect.Value) error {
	if !ma.setter.IsValid() {
		return fmt.Errorf("%s: %w", ma.name, ErrReadOnly)
	}
	argType := ma.setter.Type().In(1)
	if !val.IsValid() {
		val = reflect.Zero(argType)
	}
	val, err := assignableTo(val, argType)
	if err != nil {
		return fmt.Errorf("%s: %w", ma.name, err)
	}
	return safelyCall(ma.name, func() {
		ma.setter.Call([]reflect.Value{rowVal, val})
	})
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(name string, f func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: %w", name, panicked{p, string(debug.Stack())})
		}
	}()
	f()
	return nil
}
