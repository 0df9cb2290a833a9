package riakconv

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
)

// Converter turns domain instances into persisted Objects and back.
type Converter[T any] interface {
	FromDomain(bucket string, obj *T, vclock VClock) (*Object, error)
	ToDomain(o *Object) (*T, error)
}

const (
	opFromDomain = "fromDomain"
	opToDomain   = "toDomain"
)

type ConverterOptions struct {
	// Encoding of Object.Value. ToDomain still honors a recognized
	// Object.ContentType.
	Encoding Encoding
	// ContentType overrides the encoding's default content type.
	ContentType string
	// Metrics defaults to DefaultMetrics().
	Metrics *Metrics
}

// ReflectConverter is the default Converter, driven by T's Descriptor.
type ReflectConverter[T any] struct {
	desc        *Descriptor
	roleFields  [][]int // zeroed in the payload
	enc         Encoding
	contentType string
	metrics     *Metrics
}

var _ Converter[struct{}] = (*ReflectConverter[struct{}])(nil)

// NewConverter returns a ReflectConverter for T, or the ConfigError of T's
// scan.
func NewConverter[T any](opt ConverterOptions) (*ReflectConverter[T], error) {
	desc, err := DescriptorOf[T]()
	if err != nil {
		return nil, err
	}
	c := &ReflectConverter[T]{
		desc:        desc,
		roleFields:  roleFieldPaths(desc),
		enc:         opt.Encoding,
		contentType: opt.ContentType,
		metrics:     opt.Metrics,
	}
	if c.contentType == "" {
		c.contentType = c.enc.ContentType()
	}
	if c.metrics == nil {
		c.metrics = defaultMetrics
	}
	return c, nil
}

func MustConverter[T any](opt ConverterOptions) *ReflectConverter[T] {
	return must(NewConverter[T](opt))
}

func (c *ReflectConverter[T]) Descriptor() *Descriptor {
	return c.desc
}

func (c *ReflectConverter[T]) FromDomain(bucket string, obj *T, vclock VClock) (*Object, error) {
	o, err := c.fromDomain(bucket, obj, vclock)
	c.metrics.observeConversion(opFromDomain, err)
	return o, err
}

func (c *ReflectConverter[T]) ToDomain(o *Object) (*T, error) {
	obj, err := c.toDomain(o)
	c.metrics.observeConversion(opToDomain, err)
	return obj, err
}

func (c *ReflectConverter[T]) fromDomain(bucket string, obj *T, vclock VClock) (*Object, error) {
	o := &Object{Bucket: bucket, ContentType: c.contentType}
	fail := func(role Role, err error, format string, args ...any) (*Object, error) {
		return nil, &ConversionError{opFromDomain, c.desc.typ, bucket, o.Key, role, fmt.Sprintf(format, args...), err}
	}
	if obj == nil {
		return fail(RoleNone, ErrUnsupportedValue, "nil instance")
	}
	d := c.desc
	rowVal := reflect.ValueOf(obj)

	if acc := d.key; acc != nil {
		v, err := acc.Get(rowVal)
		if err != nil {
			return fail(RoleKey, err, "%s", acc.Name())
		}
		if v.Kind() != reflect.String {
			return fail(RoleKey, ErrUnsupportedValue, "%s is %v, not a string", acc.Name(), v.Type())
		}
		if v.String() == "" {
			return fail(RoleKey, ErrNoKey, "%s is empty", acc.Name())
		}
		o.Key = v.String()
	}

	value, err := c.enc.EncodeValue(nil, c.payloadOf(rowVal))
	if err != nil {
		return fail(RoleNone, err, "payload")
	}
	o.Value = value

	if vclock != nil {
		o.VClock = vclock
	} else if acc := d.vclock; acc != nil {
		v, err := acc.Get(rowVal)
		if err != nil {
			return fail(RoleVClock, err, "%s", acc.Name())
		}
		if o.VClock, err = vclockFromValue(v); err != nil {
			return fail(RoleVClock, err, "%s", acc.Name())
		}
	}

	if acc := d.tombstone; acc != nil {
		v, err := acc.Get(rowVal)
		if err != nil {
			return fail(RoleTombstone, err, "%s", acc.Name())
		}
		o.Deleted = v.Bool()
	}

	if acc := d.usermetaMap; acc != nil {
		v, err := acc.Get(rowVal)
		if err != nil {
			return fail(RoleUsermeta, err, "%s", acc.Name())
		}
		if !isStringMap(v.Type()) {
			return fail(RoleUsermeta, ErrUnsupportedValue, "%s is %v, not a map of strings", acc.Name(), v.Type())
		}
		iter := v.MapRange()
		for iter.Next() {
			o.SetUsermeta(iter.Key().String(), iter.Value().String())
		}
	}
	for _, item := range d.usermetaItems {
		v, err := item.Accessor.Get(rowVal)
		if err != nil {
			return fail(RoleUsermeta, err, "%s", item.Accessor.Name())
		}
		s, err := usermetaString(v)
		if err != nil {
			return fail(RoleUsermeta, err, "%s", item.Accessor.Name())
		}
		o.SetUsermeta(item.Key, s)
	}

	for _, ia := range d.indexes {
		v, err := ia.Accessor.Get(rowVal)
		if err != nil {
			return fail(RoleIndex, err, "%s", ia.Accessor.Name())
		}
		if err := appendIndexValues(&o.Indexes, ia.Name, v); err != nil {
			return fail(RoleIndex, err, "%s", ia.Accessor.Name())
		}
	}

	if acc := d.links; acc != nil {
		v, err := acc.Get(rowVal)
		if err != nil {
			return fail(RoleLinks, err, "%s", acc.Name())
		}
		if !v.Type().ConvertibleTo(linksType) {
			return fail(RoleLinks, ErrUnsupportedValue, "%s is %v, not []riakconv.Link", acc.Name(), v.Type())
		}
		o.Links = slices.Clone(v.Convert(linksType).Interface().([]Link))
	}

	return o, nil
}

func (c *ReflectConverter[T]) toDomain(o *Object) (*T, error) {
	if o == nil {
		return nil, &ConversionError{Op: opToDomain, Type: c.desc.typ, Msg: "nil object", Err: ErrUnsupportedValue}
	}
	fail := func(role Role, err error, format string, args ...any) (*T, error) {
		return nil, &ConversionError{opToDomain, c.desc.typ, o.Bucket, o.Key, role, fmt.Sprintf(format, args...), err}
	}
	d := c.desc
	obj := new(T)
	rowVal := reflect.ValueOf(obj)

	if len(o.Value) > 0 {
		enc := c.enc
		if e, ok := EncodingForContentType(o.ContentType); ok {
			enc = e
		}
		var err error
		if perr := safelyCall("payload", func() { err = enc.DecodeValue(o.Value, rowVal) }); perr != nil {
			err = perr
		}
		if err != nil {
			return fail(RoleNone, err, "malformed payload")
		}
	}

	if acc := d.key; acc != nil && acc.CanSet() {
		if err := acc.Set(rowVal, reflect.ValueOf(o.Key)); err != nil {
			return fail(RoleKey, err, "%s", acc.Name())
		}
	}

	if acc := d.vclock; acc != nil && o.VClock != nil {
		v := reflect.ValueOf(BasicVClock(slices.Clone(o.VClock.Bytes())))
		if err := acc.Set(rowVal, v); err != nil {
			return fail(RoleVClock, err, "%s", acc.Name())
		}
	}

	if acc := d.tombstone; acc != nil {
		if err := acc.Set(rowVal, reflect.ValueOf(o.Deleted)); err != nil {
			return fail(RoleTombstone, err, "%s", acc.Name())
		}
	}

	claimed := make(map[string]bool, len(d.usermetaItems))
	for _, item := range d.usermetaItems {
		claimed[item.Key] = true
		s, found := o.Usermeta[item.Key]
		if !found {
			continue
		}
		v, err := usermetaValue(item.Accessor.Type(), s)
		if err == nil {
			err = item.Accessor.Set(rowVal, v)
		}
		if err != nil {
			return fail(RoleUsermeta, err, "%s", item.Accessor.Name())
		}
	}
	if acc := d.usermetaMap; acc != nil {
		mt := acc.Type()
		if !isStringMap(mt) {
			return fail(RoleUsermeta, ErrUnsupportedValue, "%s is %v, not a map of strings", acc.Name(), mt)
		}
		m := reflect.MakeMapWithSize(mt, len(o.Usermeta))
		for k, s := range o.Usermeta {
			if claimed[k] {
				continue
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(mt.Key()), reflect.ValueOf(s).Convert(mt.Elem()))
		}
		if m.Len() > 0 {
			if err := acc.Set(rowVal, m); err != nil {
				return fail(RoleUsermeta, err, "%s", acc.Name())
			}
		}
	}

	for _, ia := range d.indexes {
		if ia.Kind == IndexInvalid || !ia.Accessor.CanSet() {
			continue
		}
		v, ok, err := indexValueFrom(ia.Accessor.Type(), ia.Kind, o.Indexes.Bin(ia.Name), o.Indexes.Int(ia.Name))
		if err == nil && ok {
			err = ia.Accessor.Set(rowVal, v)
		}
		if err != nil {
			return fail(RoleIndex, err, "%s", ia.Accessor.Name())
		}
	}

	if acc := d.links; acc != nil && len(o.Links) > 0 {
		if !linksType.ConvertibleTo(acc.Type()) {
			return fail(RoleLinks, ErrUnsupportedValue, "%s is %v, not []riakconv.Link", acc.Name(), acc.Type())
		}
		v := reflect.ValueOf(slices.Clone(o.Links)).Convert(acc.Type())
		if err := acc.Set(rowVal, v); err != nil {
			return fail(RoleLinks, err, "%s", acc.Name())
		}
	}

	return obj, nil
}

// roleFieldPaths lists the fields whose values travel outside the payload:
// key, vclock, tombstone, usermeta and links. Index fields stay in the
// payload, since not every index value can be restored from the index.
// Method and closure bindings name no storage and are not listed.
func roleFieldPaths(d *Descriptor) [][]int {
	var paths [][]int
	add := func(acc Accessor) {
		if fa, ok := acc.(*fieldAccessor); ok {
			paths = append(paths, fa.path)
		}
	}
	add(d.key)
	add(d.vclock)
	add(d.tombstone)
	add(d.usermetaMap)
	for _, item := range d.usermetaItems {
		add(item.Accessor)
	}
	add(d.links)
	return paths
}

// payloadOf returns the value to encode as the payload: rowVal itself, or a
// copy with role fields zeroed. Embedded pointers on the way to a role field
// are copied too, so rowVal is never modified.
func (c *ReflectConverter[T]) payloadOf(rowVal reflect.Value) reflect.Value {
	if len(c.roleFields) == 0 {
		return rowVal
	}
	cp := reflect.New(rowVal.Type().Elem())
	cp.Elem().Set(rowVal.Elem())
	for _, path := range c.roleFields {
		clearField(cp.Elem(), path)
	}
	return cp
}

func clearField(v reflect.Value, path []int) {
	last := len(path) - 1
	for _, idx := range path[:last] {
		v = exposed(v.Field(idx))
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return
			}
			cp := reflect.New(v.Type().Elem())
			cp.Elem().Set(v.Elem())
			v.Set(cp)
			v = cp.Elem()
		}
	}
	exposed(v.Field(path[last])).SetZero()
}

// vclockFromValue reads a vclock member: a byte slice, or an interface
// holding a VClock or a byte slice.
func vclockFromValue(v reflect.Value) (VClock, error) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
		if vc, ok := v.Interface().(VClock); ok {
			return vc, nil
		}
	}
	if !isByteSlice(v.Type()) {
		return nil, fmt.Errorf("%w: vclock of type %v", ErrUnsupportedValue, v.Type())
	}
	if v.Len() == 0 {
		return nil, nil
	}
	return BasicVClock(slices.Clone(v.Bytes())), nil
}

func isStringMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String && t.Elem().Kind() == reflect.String
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// usermetaString renders a usermeta item value; strings and
// encoding.TextMarshaler values are supported.
func usermetaString(v reflect.Value) (string, error) {
	if v.Kind() == reflect.String {
		return v.String(), nil
	}
	if v.Type().Implements(textMarshalerType) && v.CanInterface() {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return "", nil
		}
		raw, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		return string(raw), err
	}
	return "", fmt.Errorf("%w: usermeta of type %v", ErrUnsupportedValue, v.Type())
}

func usermetaValue(t reflect.Type, s string) (reflect.Value, error) {
	if t.Kind() == reflect.String {
		return reflect.ValueOf(s).Convert(t), nil
	}
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: usermeta of type %v", ErrUnsupportedValue, t)
}

// ConverterFuncs adapts a pair of functions to Converter, for types that
// bypass descriptors entirely.
type ConverterFuncs[T any] struct {
	From func(bucket string, obj *T, vclock VClock) (*Object, error)
	To   func(o *Object) (*T, error)
}

func (f ConverterFuncs[T]) FromDomain(bucket string, obj *T, vclock VClock) (*Object, error) {
	return f.From(bucket, obj, vclock)
}

func (f ConverterFuncs[T]) ToDomain(o *Object) (*T, error) {
	return f.To(o)
}
