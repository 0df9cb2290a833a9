package riakconv

import (
	"fmt"
	"reflect"
)

// DescriptorBuilder assembles a Descriptor for T out of explicit get/set
// closures instead of struct tags. Register publishes the result so that
// DescriptorOf[T] and NewConverter[T] use it without scanning T.
//
// Own bindings always win over inherited ones, regardless of call order.
type DescriptorBuilder[T any] struct {
	typ       reflect.Type
	own       Descriptor
	inherited []*Descriptor
	err       error
}

func NewDescriptorBuilder[T any]() *DescriptorBuilder[T] {
	typ := reflect.TypeFor[T]()
	b := &DescriptorBuilder[T]{typ: typ}
	if typ.Kind() != reflect.Struct {
		b.err = configErrf(typ, "", RoleNone, nil, "not a struct")
	}
	return b
}

func (b *DescriptorBuilder[T]) fail(role Role, label string, format string, args ...any) *DescriptorBuilder[T] {
	if b.err == nil {
		b.err = configErrf(b.typ, label, role, nil, format, args...)
	}
	return b
}

func (b *DescriptorBuilder[T]) single(role Role, slot *Accessor, acc Accessor) *DescriptorBuilder[T] {
	if *slot != nil {
		return b.fail(role, acc.Name(), "already bound to %s", (*slot).Name())
	}
	*slot = acc
	return b
}

// Key binds the key. set may be nil for a read-only key.
func (b *DescriptorBuilder[T]) Key(get func(*T) string, set func(*T, string)) *DescriptorBuilder[T] {
	if get == nil {
		return b.fail(RoleKey, "", "nil getter")
	}
	return b.single(RoleKey, &b.own.key, newFuncAccessor(b.typ, "key", get, set))
}

func (b *DescriptorBuilder[T]) VClock(get func(*T) VClock, set func(*T, VClock)) *DescriptorBuilder[T] {
	if get == nil {
		return b.fail(RoleVClock, "", "nil getter")
	}
	return b.single(RoleVClock, &b.own.vclock, newFuncAccessor(b.typ, "vclock", get, set))
}

func (b *DescriptorBuilder[T]) Tombstone(get func(*T) bool, set func(*T, bool)) *DescriptorBuilder[T] {
	if get == nil {
		return b.fail(RoleTombstone, "", "nil getter")
	}
	return b.single(RoleTombstone, &b.own.tombstone, newFuncAccessor(b.typ, "tombstone", get, set))
}

func (b *DescriptorBuilder[T]) UsermetaMap(get func(*T) map[string]string, set func(*T, map[string]string)) *DescriptorBuilder[T] {
	if get == nil {
		return b.fail(RoleUsermeta, "", "nil getter")
	}
	return b.single(RoleUsermeta, &b.own.usermetaMap, newFuncAccessor(b.typ, "usermeta", get, set))
}

// Usermeta binds a single usermeta entry.
func (b *DescriptorBuilder[T]) Usermeta(key string, get func(*T) string, set func(*T, string)) *DescriptorBuilder[T] {
	if key == "" || get == nil {
		return b.fail(RoleUsermeta, key, "usermeta item needs a key and a getter")
	}
	b.own.usermetaItems = append(b.own.usermetaItems, UsermetaItem{key, newFuncAccessor(b.typ, "usermeta["+key+"]", get, set)})
	return b
}

func (b *DescriptorBuilder[T]) StringIndex(name string, get func(*T) string, set func(*T, string)) *DescriptorBuilder[T] {
	return addFuncIndex(b, name, IndexString, get, set)
}

func (b *DescriptorBuilder[T]) IntIndex(name string, get func(*T) int64, set func(*T, int64)) *DescriptorBuilder[T] {
	return addFuncIndex(b, name, IndexLong, get, set)
}

func (b *DescriptorBuilder[T]) StringSetIndex(name string, get func(*T) []string, set func(*T, []string)) *DescriptorBuilder[T] {
	return addFuncIndex(b, name, IndexStringSet, get, set)
}

func (b *DescriptorBuilder[T]) IntSetIndex(name string, get func(*T) []int64, set func(*T, []int64)) *DescriptorBuilder[T] {
	return addFuncIndex(b, name, IndexLongSet, get, set)
}

func addFuncIndex[T, V any](b *DescriptorBuilder[T], name string, kind IndexKind, get func(*T) V, set func(*T, V)) *DescriptorBuilder[T] {
	if name == "" || get == nil {
		return b.fail(RoleIndex, name, "index needs a name and a getter")
	}
	b.own.indexes = append(b.own.indexes, IndexAccessor{name, newFuncAccessor(b.typ, "index["+name+"]", get, set), kind})
	return b
}

func (b *DescriptorBuilder[T]) Links(get func(*T) []Link, set func(*T, []Link)) *DescriptorBuilder[T] {
	if get == nil {
		return b.fail(RoleLinks, "", "nil getter")
	}
	return b.single(RoleLinks, &b.own.links, newFuncAccessor(b.typ, "links", get, set))
}

// Inherit adds the roles of base, a Descriptor of an ancestor type B reached
// through proj. Singleton roles of base apply only where T binds none;
// usermeta items and indexes accumulate after T's own. proj may return nil
// on reads; writes need a non-nil *B.
func Inherit[T, B any](b *DescriptorBuilder[T], base *Descriptor, proj func(*T) *B) *DescriptorBuilder[T] {
	if base == nil || proj == nil {
		return b.fail(RoleNone, "", "nil ancestor")
	}
	if base.typ != reflect.TypeFor[B]() {
		return b.fail(RoleNone, "", "ancestor descriptor is for %v, not %v", base.typ, reflect.TypeFor[B]())
	}
	project := func(acc Accessor) Accessor {
		if acc == nil {
			return nil
		}
		return &projectedAccessor[T, B]{acc, proj}
	}
	d := &Descriptor{
		typ:         base.typ,
		key:         project(base.key),
		vclock:      project(base.vclock),
		tombstone:   project(base.tombstone),
		usermetaMap: project(base.usermetaMap),
		links:       project(base.links),
	}
	for _, item := range base.usermetaItems {
		d.usermetaItems = append(d.usermetaItems, UsermetaItem{item.Key, project(item.Accessor)})
	}
	for _, ia := range base.indexes {
		d.indexes = append(d.indexes, IndexAccessor{ia.Name, project(ia.Accessor), ia.Kind})
	}
	b.inherited = append(b.inherited, d)
	return b
}

// Build returns the assembled Descriptor, or the first ConfigError recorded
// by the binding calls.
func (b *DescriptorBuilder[T]) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := &Descriptor{
		typ:           b.typ,
		key:           b.own.key,
		vclock:        b.own.vclock,
		tombstone:     b.own.tombstone,
		usermetaMap:   b.own.usermetaMap,
		usermetaItems: append([]UsermetaItem(nil), b.own.usermetaItems...),
		indexes:       append([]IndexAccessor(nil), b.own.indexes...),
		links:         b.own.links,
	}
	for _, base := range b.inherited {
		d.key = firstAccessor(d.key, base.key)
		d.vclock = firstAccessor(d.vclock, base.vclock)
		d.tombstone = firstAccessor(d.tombstone, base.tombstone)
		d.usermetaMap = firstAccessor(d.usermetaMap, base.usermetaMap)
		d.links = firstAccessor(d.links, base.links)
		d.usermetaItems = append(d.usermetaItems, base.usermetaItems...)
		d.indexes = append(d.indexes, base.indexes...)
	}
	return d, nil
}

func firstAccessor(own, inherited Accessor) Accessor {
	if own != nil {
		return own
	}
	return inherited
}

// Register publishes d as the Descriptor of its type. It fails if the type
// already has a Descriptor, scanned or registered.
func Register(d *Descriptor) error {
	if d == nil || d.typ == nil {
		return configErrf(nil, "", RoleNone, nil, "nil descriptor")
	}
	if prev, loaded := descriptorCache.LoadOrStore(d.typ, d); loaded && prev != d {
		return configErrf(d.typ, "", RoleNone, nil, "already described")
	}
	return nil
}

// MustRegister builds and registers b's Descriptor, panicking on error. Meant
// for init functions.
func MustRegister[T any](b *DescriptorBuilder[T]) *Descriptor {
	d := must(b.Build())
	if err := Register(d); err != nil {
		panic(err)
	}
	return d
}

type funcAccessor[T, V any] struct {
	name string
	get  func(*T) V
	set  func(*T, V)
}

func newFuncAccessor[T, V any](owner reflect.Type, label string, get func(*T) V, set func(*T, V)) *funcAccessor[T, V] {
	return &funcAccessor[T, V]{owner.Name() + "." + label + "()", get, set}
}

func (fa *funcAccessor[T, V]) Name() string       { return fa.name }
func (fa *funcAccessor[T, V]) Type() reflect.Type { return reflect.TypeFor[V]() }
func (fa *funcAccessor[T, V]) CanSet() bool       { return fa.set != nil }

func (fa *funcAccessor[T, V]) Get(rowVal reflect.Value) (result reflect.Value, err error) {
	obj := rowVal.Interface().(*T)
	err = safelyCall(fa.name, func() {
		v := fa.get(obj)
		result = reflect.ValueOf(&v).Elem()
	})
	return result, err
}

func (fa *funcAccessor[T, V]) Set(rowVal, val reflect.Value) error {
	if fa.set == nil {
		return fmt.Errorf("%s: %w", fa.name, ErrReadOnly)
	}
	var v V
	if val.IsValid() {
		cv, err := assignableTo(val, fa.Type())
		if err != nil {
			return fmt.Errorf("%s: %w", fa.name, err)
		}
		reflect.ValueOf(&v).Elem().Set(cv)
	}
	obj := rowVal.Interface().(*T)
	return safelyCall(fa.name, func() {
		fa.set(obj, v)
	})
}

// projectedAccessor applies an ancestor's accessor to the *B that proj finds
// inside a *T.
type projectedAccessor[T, B any] struct {
	Accessor
	proj func(*T) *B
}

func (pa *projectedAccessor[T, B]) Get(rowVal reflect.Value) (reflect.Value, error) {
	base := pa.proj(rowVal.Interface().(*T))
	if base == nil {
		return reflect.Zero(pa.Type()), nil
	}
	return pa.Accessor.Get(reflect.ValueOf(base))
}

func (pa *projectedAccessor[T, B]) Set(rowVal, val reflect.Value) error {
	base := pa.proj(rowVal.Interface().(*T))
	if base == nil {
		return fmt.Errorf("%s: %w: nil %v", pa.Name(), ErrUnsupportedValue, reflect.TypeFor[B]())
	}
	return pa.Accessor.Set(reflect.ValueOf(base), val)
}
