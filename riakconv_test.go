package riakconv

import (
	"errors"
	"log/slog"
	"reflect"
	"testing"
)

type (
	Plain struct {
		A int
		B string
	}

	Root struct {
		ID string `riak:"key" msgpack:"-" json:"-" yaml:"-"`
	}

	Leaf struct {
		Root
		Ctx    []byte `riak:"vclock" msgpack:"-" json:"-" yaml:"-"`
		Tag    string `riak:"usermeta,key=tag" msgpack:"-" json:"-" yaml:"-"`
		Points int    `msgpack:"p" json:"p" yaml:"p"`
	}

	Base struct {
		ID    string            `riak:"key"`
		Gone  bool              `riak:"tombstone"`
		Meta  map[string]string `riak:"usermeta"`
		Color string            `riak:"index,name=color"`
	}

	Derived struct {
		Base
		Code  string            `riak:"key"`
		Extra map[string]string `riak:"usermeta"`
		Size  int               `riak:"index,name=size"`
	}

	IntClock struct {
		Clock int `riak:"vclock"`
	}

	IfaceClock struct {
		Clock VClock `riak:"vclock"`
	}

	NamedClock struct {
		Clock BasicVClock `riak:"vclock"`
	}

	StringTombstone struct {
		Deleted string `riak:"tombstone"`
	}

	BoolTombstone struct {
		Deleted bool `riak:"tombstone"`
	}

	FloatIndexMethod struct {
		V float64
	}

	Metas struct {
		First  string            `riak:"usermeta,key=first"`
		Second string            `riak:"usermeta,key=second"`
		All    map[string]string `riak:"usermeta"`
		Other  map[string]string `riak:"usermeta"`
	}

	BadTag struct {
		X string `riak:"primary"`
	}

	KeyMethods struct {
		id string
	}

	hidden struct {
		key   string   `riak:"key"`
		links []Link   `riak:"links"`
		tags  []string `riak:"index,name=tags"`
	}

	WithHidden struct {
		*hidden
		Name string
	}
)

func (l *Leaf) Score() int { return l.Points }

func (*Leaf) RiakMethodRoles() map[string]string {
	return map[string]string{"Score": "index,name=score"}
}

func (f *FloatIndexMethod) Ratio() float64 { return f.V }

func (f *FloatIndexMethod) Label() string { return "x" }

func (f *FloatIndexMethod) Unnamed() string { return "y" }

func (*FloatIndexMethod) RiakMethodRoles() map[string]string {
	return map[string]string{
		"Ratio":   "index,name=ratio",
		"Label":   "index,name=label",
		"Unnamed": "index",
	}
}

func (k *KeyMethods) GetKey() string       { return k.id }
func (k *KeyMethods) SetKey(id string)     { k.id = id }
func (k *KeyMethods) OtherKey() string     { return "other" }
func (k *KeyMethods) BadSetter(id int)     {}
func (k *KeyMethods) Echo(s string) string { return s }

func (*KeyMethods) RiakMethodRoles() map[string]string {
	return map[string]string{
		"GetKey":    "key",
		"SetKey":    "key",
		"OtherKey":  "key",
		"BadSetter": "key",
		"Echo":      "key",
	}
}

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func configErr(t testing.TB, err error, role Role) *ConfigError {
	t.Helper()
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("** got %T %v, wanted *ConfigError", err, err)
	}
	if ce.Role != role {
		t.Errorf("** got role %v, wanted %v", ce.Role, role)
	}
	return ce
}

func conversionErr(t testing.TB, err error, role Role, target error) *ConversionError {
	t.Helper()
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("** got %T %v, wanted *ConversionError", err, err)
	}
	if ce.Role != role {
		t.Errorf("** got role %v, wanted %v", ce.Role, role)
	}
	if target != nil && !errors.Is(err, target) {
		t.Errorf("** got %v, wanted errors.Is %v", err, target)
	}
	return ce
}

func accName(acc Accessor) string {
	if acc == nil {
		return "<nil>"
	}
	return acc.Name()
}
