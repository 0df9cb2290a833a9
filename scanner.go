package riakconv

import (
	"log/slog"
	"reflect"
	"slices"
)

var (
	vclockType  = reflect.TypeFor[VClock]()
	linksType   = reflect.TypeFor[[]Link]()
	methodRoles = reflect.TypeFor[MethodRoles]()
)

type scanner struct {
	typ  reflect.Type
	desc *Descriptor

	keyGetter *reflect.Method
	keySetter *reflect.Method
}

type scanLevel struct {
	typ   reflect.Type
	path  []int
	chain []reflect.Type // embedding ancestry, typ included
}

// scan builds the Descriptor of struct type typ. Fields are visited level by
// level: typ's own fields first, then the fields of embedded structs, then
// theirs. For singleton roles the first (shallowest) occurrence wins.
//
// A struct embedded along several paths is walked once per path, so its
// usermeta items and indexes accumulate once per path; only embedding cycles
// (through pointers) are cut.
func scan(typ reflect.Type) (*Descriptor, error) {
	s := &scanner{
		typ:  typ,
		desc: &Descriptor{typ: typ},
	}

	levels := []scanLevel{{typ: typ, chain: []reflect.Type{typ}}}
	for len(levels) > 0 {
		var next []scanLevel
		for _, lvl := range levels {
			for i, n := 0, lvl.typ.NumField(); i < n; i++ {
				sf := lvl.typ.Field(i)
				path := append(slices.Clone(lvl.path), i)
				tag, tagged := sf.Tag.Lookup(TagName)

				if sf.Anonymous && !tagged {
					et := sf.Type
					if et.Kind() == reflect.Pointer {
						et = et.Elem()
					}
					if et.Kind() == reflect.Struct && !slices.Contains(lvl.chain, et) {
						chain := append(slices.Clone(lvl.chain), et)
						next = append(next, scanLevel{typ: et, path: path, chain: chain})
					}
					continue
				}
				if !tagged {
					continue
				}

				m, err := parseMarker(tag)
				if err != nil {
					return nil, configErrf(typ, sf.Name, RoleNone, err, "invalid %s tag", TagName)
				}
				if m.role == RoleNone {
					continue
				}
				if err := s.field(sf, path, m); err != nil {
					return nil, err
				}
			}
		}
		levels = next
	}

	if err := s.methods(); err != nil {
		return nil, err
	}

	if s.desc.key == nil && (s.keyGetter != nil || s.keySetter != nil) {
		s.desc.key = newMethodAccessor(typ, s.keyGetter, s.keySetter)
	}

	slog.Debug("riakconv: described type", "type", typ.String(), "indexes", len(s.desc.indexes), "usermeta", len(s.desc.usermetaItems), "empty", s.desc.IsEmpty())
	return s.desc, nil
}

func (s *scanner) accessor(sf reflect.StructField, path []int, role Role) (*fieldAccessor, error) {
	fa, err := newFieldAccessor(s.typ, path)
	if err != nil {
		return nil, configErrf(s.typ, sf.Name, role, err, "inaccessible field")
	}
	return fa, nil
}

func (s *scanner) field(sf reflect.StructField, path []int, m marker) error {
	d := s.desc
	switch m.role {
	case RoleKey:
		if d.key != nil {
			return nil
		}
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		d.key = fa

	case RoleVClock:
		if d.vclock != nil {
			return nil
		}
		if !isByteSlice(sf.Type) && !vclockType.AssignableTo(sf.Type) {
			return configErrf(s.typ, sf.Name, m.role, nil, "must be []byte or hold a riakconv.VClock, got %v", sf.Type)
		}
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		d.vclock = fa

	case RoleTombstone:
		if d.tombstone != nil {
			return nil
		}
		if sf.Type.Kind() != reflect.Bool {
			return configErrf(s.typ, sf.Name, m.role, nil, "must be bool, got %v", sf.Type)
		}
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		d.tombstone = fa

	case RoleUsermeta:
		if m.key == "" && d.usermetaMap != nil {
			return nil
		}
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		if m.key != "" {
			d.usermetaItems = append(d.usermetaItems, UsermetaItem{Key: m.key, Accessor: fa})
		} else {
			d.usermetaMap = fa
		}

	case RoleIndex:
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		name := m.name
		if name == "" {
			name = sf.Name
		}
		d.indexes = append(d.indexes, IndexAccessor{Name: name, Accessor: fa, Kind: indexKindOf(sf.Type)})

	case RoleLinks:
		if d.links != nil {
			return nil
		}
		fa, err := s.accessor(sf, path, m.role)
		if err != nil {
			return err
		}
		d.links = fa
	}
	return nil
}

// methods picks up method-backed index and key roles declared through
// MethodRoles. Index methods of the wrong shape are skipped without error.
func (s *scanner) methods() error {
	pt := reflect.PointerTo(s.typ)
	if !pt.Implements(methodRoles) {
		return nil
	}
	var tags map[string]string
	err := safelyCall(s.typ.Name()+".RiakMethodRoles()", func() {
		tags = reflect.New(s.typ).Interface().(MethodRoles).RiakMethodRoles()
	})
	if err != nil {
		return configErrf(s.typ, "RiakMethodRoles", RoleNone, err, "cannot list method roles")
	}
	if len(tags) == 0 {
		return nil
	}

	for i, n := 0, pt.NumMethod(); i < n; i++ {
		meth := pt.Method(i)
		tag, ok := tags[meth.Name]
		if !ok {
			continue
		}
		m, err := parseMarker(tag)
		if err != nil {
			return configErrf(s.typ, meth.Name, RoleNone, err, "invalid method role")
		}
		mt := meth.Type // receiver is In(0)

		switch m.role {
		case RoleIndex:
			if m.name == "" || mt.NumIn() != 1 || mt.NumOut() != 1 {
				continue
			}
			kind := indexKindOf(mt.Out(0))
			if kind == IndexInvalid {
				continue
			}
			s.desc.indexes = append(s.desc.indexes, IndexAccessor{
				Name:     m.name,
				Accessor: newMethodAccessor(s.typ, &meth, nil),
				Kind:     kind,
			})

		case RoleKey:
			if mt.NumIn() == 1 && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.String {
				if s.keyGetter == nil {
					s.keyGetter = &meth
				}
			} else if mt.NumIn() == 2 && mt.NumOut() == 0 && mt.In(1).Kind() == reflect.String {
				if s.keySetter == nil {
					s.keySetter = &meth
				}
			}
		}
	}
	return nil
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
