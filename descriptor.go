package riakconv

import (
	"fmt"
	"reflect"
	"strings"
)

// Descriptor is the immutable set of role bindings of a struct type. Obtain
// one through DescriptorOf or DescriptorFor, which scan role markers, or
// assemble one with a DescriptorBuilder.
type Descriptor struct {
	typ           reflect.Type
	key           Accessor
	vclock        Accessor
	tombstone     Accessor
	usermetaMap   Accessor
	usermetaItems []UsermetaItem
	indexes       []IndexAccessor
	links         Accessor
}

// UsermetaItem binds a single usermeta entry to a member.
type UsermetaItem struct {
	Key      string
	Accessor Accessor
}

// IndexAccessor binds a secondary index to a member. Kind is IndexInvalid
// for fields whose type is not a supported index shape (e.g. an interface);
// such values are classified per conversion.
type IndexAccessor struct {
	Name     string
	Accessor Accessor
	Kind     IndexKind
}

func (d *Descriptor) Type() reflect.Type    { return d.typ }
func (d *Descriptor) Key() Accessor         { return d.key }
func (d *Descriptor) VClock() Accessor      { return d.vclock }
func (d *Descriptor) Tombstone() Accessor   { return d.tombstone }
func (d *Descriptor) UsermetaMap() Accessor { return d.usermetaMap }
func (d *Descriptor) Links() Accessor       { return d.links }

func (d *Descriptor) UsermetaItems() []UsermetaItem {
	return append([]UsermetaItem(nil), d.usermetaItems...)
}

func (d *Descriptor) Indexes() []IndexAccessor {
	return append([]IndexAccessor(nil), d.indexes...)
}

// IsEmpty reports whether no role was found.
func (d *Descriptor) IsEmpty() bool {
	return d.key == nil && d.vclock == nil && d.tombstone == nil && d.usermetaMap == nil &&
		d.links == nil && len(d.usermetaItems) == 0 && len(d.indexes) == 0
}

// String lists resolved roles one per line, in a stable order.
func (d *Descriptor) String() string {
	var buf strings.Builder
	buf.WriteString(d.typ.String())
	single := func(role Role, acc Accessor) {
		if acc != nil {
			fmt.Fprintf(&buf, "\n  %s: %s", role, acc.Name())
		}
	}
	single(RoleKey, d.key)
	single(RoleVClock, d.vclock)
	single(RoleTombstone, d.tombstone)
	single(RoleUsermeta, d.usermetaMap)
	for _, item := range d.usermetaItems {
		fmt.Fprintf(&buf, "\n  usermeta[%s]: %s", item.Key, item.Accessor.Name())
	}
	for _, ia := range d.indexes {
		fmt.Fprintf(&buf, "\n  index[%s]: %s %s", ia.Name, ia.Accessor.Name(), ia.Kind)
	}
	single(RoleLinks, d.links)
	return buf.String()
}
