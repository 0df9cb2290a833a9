/*
Package riakconv maps Go structs to and from Riak-style stored records
(Object: a payload plus a key, a vector clock, usermeta, secondary indexes and
links).

We implement:

1. Role scanning. A struct type is inspected once; members tagged with
`riak:"..."` become the key, the vector clock (causal context), the tombstone
flag, usermeta entries, secondary index values, or links. The result is an
immutable Descriptor cached per type.

2. Conversion. ReflectConverter uses a Descriptor to build an Object from an
instance (FromDomain) and to materialize an instance from an Object
(ToDomain). Custom Converter implementations do not need descriptors at all.

# Role markers

	type Root struct {
		ID string `riak:"key" msgpack:"-"`
	}

	type Leaf struct {
		Root
		Ctx    []byte            `riak:"vclock" msgpack:"-"`
		Gone   bool              `riak:"tombstone" msgpack:"-"`
		Tag    string            `riak:"usermeta,key=tag" msgpack:"-"`
		Meta   map[string]string `riak:"usermeta" msgpack:"-"`
		Email  string            `riak:"index,name=email"`
		Links  []riakconv.Link   `riak:"links" msgpack:"-"`
		Points int               `msgpack:"p"`
	}

**Hierarchy.** Embedded structs play the part of ancestors. Own fields are
level 0, fields of embedded structs are level 1, and so on. For key, vclock,
tombstone, the usermeta map and links the shallowest member wins; usermeta
items and indexes accumulate from every level, once per embedding path.

**Shapes.** The vclock must be a byte slice or an interface that a VClock can
be assigned to (VClock itself or any), and the
tombstone must be a bool; anything else fails the scan with a ConfigError.
Other shapes are checked per conversion and fail with a ConversionError.

**Methods.** Go methods cannot be tagged, so a type lists method roles by
implementing MethodRoles:

	func (*Leaf) RiakMethodRoles() map[string]string {
		return map[string]string{"Score": "index,name=score"}
	}

An index method must take no arguments and return a string, an integer, an
int64 or a set (slice or map[E]struct{}) of those; other methods are skipped
without an error. A key getter returns a string; a key setter takes a single
string and returns nothing. A key field takes precedence over key methods.

**Unexported fields.** Roles may sit on unexported fields; accessors reach
them through their address.

# Explicit registration

Types that should not be scanned, or whose roles live behind closures, can
assemble a Descriptor by hand and publish it before first use:

	var _ = riakconv.MustRegister(riakconv.Inherit(
		riakconv.NewDescriptorBuilder[Leaf]().
			Key(func(l *Leaf) string { return l.code }, func(l *Leaf, k string) { l.code = k }).
			IntIndex("score", func(l *Leaf) int64 { return int64(l.Points) }, nil),
		rootDesc, func(l *Leaf) *Root { return &l.Root }))

Own bindings win over inherited ones, as with scanning.

# Encoding

Object.Value is msgpack by default, JSON or YAML on request. ToDomain picks
the decoder from Object.ContentType when it is recognized.

Key, vclock, tombstone, usermeta and links fields are zeroed in the payload,
since they travel in the Object itself; index fields are kept. Roles bound to
methods or builder closures do not name a field, so their storage is encoded
as usual.
*/
package riakconv
