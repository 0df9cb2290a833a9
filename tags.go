package riakconv

import (
	"fmt"
	"strings"
)

// TagName is the struct tag key holding role markers.
const TagName = "riak"

// Role identifies the part a struct member plays in persistence mapping.
type Role int

const (
	RoleNone Role = iota
	RoleKey
	RoleVClock
	RoleTombstone
	RoleUsermeta
	RoleIndex
	RoleLinks
)

var roleNames = [...]string{
	RoleNone:      "none",
	RoleKey:       "key",
	RoleVClock:    "vclock",
	RoleTombstone: "tombstone",
	RoleUsermeta:  "usermeta",
	RoleIndex:     "index",
	RoleLinks:     "links",
}

func (r Role) String() string {
	if r >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// marker is a parsed role marker, e.g. `riak:"usermeta,key=tag"` or
// `riak:"index,name=score"`.
type marker struct {
	role Role
	key  string // usermeta item key
	name string // index name
}

func (m marker) String() string {
	switch {
	case m.key != "":
		return m.role.String() + ",key=" + m.key
	case m.name != "":
		return m.role.String() + ",name=" + m.name
	default:
		return m.role.String()
	}
}

func parseMarker(tag string) (marker, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == "-" {
		return marker{}, nil
	}
	word, rest, _ := strings.Cut(tag, ",")
	var m marker
	switch strings.TrimSpace(word) {
	case "key":
		m.role = RoleKey
	case "vclock":
		m.role = RoleVClock
	case "tombstone":
		m.role = RoleTombstone
	case "usermeta":
		m.role = RoleUsermeta
	case "index":
		m.role = RoleIndex
	case "links":
		m.role = RoleLinks
	default:
		return marker{}, fmt.Errorf("unknown role %q", word)
	}

	for rest != "" {
		var opt string
		opt, rest, _ = strings.Cut(rest, ",")
		k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok {
			return marker{}, fmt.Errorf("%s: invalid option %q", m.role, opt)
		}
		switch {
		case k == "key" && m.role == RoleUsermeta:
			m.key = v
		case k == "name" && m.role == RoleIndex:
			m.name = v
		default:
			return marker{}, fmt.Errorf("%s: unknown option %q", m.role, k)
		}
	}
	return m, nil
}

// MethodRoles is implemented by types exposing roles through methods. The
// returned map keys are exported method names of the pointer type, values use
// the struct tag grammar; only "key" and "index,name=..." are honored on
// methods.
//
// RiakMethodRoles is called on a zero value, so it must not depend on state.
type MethodRoles interface {
	RiakMethodRoles() map[string]string
}
