package resources

import (
	"hash/fnv"
	"strings"
)

// Well-known mountpoints. Projects may register additional ones through the
// mount table.
const (
	MountRes  = "res:"
	MountUser = "user:"
	MountFS   = "fs:"
)

/**
 * @brief A canonical reference to a resource: a mountpoint (e.g. "res:")
 * plus an ordered list of path components.
 *
 * ResourcePath is an immutable value. Builders (Cd, WithMountpoint) return
 * new values; consumers can hold copies without synchronisation.
 */
type ResourcePath struct {
	mountpoint string
	components []string
}

// NewResourcePath parses a path string.
//
// "scheme://a/b" yields mountpoint "scheme:" with components [a b];
// the canonical single-slash form "scheme:/a/b" is accepted too. A leading
// "/" with no scheme normalises to the "fs:" mountpoint. Empty components
// produced by consecutive separators are dropped, so two spellings of the
// same location parse to equal values.
func NewResourcePath(s string) ResourcePath {
	rp := ResourcePath{}
	rest := s
	if i := strings.Index(s, "://"); i > 0 {
		rp.mountpoint = s[:i+1]
		rest = s[i+3:]
	} else if i := strings.Index(s, ":/"); i > 0 {
		rp.mountpoint = s[:i+1]
		rest = s[i+2:]
	} else if strings.HasPrefix(s, "/") {
		rp.mountpoint = MountFS
		rest = s[1:]
	}
	for _, c := range strings.Split(rest, "/") {
		if c != "" {
			rp.components = append(rp.components, c)
		}
	}
	return rp
}

func (rp ResourcePath) Mountpoint() string {
	return rp.mountpoint
}

// Components returns a copy of the component list.
func (rp ResourcePath) Components() []string {
	out := make([]string, len(rp.components))
	copy(out, rp.components)
	return out
}

func (rp ResourcePath) Size() int {
	return len(rp.components)
}

func (rp ResourcePath) At(i int) string {
	return rp.components[i]
}

func (rp ResourcePath) IsEmpty() bool {
	return rp.mountpoint == "" && len(rp.components) == 0
}

// A relative path has no mountpoint.
func (rp ResourcePath) IsRelative() bool {
	return rp.mountpoint == ""
}

// Leaf returns the final component, or "" for an empty path.
func (rp ResourcePath) Leaf() string {
	if len(rp.components) == 0 {
		return ""
	}
	return rp.components[len(rp.components)-1]
}

// ReferencesNestedResource reports whether the path points inside a container
// resource, notated with "::" (e.g. "res:/level.scene::Mesh_3").
func (rp ResourcePath) ReferencesNestedResource() bool {
	for _, c := range rp.components {
		if strings.Contains(c, "::") {
			return true
		}
	}
	return false
}

// Cd appends a component. ".." pops the last component if any; "" and "."
// leave the path unchanged.
func (rp ResourcePath) Cd(component string) ResourcePath {
	out := ResourcePath{mountpoint: rp.mountpoint}
	out.components = make([]string, len(rp.components), len(rp.components)+1)
	copy(out.components, rp.components)

	switch component {
	case "", ".":
	case "..":
		if len(out.components) > 0 {
			out.components = out.components[:len(out.components)-1]
		}
	default:
		out.components = append(out.components, component)
	}
	return out
}

// WithMountpoint returns a copy with the given mountpoint, which must end in
// ':'. An ill-formed mountpoint returns the receiver unchanged.
func (rp ResourcePath) WithMountpoint(mountpoint string) ResourcePath {
	if !strings.HasSuffix(mountpoint, ":") {
		return rp
	}
	out := rp
	out.mountpoint = mountpoint
	out.components = rp.Components()
	return out
}

func (rp ResourcePath) Equal(other ResourcePath) bool {
	if rp.mountpoint != other.mountpoint {
		return false
	}
	if len(rp.components) != len(other.components) {
		return false
	}
	for i := range rp.components {
		if rp.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// Hash covers the mountpoint and every component.
func (rp ResourcePath) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(rp.mountpoint))
	for _, c := range rp.components {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return h.Sum64()
}

// String serialises to the canonical form: mountpoint + "/" + joined
// components. Relative paths have no leading separator.
func (rp ResourcePath) String() string {
	res := strings.Join(rp.components, "/")
	if rp.mountpoint != "" {
		res = rp.mountpoint + "/" + res
	}
	return res
}

// MetaPath derives the adjacent ".meta" side file for this resource.
func (rp ResourcePath) MetaPath() ResourcePath {
	return rp.withLeafSuffix(".meta")
}

// ImportPath derives the adjacent ".import" side-car recording how the
// resource was imported.
func (rp ResourcePath) ImportPath() ResourcePath {
	return rp.withLeafSuffix(".import")
}

func (rp ResourcePath) withLeafSuffix(suffix string) ResourcePath {
	if len(rp.components) == 0 {
		return rp
	}
	out := ResourcePath{mountpoint: rp.mountpoint}
	out.components = rp.Components()
	out.components[len(out.components)-1] += suffix
	return out
}

// Extension returns the leaf extension without the dot, lowercased; "" when
// the leaf has none.
func (rp ResourcePath) Extension() string {
	leaf := rp.Leaf()
	if i := strings.LastIndexByte(leaf, '.'); i >= 0 && i < len(leaf)-1 {
		return strings.ToLower(leaf[i+1:])
	}
	return ""
}
