// Package regpath implements the canonical hierarchical register name used
// throughout the catalogue and accessor layers.
package regpath

import "strings"

const separator = "/"

// Path is an immutable, normalized, slash-separated register name. Two paths
// referring to the same register compare equal after normalization, no
// matter how the caller spelled them.
type Path struct {
	norm string
}

// New normalizes raw into a Path: a leading separator is enforced, runs of
// duplicate separators collapse into one, and a trailing separator is
// stripped (except for the root path itself).
func New(raw string) Path {
	parts := strings.Split(raw, separator)
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		components = append(components, p)
	}
	if len(components) == 0 {
		return Path{norm: separator}
	}
	return Path{norm: separator + strings.Join(components, separator)}
}

// String returns the normalized path.
func (p Path) String() string {
	if p.norm == "" {
		return separator
	}
	return p.norm
}

// Components returns the non-empty path segments in order.
func (p Path) Components() []string {
	trimmed := strings.TrimPrefix(p.String(), separator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, separator)
}

// IsRoot reports whether p is the root path "/".
func (p Path) IsRoot() bool {
	return p.String() == separator
}

// Equal reports whether p and other name the same register.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

// Less orders paths lexicographically by their normalized string form; it
// gives Path a total order suitable for sorted iteration or use as a map
// key comparator.
func (p Path) Less(other Path) bool {
	return p.String() < other.String()
}

// Join appends a child component to p and returns the normalized result.
func (p Path) Join(child string) Path {
	return New(p.String() + separator + child)
}
