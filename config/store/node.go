package store

import (
	"fmt"
	"strings"
)

const pathDelimiter = "/"

type changeCallbackFn func(*node)

// node is a single segment of the configuration tree. Leaves carry a string
// value; inner nodes carry their children. Every node remembers the version
// of the last value merged into it.
type node struct {
	segment string
	value   string
	version int
	depth   int
	paths   map[string]*node
	parent  *node
}

func makeNode(segment string, depth int, parent *node) *node {
	n := &node{
		segment: segment,
		depth:   depth,
		paths:   make(map[string]*node),
		parent:  parent,
	}
	if parent != nil {
		parent.paths[segment] = n
	}
	return n
}

// path returns the absolute, "/" prefixed path of the node.
func (n *node) path() string {
	segments := make([]string, n.depth)
	for cur, i := n, n.depth-1; cur.parent != nil; cur, i = cur.parent, i-1 {
		segments[i] = cur.segment
	}
	return pathDelimiter + strings.Join(segments, pathDelimiter)
}

func (n *node) isLeaf() bool {
	return len(n.paths) == 0
}

// leafValues flattens the subtree rooted at n into a map keyed by the leaf
// paths relative to n. When n is itself a leaf the map contains a single
// entry keyed by its segment.
func (n *node) leafValues(prefix string, isRoot bool) map[string]string {
	if isRoot && prefix != "" {
		prefix = strings.TrimRight(prefix, pathDelimiter) + pathDelimiter
	}

	if n.isLeaf() {
		return map[string]string{prefix + n.segment: n.value}
	}

	if !isRoot {
		prefix += n.segment + pathDelimiter
	}

	values := make(map[string]string)
	for _, child := range n.paths {
		for k, v := range child.leafValues(prefix, false) {
			values[k] = v
		}
	}
	return values
}

// merge applies a string or a nested map[string]interface{} value to the
// subtree rooted at n. Leaves are only overwritten when version is not older
// than the version they already hold. The callback, if present, is invoked
// for every node whose subtree changed. merge panics on any other value type.
func (n *node) merge(version int, value interface{}, onChange changeCallbackFn) bool {
	switch v := value.(type) {
	case string:
		if version < n.version {
			return false
		}
		n.version = version
		if n.value == v && n.isLeaf() {
			return false
		}

		n.value = v
		if !n.isLeaf() {
			n.paths = make(map[string]*node)
		}
		if onChange != nil {
			onChange(n)
		}
		return true
	case map[string]interface{}:
		if len(v) == 0 {
			return false
		}
		if n.isLeaf() {
			if version < n.version {
				return false
			}
			n.value = ""
		}
		if version > n.version {
			n.version = version
		}

		modified := false
		for segment, childValue := range v {
			child := n.paths[segment]
			if child == nil {
				child = makeNode(segment, n.depth+1, n)
			}
			modified = child.merge(version, childValue, onChange) || modified
		}
		if modified && onChange != nil {
			onChange(n)
		}
		return modified
	}

	panic(fmt.Errorf("merge: unsupported value type %T for key %q", value, n.path()))
}
