// Package blocktext parses the nested named-block text grammar shared
// by Pinnacle ROI and Trial files:
//
//	Name = {
//	    key = value;
//	    sub : other value;
//	    Child = {
//	        ...
//	    };
//	};
//
// Comment lines start with //. Assignments use either = or : as the
// separator. Dotted keys (DoseGrid.VoxelSize.X = 0.4;) are expanded
// into nested child nodes. Lines that are neither assignments nor block
// delimiters (contour point rows, for example) accumulate on the
// enclosing node's Raw text.
package blocktext

import (
	"strings"

	"bin2dicom/pkg/errs"
)

// Attr is one key/value assignment inside a block, in source order.
type Attr struct {
	Key, Value string
}

// Node is one block of the parsed tree. The root node is anonymous and
// holds the file's top-level assignments and blocks.
type Node struct {
	// Name is the block's key, empty for the root.
	Name string

	// Offset is the byte offset of the block's opening line in the
	// decoded text.
	Offset int64

	Attrs    []Attr
	Children []*Node

	// Raw holds the block's lines that are not assignments or nested
	// blocks, newline-joined. Contour point rows land here.
	Raw string
}

// Attr returns the first value assigned to key in this block.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first child block named name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildAll returns every child block named name, in source order.
func (n *Node) ChildAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Lookup walks a child path and returns the attribute named by the last
// path element, searching nested blocks produced by either brace
// nesting or dotted keys.
func (n *Node) Lookup(path ...string) (string, bool) {
	cur := n
	for _, p := range path[:len(path)-1] {
		cur = cur.Child(p)
		if cur == nil {
			return "", false
		}
	}
	return cur.Attr(path[len(path)-1])
}

// Parse builds the block tree of src. path is used for error reporting
// only. Unmatched braces yield *errs.FormatError carrying the byte
// offset of the offending line in the decoded text.
func Parse(src, path string) (*Node, error) {
	root := &Node{Offset: 0}
	stack := []*Node{root}
	var raws []*strings.Builder
	raws = append(raws, &strings.Builder{})

	var off int64
	for len(src) > 0 {
		line := src
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			line, src = src[:i], src[i+1:]
		} else {
			src = ""
		}
		lineOff := off
		off += int64(len(line)) + 1

		trimmed := stripComment(line)
		if trimmed == "" {
			continue
		}

		cur := stack[len(stack)-1]
		switch {
		case strings.HasSuffix(trimmed, "{"):
			key := strings.TrimSpace(strings.TrimRight(strings.TrimSuffix(trimmed, "{"), "=: \t"))
			child := &Node{Name: key, Offset: lineOff}
			cur.Children = append(cur.Children, child)
			stack = append(stack, child)
			raws = append(raws, &strings.Builder{})

		case strings.HasPrefix(trimmed, "}"):
			if len(stack) == 1 {
				return nil, &errs.FormatError{Path: path, Offset: lineOff, Msg: "unmatched closing brace"}
			}
			cur.Raw = strings.TrimRight(raws[len(raws)-1].String(), "\n")
			stack = stack[:len(stack)-1]
			raws = raws[:len(raws)-1]

		default:
			if key, value, ok := splitAssign(trimmed); ok {
				addAttr(cur, key, value)
			} else {
				raws[len(raws)-1].WriteString(trimmed)
				raws[len(raws)-1].WriteByte('\n')
			}
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, &errs.FormatError{Path: path, Offset: open.Offset, Msg: "unclosed block " + open.Name}
	}
	root.Raw = strings.TrimRight(raws[0].String(), "\n")
	return root, nil
}

// stripComment removes a trailing // comment and surrounding space.
func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// splitAssign splits a key = value or key : value line. The value is
// trimmed of the terminating semicolon and surrounding quotes.
func splitAssign(line string) (key, value string, ok bool) {
	sep := strings.IndexAny(line, "=:")
	if sep < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:sep])
	value = strings.TrimSpace(line[sep+1:])
	value = strings.TrimSpace(strings.TrimSuffix(value, ";"))
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// addAttr stores an assignment on the node, expanding dotted keys into
// nested child nodes so DoseGrid.VoxelSize.X and a brace-nested
// VoxelSize block read identically.
func addAttr(n *Node, key, value string) {
	parts := strings.Split(key, ".")
	cur := n
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		next := cur.Child(p)
		if next == nil {
			next = &Node{Name: p, Offset: n.Offset}
			cur.Children = append(cur.Children, next)
		}
		cur = next
	}
	cur.Attrs = append(cur.Attrs, Attr{Key: strings.TrimSpace(parts[len(parts)-1]), Value: value})
}
