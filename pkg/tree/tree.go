// Package tree provides reparent validation and tree assembly for
// hierarchical records (departments, categories).
//
// Hierarchies are stored as adjacency lists (id, parent_id). Reparenting is
// validated before write so a node can never become its own ancestor;
// assembly from flat rows tolerates dangling parent references by promoting
// the orphan to a root.
package tree

import "errors"

var (
	// ErrCycle indicates a reparent that would make a node its own ancestor
	ErrCycle = errors.New("move would create a cycle")

	// ErrDepthExceeded indicates an ancestor chain longer than MaxDepth,
	// which only happens with corrupted data
	ErrDepthExceeded = errors.New("ancestor chain exceeds maximum depth")

	// ErrParentNotFound indicates the requested new parent does not exist
	ErrParentNotFound = errors.New("parent not found")
)

// MaxDepth bounds ancestor walks so corrupted parent chains cannot loop
const MaxDepth = 100

// ParentFunc looks up a node's parent id. It returns (nil, true) for a root
// node and (nil, false) for a node that does not exist.
type ParentFunc func(id string) (parentID *string, ok bool)

// ValidateMove checks that reparenting nodeID under newParentID keeps the
// hierarchy acyclic. A nil newParentID (move to root) is always valid. The
// walk ascends from the new parent; finding nodeID among its ancestors, or
// the new parent being nodeID itself, is a cycle.
func ValidateMove(nodeID string, newParentID *string, parentOf ParentFunc) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == nodeID {
		return ErrCycle
	}
	if _, ok := parentOf(*newParentID); !ok {
		return ErrParentNotFound
	}

	current := newParentID
	for depth := 0; current != nil; depth++ {
		if depth >= MaxDepth {
			return ErrDepthExceeded
		}
		if *current == nodeID {
			return ErrCycle
		}
		parent, ok := parentOf(*current)
		if !ok {
			// Dangling reference; the chain ends here
			return nil
		}
		current = parent
	}
	return nil
}

// Node is one assembled tree node
type Node[T any] struct {
	Value    T
	Children []*Node[T]
}

// Build assembles flat rows into root-node trees. Input order is preserved
// among siblings, so callers sort rows (typically by sort_order) before
// building. Rows whose parent id points at a missing row become roots
// instead of being dropped, and parent loops (corrupted data) are broken by
// promoting one loop member to a root so every row stays in the output.
func Build[T any](items []T, id func(T) string, parentID func(T) *string) []*Node[T] {
	nodes := make(map[string]*Node[T], len(items))
	for _, item := range items {
		nodes[id(item)] = &Node[T]{Value: item}
	}

	parentNode := make(map[string]*Node[T], len(items))
	var roots []*Node[T]
	for _, item := range items {
		node := nodes[id(item)]
		pid := parentID(item)
		if pid == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*pid]
		if !ok || *pid == id(item) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
		parentNode[id(item)] = parent
	}

	// Rows whose parents reference each other form loops attached to no
	// root. Promote the first unreached member of each loop, detaching it
	// from its parent so it is not emitted twice.
	reached := make(map[*Node[T]]bool, len(nodes))
	var mark func(n *Node[T])
	mark = func(n *Node[T]) {
		if reached[n] {
			return
		}
		reached[n] = true
		for _, child := range n.Children {
			mark(child)
		}
	}
	for _, root := range roots {
		mark(root)
	}
	for _, item := range items {
		node := nodes[id(item)]
		if reached[node] {
			continue
		}
		if parent := parentNode[id(item)]; parent != nil {
			for i, child := range parent.Children {
				if child == node {
					parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
					break
				}
			}
		}
		roots = append(roots, node)
		mark(node)
	}
	return roots
}
