package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

// chain A -> B -> C (C's parent is B, B's parent is A)
func chainParents() ParentFunc {
	parents := map[string]*string{
		"A": nil,
		"B": ptr("A"),
		"C": ptr("B"),
		"X": nil,
	}
	return func(id string) (*string, bool) {
		p, ok := parents[id]
		return p, ok
	}
}

func TestValidateMove(t *testing.T) {
	parentOf := chainParents()

	t.Run("move to root is always valid", func(t *testing.T) {
		assert.NoError(t, ValidateMove("C", nil, parentOf))
	})

	t.Run("move under unrelated node is valid", func(t *testing.T) {
		assert.NoError(t, ValidateMove("C", ptr("X"), parentOf))
	})

	t.Run("move under own descendant is a cycle", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove("A", ptr("C"), parentOf), ErrCycle)
		assert.ErrorIs(t, ValidateMove("A", ptr("B"), parentOf), ErrCycle)
	})

	t.Run("self parent is a cycle", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove("B", ptr("B"), parentOf), ErrCycle)
	})

	t.Run("missing parent is rejected", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove("C", ptr("nope"), parentOf), ErrParentNotFound)
	})

	t.Run("dangling ancestor reference terminates the walk", func(t *testing.T) {
		broken := func(id string) (*string, bool) {
			if id == "B" {
				return ptr("gone"), true
			}
			return nil, false
		}
		assert.NoError(t, ValidateMove("C", ptr("B"), broken))
	})

	t.Run("overlong chain is rejected", func(t *testing.T) {
		// 0 -> 1 -> 2 -> ... every node's parent is the next number
		deep := func(id string) (*string, bool) {
			var n int
			fmt.Sscanf(id, "%d", &n)
			return ptr(fmt.Sprintf("%d", n+1)), true
		}
		assert.ErrorIs(t, ValidateMove("target", ptr("0"), deep), ErrDepthExceeded)
	})
}

type row struct {
	id     string
	parent *string
}

func TestBuild(t *testing.T) {
	rows := []row{
		{id: "root-1"},
		{id: "child-a", parent: ptr("root-1")},
		{id: "child-b", parent: ptr("root-1")},
		{id: "grandchild", parent: ptr("child-a")},
		{id: "orphan", parent: ptr("missing")},
	}

	roots := Build(rows,
		func(r row) string { return r.id },
		func(r row) *string { return r.parent },
	)

	require.Len(t, roots, 2)
	assert.Equal(t, "root-1", roots[0].Value.id)
	assert.Equal(t, "orphan", roots[1].Value.id)

	require.Len(t, roots[0].Children, 2)
	// Sibling order follows input order
	assert.Equal(t, "child-a", roots[0].Children[0].Value.id)
	assert.Equal(t, "child-b", roots[0].Children[1].Value.id)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "grandchild", roots[0].Children[0].Children[0].Value.id)
}

func TestBuild_MutualParentLoopIsBroken(t *testing.T) {
	// A and B point at each other, so neither descends from a real root.
	// Both must still come out: one promoted, the other as its child.
	rows := []row{
		{id: "root-1"},
		{id: "loop-a", parent: ptr("loop-b")},
		{id: "loop-b", parent: ptr("loop-a")},
	}

	roots := Build(rows,
		func(r row) string { return r.id },
		func(r row) *string { return r.parent },
	)

	require.Len(t, roots, 2)
	assert.Equal(t, "root-1", roots[0].Value.id)
	assert.Equal(t, "loop-a", roots[1].Value.id)
	require.Len(t, roots[1].Children, 1)
	assert.Equal(t, "loop-b", roots[1].Children[0].Value.id)
	assert.Empty(t, roots[1].Children[0].Children)
}

func TestBuild_SelfParentBecomesRoot(t *testing.T) {
	rows := []row{{id: "loop", parent: ptr("loop")}}

	roots := Build(rows,
		func(r row) string { return r.id },
		func(r row) *string { return r.parent },
	)

	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Children)
}
