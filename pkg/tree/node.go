package tree

import (
	"github.com/inkwell-cms/inkwell/pkg/slug"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// Node is either a *Container or an *Extract. Nodes are owned by exactly
// one parent; the parent reference is non-owning and only used for upward
// navigation.
type Node interface {
	Title() string
	Slug() string
	Parent() *Container

	// Path returns the slug path from the root to this node, excluding the
	// root's own slug. The root's path is empty.
	Path() []string
}

// Container is a non-leaf node: a titled group of child containers or
// extracts with optional introduction and conclusion text. A container
// never mixes child kinds.
type Container struct {
	title  string
	slg    string
	parent *Container

	// introduction and conclusion are blob references. nil means the text
	// is absent, which is distinct from a reference to the empty blob.
	introduction *types.Hash
	conclusion   *types.Hash

	children []Node
	pool     *slug.Pool
}

func (c *Container) Title() string      { return c.title }
func (c *Container) Slug() string       { return c.slg }
func (c *Container) Parent() *Container { return c.parent }

func (c *Container) Path() []string {
	if c.parent == nil {
		return nil
	}
	return append(c.parent.Path(), c.slg)
}

// Depth is the number of container levels above this node; the root is 0.
func (c *Container) Depth() int {
	if c.parent == nil {
		return 0
	}
	return c.parent.Depth() + 1
}

// Children returns the child nodes in stored order. The slice is a copy;
// iterating it never mutates the tree and can be restarted freely.
func (c *Container) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Container) Introduction() *types.Hash { return c.introduction }
func (c *Container) Conclusion() *types.Hash   { return c.conclusion }

func (c *Container) SetIntroduction(h *types.Hash) { c.introduction = h }
func (c *Container) SetConclusion(h *types.Hash)   { c.conclusion = h }

// HasContainerChildren reports whether any child is a container.
func (c *Container) HasContainerChildren() bool {
	for _, child := range c.children {
		if _, ok := child.(*Container); ok {
			return true
		}
	}
	return false
}

// HasExtractChildren reports whether any child is an extract.
func (c *Container) HasExtractChildren() bool {
	for _, child := range c.children {
		if _, ok := child.(*Extract); ok {
			return true
		}
	}
	return false
}

func (c *Container) child(slg string) (Node, bool) {
	for _, child := range c.children {
		if child.Slug() == slg {
			return child, true
		}
	}
	return nil, false
}

func (c *Container) indexOf(n Node) int {
	for i, child := range c.children {
		if child == n {
			return i
		}
	}
	return -1
}

// containerHeight is the number of container levels in the subtree rooted
// at n, counting n itself when it is a container. Extracts have height 0.
func containerHeight(n Node) int {
	c, ok := n.(*Container)
	if !ok {
		return 0
	}
	max := 0
	for _, child := range c.children {
		if h := containerHeight(child); h > max {
			max = h
		}
	}
	return max + 1
}

// Extract is a leaf node holding a single text blob.
type Extract struct {
	title  string
	slg    string
	parent *Container

	// text is nil when absent, which is distinct from the empty blob.
	text *types.Hash
}

func (e *Extract) Title() string      { return e.title }
func (e *Extract) Slug() string       { return e.slg }
func (e *Extract) Parent() *Container { return e.parent }

func (e *Extract) Path() []string {
	return append(e.parent.Path(), e.slg)
}

func (e *Extract) Text() *types.Hash     { return e.text }
func (e *Extract) SetText(h *types.Hash) { e.text = h }
