// Package tree is the in-memory, navigable representation of one commit of
// a content item: a strict rooted tree of containers and extracts with
// per-parent slug pools, a configurable container depth bound and a
// content-kind policy deciding which node types may appear where.
//
// A tree is loaded from a commit, mutated structurally, then committed
// back; committed snapshots are immutable. The tree is the only component
// that understands tree shape.
package tree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/inkwell-cms/inkwell/pkg/slug"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// Options configures tree construction.
type Options struct {
	// MaxContainerDepth is the number of container levels allowed below the
	// root: 2 means root → part → chapter, with extracts below.
	MaxContainerDepth int
}

// DefaultMaxContainerDepth matches the part/chapter structure of full
// tutorials.
const DefaultMaxContainerDepth = 2

func (o Options) withDefaults() Options {
	if o.MaxContainerDepth <= 0 {
		o.MaxContainerDepth = DefaultMaxContainerDepth
	}
	return o
}

// VersionedContent is one snapshot of a content tree. The zero-commit
// state is a freshly created, never-committed tree.
type VersionedContent struct {
	root     *Container
	kind     types.ContentKind
	commit   types.Hash
	maxDepth int
}

// New creates an empty tree with a root container titled title.
func New(title string, kind types.ContentKind, opts Options) *VersionedContent {
	opts = opts.withDefaults()
	return &VersionedContent{
		root: &Container{
			title: title,
			slg:   slug.Slugify(title),
			pool:  slug.NewPool(),
		},
		kind:     kind,
		maxDepth: opts.MaxContainerDepth,
	}
}

func (vc *VersionedContent) Root() *Container      { return vc.root }
func (vc *VersionedContent) Kind() types.ContentKind { return vc.kind }
func (vc *VersionedContent) Title() string         { return vc.root.title }
func (vc *VersionedContent) Slug() string          { return vc.root.slg }

// CommitHash is the commit this tree was loaded from or last committed as;
// zero for a new, never-committed tree.
func (vc *VersionedContent) CommitHash() types.Hash { return vc.commit }

// Find resolves a sequence of slugs from the root. The empty path resolves
// to the root container. Sibling slugs are unique by construction, so
// resolution is never ambiguous.
func (vc *VersionedContent) Find(path []string) (Node, error) {
	var current Node = vc.root
	for i, segment := range path {
		c, ok := current.(*Container)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not a container: %w",
				strings.Join(path, "/"), strings.Join(path[:i], "/"), types.ErrNotFound)
		}
		child, ok := c.child(segment)
		if !ok {
			return nil, fmt.Errorf("path %q: no child %q: %w",
				strings.Join(path, "/"), segment, types.ErrNotFound)
		}
		current = child
	}
	return current, nil
}

// FindContainer resolves a path that must end at a container.
func (vc *VersionedContent) FindContainer(path []string) (*Container, error) {
	n, err := vc.Find(path)
	if err != nil {
		return nil, err
	}
	c, ok := n.(*Container)
	if !ok {
		return nil, fmt.Errorf("path %q resolves to an extract: %w",
			strings.Join(path, "/"), types.ErrNotAContainer)
	}
	return c, nil
}

// AddContainer appends a new container as the last child of parent,
// allocating its slug from the parent's pool.
func (vc *VersionedContent) AddContainer(parent *Container, title string, introduction, conclusion *types.Hash) (*Container, error) {
	if parent.HasExtractChildren() {
		return nil, fmt.Errorf("container %q already holds extracts: %w", parent.slg, types.ErrNotAContainer)
	}
	if !vc.kind.AllowsContainers(parent.Depth(), vc.maxDepth) {
		if vc.kind == types.KindTutorial {
			return nil, fmt.Errorf("container %q is at depth %d of %d: %w",
				parent.slg, parent.Depth(), vc.maxDepth, types.ErrDepthExceeded)
		}
		return nil, fmt.Errorf("%s content cannot hold containers: %w", vc.kind, types.ErrNotAContainer)
	}

	child := &Container{
		title:        title,
		slg:          parent.pool.Allocate(title),
		parent:       parent,
		introduction: introduction,
		conclusion:   conclusion,
		pool:         slug.NewPool(),
	}
	parent.children = append(parent.children, child)
	return child, nil
}

// AddExtract appends a new extract as the last child of parent.
func (vc *VersionedContent) AddExtract(parent *Container, title string, text *types.Hash) (*Extract, error) {
	if parent.HasContainerChildren() {
		return nil, fmt.Errorf("container %q already holds containers: %w", parent.slg, types.ErrNotAContainer)
	}
	if !vc.kind.AllowsExtracts(parent.Depth()) {
		return nil, fmt.Errorf("%s content requires a container before extracts: %w", vc.kind, types.ErrNotAContainer)
	}

	child := &Extract{
		title:  title,
		slg:    parent.pool.Allocate(title),
		parent: parent,
		text:   text,
	}
	parent.children = append(parent.children, child)
	return child, nil
}

// Rename retitles a node. The slug is re-derived only when the title
// actually changed; an unchanged title keeps the existing slug so
// unrelated edits never move a node's address.
func (vc *VersionedContent) Rename(n Node, title string) {
	if n.Title() == title {
		return
	}
	switch node := n.(type) {
	case *Container:
		node.title = title
		if node.parent == nil {
			vc.root.slg = slug.Slugify(title)
			return
		}
		node.slg = node.parent.pool.Allocate(title)
	case *Extract:
		node.title = title
		node.slg = node.parent.pool.Allocate(title)
	}
}

// Delete removes a node and, for containers, its whole subtree. Released
// slugs stay reserved in the parent's pool.
func (vc *VersionedContent) Delete(n Node) error {
	parent := n.Parent()
	if parent == nil {
		return fmt.Errorf("delete: %w", types.ErrCannotDeleteRoot)
	}
	i := parent.indexOf(n)
	if i < 0 {
		return fmt.Errorf("delete: node %q is not attached: %w", n.Slug(), types.ErrNotFound)
	}
	parent.children = append(parent.children[:i], parent.children[i+1:]...)
	return nil
}

// MoveKind selects where a moved node lands relative to its new siblings.
type MoveKind int

const (
	// MoveUp and MoveDown shift the node one place within its current
	// parent; the destination parent must be the current parent.
	MoveUp MoveKind = iota
	MoveDown
	// MoveBefore and MoveAfter place the node relative to a named sibling
	// in the destination parent.
	MoveBefore
	MoveAfter
)

// Position describes a move destination.
type Position struct {
	Kind    MoveKind
	Sibling string // sibling slug for MoveBefore/MoveAfter
}

// Move relocates a node under newParent at the given position. Both the
// node path and the destination are supplied independently by the caller,
// so cycle and depth violations are rejected here even though an attached
// tree cannot structurally contain them.
func (vc *VersionedContent) Move(n Node, newParent *Container, pos Position) error {
	oldParent := n.Parent()
	if oldParent == nil {
		return fmt.Errorf("cannot move the root: %w", types.ErrInvalidMove)
	}
	for a := newParent; a != nil; a = a.parent {
		if Node(a) == n {
			return fmt.Errorf("destination %q is inside the moved subtree: %w", newParent.slg, types.ErrInvalidMove)
		}
	}

	switch n.(type) {
	case *Container:
		if newParent.HasExtractChildren() {
			return fmt.Errorf("destination %q holds extracts: %w", newParent.slg, types.ErrInvalidMove)
		}
		if !vc.kind.AllowsContainers(newParent.Depth(), vc.maxDepth) {
			return fmt.Errorf("destination %q cannot hold containers: %w", newParent.slg, types.ErrInvalidMove)
		}
		if newParent.Depth()+containerHeight(n) > vc.maxDepth {
			return fmt.Errorf("moving %q under %q exceeds depth %d: %w",
				n.Slug(), newParent.slg, vc.maxDepth, types.ErrInvalidMove)
		}
	case *Extract:
		if newParent.HasContainerChildren() {
			return fmt.Errorf("destination %q holds containers: %w", newParent.slg, types.ErrInvalidMove)
		}
		if !vc.kind.AllowsExtracts(newParent.Depth()) {
			return fmt.Errorf("destination %q cannot hold extracts: %w", newParent.slg, types.ErrInvalidMove)
		}
	}

	switch pos.Kind {
	case MoveUp, MoveDown:
		if newParent != oldParent {
			return fmt.Errorf("up/down moves stay within the current parent: %w", types.ErrInvalidMove)
		}
	case MoveBefore, MoveAfter:
	default:
		return fmt.Errorf("unknown move position %d: %w", pos.Kind, types.ErrInvalidMove)
	}

	currentIndex := oldParent.indexOf(n)
	if currentIndex < 0 {
		return fmt.Errorf("move: node %q is not attached: %w", n.Slug(), types.ErrNotFound)
	}

	// Detach first; insertion indexes are computed against the remaining
	// children.
	oldParent.children = append(oldParent.children[:currentIndex], oldParent.children[currentIndex+1:]...)

	var index int
	switch pos.Kind {
	case MoveUp:
		index = currentIndex - 1
	case MoveDown:
		index = currentIndex + 1
	case MoveBefore, MoveAfter:
		sibling, ok := newParent.child(pos.Sibling)
		if !ok {
			// Reattach; the move never happened.
			vc.insertAt(oldParent, n, currentIndex)
			return fmt.Errorf("no sibling %q under %q: %w", pos.Sibling, newParent.slg, types.ErrInvalidMove)
		}
		index = newParent.indexOf(sibling)
		if pos.Kind == MoveAfter {
			index++
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(newParent.children) {
		index = len(newParent.children)
	}

	if newParent != oldParent {
		if newParent.pool.Has(n.Slug()) {
			// The slug is taken in the destination scope; derive a fresh one.
			switch node := n.(type) {
			case *Container:
				node.slg = newParent.pool.Allocate(node.title)
			case *Extract:
				node.slg = newParent.pool.Allocate(node.title)
			}
		} else {
			newParent.pool.Reserve(n.Slug())
		}
	}

	vc.insertAt(newParent, n, index)
	return nil
}

func (vc *VersionedContent) insertAt(parent *Container, n Node, index int) {
	parent.children = append(parent.children, nil)
	copy(parent.children[index+1:], parent.children[index:])
	parent.children[index] = n
	switch node := n.(type) {
	case *Container:
		node.parent = parent
	case *Extract:
		node.parent = parent
	}
}

// ComputeHash returns a deterministic structural hash of the whole tree: a
// pure function of titles, slugs, node order and blob references. It is
// independent of commit history and slug pool state, so two trees with the
// same visible structure hash identically.
func (vc *VersionedContent) ComputeHash() types.Hash {
	var buf bytes.Buffer
	writeCanonicalNode(&buf, vc.root)
	return types.HashTree(buf.Bytes())
}

func writeCanonicalNode(buf *bytes.Buffer, n Node) {
	switch node := n.(type) {
	case *Container:
		buf.WriteByte('C')
		writeCanonicalString(buf, node.title)
		writeCanonicalString(buf, node.slg)
		writeCanonicalRef(buf, node.introduction)
		writeCanonicalRef(buf, node.conclusion)
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(node.children)))
		buf.Write(count[:])
		for _, child := range node.children {
			writeCanonicalNode(buf, child)
		}
	case *Extract:
		buf.WriteByte('E')
		writeCanonicalString(buf, node.title)
		writeCanonicalString(buf, node.slg)
		writeCanonicalRef(buf, node.text)
	}
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(s)))
	buf.Write(length[:])
	buf.WriteString(s)
}

func writeCanonicalRef(buf *bytes.Buffer, h *types.Hash) {
	if h == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(h.Bytes())
}
